package apicollectionv1

import (
	"context"

	"github.com/fulldump/box"

	"github.com/fulldump/docstore/auth"
	"github.com/fulldump/docstore/database"
	"github.com/fulldump/docstore/service"
)

type contextKey string

const (
	ContextServicerKey contextKey = "ed0fa170-5593-11ed-9d60-9bdc940af29d"
	ContextUserKey     contextKey = "user"
)

func SetServicer(ctx context.Context, s service.Servicer) context.Context {
	return context.WithValue(ctx, ContextServicerKey, s)
}

func GetServicer(ctx context.Context) service.Servicer {
	return ctx.Value(ContextServicerKey).(service.Servicer) // TODO: can raise panic :D
}

func SetUser(ctx context.Context, user *auth.User) context.Context {
	return context.WithValue(ctx, ContextUserKey, user)
}

// GetUser returns the authenticated principal, nil if there is none.
func GetUser(ctx context.Context) *auth.User {
	user, _ := ctx.Value(ContextUserKey).(*auth.User)
	return user
}

func getCollection(ctx context.Context) *database.Collection {
	return GetServicer(ctx).GetCollection(
		box.GetUrlParameter(ctx, "databaseName"),
		box.GetUrlParameter(ctx, "collectionName"),
	)
}

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/fulldump/box"

	"github.com/fulldump/docstore/api/apicollectionv1"
	"github.com/fulldump/docstore/auth"
	"github.com/fulldump/docstore/collection"
	"github.com/fulldump/docstore/database"
	"github.com/fulldump/docstore/service"
)

var ErrUnauthorized = errors.New("unauthorized")

type PrettyError struct {
	Message     string `json:"message"`
	Description string `json:"description"`
}

type StatusGetter interface {
	GetStatus() string
}

func InterceptorUnavailable(db StatusGetter) box.I {
	return func(next box.H) box.H {
		return func(ctx context.Context) {

			status := db.GetStatus()
			if status != database.StatusOperating {
				box.SetError(ctx, fmt.Errorf("%w: %s", errUnavailable, status))
				return
			}
			next(ctx)
		}
	}
}

var errUnavailable = errors.New("temporary unavailable")

type errorMapping struct {
	target      error
	status      int
	description string
}

var errorMappings = []errorMapping{
	{ErrUnauthorized, http.StatusUnauthorized, "user is not authenticated"},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, "wrong username or password"},
	{service.ErrorForbidden, http.StatusForbidden, "user has not enough permissions"},
	{auth.ErrUserExists, http.StatusConflict, "choose another username"},
	{auth.ErrInvalidUser, http.StatusBadRequest, "username and password are mandatory"},
	{apicollectionv1.ErrBadRequest, http.StatusBadRequest, "malformed request"},
	{database.ErrInvalidName, http.StatusBadRequest, "names can not be empty nor contain path separators"},
	{database.ErrInvalidUpdate, http.StatusBadRequest, "supported update operators are $set and $unset"},
	{collection.ErrInvalidValue, http.StatusBadRequest, "documents must be plain JSON with finite numbers"},
	{database.ErrReservedCollection, http.StatusForbidden, "users are managed through /v1/users"},
	{errUnavailable, http.StatusServiceUnavailable, "try again later"},
}

func PrettyErrorInterceptor(next box.H) box.H {
	return func(ctx context.Context) {

		next(ctx)

		err := box.GetError(ctx)
		if err == nil {
			return
		}
		w := box.GetResponse(ctx)

		status := http.StatusInternalServerError
		description := "Unexpected error"
		for _, m := range errorMappings {
			if errors.Is(err, m.target) {
				status = m.status
				description = m.description
				break
			}
		}

		apicollectionv1.WriteJSON(w, status, map[string]any{
			"error": PrettyError{
				Message:     err.Error(),
				Description: description,
			},
		})
	}
}

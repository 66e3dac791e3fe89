package api

import (
	"context"

	"github.com/fulldump/docstore/api/apicollectionv1"
	"github.com/fulldump/docstore/database"
)

func listDatabases(ctx context.Context) []*database.DatabaseInfo {
	return apicollectionv1.GetServicer(ctx).ListDatabases(apicollectionv1.GetUser(ctx))
}

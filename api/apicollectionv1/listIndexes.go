package apicollectionv1

import (
	"context"
	"net/http"
)

func listIndexes(ctx context.Context, w http.ResponseWriter) error {

	result, err := getCollection(ctx).Indexes(GetUser(ctx))
	if err != nil {
		return err
	}

	return writeResult(w, http.StatusOK, result)
}

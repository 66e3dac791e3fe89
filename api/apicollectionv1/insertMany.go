package apicollectionv1

import (
	"context"
	"net/http"

	"github.com/fulldump/docstore/collection"
)

func insertMany(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

	documents := []collection.Document{}
	err := ReadBody(r, &documents)
	if err != nil {
		return err
	}

	result, err := getCollection(ctx).InsertMany(GetUser(ctx), documents)
	if err != nil {
		return err
	}

	return writeResult(w, http.StatusCreated, result)
}

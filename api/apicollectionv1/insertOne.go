package apicollectionv1

import (
	"context"
	"net/http"

	"github.com/fulldump/docstore/collection"
)

func insertOne(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

	document := collection.Document{}
	err := ReadBody(r, &document)
	if err != nil {
		return err
	}

	result, err := getCollection(ctx).InsertOne(GetUser(ctx), document)
	if err != nil {
		return err
	}

	return writeResult(w, http.StatusCreated, result)
}

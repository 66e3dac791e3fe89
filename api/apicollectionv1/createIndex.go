package apicollectionv1

import (
	"context"
	"net/http"
)

type indexRequest struct {
	Field string `json:"field"`
}

func createIndex(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

	input := &indexRequest{}
	err := ReadBody(r, input)
	if err != nil {
		return err
	}

	result, err := getCollection(ctx).CreateIndex(GetUser(ctx), input.Field)
	if err != nil {
		return err
	}

	return writeResult(w, http.StatusCreated, result)
}

package apicollectionv1

import (
	"context"
	"net/http"
)

type filterRequest struct {
	Filter map[string]any `json:"filter"`
}

func find(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

	input := &filterRequest{}
	err := ReadBody(r, input)
	if err != nil {
		return err
	}

	result, err := getCollection(ctx).Find(GetUser(ctx), input.Filter)
	if err != nil {
		return err
	}

	return writeResult(w, http.StatusOK, result)
}

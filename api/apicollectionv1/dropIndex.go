package apicollectionv1

import (
	"context"
	"net/http"
)

func dropIndex(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

	input := &indexRequest{}
	err := ReadBody(r, input)
	if err != nil {
		return err
	}

	result, err := getCollection(ctx).DropIndex(GetUser(ctx), input.Field)
	if err != nil {
		return err
	}

	return writeResult(w, http.StatusOK, result)
}

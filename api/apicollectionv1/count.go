package apicollectionv1

import (
	"context"
	"net/http"
)

func count(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

	input := &filterRequest{}
	err := ReadBody(r, input)
	if err != nil {
		return err
	}

	result, err := getCollection(ctx).Count(GetUser(ctx), input.Filter)
	if err != nil {
		return err
	}

	return writeResult(w, http.StatusOK, result)
}

package apicollectionv1

import (
	"context"
	"net/http"
)

// deleteOne removes every document matching the filter.
func deleteOne(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

	input := &filterRequest{}
	err := ReadBody(r, input)
	if err != nil {
		return err
	}

	result, err := getCollection(ctx).DeleteOne(GetUser(ctx), input.Filter)
	if err != nil {
		return err
	}

	return writeResult(w, http.StatusOK, result)
}

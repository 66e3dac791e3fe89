package apicollectionv1

import (
	"context"
	"fmt"
	"net/http"

	"github.com/fulldump/docstore/database"
)

type updateOneRequest struct {
	Filter map[string]any `json:"filter"`
	Update map[string]any `json:"update"`
	Upsert bool           `json:"upsert"`
}

func updateOne(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

	input := &updateOneRequest{}
	err := ReadBody(r, input)
	if err != nil {
		return err
	}
	if input.Update == nil {
		return fmt.Errorf("%w: update is mandatory", ErrBadRequest)
	}

	result, err := getCollection(ctx).UpdateOne(GetUser(ctx), input.Filter, input.Update, database.UpdateOptions{
		Upsert: input.Upsert,
	})
	if err != nil {
		return err
	}

	status := http.StatusOK
	if result.Value.Upserted {
		status = http.StatusCreated
	}

	return writeResult(w, status, result)
}

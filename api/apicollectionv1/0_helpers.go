package apicollectionv1

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-json-experiment/json"

	"github.com/fulldump/docstore/database"
)

var ErrBadRequest = errors.New("bad request")

// ReadBody decodes the request body into v. An empty body leaves v untouched.
func ReadBody(r *http.Request, v any) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	err = json.Unmarshal(body, v)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBadRequest, err.Error())
	}
	return nil
}

func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.MarshalWrite(w, v)
}

// writeResult maps denied to 403 and not found to 404. Denied results carry
// no value.
func writeResult[T any](w http.ResponseWriter, okStatus int, result database.Result[T]) error {
	switch result.Status {
	case database.ResultDenied:
		return WriteJSON(w, http.StatusForbidden, map[string]any{
			"status": result.Status,
		})
	case database.ResultNotFound:
		return WriteJSON(w, http.StatusNotFound, result)
	}
	return WriteJSON(w, okStatus, result)
}

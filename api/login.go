package api

import (
	"context"
	"net/http"

	"github.com/fulldump/docstore/api/apicollectionv1"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// login checks credentials and returns the user with its grants, requests
// to the rest of the API authenticate with the same credentials.
func login(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

	input := &loginRequest{}
	err := apicollectionv1.ReadBody(r, input)
	if err != nil {
		return err
	}

	user, err := apicollectionv1.GetServicer(ctx).Login(input.Username, input.Password)
	if err != nil {
		return err
	}

	return apicollectionv1.WriteJSON(w, http.StatusOK, user)
}

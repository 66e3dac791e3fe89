package api

import (
	"context"
	"net/http"

	"github.com/fulldump/docstore/api/apicollectionv1"
	"github.com/fulldump/docstore/service"
)

func registerUser(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

	input := &service.RegisterUserInput{}
	err := apicollectionv1.ReadBody(r, input)
	if err != nil {
		return err
	}

	user, err := apicollectionv1.GetServicer(ctx).RegisterUser(apicollectionv1.GetUser(ctx), input)
	if err != nil {
		return err
	}

	return apicollectionv1.WriteJSON(w, http.StatusCreated, user)
}

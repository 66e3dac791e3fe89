package service

import (
	"errors"

	"github.com/fulldump/docstore/auth"
	"github.com/fulldump/docstore/database"
)

var (
	ErrorForbidden = errors.New("forbidden")
)

type Servicer interface { // todo: review naming
	GetStatus() string
	Login(username, password string) (*auth.User, error)
	RegisterUser(principal *auth.User, input *RegisterUserInput) (*auth.User, error)
	ListDatabases(principal *auth.User) []*database.DatabaseInfo
	GetCollection(databaseName, collectionName string) *database.Collection
}

type RegisterUserInput struct {
	Username string       `json:"username"`
	Password string       `json:"password"`
	Roles    []auth.Grant `json:"roles"`
}

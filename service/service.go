package service

import (
	"github.com/fulldump/docstore/auth"
	"github.com/fulldump/docstore/database"
)

type Service struct {
	store *database.Store
}

func NewService(store *database.Store) *Service {
	return &Service{
		store: store,
	}
}

func (s *Service) GetStatus() string {
	return s.store.GetStatus()
}

func (s *Service) Login(username, password string) (*auth.User, error) {
	return s.store.LoginUser(username, password)
}

// RegisterUser requires admin permission on the users collection.
func (s *Service) RegisterUser(principal *auth.User, input *RegisterUserInput) (*auth.User, error) {

	resource := auth.UsersDatabase + "." + auth.UsersCollection
	if !auth.HasPermission(principal, resource, auth.PermissionAdmin) {
		return nil, ErrorForbidden
	}

	return s.store.RegisterUser(input.Username, input.Password, input.Roles)
}

func (s *Service) ListDatabases(principal *auth.User) []*database.DatabaseInfo {
	return s.store.ListDatabases(principal)
}

func (s *Service) GetCollection(databaseName, collectionName string) *database.Collection {
	return s.store.Database(databaseName).Collection(collectionName)
}

package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fulldump/docstore/auth"
	"github.com/fulldump/docstore/collection"
	"github.com/fulldump/docstore/query"
)

var usersKey = collection.Key{Database: auth.UsersDatabase, Collection: auth.UsersCollection}

// RegisterUser stores a new user with a hashed password. Usernames are
// unique.
func (s *Store) RegisterUser(username, password string, roles []auth.Grant) (*auth.User, error) {

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, auth.ErrInvalidUser
	}
	if roles == nil {
		roles = []auth.Grant{}
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &auth.User{
		Username: username,
		Password: hash,
		Roles:    roles,
	}
	doc, err := user.Document()
	if err != nil {
		return nil, err
	}

	s.lock()
	defer s.unlock()

	users := s.materialize(usersKey)
	if _, exists := findUser(users, username); exists {
		return nil, auth.ErrUserExists
	}

	stored, err := users.Insert(doc)
	if err != nil {
		return nil, fmt.Errorf("store user: %w", err)
	}
	s.markDirty(usersKey)

	user.ID = stored[collection.IDField].(string)
	s.logger.Infow("user registered", "username", username)

	return user.Public(), nil
}

// LoginUser checks the credentials and returns the user without its
// password hash. Unknown users and wrong passwords are not told apart.
func (s *Store) LoginUser(username, password string) (*auth.User, error) {

	s.lock()
	var doc collection.Document
	users, exists := s.collections[usersKey]
	if exists {
		doc, exists = findUser(users, username)
	}
	s.unlock()

	if !exists {
		return nil, auth.ErrInvalidCredentials
	}

	user, err := auth.UserFromDocument(doc)
	if err != nil {
		return nil, err
	}

	if !s.hasher.Verify(password, user.Password) {
		return nil, auth.ErrInvalidCredentials
	}

	return user.Public(), nil
}

// EnsureAdmin registers a wildcard admin unless the username is taken.
func (s *Store) EnsureAdmin(username, password string) (bool, error) {
	_, err := s.RegisterUser(username, password, []auth.Grant{
		{Resource: auth.Wildcard, Permissions: []string{auth.PermissionAdmin}},
	})
	if errors.Is(err, auth.ErrUserExists) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func findUser(users *collection.Collection, username string) (collection.Document, bool) {
	filter := map[string]any{"username": username}
	var found collection.Document
	users.Traverse(func(pos int, doc collection.Document) bool {
		if query.Match(filter, doc) {
			found, _ = users.Get(pos)
			return false
		}
		return true
	})
	return found, found != nil
}

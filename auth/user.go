package auth

import (
	"errors"
	"fmt"

	"github.com/fulldump/docstore/utils"
)

// UsersDatabase and UsersCollection name the reserved collection holding users.
const (
	UsersDatabase   = "auth"
	UsersCollection = "users"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidUser        = errors.New("username and password are mandatory")
)

type User struct {
	ID       string  `json:"_id,omitempty"`
	Username string  `json:"username"`
	Password string  `json:"password,omitempty"` // hash, never plaintext
	Roles    []Grant `json:"roles"`
}

// Public returns a copy without the password hash.
func (u *User) Public() *User {
	public := *u
	public.Password = ""
	return &public
}

func UserFromDocument(doc map[string]any) (*User, error) {
	user := &User{}
	err := utils.Remarshal(doc, user)
	if err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return user, nil
}

func (u *User) Document() (map[string]any, error) {
	doc := map[string]any{}
	err := utils.Remarshal(u, &doc)
	if err != nil {
		return nil, fmt.Errorf("encode user: %w", err)
	}
	return doc, nil
}

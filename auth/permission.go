package auth

import "strings"

const (
	PermissionRead  = "read"
	PermissionWrite = "write"
	PermissionAdmin = "admin"

	// Wildcard grants on every resource
	Wildcard = "*"
)

// Grant gives a set of permissions on a resource pattern: `*`, a database
// name or a fully qualified `database.collection`.
type Grant struct {
	Resource    string   `json:"resource"`
	Permissions []string `json:"permissions"`
}

func (g Grant) Has(permission string) bool {
	for _, p := range g.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// HasPermission reports whether user may apply permission on resource. A
// wildcard admin grant allows everything. It never fails: a nil user or a user
// without grants is denied.
func HasPermission(user *User, resource, permission string) bool {
	if user == nil || len(user.Roles) == 0 {
		return false
	}

	for _, grant := range user.Roles {
		if grant.Resource == Wildcard && grant.Has(PermissionAdmin) {
			return true
		}
	}

	database, _, _ := strings.Cut(resource, ".")
	for _, grant := range user.Roles {
		switch grant.Resource {
		case resource, database, Wildcard:
			if grant.Has(permission) {
				return true
			}
		}
	}

	return false
}

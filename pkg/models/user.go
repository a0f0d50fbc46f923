package models

// Role constants for kindergarten platform users.
const (
	RoleAdmin     = "admin"
	RolePrincipal = "principal"
	RoleTeacher   = "teacher"
	RoleParent    = "parent"
)

// ValidRoles contains all valid role values.
var ValidRoles = []string{RoleAdmin, RolePrincipal, RoleTeacher, RoleParent}

// IsValidRole checks if the given role is valid.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}

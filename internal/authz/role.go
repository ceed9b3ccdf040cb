package authz

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// DefaultRoles is the seeded role graph. New accounts receive RoleUser.
func DefaultRoles() map[string][]Permission {
	return map[string][]Permission{
		RoleAdmin: All(),
		RoleUser:  {ViewUsers},
	}
}

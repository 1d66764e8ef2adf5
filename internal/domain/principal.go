package domain

// RoleAdmin may read every confirmed reservation.
const RoleAdmin = "admin"

// Principal is the authenticated caller supplied by the authentication
// collaborator. The reservation core trusts it unconditionally.
type Principal struct {
	ID    string
	Role  string
	Email string
}

// IsAdmin reports whether the principal carries the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

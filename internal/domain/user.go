package domain

import "time"

// Role enumerates the fixed set of user roles. Roles drive notification
// routing and call-to-action selection, never authorization by themselves.
type Role string

const (
	RoleRequester    Role = "REQUESTER"
	RoleDSI          Role = "DSI"
	RoleAdjointDSI   Role = "ADJOINT_DSI"
	RoleSecretaryDSI Role = "SECRETARY_DSI"
	RoleTechnician   Role = "TECHNICIAN"
	RoleAdmin        Role = "ADMIN"
)

// Valid reports whether the role belongs to the closed enumeration.
func (r Role) Valid() bool {
	switch r {
	case RoleRequester, RoleDSI, RoleAdjointDSI, RoleSecretaryDSI, RoleTechnician, RoleAdmin:
		return true
	}
	return false
}

// User is the domain model for every account in the system. Each user holds
// exactly one role; technicians additionally carry a specialization tag.
type User struct {
	ID             string
	Name           string
	Email          string
	PasswordHash   string
	Role           Role
	Agency         *string
	Phone          *string
	Specialization *string
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

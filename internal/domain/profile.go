package domain

import "time"

// Role is the sole authorization discriminant for a profile.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleStaff
}

// Profile is the identity record created at registration.
type Profile struct {
	ID           string
	FullName     string
	Email        string
	Document     string
	Phone        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Actor returns the authorization view of the profile.
func (p *Profile) Actor() Actor {
	return Actor{ID: p.ID, Role: p.Role}
}

// Actor is the acting principal threaded through every core operation.
type Actor struct {
	ID   string
	Role Role
}

// IsStaff reports whether the actor holds the staff role.
func (a Actor) IsStaff() bool {
	return a.Role == RoleStaff
}

// Owns reports whether the actor is the ticket owner.
func (a Actor) Owns(t *Ticket) bool {
	return t != nil && a.ID != "" && t.OwnerID == a.ID
}

// CanAccess reports whether the actor may read or write the ticket at all.
func (a Actor) CanAccess(t *Ticket) bool {
	return a.IsStaff() || a.Owns(t)
}

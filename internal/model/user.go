package model

import "time"

// Role is the access level of a user account.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r == RoleUser || r == RoleAdmin }

// User represents a wallet holder as stored in the `users` table.  The
// Balance column is a cached projection of the user's ledger: it is only
// written in the same database transaction that appends a ledger entry and
// must always equal the sum of that user's transaction amounts.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Username     – unique login name.
//	Email        – unique email address.
//	LicensePlate – normalised plate of the registered vehicle.
//	Balance      – cached wallet balance, never negative.
//	Role         – user or admin.
//	CreatedAt    – timestamp of registration.
type User struct {
	ID           uint64    // users.id
	Username     string    // users.username
	Email        string    // users.email
	LicensePlate string    // users.license_plate
	Balance      Money     // users.balance (minor units)
	Role         Role      // users.role
	CreatedAt    time.Time // users.created_at
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

package model

import "time"

// Role names carried in the JWT "role" claim.
type Role string

const (
	RoleGuest        Role = "GUEST"
	RoleHotelManager Role = "HOTEL_MANAGER"
)

// ParseRole maps a requested role to a known one, defaulting to GUEST.
func ParseRole(s string) Role {
	if Role(s) == RoleHotelManager {
		return RoleHotelManager
	}
	return RoleGuest
}

// Principal is the authenticated caller.  It is passed explicitly into
// every booking and admin operation.
type Principal struct {
	UserID uint64
	Role   Role
}

// Owns is the ownership predicate used for hotel administration.
func (p Principal) Owns(h Hotel) bool {
	return p.UserID != 0 && h.OwnerID == p.UserID
}

// User represents an application user record as stored in the
// `users` table.  The json tags are omitted here because these structs
// are primarily used internally by the repository layer; handlers
// define separate response types.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Email        – unique email address.
//	Name         – display name.
//	PasswordHash – bcrypt hashed password.
//	Role         – GUEST or HOTEL_MANAGER.
//	CreatedAt    – timestamp of creation.
//	UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	Name         string    // users.name
	PasswordHash string    // users.password_hash
	Role         Role      // users.role
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  The plain
// token is never stored, only its SHA-256 hash.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}

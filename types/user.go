package types

import "time"

// Role is the subscription tier of an account.
type Role string

const (
	RoleBasic   Role = "basic"
	RolePremium Role = "premium"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleBasic || r == RolePremium
}

// User represents an account in the system.
// It contains identity, role, and audit metadata.
type User struct {
	// ID is the unique identifier of the user, assigned by the store.
	ID int `json:"id" db:"id"`

	// Username is the unique login name chosen by the user.
	Username string `json:"username" db:"username"`

	// Email is the user's email address. It is unique across accounts.
	Email string `json:"email" db:"email"`

	// Role is the subscription tier of the account.
	Role Role `json:"role" db:"role"`

	// PasswordHash stores the bcrypt digest of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"hashed_password"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// PublicUser is the view of a user that is safe to return to clients.
type PublicUser struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Public strips everything but the username and email.
func (u User) Public() PublicUser {
	return PublicUser{Username: u.Username, Email: u.Email}
}

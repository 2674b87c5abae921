package domain

// Role represents a user's capability in the catalogue.
type Role string

const (
	// RoleAuthor can publish and manage their own books.
	RoleAuthor Role = "author"
	// RoleReader can browse, search, rate, and save books.
	RoleReader Role = "reader"
)

// Valid checks if the role is a known value.
func (r Role) Valid() bool {
	switch r {
	case RoleAuthor, RoleReader:
		return true
	default:
		return false
	}
}

// User represents an account in the system. Author display names are cached
// on books and saved-book projections, so display-name edits fan out through
// the author-name propagator.
type User struct {
	Syncable
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash,omitempty"` // Stored hashed, filter from API responses
	DisplayName  string `json:"display_name"`
	Role         Role   `json:"role"`
}

// IsAuthor returns true if the user can publish books.
func (u *User) IsAuthor() bool {
	return u.Role == RoleAuthor
}

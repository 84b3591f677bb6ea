package domain

type ContextKey string

const UserContextKey ContextKey = "user"

// User is constructed from JWT claims by the auth middleware; account
// storage is owned by an external collaborator.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

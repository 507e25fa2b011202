package models

// User is the authenticated caller. ID is the token subject issued by the
// external auth service.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

package models

// User is a registered person. Only the fields certificates need are loaded.
type User struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

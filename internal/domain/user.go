package domain

import "time"

// User is an account of the development auth backend.
type User struct {
	ID            string
	Username      string
	PreferredName string
	PasswordHash  string // argon2 encoded
	DepartmentID  int64  // 0 when unassigned
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

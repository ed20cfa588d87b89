package models

import "time"

// User represents a registered student stored in the users table. Identity
// is the university register number.
type User struct {
	ID           string     `db:"id" json:"id"`
	Regno        string     `db:"regno" json:"regno"`
	Name         string     `db:"name" json:"name"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Batch        int        `db:"batch" json:"batch"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

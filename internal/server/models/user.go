// Package models holds the persistent records owned by the account directory.
package models

import "time"

// User is an account record. Salt and PasswordHash hold base64 text as
// produced by auth.Hasher.
type User struct {
	ID           int64     `db:"id"`
	Email        string    `db:"email"`
	FullName     string    `db:"full_name"`
	Salt         string    `db:"salt"`
	PasswordHash string    `db:"password_hash"`
	Banned       bool      `db:"banned"`
	CreatedAt    time.Time `db:"created_at"`
}

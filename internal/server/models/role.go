package models

// Role is a named permission label.
type Role struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

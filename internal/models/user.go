package models

// User is an account holder. PasswordHash never leaves the server.
type User struct {
	ID           string `db:"id" json:"id"`
	Name         string `db:"name" json:"name"`
	Username     string `db:"username" json:"username"`
	PasswordHash string `db:"password" json:"-"`
	Picture      string `db:"picture" json:"picture,omitempty"`
}

package user

import "time"

type User struct {
	ID           int64     `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

// Sanitized returns a copy safe to hand outward: the password hash is
// never echoed into a response model.
func (u *User) Sanitized() *User {
	cp := *u
	cp.PasswordHash = ""
	return &cp
}

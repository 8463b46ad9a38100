package apikey

import "time"

type APIKey struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	Key       string    `db:"api_key"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

package apikey

import (
	"context"
	"errors"
	"time"
)

var ErrAPIKeyNotFound = errors.New("api key not found")

// Repository is the persistence contract for api keys. The lifecycle
// service in internal/service is the only writer.
type Repository interface {
	// FindByUser returns the user's current key: the newest one when
	// a rotation grace window leaves several rows behind.
	FindByUser(ctx context.Context, userID int64) (*APIKey, error)
	FindByKey(ctx context.Context, key string) (*APIKey, error)
	Insert(ctx context.Context, userID int64, key string) (*APIKey, error)
	// InsertIfAbsent inserts only when the user holds no key yet and
	// reports whether the insert happened. Losers of a concurrent
	// first-issuance race get inserted=false and re-fetch.
	InsertIfAbsent(ctx context.Context, userID int64, key string) (*APIKey, bool, error)
	ListByUserDesc(ctx context.Context, userID int64) ([]*APIKey, error)
	Delete(ctx context.Context, keyID int64) error
	// DeleteSuperseded removes every key of the user except the
	// newest one and returns the number of rows removed.
	DeleteSuperseded(ctx context.Context, userID int64) (int64, error)
	// ListUsersWithSuperseded returns ids of users still holding more
	// than one key whose newest key predates olderThan. The cutoff
	// keeps the periodic sweep away from rotations whose grace window
	// is still open.
	ListUsersWithSuperseded(ctx context.Context, olderThan time.Time) ([]int64, error)
}

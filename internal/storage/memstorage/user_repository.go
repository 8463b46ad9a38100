package memstorage

import (
	"context"
	"sync"
	"time"

	"github.com/makkenzo/credential-service-api/internal/domain/user"
)

// UserRepository is an in-memory user.Repository used by tests and the
// createuser dry-run mode. When wired with an APIKeyRepository, user
// deletion cascades to the user's keys, mirroring the database FK.
type UserRepository struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*user.User
	keys   *APIKeyRepository
}

func NewUserRepository(keys *APIKeyRepository) *UserRepository {
	return &UserRepository{
		nextID: 1,
		byID:   make(map[int64]*user.User),
		keys:   keys,
	}
}

var _ user.Repository = (*UserRepository)(nil)

func (r *UserRepository) Create(ctx context.Context, email, passwordHash string) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.byID {
		if u.Email == email {
			return nil, user.ErrDuplicateEmail
		}
	}

	u := &user.User{
		ID:           r.nextID,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	r.nextID++
	r.byID[u.ID] = u

	cp := *u
	return &cp, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, user.ErrUserNotFound
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	if _, ok := r.byID[id]; !ok {
		r.mu.Unlock()
		return user.ErrUserNotFound
	}
	delete(r.byID, id)
	r.mu.Unlock()

	if r.keys != nil {
		r.keys.deleteAllForUser(id)
	}
	return nil
}

// Count reports the number of stored users.
func (r *UserRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

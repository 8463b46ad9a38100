package memstorage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/makkenzo/credential-service-api/internal/domain/apikey"
)

// APIKeyRepository is an in-memory apikey.Repository for tests.
type APIKeyRepository struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*apikey.APIKey
}

func NewAPIKeyRepository() *APIKeyRepository {
	return &APIKeyRepository{
		nextID: 1,
		byID:   make(map[int64]*apikey.APIKey),
	}
}

var _ apikey.Repository = (*APIKeyRepository)(nil)

func (r *APIKeyRepository) FindByUser(ctx context.Context, userID int64) (*apikey.APIKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := r.listByUserDescLocked(userID)
	if len(keys) == 0 {
		return nil, apikey.ErrAPIKeyNotFound
	}
	return keys[0], nil
}

func (r *APIKeyRepository) FindByKey(ctx context.Context, key string) (*apikey.APIKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, k := range r.byID {
		if k.Key == key {
			cp := *k
			return &cp, nil
		}
	}
	return nil, apikey.ErrAPIKeyNotFound
}

func (r *APIKeyRepository) Insert(ctx context.Context, userID int64, key string) (*apikey.APIKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertLocked(userID, key), nil
}

func (r *APIKeyRepository) InsertIfAbsent(ctx context.Context, userID int64, key string) (*apikey.APIKey, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, k := range r.byID {
		if k.UserID == userID {
			cp := *k
			return &cp, false, nil
		}
	}
	return r.insertLocked(userID, key), true, nil
}

func (r *APIKeyRepository) insertLocked(userID int64, key string) *apikey.APIKey {
	now := time.Now().UTC()
	k := &apikey.APIKey{
		ID:        r.nextID,
		UserID:    userID,
		Key:       key,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.nextID++
	r.byID[k.ID] = k
	cp := *k
	return &cp
}

func (r *APIKeyRepository) ListByUserDesc(ctx context.Context, userID int64) ([]*apikey.APIKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listByUserDescLocked(userID), nil
}

func (r *APIKeyRepository) listByUserDescLocked(userID int64) []*apikey.APIKey {
	keys := make([]*apikey.APIKey, 0)
	for _, k := range r.byID {
		if k.UserID == userID {
			cp := *k
			keys = append(keys, &cp)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if !keys[i].CreatedAt.Equal(keys[j].CreatedAt) {
			return keys[i].CreatedAt.After(keys[j].CreatedAt)
		}
		return keys[i].ID > keys[j].ID
	})
	return keys
}

func (r *APIKeyRepository) Delete(ctx context.Context, keyID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[keyID]; !ok {
		return apikey.ErrAPIKeyNotFound
	}
	delete(r.byID, keyID)
	return nil
}

func (r *APIKeyRepository) DeleteSuperseded(ctx context.Context, userID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := r.listByUserDescLocked(userID)
	if len(keys) <= 1 {
		return 0, nil
	}

	var removed int64
	for _, k := range keys[1:] {
		delete(r.byID, k.ID)
		removed++
	}
	return removed, nil
}

func (r *APIKeyRepository) ListUsersWithSuperseded(ctx context.Context, olderThan time.Time) ([]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[int64]int)
	newest := make(map[int64]time.Time)
	for _, k := range r.byID {
		counts[k.UserID]++
		if k.CreatedAt.After(newest[k.UserID]) {
			newest[k.UserID] = k.CreatedAt
		}
	}

	users := make([]int64, 0)
	for userID, n := range counts {
		if n > 1 && !newest[userID].After(olderThan) {
			users = append(users, userID)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })
	return users, nil
}

func (r *APIKeyRepository) deleteAllForUser(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, k := range r.byID {
		if k.UserID == userID {
			delete(r.byID, id)
		}
	}
}

// Count reports the number of stored keys.
func (r *APIKeyRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

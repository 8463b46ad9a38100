package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/makkenzo/credential-service-api/internal/domain/user"
	"github.com/makkenzo/credential-service-api/internal/ierr"
	"github.com/makkenzo/credential-service-api/internal/security"
	"github.com/makkenzo/credential-service-api/internal/storage/memstorage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type scheduledCleanup struct {
	UserID int64
	Delay  time.Duration
}

// fakeScheduler records cleanup requests. A zero delay runs the
// cleanup inline, matching what a due task would do immediately.
type fakeScheduler struct {
	mu        sync.Mutex
	repo      *memstorage.APIKeyRepository
	scheduled []scheduledCleanup
}

func (f *fakeScheduler) ScheduleCleanup(ctx context.Context, userID int64, delay time.Duration) error {
	f.mu.Lock()
	f.scheduled = append(f.scheduled, scheduledCleanup{UserID: userID, Delay: delay})
	f.mu.Unlock()

	if delay == 0 {
		_, err := f.repo.DeleteSuperseded(ctx, userID)
		return err
	}
	return nil
}

// runPending executes every recorded cleanup, as if all grace periods
// had elapsed.
func (f *fakeScheduler) runPending(ctx context.Context) error {
	f.mu.Lock()
	pending := f.scheduled
	f.scheduled = nil
	f.mu.Unlock()

	for _, s := range pending {
		if _, err := f.repo.DeleteSuperseded(ctx, s.UserID); err != nil {
			return err
		}
	}
	return nil
}

type testEnv struct {
	users     *memstorage.UserRepository
	keys      *memstorage.APIKeyRepository
	auth      *AuthService
	svc       *APIKeyService
	scheduler *fakeScheduler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	keys := memstorage.NewAPIKeyRepository()
	users := memstorage.NewUserRepository(keys)
	scheduler := &fakeScheduler{repo: keys}

	hasher := security.NewPasswordHasher(4)
	keygen, err := security.NewKeyGenerator("test-private-salt", "sk_live_")
	require.NoError(t, err)

	logger := zap.NewNop()
	auth := NewAuthService(users, hasher, logger)
	svc := NewAPIKeyService(keys, users, auth, keygen, scheduler, 5*time.Minute, logger)

	return &testEnv{
		users:     users,
		keys:      keys,
		auth:      auth,
		svc:       svc,
		scheduler: scheduler,
	}
}

func (e *testEnv) registerUser(t *testing.T, email, password string) *user.User {
	t.Helper()
	u, err := e.auth.Register(context.Background(), email, password)
	require.NoError(t, err)
	return u
}

func TestAPIKeyService_IssueOrFetch_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.registerUser(t, "user@email.com", "User@123")

	first, err := env.svc.IssueOrFetch(ctx, u.ID)
	require.NoError(t, err)
	second, err := env.svc.IssueOrFetch(ctx, u.ID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, env.keys.Count())
}

func TestAPIKeyService_IssueOrFetch_KeyFormat(t *testing.T) {
	env := newTestEnv(t)
	u := env.registerUser(t, "user@email.com", "User@123")

	key, err := env.svc.IssueOrFetch(context.Background(), u.ID)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(key, "sk_live_"))
	assert.Greater(t, len(key), len("sk_live_"))
}

func TestAPIKeyService_IssueOrFetch_UnknownUser(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.IssueOrFetch(context.Background(), 9999)
	assert.ErrorIs(t, err, ierr.ErrNotFound)
}

func TestAPIKeyService_Verify_RoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.registerUser(t, "user@email.com", "User@123")

	key, err := env.svc.IssueOrFetch(ctx, u.ID)
	require.NoError(t, err)

	owner, err := env.svc.Verify(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, u.ID, owner.ID)
	assert.Equal(t, u.Email, owner.Email)
	assert.Empty(t, owner.PasswordHash)
}

func TestAPIKeyService_Verify_RejectsUnknown(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Verify(context.Background(), "not-a-real-key")
	assert.ErrorIs(t, err, ierr.ErrUnauthorized)
}

func TestAPIKeyService_Verify_MissingOwnerIsIntegrityAnomaly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// A key row whose owner never existed.
	orphan, err := env.keys.Insert(ctx, 4242, "sk_live_orphan")
	require.NoError(t, err)

	_, err = env.svc.Verify(ctx, orphan.Key)
	assert.ErrorIs(t, err, ierr.ErrNotFound)
}

func TestAPIKeyService_Rotate_GraceWindow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.registerUser(t, "user@email.com", "User@123")

	oldKey, err := env.svc.IssueOrFetch(ctx, u.ID)
	require.NoError(t, err)

	newKey, err := env.svc.Rotate(ctx, "user@email.com", "User@123", time.Minute)
	require.NoError(t, err)
	require.NotEqual(t, oldKey, newKey)

	// Inside the grace window both keys authenticate.
	oldOwner, err := env.svc.Verify(ctx, oldKey)
	require.NoError(t, err)
	assert.Equal(t, u.ID, oldOwner.ID)

	newOwner, err := env.svc.Verify(ctx, newKey)
	require.NoError(t, err)
	assert.Equal(t, u.ID, newOwner.ID)

	// Grace elapses, cleanup runs.
	require.NoError(t, env.scheduler.runPending(ctx))

	_, err = env.svc.Verify(ctx, oldKey)
	assert.ErrorIs(t, err, ierr.ErrUnauthorized)

	stillValid, err := env.svc.Verify(ctx, newKey)
	require.NoError(t, err)
	assert.Equal(t, u.ID, stillValid.ID)
	assert.Equal(t, 1, env.keys.Count())
}

func TestAPIKeyService_Rotate_ZeroGrace(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.registerUser(t, "user@email.com", "User@123")

	oldKey, err := env.svc.IssueOrFetch(ctx, u.ID)
	require.NoError(t, err)

	newKey, err := env.svc.Rotate(ctx, "user@email.com", "User@123", 0)
	require.NoError(t, err)

	_, err = env.svc.Verify(ctx, oldKey)
	assert.ErrorIs(t, err, ierr.ErrUnauthorized)

	owner, err := env.svc.Verify(ctx, newKey)
	require.NoError(t, err)
	assert.Equal(t, u.ID, owner.ID)
}

func TestAPIKeyService_Rotate_BadCredentials(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.registerUser(t, "user@email.com", "User@123")

	key, err := env.svc.IssueOrFetch(ctx, u.ID)
	require.NoError(t, err)

	_, err = env.svc.Rotate(ctx, "user@email.com", "Wrong@123", time.Minute)
	assert.ErrorIs(t, err, ierr.ErrInvalidCredentials)

	_, err = env.svc.Rotate(ctx, "nobody@email.com", "User@123", time.Minute)
	assert.ErrorIs(t, err, ierr.ErrInvalidCredentials)

	// The existing key stays untouched.
	owner, err := env.svc.Verify(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, u.ID, owner.ID)
	assert.Equal(t, 1, env.keys.Count())
}

func TestAPIKeyService_Rotate_NegativeGraceUsesDefault(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.registerUser(t, "user@email.com", "User@123")

	_, err := env.svc.IssueOrFetch(ctx, u.ID)
	require.NoError(t, err)

	_, err = env.svc.Rotate(ctx, "user@email.com", "User@123", -1)
	require.NoError(t, err)

	require.Len(t, env.scheduler.scheduled, 1)
	assert.Equal(t, 5*time.Minute, env.scheduler.scheduled[0].Delay)
	assert.Equal(t, u.ID, env.scheduler.scheduled[0].UserID)
}

func TestAPIKeyService_CascadeDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.registerUser(t, "user@email.com", "User@123")

	key, err := env.svc.IssueOrFetch(ctx, u.ID)
	require.NoError(t, err)

	require.NoError(t, env.auth.DeleteUser(ctx, u.ID))

	// The key row went with the user, so the failure mode is an
	// unknown key, not a missing owner.
	_, err = env.svc.Verify(ctx, key)
	assert.ErrorIs(t, err, ierr.ErrUnauthorized)
	assert.Equal(t, 0, env.keys.Count())
}

func TestAPIKeyService_ConcurrentFirstIssuance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.registerUser(t, "user@email.com", "User@123")

	const callers = 8
	results := make([]string, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = env.svc.IssueOrFetch(ctx, u.ID)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	for _, key := range results[1:] {
		assert.Equal(t, results[0], key)
	}
	assert.Equal(t, 1, env.keys.Count())
}

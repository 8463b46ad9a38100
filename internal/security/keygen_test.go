package security

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKeyGenerator_RequiresSalt(t *testing.T) {
	_, err := NewKeyGenerator("", "sk_live_")
	require.Error(t, err)
}

func TestNewKeyGenerator_DefaultPrefix(t *testing.T) {
	gen, err := NewKeyGenerator("secret-salt", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultKeyPrefix, gen.Prefix())
}

func TestKeyGenerator_Generate_Format(t *testing.T) {
	gen, err := NewKeyGenerator("secret-salt", "sk_live_")
	require.NoError(t, err)

	key := gen.Generate("user@email.com")
	assert.True(t, strings.HasPrefix(key, "sk_live_"))
	assert.Greater(t, len(key), len("sk_live_"))
	// sha256 hex digest after the prefix
	assert.Len(t, strings.TrimPrefix(key, "sk_live_"), 64)
}

func TestKeyGenerator_Generate_UniquePerTick(t *testing.T) {
	gen, err := NewKeyGenerator("secret-salt", "sk_live_")
	require.NoError(t, err)

	tick := time.Unix(1700000000, 0)
	gen.now = func() time.Time {
		tick = tick.Add(time.Nanosecond)
		return tick
	}

	first := gen.Generate("user@email.com")
	second := gen.Generate("user@email.com")
	assert.NotEqual(t, first, second)
}

func TestKeyGenerator_Generate_DeterministicWithinTick(t *testing.T) {
	gen, err := NewKeyGenerator("secret-salt", "sk_live_")
	require.NoError(t, err)

	frozen := time.Unix(1700000000, 42)
	gen.now = func() time.Time { return frozen }

	assert.Equal(t, gen.Generate("user@email.com"), gen.Generate("user@email.com"))
	assert.NotEqual(t, gen.Generate("user@email.com"), gen.Generate("other@email.com"))
}

func TestPasswordHasher_RoundTrip(t *testing.T) {
	hasher := NewPasswordHasher(4)

	hash, err := hasher.Hash("User@123")
	require.NoError(t, err)
	assert.NotEqual(t, "User@123", hash)

	assert.True(t, hasher.Verify("User@123", hash))
	assert.False(t, hasher.Verify("Wrong@123", hash))
}

func TestNewPasswordHasher_ClampsCost(t *testing.T) {
	hasher := NewPasswordHasher(-1)

	hash, err := hasher.Hash("User@123")
	require.NoError(t, err)
	assert.True(t, hasher.Verify("User@123", hash))
}

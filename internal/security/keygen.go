package security

import (
	"crypto/sha256"
	"fmt"
	"time"
)

const DefaultKeyPrefix = "sk_live_"

// KeyGenerator derives bearer api keys from the owner's email, a
// process-wide private salt and the current time. The salt is a
// startup secret: construction fails without it rather than leaving a
// generator that errors on first use.
type KeyGenerator struct {
	salt   string
	prefix string
	now    func() time.Time
}

func NewKeyGenerator(salt, prefix string) (*KeyGenerator, error) {
	if salt == "" {
		return nil, fmt.Errorf("private salt is not set")
	}
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &KeyGenerator{salt: salt, prefix: prefix, now: time.Now}, nil
}

// Generate returns a prefixed hex digest of email+salt+timestamp.
// Nanosecond timestamp resolution makes collisions between calls
// practically impossible.
func (g *KeyGenerator) Generate(email string) string {
	base := fmt.Sprintf("%s%s%d", email, g.salt, g.now().UnixNano())
	digest := sha256.Sum256([]byte(base))
	return g.prefix + fmt.Sprintf("%x", digest)
}

// Prefix returns the configured key prefix.
func (g *KeyGenerator) Prefix() string {
	return g.prefix
}

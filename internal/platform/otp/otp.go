// Package otp implements the one-time-passcode gate used for email
// verification during registration. A code moves through none → issued →
// consumed-or-expired; at most one live code exists per email.
package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"
)

const (
	// CodeLength is the number of digits in a generated passcode.
	CodeLength = 6
	// TTL is how long an issued code stays verifiable.
	TTL = 600 * time.Second
	// MaxAttempts is the number of verification attempts before a pending
	// code is discarded.
	MaxAttempts = 3
)

// Store holds pending codes keyed by email. Consume must apply the full
// check-and-update sequence atomically so racing verifications cannot skip an
// attempt increment or double-consume a code.
type Store interface {
	// Save records a pending code, overwriting any prior one for the email
	// and resetting its attempt count.
	Save(ctx context.Context, email, code string, issuedAt time.Time) error
	// Consume runs one verification attempt and reports whether it matched.
	Consume(ctx context.Context, email, submitted string, now time.Time) (bool, error)
}

// Gate issues and verifies passcodes against a Store.
type Gate struct {
	store Store
	nowFn func() time.Time
}

// NewGate creates a gate backed by the given store.
func NewGate(store Store) *Gate {
	return &Gate{store: store, nowFn: time.Now}
}

// Generate creates a fresh 6-digit code for the email and stores it,
// invalidating any code previously issued to the same address.
func (g *Gate) Generate(ctx context.Context, email string) (string, error) {
	max := big.NewInt(1)
	for i := 0; i < CodeLength; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("otp generate: %w", err)
	}
	code := fmt.Sprintf("%0*d", CodeLength, n)

	if err := g.store.Save(ctx, email, code, g.nowFn()); err != nil {
		return "", fmt.Errorf("otp generate: %w", err)
	}
	return code, nil
}

// Verify runs one verification attempt. All failure modes (no pending code,
// expired, attempts exhausted, wrong code) report a uniform false so the
// response never aids guessing. A match consumes the code; it cannot verify
// twice.
func (g *Gate) Verify(ctx context.Context, email, submitted string) (bool, error) {
	return g.store.Consume(ctx, email, submitted, g.nowFn())
}

// pending is the per-email state held while a code is live.
type pending struct {
	code     string
	issuedAt time.Time
	attempts int
}

// MemoryStore is the in-process Store. State is ephemeral: it does not
// survive a restart and is not shared across instances; a multi-instance
// deployment should use the redis store instead.
type MemoryStore struct {
	mu    sync.Mutex
	codes map[string]*pending
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{codes: make(map[string]*pending)}
}

func (s *MemoryStore) Save(_ context.Context, email, code string, issuedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[email] = &pending{code: code, issuedAt: issuedAt}
	return nil
}

func (s *MemoryStore) Consume(_ context.Context, email, submitted string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.codes[email]
	if !ok {
		// No pending code: fail closed without touching any state.
		return false, nil
	}

	if now.Sub(p.issuedAt) > TTL {
		delete(s.codes, email)
		return false, nil
	}

	if p.attempts >= MaxAttempts {
		delete(s.codes, email)
		return false, nil
	}

	p.attempts++

	if p.code == submitted {
		delete(s.codes, email)
		return true, nil
	}
	return false, nil
}

package security

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// MinBcryptCost is the lowest cost the hasher accepts.
const MinBcryptCost = 10

// PasswordHasher runs bcrypt on a bounded number of goroutines so a burst of
// logins cannot occupy every CPU.
type PasswordHasher struct {
	cost int
	sem  *semaphore.Weighted
}

func NewPasswordHasher(cost int, concurrency int) *PasswordHasher {
	if cost < MinBcryptCost {
		cost = MinBcryptCost
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &PasswordHasher{
		cost: cost,
		sem:  semaphore.NewWeighted(int64(concurrency)),
	}
}

func (h *PasswordHasher) Hash(ctx context.Context, password string) ([]byte, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire hash slot: %w", err)
	}
	defer h.sem.Release(1)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

// Verify reports a mismatch as (false, nil); err is reserved for malformed
// hashes and cancelled contexts.
func (h *PasswordHasher) Verify(ctx context.Context, password string, hash []byte) (bool, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, fmt.Errorf("acquire hash slot: %w", err)
	}
	defer h.sem.Release(1)

	err := bcrypt.CompareHashAndPassword(hash, []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("compare password: %w", err)
	}
}

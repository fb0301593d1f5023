// Package otp issues and verifies the 6-digit email verification codes.
//
// Codes live in a Store keyed by lower-cased email. Two stores exist: an
// in-process map (default, lost on restart) and Redis (shared between
// instances). Both keep the expiry time next to the code so that an expired
// code can be told apart from one that never existed.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/sakif/codeshare/internal/apperror"
)

// TTL is how long an issued code stays valid.
const TTL = 10 * time.Minute

// ErrNoCode is returned by a Store when nothing is stored for the email.
var ErrNoCode = errors.New("otp: no code stored")

// Code is a stored verification code.
type Code struct {
	Value     string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Store persists codes. Save overwrites any earlier code for the email.
type Store interface {
	Save(ctx context.Context, email string, code Code) error
	Get(ctx context.Context, email string) (Code, error)
	Delete(ctx context.Context, email string) error
	// Purge drops codes that expired before now and returns how many.
	Purge(ctx context.Context, now time.Time) (int, error)
}

// Manager issues and checks codes.
type Manager struct {
	store Store
	now   func() time.Time
}

func NewManager(store Store) *Manager {
	return &Manager{store: store, now: time.Now}
}

// Issue generates a fresh code for email and stores it.
func (m *Manager) Issue(ctx context.Context, email string) (string, error) {
	value, err := generate()
	if err != nil {
		return "", fmt.Errorf("otp: generating code: %w", err)
	}
	code := Code{Value: value, ExpiresAt: m.now().Add(TTL)}
	if err := m.store.Save(ctx, normalize(email), code); err != nil {
		return "", fmt.Errorf("otp: saving code: %w", err)
	}
	return value, nil
}

// Verify checks submitted against the stored code. A correct or expired code
// is consumed; a wrong guess leaves the code in place.
func (m *Manager) Verify(ctx context.Context, email, submitted string) error {
	key := normalize(email)
	code, err := m.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNoCode) {
			return apperror.ValidationFailed("otp", "OTP not found or expired")
		}
		return fmt.Errorf("otp: loading code: %w", err)
	}

	if m.now().After(code.ExpiresAt) {
		if err := m.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("otp: deleting code: %w", err)
		}
		return apperror.ValidationFailed("otp", "OTP has expired")
	}

	if subtle.ConstantTimeCompare([]byte(code.Value), []byte(strings.TrimSpace(submitted))) != 1 {
		return apperror.ValidationFailed("otp", "Invalid OTP")
	}

	if err := m.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("otp: deleting code: %w", err)
	}
	return nil
}

// Purge removes expired codes from the store.
func (m *Manager) Purge(ctx context.Context) (int, error) {
	return m.store.Purge(ctx, m.now())
}

// generate returns a uniformly random 6-digit code, 100000 to 999999.
func generate() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

package otp

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps codes in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	codes map[string]Code
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{codes: make(map[string]Code)}
}

func (s *MemoryStore) Save(_ context.Context, email string, code Code) error {
	s.mu.Lock()
	s.codes[email] = code
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, email string) (Code, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.codes[email]
	if !ok {
		return Code{}, ErrNoCode
	}
	return code, nil
}

func (s *MemoryStore) Delete(_ context.Context, email string) error {
	s.mu.Lock()
	delete(s.codes, email)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Purge(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for email, code := range s.codes {
		if now.After(code.ExpiresAt) {
			delete(s.codes, email)
			n++
		}
	}
	return n, nil
}

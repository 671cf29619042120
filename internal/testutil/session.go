package testutil

import (
	"context"
	"fmt"
	"sync"

	"gallery-go/internal/gallery"
	"gallery-go/internal/session"
)

// MemoryCredentialStore is an in-memory session.CredentialStore.
type MemoryCredentialStore struct {
	mu      sync.Mutex
	cred    *session.StoredCredential
	Deletes int
}

func (s *MemoryCredentialStore) LoadCredential(context.Context) (*session.StoredCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cred == nil {
		return nil, session.ErrNoCredential
	}
	c := *s.cred
	return &c, nil
}

func (s *MemoryCredentialStore) SaveCredential(_ context.Context, cred session.StoredCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = &cred
	return nil
}

func (s *MemoryCredentialStore) DeleteCredential(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = nil
	s.Deletes++
	return nil
}

// Stored reports whether a credential is held.
func (s *MemoryCredentialStore) Stored() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cred != nil
}

// TokenVerifier accepts only the tokens in Valid, reading the candidate
// from Source. Calls counts Verify calls.
type TokenVerifier struct {
	Source interface{ Token() string }
	Valid  map[string]bool
	Err    error // returned for rejected tokens, ErrUnauthorized if nil

	mu    sync.Mutex
	Calls int
}

func (v *TokenVerifier) Verify(context.Context) error {
	v.mu.Lock()
	v.Calls++
	v.mu.Unlock()
	if v.Valid[v.Source.Token()] {
		return nil
	}
	if v.Err != nil {
		return v.Err
	}
	return fmt.Errorf("token rejected: %w", gallery.ErrUnauthorized)
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package relay

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ticket is the grant behind one session token.
type ticket struct {
	Fingerprint string
	Model       string
	ExpiresAt   time.Time
}

// tokenStore holds session tokens issued by /api/use-prompt. A token stays
// valid for ttl after it is issued, independent of the quota window.
type tokenStore struct {
	mu      sync.Mutex
	tickets map[string]ticket
	ttl     time.Duration
	now     func() time.Time
}

func newTokenStore(ttl time.Duration, now func() time.Time) *tokenStore {
	return &tokenStore{tickets: make(map[string]ticket), ttl: ttl, now: now}
}

func (s *tokenStore) issue(fingerprint, model string) (string, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for token, t := range s.tickets {
		if !now.Before(t.ExpiresAt) {
			delete(s.tickets, token)
		}
	}

	token := uuid.NewString()
	expires := now.Add(s.ttl)
	s.tickets[token] = ticket{Fingerprint: fingerprint, Model: model, ExpiresAt: expires}
	return token, expires
}

func (s *tokenStore) lookup(token string) (ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[token]
	if !ok {
		return ticket{}, false
	}
	if !s.now().Before(t.ExpiresAt) {
		delete(s.tickets, token)
		return ticket{}, false
	}
	return t, true
}

func (s *tokenStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tickets)
}

/*
Package session holds the process-wide authenticated identity and its
persistence collaborator.

This file defines the Store, the single holder of the current user's identity
fields and auth-loading status. Consumers read through snapshot getters and
mutate only through Hydrate, PatchNickname, and Clear.
*/
package session

import (
	"sync"

	"github.com/rs/zerolog"

	"ttlmoa/internal/pkg/authx"
	"ttlmoa/internal/pkg/logx"
)

// UnreadRoom describes one chat room with unread messages, as reported by the
// backend's notification poll.
type UnreadRoom struct {
	RoomID      int64  `json:"roomId"`
	Title       string `json:"title"`
	UnreadCount int    `json:"unreadCount"`
}

// Store is the process-wide holder of the current user's identity.
//
// It starts in the Unknown state (loading=true) and settles into either
// Authenticated or Anonymous after the first Hydrate or Clear call. There is
// no transition back to Unknown once left.
type Store struct {
	mu sync.RWMutex

	email    string
	nickname string
	role     string

	authenticated bool
	loading       bool

	unreadCount int
	unreadRooms []UnreadRoom

	logger zerolog.Logger
}

// NewStore creates an empty Store in the Unknown state: nothing is known about
// the user yet, and IsAuthLoading reports true until the first hydration
// attempt settles.
func NewStore() *Store {
	return &Store{
		loading: true,
		logger:  logx.Logger().With().Str("component", "SessionStore").Logger(),
	}
}

// Hydrate derives the identity fields from the given bearer token.
//
// On decode success it sets email, nickname, and role and marks the store
// authenticated. On decode failure it resets every identity field and marks
// the store anonymous. Either way the loading flag settles to false, and the
// failure never propagates to the caller; it only changes store state.
// Token persistence is the caller's responsibility.
func (s *Store) Hydrate(token string) {
	identity, err := authx.DecodeIdentity(token)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.loading = false

	if err != nil {
		s.logger.Warn().Err(err).Msg("Token hydration failed, falling back to anonymous state")
		s.email = ""
		s.nickname = ""
		s.role = ""
		s.authenticated = false
		return
	}

	s.email = identity.Email
	s.nickname = identity.Nickname
	s.role = identity.Role
	s.authenticated = true
}

// PatchNickname overwrites the nickname field only. It is a pure local
// mutation; the backend rename call that precedes it is the caller's concern.
func (s *Store) PatchNickname(nickname string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nickname = nickname
}

// Clear resets the store to the anonymous state, including the unread
// notification counters. Calling it while already anonymous is a no-op.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.email = ""
	s.nickname = ""
	s.role = ""
	s.authenticated = false
	s.loading = false
	s.unreadCount = 0
	s.unreadRooms = nil
}

// SetUnread replaces the unread notification counters with the latest poll result.
func (s *Store) SetUnread(count int, rooms []UnreadRoom) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.unreadCount = count
	s.unreadRooms = rooms
}

// Email returns the current user's email, or empty when anonymous.
func (s *Store) Email() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.email
}

// Nickname returns the current display name, or empty when anonymous.
func (s *Store) Nickname() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nickname
}

// Role returns the resolved role claim, or empty when none is known.
func (s *Store) Role() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

// IsAuthenticated reports whether the last hydration attempt succeeded.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

// IsAuthLoading reports whether the first hydration attempt is still pending.
// While true, consumers must defer any auth-gated redirect decision.
func (s *Store) IsAuthLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// UnreadCount returns the last polled number of unread chat notifications.
func (s *Store) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unreadCount
}

// UnreadRooms returns a copy of the last polled unread room list.
func (s *Store) UnreadRooms() []UnreadRoom {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]UnreadRoom, len(s.unreadRooms))
	copy(rooms, s.unreadRooms)
	return rooms
}

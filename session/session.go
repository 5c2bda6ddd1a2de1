// session/session.go
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/wfunc/gamecenter/booking"
)

var (
	ErrInvalidToken    = errors.New("invalid session token")
	ErrMissingPlayer   = errors.New("token carries no player id")
	ErrSessionNotFound = errors.New("session not found")
)

// Claims accepts the player id either as player_id or as the standard subject.
type Claims struct {
	PlayerID string `json:"player_id,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) player() string {
	if c.PlayerID != "" {
		return c.PlayerID
	}
	return c.Subject
}

// Session is the explicit identity context of one logged-in player, created by Login and
// destroyed by Logout.
type Session struct {
	ID         string
	PlayerID   string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	lastActive time.Time
	flow       *booking.Flow
	mutex      sync.RWMutex
}

func NewSession(id, playerID string, now, expiresAt time.Time) *Session {
	return &Session{
		ID:         id,
		PlayerID:   playerID,
		CreatedAt:  now,
		ExpiresAt:  expiresAt,
		lastActive: now,
	}
}

func (s *Session) GetID() string {
	return s.ID
}

// Flow returns the active booking flow, nil when the player is not booking.
func (s *Session) Flow() *booking.Flow {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.flow
}

// SetFlow installs f and returns the flow it replaced. The caller cancels the old one.
func (s *Session) SetFlow(f *booking.Flow) *booking.Flow {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	old := s.flow
	s.flow = f
	return old
}

func (s *Session) Touch(now time.Time) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.lastActive = now
}

func (s *Session) LastActive() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.lastActive
}

func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Close cancels the active flow, if any.
func (s *Session) Close() {
	if f := s.SetFlow(nil); f != nil {
		f.Cancel()
	}
}

// Session管理器
type Manager struct {
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
	onClose  func(*Session)
	sessions map[string]*Session
	mutex    sync.RWMutex
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithCloseHook runs before a session's flow is cancelled on logout or expiry.
func WithCloseHook(fn func(*Session)) Option {
	return func(m *Manager) { m.onClose = fn }
}

func NewManager(secret []byte, ttl time.Duration, opts ...Option) *Manager {
	m := &Manager{
		secret:   secret,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) keyFunc(*jwt.Token) (interface{}, error) {
	return m.secret, nil
}

// Login validates an HS256 token and opens a session. The session lives until the token
// expires or the ttl passes, whichever comes first.
func (m *Manager) Login(token string) (*Session, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, m.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	playerID := claims.player()
	if playerID == "" {
		return nil, ErrMissingPlayer
	}

	now := m.now()
	expiresAt := now.Add(m.ttl)
	if claims.ExpiresAt != nil && claims.ExpiresAt.Time.Before(expiresAt) {
		expiresAt = claims.ExpiresAt.Time
	}

	s := NewSession(uuid.NewString(), playerID, now, expiresAt)
	m.Add(s)
	return s, nil
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

// Logout destroys the session and cancels its flow.
func (m *Manager) Logout(sessionID string) error {
	m.mutex.Lock()
	s, exists := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mutex.Unlock()

	if !exists {
		return ErrSessionNotFound
	}
	m.close(s)
	return nil
}

func (m *Manager) close(s *Session) {
	if m.onClose != nil {
		m.onClose(s)
	}
	s.Close()
}

// Get returns a live session and marks it active. Expired sessions are not returned.
func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	session, exists := m.sessions[sessionID]
	m.mutex.RUnlock()

	if !exists {
		return nil, false
	}
	now := m.now()
	if session.Expired(now) {
		return nil, false
	}
	session.Touch(now)
	return session, true
}

func (m *Manager) ByPlayer(playerID string) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, session := range m.sessions {
		if session.PlayerID == playerID {
			result = append(result, session)
		}
	}
	return result
}

func (m *Manager) Len() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

// PurgeExpired closes every session expired at now and returns how many were removed.
func (m *Manager) PurgeExpired(now time.Time) int {
	m.mutex.Lock()
	var expired []*Session
	for id, session := range m.sessions {
		if session.Expired(now) {
			expired = append(expired, session)
			delete(m.sessions, id)
		}
	}
	m.mutex.Unlock()

	for _, s := range expired {
		m.close(s)
	}
	return len(expired)
}

// SignToken issues an HS256 token for playerID, for tools and tests.
func SignToken(secret []byte, playerID string, expiresAt time.Time) (string, error) {
	claims := Claims{
		PlayerID: playerID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   playerID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

package session

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wfunc/gamecenter/booking"
	"github.com/wfunc/gamecenter/pricing"
)

var (
	testSecret = []byte("test-secret")
	testNow    = time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
)

func newTestManager(opts ...Option) *Manager {
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return NewManager(testSecret, 12*time.Hour, opts...)
}

func mustToken(t *testing.T, playerID string, expiresAt time.Time) string {
	t.Helper()
	token, err := SignToken(testSecret, playerID, expiresAt)
	if err != nil {
		t.Fatalf("SignToken failed: %v", err)
	}
	return token
}

func newTestFlow(t *testing.T) *booking.Flow {
	t.Helper()
	calc, err := pricing.NewCalculator(pricing.DefaultConfig())
	if err != nil {
		t.Fatalf("NewCalculator failed: %v", err)
	}
	return booking.NewFlow("player-1", "center-1", calc)
}

func TestNewManager(t *testing.T) {
	manager := newTestManager()
	if manager == nil {
		t.Fatal("NewManager should not return nil")
	}
	if manager.sessions == nil {
		t.Fatal("NewManager should initialize the sessions map")
	}
}

func TestManager_LoginGetLogout(t *testing.T) {
	manager := newTestManager()

	sess, err := manager.Login(mustToken(t, "player-1", testNow.Add(time.Hour)))
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if sess.PlayerID != "player-1" || sess.ID == "" {
		t.Fatalf("Unexpected session %+v", sess)
	}
	if !sess.ExpiresAt.Equal(testNow.Add(time.Hour)) {
		t.Errorf("Expected the token expiry to cap the session, got %v", sess.ExpiresAt)
	}

	retrieved, exists := manager.Get(sess.ID)
	if !exists || retrieved != sess {
		t.Fatal("Get should return the same session instance")
	}

	if err := manager.Logout(sess.ID); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if _, exists := manager.Get(sess.ID); exists {
		t.Fatal("Get should not find a logged out session")
	}
	if err := manager.Logout(sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestManager_LoginTTLCapsLongTokens(t *testing.T) {
	manager := newTestManager()
	sess, err := manager.Login(mustToken(t, "player-1", testNow.Add(72*time.Hour)))
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if !sess.ExpiresAt.Equal(testNow.Add(12 * time.Hour)) {
		t.Errorf("Expected the ttl to cap the session, got %v", sess.ExpiresAt)
	}
}

func TestManager_LoginRejectsBadTokens(t *testing.T) {
	manager := newTestManager()

	expired := mustToken(t, "player-1", testNow.Add(-time.Minute))
	if _, err := manager.Login(expired); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for an expired token, got %v", err)
	}

	forged, _ := SignToken([]byte("other-secret"), "player-1", testNow.Add(time.Hour))
	if _, err := manager.Login(forged); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for a wrong signature, got %v", err)
	}

	if _, err := manager.Login("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for garbage, got %v", err)
	}

	anonymous, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour)),
	}).SignedString(testSecret)
	if _, err := manager.Login(anonymous); !errors.Is(err, ErrMissingPlayer) {
		t.Errorf("Expected ErrMissingPlayer, got %v", err)
	}

	if manager.Len() != 0 {
		t.Errorf("No session should have been created, got %d", manager.Len())
	}
}

func TestManager_LoginWithSubjectOnly(t *testing.T) {
	manager := newTestManager()
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "player-9",
		ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour)),
	}).SignedString(testSecret)

	sess, err := manager.Login(token)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if sess.PlayerID != "player-9" {
		t.Errorf("Expected player-9 from the subject, got %s", sess.PlayerID)
	}
}

func TestManager_ByPlayer(t *testing.T) {
	manager := newTestManager()

	manager.Add(NewSession("session1", "100", testNow, testNow.Add(time.Hour)))
	manager.Add(NewSession("session2", "200", testNow, testNow.Add(time.Hour)))
	manager.Add(NewSession("session3", "100", testNow, testNow.Add(time.Hour)))

	if got := manager.ByPlayer("100"); len(got) != 2 {
		t.Errorf("Expected 2 sessions for player 100, got %d", len(got))
	}
	if got := manager.ByPlayer("300"); len(got) != 0 {
		t.Errorf("Expected no sessions for player 300, got %d", len(got))
	}
}

func TestManager_LogoutCancelsFlow(t *testing.T) {
	var hooked []string
	manager := newTestManager(WithCloseHook(func(s *Session) { hooked = append(hooked, s.ID) }))

	sess := NewSession("session1", "player-1", testNow, testNow.Add(time.Hour))
	manager.Add(sess)
	flow := newTestFlow(t)
	if old := sess.SetFlow(flow); old != nil {
		t.Fatal("A new session should have no flow")
	}

	if err := manager.Logout("session1"); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if sess.Flow() != nil {
		t.Error("Logout should detach the flow")
	}
	if flow.Phase() != booking.PhaseBrowsing {
		t.Errorf("Expected the flow to be cancelled back to browsing, got %s", flow.Phase())
	}
	if len(hooked) != 1 || hooked[0] != "session1" {
		t.Errorf("Expected the close hook to run once, got %v", hooked)
	}
}

func TestManager_PurgeExpired(t *testing.T) {
	manager := newTestManager()
	manager.Add(NewSession("old", "player-1", testNow, testNow.Add(time.Minute)))
	manager.Add(NewSession("fresh", "player-2", testNow, testNow.Add(time.Hour)))

	if _, exists := manager.Get("old"); !exists {
		t.Fatal("Session should be live before it expires")
	}

	if n := manager.PurgeExpired(testNow.Add(2 * time.Minute)); n != 1 {
		t.Errorf("Expected 1 purged session, got %d", n)
	}
	if manager.Len() != 1 {
		t.Errorf("Expected 1 session left, got %d", manager.Len())
	}
	if _, exists := manager.Get("fresh"); !exists {
		t.Error("Fresh session should survive the purge")
	}
}

package session

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	pkgerrors "github.com/lunastore/storefront/pkg/errors"
)

// Observer is notified whenever the authenticated state flips.
type Observer func(authenticated bool)

// Manager holds the storefront access token and derives authentication
// state from it. The token is issued and verified by the backend; the
// client only reads the expiry claim, so the signature is not checked.
type Manager struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time
	observers []Observer
	now       func() time.Time
}

func NewManager() *Manager {
	return &Manager{now: time.Now}
}

// OnChange registers an observer for authenticated-state transitions.
func (m *Manager) OnChange(obs Observer) {
	if obs == nil {
		return
	}
	m.mu.Lock()
	m.observers = append(m.observers, obs)
	m.mu.Unlock()
}

// SetToken stores a new access token after reading its expiry claim.
func (m *Manager) SetToken(token string) error {
	if token == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "token is required")
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed token")
	}

	var expiresAt time.Time
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expiresAt = exp.Time
	}
	if !expiresAt.IsZero() && !expiresAt.After(m.clock()) {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "token already expired")
	}

	m.mu.Lock()
	wasAuthed := m.authenticatedLocked()
	m.token = token
	m.expiresAt = expiresAt
	nowAuthed := m.authenticatedLocked()
	observers := m.observersSnapshotLocked()
	m.mu.Unlock()

	if wasAuthed != nowAuthed {
		notify(observers, nowAuthed)
	}
	return nil
}

// Clear drops the stored token, transitioning to unauthenticated.
func (m *Manager) Clear() {
	m.mu.Lock()
	wasAuthed := m.authenticatedLocked()
	m.token = ""
	m.expiresAt = time.Time{}
	observers := m.observersSnapshotLocked()
	m.mu.Unlock()

	if wasAuthed {
		notify(observers, false)
	}
}

// Authenticated reports whether a non-expired token is held.
func (m *Manager) Authenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authenticatedLocked()
}

// Token returns the stored access token, empty when unauthenticated.
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.authenticatedLocked() {
		return ""
	}
	return m.token
}

func (m *Manager) authenticatedLocked() bool {
	if m.token == "" {
		return false
	}
	if m.expiresAt.IsZero() {
		return true
	}
	return m.expiresAt.After(m.clock())
}

func (m *Manager) observersSnapshotLocked() []Observer {
	snapshot := make([]Observer, len(m.observers))
	copy(snapshot, m.observers)
	return snapshot
}

func (m *Manager) clock() time.Time {
	if m.now != nil {
		return m.now()
	}
	return time.Now()
}

func notify(observers []Observer, authenticated bool) {
	for _, obs := range observers {
		obs(authenticated)
	}
}

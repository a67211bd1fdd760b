package storage

import (
	"context"
	"sync"
	"time"

	"github.com/omshejul/passkey-service/internal/models"
)

// MemorySessionStorage keeps sessions in process memory (not persistent).
type MemorySessionStorage struct {
	mu               sync.RWMutex
	webauthnSessions map[string]*models.WebAuthnSession
	sessions         map[string]*models.Session
	oauthStates      map[string]time.Time
}

func NewMemorySessionStorage() *MemorySessionStorage {
	storage := &MemorySessionStorage{
		webauthnSessions: make(map[string]*models.WebAuthnSession),
		sessions:         make(map[string]*models.Session),
		oauthStates:      make(map[string]time.Time),
	}

	go storage.cleanupRoutine()

	return storage
}

func (m *MemorySessionStorage) SaveWebAuthnSession(ctx context.Context, key string, session *models.WebAuthnSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.webauthnSessions[key] = session
	return nil
}

func (m *MemorySessionStorage) GetWebAuthnSession(ctx context.Context, key string) (*models.WebAuthnSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.webauthnSessions[key]
	if !exists || time.Now().After(session.ExpiresAt) {
		return nil, nil
	}
	return session, nil
}

func (m *MemorySessionStorage) DeleteWebAuthnSession(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.webauthnSessions, key)
	return nil
}

func (m *MemorySessionStorage) SaveSession(ctx context.Context, session *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[session.ID] = session
	return nil
}

func (m *MemorySessionStorage) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[sessionID]
	if !exists || time.Now().After(session.ExpiresAt) {
		return nil, nil
	}
	return session, nil
}

func (m *MemorySessionStorage) DeleteSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, sessionID)
	return nil
}

func (m *MemorySessionStorage) GetUserSessions(ctx context.Context, userID string) ([]*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var userSessions []*models.Session
	now := time.Now()
	for _, session := range m.sessions {
		if session.UserID == userID && now.Before(session.ExpiresAt) {
			userSessions = append(userSessions, session)
		}
	}
	return userSessions, nil
}

func (m *MemorySessionStorage) SaveOAuthState(ctx context.Context, state string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.oauthStates[state] = expiresAt
	return nil
}

func (m *MemorySessionStorage) ConsumeOAuthState(ctx context.Context, state string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	expiresAt, exists := m.oauthStates[state]
	if !exists {
		return false, nil
	}
	delete(m.oauthStates, state)
	return time.Now().Before(expiresAt), nil
}

// cleanupRoutine runs every 5 minutes to clean up expired entries.
func (m *MemorySessionStorage) cleanupRoutine() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		m.cleanup()
	}
}

func (m *MemorySessionStorage) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()

	for key, session := range m.webauthnSessions {
		if now.After(session.ExpiresAt) {
			delete(m.webauthnSessions, key)
		}
	}

	for sessionID, session := range m.sessions {
		if now.After(session.ExpiresAt) {
			delete(m.sessions, sessionID)
		}
	}

	for state, expiresAt := range m.oauthStates {
		if now.After(expiresAt) {
			delete(m.oauthStates, state)
		}
	}
}

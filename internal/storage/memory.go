package storage

import (
	"context"
	"sync"
	"time"

	"github.com/omshejul/passkey-service/internal/models"
)

// MemoryStore keeps accounts and credentials in process memory. Useful for
// development and tests; the store mutex makes the count-then-delete
// sequence atomic.
type MemoryStore struct {
	mu          sync.RWMutex
	accounts    map[string]*models.Account
	emails      map[string]string // email -> account ID
	oauthLinks  map[string]string // provider + "\x00" + providerAccountID -> account ID
	credentials map[string]*models.Authenticator
	byCredID    map[string]string // credential ID -> record ID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:    make(map[string]*models.Account),
		emails:      make(map[string]string),
		oauthLinks:  make(map[string]string),
		credentials: make(map[string]*models.Authenticator),
		byCredID:    make(map[string]string),
	}
}

func oauthKey(provider, providerAccountID string) string {
	return provider + "\x00" + providerAccountID
}

func (m *MemoryStore) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	account, exists := m.accounts[id]
	if !exists {
		return nil, ErrNotFound
	}
	copied := *account
	return &copied, nil
}

func (m *MemoryStore) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, exists := m.emails[email]
	if !exists {
		return nil, ErrNotFound
	}
	copied := *m.accounts[id]
	return &copied, nil
}

func (m *MemoryStore) SaveAccount(ctx context.Context, account *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *account
	m.accounts[account.ID] = &copied
	m.emails[account.Email] = account.ID
	return nil
}

func (m *MemoryStore) GetAccountByOAuth(ctx context.Context, provider, providerAccountID string) (*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, exists := m.oauthLinks[oauthKey(provider, providerAccountID)]
	if !exists {
		return nil, ErrNotFound
	}
	account, exists := m.accounts[id]
	if !exists {
		return nil, ErrNotFound
	}
	copied := *account
	return &copied, nil
}

func (m *MemoryStore) SaveOAuthLink(ctx context.Context, link *models.OAuthLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.oauthLinks[oauthKey(link.Provider, link.ProviderAccountID)] = link.UserID
	return nil
}

func (m *MemoryStore) ListByUser(ctx context.Context, userID string) ([]*models.Authenticator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var records []*models.Authenticator
	for _, a := range m.credentials {
		if a.UserID == userID {
			copied := *a
			records = append(records, &copied)
		}
	}
	return records, nil
}

func (m *MemoryStore) FindOwned(ctx context.Context, userID, id string) (*models.Authenticator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, exists := m.credentials[id]
	if !exists || a.UserID != userID {
		return nil, ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (m *MemoryStore) FindByCredentialID(ctx context.Context, credentialID string) (*models.Authenticator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, exists := m.byCredID[credentialID]
	if !exists {
		return nil, ErrNotFound
	}
	copied := *m.credentials[id]
	return &copied, nil
}

func (m *MemoryStore) Create(ctx context.Context, authenticator *models.Authenticator) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byCredID[authenticator.CredentialID]; exists {
		return ErrDuplicateCredential
	}

	copied := *authenticator
	m.credentials[authenticator.ID] = &copied
	m.byCredID[authenticator.CredentialID] = authenticator.ID
	return nil
}

func (m *MemoryStore) UpdateLabel(ctx context.Context, userID, id, label string) (*models.Authenticator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, exists := m.credentials[id]
	if !exists || a.UserID != userID {
		return nil, ErrNotFound
	}

	a.Label = label
	a.UpdatedAt = time.Now()
	copied := *a
	return &copied, nil
}

func (m *MemoryStore) TouchLastUsed(ctx context.Context, credentialID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, exists := m.byCredID[credentialID]
	if !exists {
		return ErrNotFound
	}

	a := m.credentials[id]
	a.LastUsed = &at
	a.UpdatedAt = at
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, exists := m.credentials[id]
	if !exists || a.UserID != userID {
		return ErrNotFound
	}

	count := 0
	for _, other := range m.credentials {
		if other.UserID == userID {
			count++
		}
	}
	if count <= 1 {
		return ErrLastCredential
	}

	delete(m.byCredID, a.CredentialID)
	delete(m.credentials, id)
	return nil
}

func (m *MemoryStore) CountByUser(ctx context.Context, userID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, a := range m.credentials {
		if a.UserID == userID {
			count++
		}
	}
	return count, nil
}

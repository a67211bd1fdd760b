package storage

import (
	"context"
	"errors"
	"time"

	"github.com/omshejul/passkey-service/internal/models"
)

// Sentinel errors surfaced by stores. Handlers map these to stable API
// error codes; nothing below this layer leaks to clients.
var (
	// ErrNotFound covers both a missing record and a record owned by a
	// different user, so callers cannot probe for existence.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateCredential signals a registration ceremony produced a
	// credential ID that is already registered.
	ErrDuplicateCredential = errors.New("credential already registered")

	// ErrLastCredential blocks a delete that would leave the account
	// with zero passkeys.
	ErrLastCredential = errors.New("cannot delete the last credential")
)

type AccountStore interface {
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	SaveAccount(ctx context.Context, account *models.Account) error
	GetAccountByOAuth(ctx context.Context, provider, providerAccountID string) (*models.Account, error)
	SaveOAuthLink(ctx context.Context, link *models.OAuthLink) error
}

// CredentialStore is durable CRUD over passkey records, scoped by owner.
// Implementations enforce ownership at the row level: every mutation
// constrains on the user ID, not just the record ID.
type CredentialStore interface {
	ListByUser(ctx context.Context, userID string) ([]*models.Authenticator, error)

	// FindOwned folds ownership into existence: a record belonging to a
	// different user reports ErrNotFound.
	FindOwned(ctx context.Context, userID, id string) (*models.Authenticator, error)

	FindByCredentialID(ctx context.Context, credentialID string) (*models.Authenticator, error)

	Create(ctx context.Context, authenticator *models.Authenticator) error

	UpdateLabel(ctx context.Context, userID, id, label string) (*models.Authenticator, error)

	// TouchLastUsed records a successful authentication with the
	// credential.
	TouchLastUsed(ctx context.Context, credentialID string, at time.Time) error

	// Delete removes an owned record. The last-credential check happens
	// atomically with the delete, so two racing deletes of a user's last
	// two passkeys can never both succeed.
	Delete(ctx context.Context, userID, id string) error

	CountByUser(ctx context.Context, userID string) (int, error)
}

type SessionStorage interface {
	SaveWebAuthnSession(ctx context.Context, key string, session *models.WebAuthnSession) error
	GetWebAuthnSession(ctx context.Context, key string) (*models.WebAuthnSession, error)
	DeleteWebAuthnSession(ctx context.Context, key string) error

	SaveSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
	GetUserSessions(ctx context.Context, userID string) ([]*models.Session, error)

	// OAuth login state, consumed exactly once by the provider callback.
	SaveOAuthState(ctx context.Context, state string, expiresAt time.Time) error
	ConsumeOAuthState(ctx context.Context, state string) (bool, error)
}

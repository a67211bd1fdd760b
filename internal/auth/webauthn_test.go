package auth

import (
	"context"
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omshejul/passkey-service/internal/audit"
	"github.com/omshejul/passkey-service/internal/models"
	"github.com/omshejul/passkey-service/internal/storage"
)

func newLoginTestService(t *testing.T) (*WebAuthnService, *storage.MemoryStore) {
	t.Helper()

	store := storage.NewMemoryStore()
	sessions := storage.NewMemorySessionStorage()
	return NewWebAuthnService(nil, store, store, sessions, audit.Noop{}), store
}

func registerCredential(t *testing.T, store *storage.MemoryStore, id, userID string) *webauthn.Credential {
	t.Helper()

	cred := &webauthn.Credential{ID: []byte(id)}
	record := models.NewAuthenticator(id, userID, cred, time.Now())
	require.NoError(t, store.Create(context.Background(), record))
	return cred
}

func TestVerifiedLoginTouchesCredential(t *testing.T) {
	service, store := newLoginTestService(t)
	ctx := context.Background()

	account := &models.Account{ID: "user-1", Email: "alice@example.com"}
	cred := registerCredential(t, store, "pk-1", "user-1")

	outcome := service.settleVerifiedLogin(ctx, account, cred)

	require.IsType(t, PasskeyOk{}, outcome)
	assert.Equal(t, "user-1", outcome.(PasskeyOk).AccountID)

	record, err := store.FindOwned(ctx, "user-1", "pk-1")
	require.NoError(t, err)
	assert.NotNil(t, record.LastUsed)
}

func TestVerifiedLoginDeletedCredential(t *testing.T) {
	service, _ := newLoginTestService(t)

	// The credential verified, but its record is gone from the store.
	account := &models.Account{ID: "user-1"}
	outcome := service.settleVerifiedLogin(context.Background(), account, &webauthn.Credential{ID: []byte("gone")})

	require.IsType(t, PasskeyVerificationError{}, outcome)

	decision := Decide(outcome)
	assert.False(t, decision.Allow)
	assert.Equal(t, CodePasskeyNotFound, decision.RedirectCode)
}

func TestVerifiedLoginCrossAccountCredential(t *testing.T) {
	service, store := newLoginTestService(t)

	cred := registerCredential(t, store, "pk-1", "user-1")

	outcome := service.settleVerifiedLogin(context.Background(), &models.Account{ID: "user-2"}, cred)

	assert.IsType(t, PasskeyVerificationError{}, outcome)
}

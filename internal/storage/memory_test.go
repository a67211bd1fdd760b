package storage

import (
	"context"
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omshejul/passkey-service/internal/models"
)

func newAuthenticator(id, userID string) *models.Authenticator {
	return models.NewAuthenticator(id, userID, &webauthn.Credential{ID: []byte(id)}, time.Now())
}

func TestMemoryCreateRejectsDuplicateCredential(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newAuthenticator("pk-1", "user-1")))

	// Same credential ID, different record owner.
	dup := newAuthenticator("pk-2", "user-2")
	dup.CredentialID = models.EncodeCredentialID([]byte("pk-1"))
	assert.ErrorIs(t, store.Create(ctx, dup), ErrDuplicateCredential)
}

func TestMemoryFindOwnedHidesOtherUsersRecords(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newAuthenticator("pk-1", "user-1")))

	_, err := store.FindOwned(ctx, "user-2", "pk-1")
	assert.ErrorIs(t, err, ErrNotFound)

	record, err := store.FindOwned(ctx, "user-1", "pk-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", record.UserID)
}

func TestMemoryDeleteGuardsLastCredential(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newAuthenticator("pk-1", "user-1")))
	assert.ErrorIs(t, store.Delete(ctx, "user-1", "pk-1"), ErrLastCredential)

	require.NoError(t, store.Create(ctx, newAuthenticator("pk-2", "user-1")))
	require.NoError(t, store.Delete(ctx, "user-1", "pk-1"))

	count, err := store.CountByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMemoryDeleteCrossUserIsNotFound(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newAuthenticator("pk-1", "user-1")))
	require.NoError(t, store.Create(ctx, newAuthenticator("pk-2", "user-1")))

	assert.ErrorIs(t, store.Delete(ctx, "user-2", "pk-1"), ErrNotFound)
}

func TestMemoryTouchLastUsed(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	record := newAuthenticator("pk-1", "user-1")
	require.NoError(t, store.Create(ctx, record))

	at := time.Now().Add(time.Minute)
	require.NoError(t, store.TouchLastUsed(ctx, record.CredentialID, at))

	found, err := store.FindOwned(ctx, "user-1", "pk-1")
	require.NoError(t, err)
	require.NotNil(t, found.LastUsed)
	assert.True(t, found.LastUsed.Equal(at))
}

func TestMemoryAccountLinking(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	account := &models.Account{ID: "acct-1", Email: "alice@example.com", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, store.SaveAccount(ctx, account))

	_, err := store.GetAccountByOAuth(ctx, "google", "sub-1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.SaveOAuthLink(ctx, &models.OAuthLink{
		Provider:          "google",
		ProviderAccountID: "sub-1",
		UserID:            "acct-1",
		CreatedAt:         time.Now(),
	}))

	linked, err := store.GetAccountByOAuth(ctx, "google", "sub-1")
	require.NoError(t, err)
	assert.Equal(t, "acct-1", linked.ID)

	byEmail, err := store.GetAccountByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "acct-1", byEmail.ID)
}

func TestMemorySessionStorageExpiry(t *testing.T) {
	store := NewMemorySessionStorage()
	ctx := context.Background()

	expired := &models.Session{
		ID:        "sess-1",
		UserID:    "acct-1",
		CreatedAt: time.Now().Add(-2 * time.Hour),
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, store.SaveSession(ctx, expired))

	got, err := store.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryOAuthStateConsumedOnce(t *testing.T) {
	store := NewMemorySessionStorage()
	ctx := context.Background()

	require.NoError(t, store.SaveOAuthState(ctx, "state-1", time.Now().Add(time.Minute)))

	valid, err := store.ConsumeOAuthState(ctx, "state-1")
	require.NoError(t, err)
	assert.True(t, valid)

	valid, err = store.ConsumeOAuthState(ctx, "state-1")
	require.NoError(t, err)
	assert.False(t, valid)
}

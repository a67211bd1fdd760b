package storage

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omshejul/passkey-service/internal/models"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func saveTestAccount(t *testing.T, store *SQLiteStore, id, email string) {
	t.Helper()
	now := time.Now()
	require.NoError(t, store.SaveAccount(context.Background(), &models.Account{
		ID:        id,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}))
}

func TestSQLiteAccountRoundTrip(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	saveTestAccount(t, store, "acct-1", "alice@example.com")

	account, err := store.GetAccount(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", account.Email)

	byEmail, err := store.GetAccountByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "acct-1", byEmail.ID)

	_, err = store.GetAccount(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteOAuthLink(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	saveTestAccount(t, store, "acct-1", "alice@example.com")

	_, err := store.GetAccountByOAuth(ctx, "google", "sub-1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.SaveOAuthLink(ctx, &models.OAuthLink{
		Provider:          "google",
		ProviderAccountID: "sub-1",
		UserID:            "acct-1",
		CreatedAt:         time.Now(),
	}))

	account, err := store.GetAccountByOAuth(ctx, "google", "sub-1")
	require.NoError(t, err)
	assert.Equal(t, "acct-1", account.ID)
}

func TestSQLiteCredentialRoundTrip(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	saveTestAccount(t, store, "user-1", "alice@example.com")
	record := newAuthenticator("pk-1", "user-1")
	require.NoError(t, store.Create(ctx, record))

	found, err := store.FindOwned(ctx, "user-1", "pk-1")
	require.NoError(t, err)
	assert.Equal(t, record.CredentialID, found.CredentialID)
	assert.Equal(t, record.Credential.ID, found.Credential.ID)

	_, err = store.FindOwned(ctx, "user-2", "pk-1")
	assert.ErrorIs(t, err, ErrNotFound)

	byCred, err := store.FindByCredentialID(ctx, record.CredentialID)
	require.NoError(t, err)
	assert.Equal(t, "pk-1", byCred.ID)
}

func TestSQLiteCreateRejectsDuplicateCredential(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	saveTestAccount(t, store, "user-1", "alice@example.com")
	saveTestAccount(t, store, "user-2", "bob@example.com")
	require.NoError(t, store.Create(ctx, newAuthenticator("pk-1", "user-1")))

	dup := newAuthenticator("pk-2", "user-2")
	dup.CredentialID = models.EncodeCredentialID([]byte("pk-1"))
	assert.ErrorIs(t, store.Create(ctx, dup), ErrDuplicateCredential)
}

func TestSQLiteUpdateLabel(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	saveTestAccount(t, store, "user-1", "alice@example.com")
	require.NoError(t, store.Create(ctx, newAuthenticator("pk-1", "user-1")))

	updated, err := store.UpdateLabel(ctx, "user-1", "pk-1", "Work laptop")
	require.NoError(t, err)
	assert.Equal(t, "Work laptop", updated.Label)

	_, err = store.UpdateLabel(ctx, "user-2", "pk-1", "stolen")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteTouchLastUsed(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	saveTestAccount(t, store, "user-1", "alice@example.com")
	record := newAuthenticator("pk-1", "user-1")
	require.NoError(t, store.Create(ctx, record))

	at := time.Now()
	require.NoError(t, store.TouchLastUsed(ctx, record.CredentialID, at))

	found, err := store.FindOwned(ctx, "user-1", "pk-1")
	require.NoError(t, err)
	require.NotNil(t, found.LastUsed)
	assert.Equal(t, at.UTC().UnixMilli(), found.LastUsed.UnixMilli())
}

func TestSQLiteDeleteGuardsLastCredential(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	saveTestAccount(t, store, "user-1", "alice@example.com")
	require.NoError(t, store.Create(ctx, newAuthenticator("pk-1", "user-1")))

	assert.ErrorIs(t, store.Delete(ctx, "user-1", "pk-1"), ErrLastCredential)

	require.NoError(t, store.Create(ctx, newAuthenticator("pk-2", "user-1")))
	require.NoError(t, store.Delete(ctx, "user-1", "pk-1"))

	count, err := store.CountByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSQLiteDeleteCrossUserIsNotFound(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	saveTestAccount(t, store, "user-1", "alice@example.com")
	require.NoError(t, store.Create(ctx, newAuthenticator("pk-1", "user-1")))
	require.NoError(t, store.Create(ctx, newAuthenticator("pk-2", "user-1")))

	assert.ErrorIs(t, store.Delete(ctx, "user-2", "pk-1"), ErrNotFound)
}

func TestSQLiteConcurrentDeleteNeverReachesZero(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	saveTestAccount(t, store, "user-1", "alice@example.com")
	require.NoError(t, store.Create(ctx, newAuthenticator("pk-1", "user-1")))
	require.NoError(t, store.Create(ctx, newAuthenticator("pk-2", "user-1")))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{"pk-1", "pk-2"} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			errs[i] = store.Delete(ctx, "user-1", id)
		}(i, id)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded)

	count, err := store.CountByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

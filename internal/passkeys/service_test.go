package passkeys

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omshejul/passkey-service/internal/audit"
	"github.com/omshejul/passkey-service/internal/models"
	"github.com/omshejul/passkey-service/internal/storage"
)

func newTestService(t *testing.T) (*Service, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	return NewService(store, audit.Noop{}), store
}

func addPasskey(t *testing.T, store *storage.MemoryStore, id, userID string) *models.Authenticator {
	t.Helper()
	record := models.NewAuthenticator(id, userID, &webauthn.Credential{ID: []byte(id)}, time.Now())
	require.NoError(t, store.Create(context.Background(), record))
	return record
}

func TestListEmptyForUserWithNone(t *testing.T) {
	service, _ := newTestService(t)

	records, err := service.List(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestListOnlyReturnsOwnRecords(t *testing.T) {
	service, store := newTestService(t)
	addPasskey(t, store, "pk-1", "user-1")
	addPasskey(t, store, "pk-2", "user-2")

	records, err := service.List(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "pk-1", records[0].ID)
}

func TestRenameUpdatesLabel(t *testing.T) {
	service, store := newTestService(t)
	record := addPasskey(t, store, "pk-1", "user-1")

	updated, err := service.Rename(context.Background(), "user-1", record.ID, "Work laptop")
	require.NoError(t, err)
	assert.Equal(t, "Work laptop", updated.Label)
	assert.False(t, updated.UpdatedAt.Before(record.UpdatedAt))
}

func TestRenameMissingRecordIsNotFound(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.Rename(context.Background(), "user-1", "missing", "label")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRenameCrossUserIsNotFound(t *testing.T) {
	service, store := newTestService(t)
	record := addPasskey(t, store, "pk-1", "user-1")

	// A record owned by another user must be indistinguishable from a
	// missing one.
	_, err := service.Rename(context.Background(), "user-2", record.ID, "stolen")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	unchanged, err := store.FindOwned(context.Background(), "user-1", record.ID)
	require.NoError(t, err)
	assert.Empty(t, unchanged.Label)
}

func TestRemoveLastCredentialIsBlocked(t *testing.T) {
	service, store := newTestService(t)
	record := addPasskey(t, store, "pk-1", "user-1")

	err := service.Remove(context.Background(), "user-1", record.ID)
	assert.ErrorIs(t, err, storage.ErrLastCredential)

	// The record must remain active.
	count, err := store.CountByUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRemoveCountsDownThenBlocks(t *testing.T) {
	service, store := newTestService(t)
	first := addPasskey(t, store, "pk-1", "user-1")
	second := addPasskey(t, store, "pk-2", "user-1")
	third := addPasskey(t, store, "pk-3", "user-1")

	require.NoError(t, service.Remove(context.Background(), "user-1", first.ID))
	require.NoError(t, service.Remove(context.Background(), "user-1", second.ID))

	err := service.Remove(context.Background(), "user-1", third.ID)
	assert.ErrorIs(t, err, storage.ErrLastCredential)

	count, err := store.CountByUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRemoveCrossUserIsNotFound(t *testing.T) {
	service, store := newTestService(t)
	record := addPasskey(t, store, "pk-1", "user-1")
	addPasskey(t, store, "pk-2", "user-1")

	err := service.Remove(context.Background(), "user-2", record.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestConcurrentRemoveNeverReachesZero(t *testing.T) {
	service, store := newTestService(t)
	first := addPasskey(t, store, "pk-1", "user-1")
	second := addPasskey(t, store, "pk-2", "user-1")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{first.ID, second.ID} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			errs[i] = service.Remove(context.Background(), "user-1", id)
		}(i, id)
	}
	wg.Wait()

	// Exactly one delete may win; the count must never reach zero.
	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, storage.ErrLastCredential)
		}
	}
	assert.Equal(t, 1, succeeded)

	count, err := store.CountByUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

// Package passkeys is the authenticated user's self-service management of
// their own credentials.
package passkeys

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/omshejul/passkey-service/internal/audit"
	"github.com/omshejul/passkey-service/internal/models"
	"github.com/omshejul/passkey-service/internal/storage"
)

// Service exposes list/rename/delete over a user's own passkeys. Every
// operation takes the authenticated account ID explicitly; ownership is
// additionally enforced by the store at the row level.
type Service struct {
	credentials storage.CredentialStore
	audit       audit.Recorder
}

func NewService(credentials storage.CredentialStore, recorder audit.Recorder) *Service {
	return &Service{
		credentials: credentials,
		audit:       recorder,
	}
}

// List returns the user's registered passkeys. A user with none gets an
// empty list.
func (s *Service) List(ctx context.Context, userID string) ([]*models.Authenticator, error) {
	return s.credentials.ListByUser(ctx, userID)
}

// Rename updates the user-assigned label of an owned passkey. A record
// owned by someone else reports storage.ErrNotFound, indistinguishable from
// a missing record.
func (s *Service) Rename(ctx context.Context, userID, id, label string) (*models.Authenticator, error) {
	record, err := s.credentials.UpdateLabel(ctx, userID, id, label)
	if err != nil {
		return nil, err
	}

	s.recordEvent(ctx, audit.Event{
		Kind:         audit.EventPasskeyRenamed,
		UserID:       userID,
		CredentialID: record.CredentialID,
		Detail:       label,
	})

	return record, nil
}

// Remove deletes an owned passkey. The store rejects the delete with
// storage.ErrLastCredential when it would leave the account with zero
// passkeys; that check is atomic with the delete.
func (s *Service) Remove(ctx context.Context, userID, id string) error {
	record, err := s.credentials.FindOwned(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := s.credentials.Delete(ctx, userID, id); err != nil {
		return err
	}

	s.recordEvent(ctx, audit.Event{
		Kind:         audit.EventPasskeyDeleted,
		UserID:       userID,
		CredentialID: record.CredentialID,
	})

	return nil
}

func (s *Service) recordEvent(ctx context.Context, event audit.Event) {
	event.ID = uuid.NewString()
	event.Time = time.Now()
	if err := s.audit.Record(ctx, event); err != nil {
		slog.Warn("Failed to record audit event", "kind", event.Kind, "error", err)
	}
}

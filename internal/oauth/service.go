package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/omshejul/passkey-service/internal/audit"
	"github.com/omshejul/passkey-service/internal/models"
	"github.com/omshejul/passkey-service/internal/storage"
)

const stateTTL = 10 * time.Minute

// Service resolves a completed OAuth exchange to a durable account,
// creating or linking accounts as needed.
type Service struct {
	provider *GoogleProvider
	accounts storage.AccountStore
	sessions storage.SessionStorage
	audit    audit.Recorder
}

func NewService(provider *GoogleProvider, accounts storage.AccountStore, sessions storage.SessionStorage, recorder audit.Recorder) *Service {
	return &Service{
		provider: provider,
		accounts: accounts,
		sessions: sessions,
		audit:    recorder,
	}
}

// BeginLogin issues a state token and returns the provider authorization
// URL to redirect the browser to.
func (s *Service) BeginLogin(ctx context.Context) (string, error) {
	state := uuid.NewString()
	if err := s.sessions.SaveOAuthState(ctx, state, time.Now().Add(stateTTL)); err != nil {
		return "", fmt.Errorf("failed to save oauth state: %w", err)
	}
	return s.provider.LoginURL(state), nil
}

// CompleteLogin validates state, exchanges the code and resolves the
// account. The returned account is the durable identity the session must be
// issued for.
func (s *Service) CompleteLogin(ctx context.Context, state, code string) (*models.Account, error) {
	valid, err := s.sessions.ConsumeOAuthState(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("failed to consume oauth state: %w", err)
	}
	if !valid {
		return nil, errors.New("invalid or expired oauth state")
	}

	info, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	return s.ResolveAccount(ctx, info)
}

// ResolveAccount maps a provider identity to an account:
//
//  1. An existing link for the provider subject wins.
//  2. Otherwise an account with the same email is linked in place. This is
//     a deliberate trust decision: Google sign-in may attach to an account
//     that only had passkeys, rather than erroring.
//  3. Otherwise a new account is created. OAuth is the only path that
//     creates accounts.
func (s *Service) ResolveAccount(ctx context.Context, info *UserInfo) (*models.Account, error) {
	account, err := s.accounts.GetAccountByOAuth(ctx, "google", info.Subject)
	if err == nil {
		s.recordEvent(ctx, audit.Event{Kind: audit.EventOAuthSignIn, UserID: account.ID})
		return account, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up oauth link: %w", err)
	}

	now := time.Now()
	link := &models.OAuthLink{
		Provider:          "google",
		ProviderAccountID: info.Subject,
		CreatedAt:         now,
	}

	account, err = s.accounts.GetAccountByEmail(ctx, info.Email)
	switch {
	case err == nil:
		link.UserID = account.ID
		if err := s.accounts.SaveOAuthLink(ctx, link); err != nil {
			return nil, fmt.Errorf("failed to link account: %w", err)
		}
		s.recordEvent(ctx, audit.Event{Kind: audit.EventAccountLinked, UserID: account.ID, Detail: "google"})
	case errors.Is(err, storage.ErrNotFound):
		account = &models.Account{
			ID:        uuid.NewString(),
			Email:     info.Email,
			Name:      info.Name,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.accounts.SaveAccount(ctx, account); err != nil {
			return nil, fmt.Errorf("failed to create account: %w", err)
		}
		link.UserID = account.ID
		if err := s.accounts.SaveOAuthLink(ctx, link); err != nil {
			return nil, fmt.Errorf("failed to link new account: %w", err)
		}
		s.recordEvent(ctx, audit.Event{Kind: audit.EventAccountCreated, UserID: account.ID, Detail: "google"})
	default:
		return nil, fmt.Errorf("failed to look up account by email: %w", err)
	}

	s.recordEvent(ctx, audit.Event{Kind: audit.EventOAuthSignIn, UserID: account.ID})
	return account, nil
}

func (s *Service) recordEvent(ctx context.Context, event audit.Event) {
	event.ID = uuid.NewString()
	event.Time = time.Now()
	if err := s.audit.Record(ctx, event); err != nil {
		slog.Warn("Failed to record audit event", "kind", event.Kind, "error", err)
	}
}

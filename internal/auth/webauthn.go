package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"

	"github.com/omshejul/passkey-service/internal/audit"
	"github.com/omshejul/passkey-service/internal/models"
	"github.com/omshejul/passkey-service/internal/storage"
)

const (
	ceremonyTTL = 5 * time.Minute
	sessionTTL  = 24 * time.Hour
)

// WebAuthnService runs passkey ceremonies. Verification itself is delegated
// to go-webauthn; this service owns the surrounding credential records,
// ceremony sessions and authorization outcomes.
type WebAuthnService struct {
	webauthn    *webauthn.WebAuthn
	accounts    storage.AccountStore
	credentials storage.CredentialStore
	sessions    storage.SessionStorage
	audit       audit.Recorder
}

func NewWebAuthnService(wa *webauthn.WebAuthn, accounts storage.AccountStore, credentials storage.CredentialStore, sessions storage.SessionStorage, recorder audit.Recorder) *WebAuthnService {
	return &WebAuthnService{
		webauthn:    wa,
		accounts:    accounts,
		credentials: credentials,
		sessions:    sessions,
		audit:       recorder,
	}
}

// GenerateSessionID returns an opaque 128-bit random identifier.
func GenerateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("failed to read random bytes: %v", err))
	}
	return hex.EncodeToString(b)
}

// loadAccount fetches an account with its authenticators attached, ready
// for a ceremony.
func (s *WebAuthnService) loadAccount(ctx context.Context, accountID string) (*models.Account, error) {
	account, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	authenticators, err := s.credentials.ListByUser(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load authenticators: %w", err)
	}
	account.Authenticators = authenticators

	return account, nil
}

// BeginAddPasskey starts a registration ceremony for an authenticated
// account adding a passkey.
func (s *WebAuthnService) BeginAddPasskey(r *http.Request, accountID string) (*protocol.CredentialCreation, error) {
	account, err := s.loadAccount(r.Context(), accountID)
	if err != nil {
		return nil, err
	}

	options, sessionData, err := s.webauthn.BeginRegistration(
		account,
		webauthn.WithAuthenticatorSelection(protocol.AuthenticatorSelection{
			RequireResidentKey: protocol.ResidentKeyRequired(),
			ResidentKey:        protocol.ResidentKeyRequirementRequired,
			UserVerification:   protocol.VerificationRequired,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to begin registration: %w", err)
	}

	session := &models.WebAuthnSession{
		UserID:    accountID,
		Data:      sessionData,
		ExpiresAt: time.Now().Add(ceremonyTTL),
	}

	if err := s.sessions.SaveWebAuthnSession(r.Context(), "register:"+accountID, session); err != nil {
		return nil, fmt.Errorf("failed to save webauthn session: %w", err)
	}

	return options, nil
}

// FinishAddPasskey completes a registration ceremony and persists the new
// authenticator record.
func (s *WebAuthnService) FinishAddPasskey(r *http.Request, accountID string) (*models.Authenticator, error) {
	ctx := r.Context()

	session, err := s.sessions.GetWebAuthnSession(ctx, "register:"+accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get webauthn session: %w", err)
	}
	if session == nil {
		return nil, errors.New("registration session not found")
	}

	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	credential, err := s.webauthn.FinishRegistration(account, *session.Data, r)
	if err != nil {
		return nil, fmt.Errorf("failed to finish registration: %w", err)
	}

	record := models.NewAuthenticator(uuid.NewString(), accountID, credential, time.Now())
	if err := s.credentials.Create(ctx, record); err != nil {
		return nil, err
	}

	if err := s.sessions.DeleteWebAuthnSession(ctx, "register:"+accountID); err != nil {
		return nil, fmt.Errorf("failed to delete webauthn session: %w", err)
	}

	s.recordEvent(ctx, audit.Event{
		Kind:         audit.EventPasskeyRegistered,
		UserID:       accountID,
		CredentialID: record.CredentialID,
		Detail:       record.DisplayLabel(),
	})

	return record, nil
}

// BeginLogin starts a discoverable credential login. No account is known
// yet; the returned login ID keys the ceremony session.
func (s *WebAuthnService) BeginLogin(r *http.Request) (*protocol.CredentialAssertion, string, error) {
	loginID := GenerateSessionID()

	options, sessionData, err := s.webauthn.BeginDiscoverableLogin()
	if err != nil {
		return nil, "", fmt.Errorf("failed to begin discoverable login: %w", err)
	}

	session := &models.WebAuthnSession{
		Data:      sessionData,
		ExpiresAt: time.Now().Add(ceremonyTTL),
	}

	if err := s.sessions.SaveWebAuthnSession(r.Context(), "login:"+loginID, session); err != nil {
		return nil, "", fmt.Errorf("failed to save webauthn session: %w", err)
	}

	return options, loginID, nil
}

// FinishLogin completes a discoverable login and reports the ceremony
// outcome for the authorizer. A verification failure is an outcome, not an
// error; errors are reserved for infrastructure problems.
func (s *WebAuthnService) FinishLogin(r *http.Request, loginID string) (CeremonyOutcome, *models.Account, error) {
	ctx := r.Context()

	session, err := s.sessions.GetWebAuthnSession(ctx, "login:"+loginID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get webauthn session: %w", err)
	}
	if session == nil {
		return nil, nil, errors.New("login session not found")
	}

	var account *models.Account
	credential, err := s.webauthn.FinishDiscoverableLogin(func(rawID, userHandle []byte) (webauthn.User, error) {
		found, err := s.loadAccount(ctx, string(userHandle))
		if err != nil {
			return nil, err
		}
		account = found
		return found, nil
	}, *session.Data, r)

	if deleteErr := s.sessions.DeleteWebAuthnSession(ctx, "login:"+loginID); deleteErr != nil {
		slog.Warn("Failed to delete webauthn session", "error", deleteErr)
	}

	if err != nil {
		return PasskeyVerificationError{Err: err}, nil, nil
	}
	if account == nil {
		return PasskeyVerificationError{Err: errors.New("account not found during discoverable login")}, nil, nil
	}

	return s.settleVerifiedLogin(ctx, account, credential), account, nil
}

// settleVerifiedLogin re-checks a verified credential against the stored
// records. The record can be deleted between the begin and finish halves of
// the ceremony, and a surviving record must belong to the resolved account.
func (s *WebAuthnService) settleVerifiedLogin(ctx context.Context, account *models.Account, credential *webauthn.Credential) CeremonyOutcome {
	credentialID := models.EncodeCredentialID(credential.ID)

	record, err := s.credentials.FindByCredentialID(ctx, credentialID)
	if err != nil {
		return PasskeyVerificationError{Err: fmt.Errorf("credential record lookup failed: %w", err)}
	}
	if record.UserID != account.ID {
		return PasskeyVerificationError{Err: errors.New("credential is not registered to the resolved account")}
	}

	if err := s.credentials.TouchLastUsed(ctx, credentialID, time.Now()); err != nil {
		slog.Warn("Failed to update credential last used", "credentialId", credentialID, "error", err)
	}

	s.recordEvent(ctx, audit.Event{
		Kind:         audit.EventPasskeyAuthenticated,
		UserID:       account.ID,
		CredentialID: credentialID,
	})

	return PasskeyOk{AccountID: account.ID}
}

// IssueSession creates a login session for an allowed ceremony decision.
// The session subject is the durable account ID.
func (s *WebAuthnService) IssueSession(ctx context.Context, account *models.Account) (*models.Session, error) {
	session := &models.Session{
		ID:        GenerateSessionID(),
		UserID:    account.ID,
		Email:     account.Email,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(sessionTTL),
	}

	if err := s.sessions.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

func (s *WebAuthnService) recordEvent(ctx context.Context, event audit.Event) {
	event.ID = uuid.NewString()
	event.Time = time.Now()
	if err := s.audit.Record(ctx, event); err != nil {
		slog.Warn("Failed to record audit event", "kind", event.Kind, "error", err)
	}
}

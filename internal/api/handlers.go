package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/omshejul/passkey-service/internal/auth"
	"github.com/omshejul/passkey-service/internal/models"
	"github.com/omshejul/passkey-service/internal/oauth"
	"github.com/omshejul/passkey-service/internal/passkeys"
	"github.com/omshejul/passkey-service/internal/storage"
)

// Server holds the HTTP handlers for the passkey administration API, the
// WebAuthn ceremony endpoints and the Google sign-in flow.
type Server struct {
	webauthn *auth.WebAuthnService
	oauth    *oauth.Service
	passkeys *passkeys.Service
	sessions storage.SessionStorage
}

func NewServer(webauthnService *auth.WebAuthnService, oauthService *oauth.Service, passkeyService *passkeys.Service, sessions storage.SessionStorage) *Server {
	return &Server{
		webauthn: webauthnService,
		oauth:    oauthService,
		passkeys: passkeyService,
		sessions: sessions,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// ListPasskeysHandler returns the authenticated user's passkeys.
// GET /api/passkeys
func (s *Server) ListPasskeysHandler(w http.ResponseWriter, r *http.Request) {
	userID := auth.AccountIDFromContext(r.Context())

	records, err := s.passkeys.List(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to list passkeys", "userId", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if records == nil {
		records = []*models.Authenticator{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"passkeys": records})
}

// RenamePasskeyHandler updates the label of an owned passkey.
// PATCH /api/passkeys?id=<recordId> body {"label": "..."}
func (s *Server) RenamePasskeyHandler(w http.ResponseWriter, r *http.Request) {
	userID := auth.AccountIDFromContext(r.Context())

	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Passkey ID is required")
		return
	}

	var body struct {
		Label any `json:"label"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	// The label must be string-typed; a missing key, an explicit null or
	// any other type is rejected before any state changes.
	label, ok := body.Label.(string)
	if !ok {
		writeError(w, http.StatusBadRequest, "Label must be a string")
		return
	}

	record, err := s.passkeys.Rename(r.Context(), userID, id, label)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Passkey not found")
		return
	}
	if err != nil {
		slog.Error("Failed to rename passkey", "userId", userID, "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "passkey": record})
}

// DeletePasskeyHandler deletes an owned passkey, unless it is the last one.
// DELETE /api/passkeys?id=<recordId>
func (s *Server) DeletePasskeyHandler(w http.ResponseWriter, r *http.Request) {
	userID := auth.AccountIDFromContext(r.Context())

	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Passkey ID is required")
		return
	}

	err := s.passkeys.Remove(r.Context(), userID, id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "Passkey not found")
		return
	case errors.Is(err, storage.ErrLastCredential):
		writeError(w, http.StatusBadRequest, "Cannot delete your last passkey. Add another passkey first.")
		return
	case err != nil:
		slog.Error("Failed to delete passkey", "userId", userID, "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// RegisterBeginHandler starts an add-passkey ceremony. Account creation is
// restricted to the OAuth path, so an unauthenticated attempt is rejected
// with a redirect to the error page rather than a ceremony.
// POST /api/v1/register/begin
func (s *Server) RegisterBeginHandler(w http.ResponseWriter, r *http.Request) {
	accountID := auth.AccountIDFromContext(r.Context())
	if accountID == "" {
		decision := auth.Decide(auth.PasskeyNewUserAttempt{})
		writeJSON(w, http.StatusForbidden, map[string]string{
			"error":    "New accounts must sign up with Google",
			"redirect": auth.ErrorRedirectURL(decision.RedirectCode),
		})
		return
	}

	options, err := s.webauthn.BeginAddPasskey(r, accountID)
	if err != nil {
		slog.Error("Failed to begin registration", "userId", accountID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, options)
}

// RegisterFinishHandler completes an add-passkey ceremony.
// POST /api/v1/register/finish
func (s *Server) RegisterFinishHandler(w http.ResponseWriter, r *http.Request) {
	accountID := auth.AccountIDFromContext(r.Context())
	if accountID == "" {
		decision := auth.Decide(auth.PasskeyNewUserAttempt{})
		writeJSON(w, http.StatusForbidden, map[string]string{
			"error":    "New accounts must sign up with Google",
			"redirect": auth.ErrorRedirectURL(decision.RedirectCode),
		})
		return
	}

	record, err := s.webauthn.FinishAddPasskey(r, accountID)
	if errors.Is(err, storage.ErrDuplicateCredential) {
		writeError(w, http.StatusConflict, "Passkey already registered")
		return
	}
	if err != nil {
		slog.Error("Failed to finish registration", "userId", accountID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "registered", "passkey": record})
}

// LoginBeginHandler starts a discoverable passkey login.
// POST /api/v1/login/begin
func (s *Server) LoginBeginHandler(w http.ResponseWriter, r *http.Request) {
	options, loginID, err := s.webauthn.BeginLogin(r)
	if err != nil {
		slog.Error("Failed to begin login", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"publicKey": options.Response,
		"loginId":   loginID,
	})
}

// LoginFinishHandler completes a discoverable passkey login and runs the
// ceremony outcome through the authorizer before issuing a session. A
// failed verification redirects to the error page, never surfaces the raw
// verifier error.
// POST /api/v1/login/finish
func (s *Server) LoginFinishHandler(w http.ResponseWriter, r *http.Request) {
	loginID := r.URL.Query().Get("loginId")
	if loginID == "" {
		writeError(w, http.StatusBadRequest, "loginId required")
		return
	}

	outcome, account, err := s.webauthn.FinishLogin(r, loginID)
	if err != nil {
		slog.Error("Failed to finish login", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	decision := auth.Decide(outcome)
	if !decision.Allow {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"error":    "Authentication failed",
			"redirect": auth.ErrorRedirectURL(decision.RedirectCode),
		})
		return
	}

	session, err := s.webauthn.IssueSession(r.Context(), account)
	if err != nil {
		slog.Error("Failed to issue session", "userId", decision.Subject, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	setSessionCookie(w, session.ID, session.ExpiresAt)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "authenticated",
		"sessionId": session.ID,
		"userId":    decision.Subject,
	})
}

// GoogleLoginHandler redirects the browser to Google's authorization page.
// GET /auth/google/login
func (s *Server) GoogleLoginHandler(w http.ResponseWriter, r *http.Request) {
	loginURL, err := s.oauth.BeginLogin(r.Context())
	if err != nil {
		slog.Error("Failed to begin google login", "error", err)
		http.Redirect(w, r, auth.ErrorRedirectURL(auth.CodeConfiguration), http.StatusFound)
		return
	}

	http.Redirect(w, r, loginURL, http.StatusFound)
}

// GoogleCallbackHandler completes the Google sign-in. A user who backed out
// at the consent screen is sent home with no error state.
// GET /auth/google/callback
func (s *Server) GoogleCallbackHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if provErr := query.Get("error"); provErr != "" {
		if provErr == "access_denied" {
			// User backed out at the consent screen; benign.
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		slog.Warn("Google authorization failed", "error", provErr)
		http.Redirect(w, r, auth.ErrorRedirectURL(auth.CodeConfiguration), http.StatusFound)
		return
	}

	account, err := s.oauth.CompleteLogin(r.Context(), query.Get("state"), query.Get("code"))
	if err != nil {
		slog.Error("Failed to complete google login", "error", err)
		http.Redirect(w, r, auth.ErrorRedirectURL(auth.CodeConfiguration), http.StatusFound)
		return
	}

	decision := auth.Decide(auth.OAuthSuccess{AccountID: account.ID})
	if !decision.Allow {
		http.Redirect(w, r, auth.ErrorRedirectURL(decision.RedirectCode), http.StatusFound)
		return
	}

	session, err := s.webauthn.IssueSession(r.Context(), account)
	if err != nil {
		slog.Error("Failed to issue session", "userId", decision.Subject, "error", err)
		http.Redirect(w, r, auth.ErrorRedirectURL(auth.CodeConfiguration), http.StatusFound)
		return
	}

	setSessionCookie(w, session.ID, session.ExpiresAt)
	http.Redirect(w, r, "/", http.StatusFound)
}

// ValidateSessionHandler reports whether a session is valid.
// GET /api/v1/validate/{sessionId}
func (s *Server) ValidateSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionId")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "sessionId required")
		return
	}

	session, err := s.sessions.GetSession(r.Context(), sessionID)
	if err != nil {
		slog.Error("Failed to get session", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if session == nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"valid":   true,
		"userId":  session.UserID,
		"email":   session.Email,
		"expires": session.ExpiresAt,
	})
}

// UserSessionsHandler lists the authenticated user's active sessions.
// GET /api/v1/user/sessions
func (s *Server) UserSessionsHandler(w http.ResponseWriter, r *http.Request) {
	userID := auth.AccountIDFromContext(r.Context())

	sessions, err := s.sessions.GetUserSessions(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to list sessions", "userId", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// LogoutHandler deletes the current session.
// POST /api/v1/logout
func (s *Server) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := sessionIDFromRequest(r)
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "No session")
		return
	}

	if err := s.sessions.DeleteSession(r.Context(), sessionID); err != nil {
		slog.Error("Failed to delete session", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// HealthHandler is the liveness endpoint.
// GET /health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Package ui renders the auth error page the authorizer redirects to.
package ui

import (
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/omshejul/passkey-service/internal/auth"
)

//go:embed templates/*.html
var templatesFS embed.FS

type ErrorPageHandlers struct {
	templates *template.Template
}

func NewErrorPageHandlers() (*ErrorPageHandlers, error) {
	templates, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded templates: %w", err)
	}

	return &ErrorPageHandlers{
		templates: templates,
	}, nil
}

type errorCopy struct {
	Title   string
	Message string
}

// ErrorMessage maps an error code from the authorizer's redirect contract
// to display copy. Unknown codes get the generic message.
func ErrorMessage(code string) (string, string) {
	switch code {
	case auth.CodePasskeyNotFound:
		return "Passkey Not Found",
			"The passkey you're trying to use is no longer registered. This can happen if the passkey was deleted. Please try signing in with Google instead."
	case auth.CodePasskeyNewUserNotAllowed:
		return "New User Registration",
			"New users can only create accounts using Google OAuth. Please sign up with Google to create your account."
	case auth.CodeConfiguration:
		return "Authentication Error",
			"There was a problem with the authentication configuration. Please try again or contact support if the problem persists."
	default:
		return "Authentication Error",
			"An error occurred during authentication. Please try again or contact support if the problem persists."
	}
}

// AuthErrorHandler renders the error page for a rejected ceremony.
// GET /auth-error?error=<code>
func (h *ErrorPageHandlers) AuthErrorHandler(w http.ResponseWriter, r *http.Request) {
	title, message := ErrorMessage(r.URL.Query().Get("error"))

	w.Header().Set("Content-Type", "text/html")
	if err := h.templates.ExecuteTemplate(w, "auth_error.html", errorCopy{Title: title, Message: message}); err != nil {
		slog.Error("Failed to render auth error template", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

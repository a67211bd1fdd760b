package models

import (
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
)

// Session is an issued login session. UserID is the durable account ID, so
// downstream authorization keys on a stable identifier rather than anything
// provider-specific.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// WebAuthnSession holds in-flight ceremony state between the begin and
// finish halves of a registration or login exchange.
type WebAuthnSession struct {
	UserID    string                `json:"userId,omitempty"`
	Data      *webauthn.SessionData `json:"data"`
	ExpiresAt time.Time             `json:"expiresAt"`
}

// Package audit records credential lifecycle events to a configurable sink.
// Recording failures are reported to the caller but must never fail the
// request that triggered the event.
package audit

import (
	"context"
	"time"
)

// Event kinds.
const (
	EventPasskeyRegistered    = "passkey.registered"
	EventPasskeyRenamed       = "passkey.renamed"
	EventPasskeyDeleted       = "passkey.deleted"
	EventPasskeyAuthenticated = "passkey.authenticated"
	EventOAuthSignIn          = "oauth.signin"
	EventAccountCreated       = "account.created"
	EventAccountLinked        = "account.linked"
)

// Event is one recorded lifecycle event.
type Event struct {
	ID           string    `json:"id"`
	Time         time.Time `json:"time"`
	Kind         string    `json:"kind"`
	UserID       string    `json:"userId"`
	CredentialID string    `json:"credentialId,omitempty"`
	Detail       string    `json:"detail,omitempty"`
}

type Recorder interface {
	Record(ctx context.Context, event Event) error
}

// Noop discards all events.
type Noop struct{}

func (Noop) Record(ctx context.Context, event Event) error {
	return nil
}

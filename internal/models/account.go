package models

import (
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
)

// Account is a durable user account. Passkeys and OAuth identities both
// resolve to an Account; sessions carry the account ID as their subject.
type Account struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Authenticators are populated by the caller when the WebAuthn
	// ceremony needs them. They are persisted separately.
	Authenticators []*Authenticator `json:"-"`
}

// OAuthLink ties an external identity provider account to an Account.
type OAuthLink struct {
	Provider          string    `json:"provider"`
	ProviderAccountID string    `json:"providerAccountId"`
	UserID            string    `json:"userId"`
	CreatedAt         time.Time `json:"createdAt"`
}

func (a *Account) WebAuthnID() []byte {
	return []byte(a.ID)
}

func (a *Account) WebAuthnName() string {
	return a.Email
}

func (a *Account) WebAuthnDisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.Email
}

func (a *Account) WebAuthnCredentials() []webauthn.Credential {
	creds := make([]webauthn.Credential, 0, len(a.Authenticators))
	for _, auth := range a.Authenticators {
		creds = append(creds, auth.Credential)
	}
	return creds
}

func (a *Account) WebAuthnIcon() string {
	return ""
}

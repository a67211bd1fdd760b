package models

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// Credential device types as reported by the authenticator flags.
const (
	DeviceTypeSingleDevice = "singleDevice"
	DeviceTypeMultiDevice  = "multiDevice"
)

// Authenticator is one registered passkey. The WebAuthn ceremony material
// lives in Credential; the rest is display and lifecycle metadata.
type Authenticator struct {
	ID                   string     `json:"id"`
	UserID               string     `json:"userId"`
	CredentialID         string     `json:"credentialId"`
	CredentialDeviceType string     `json:"credentialDeviceType"`
	CredentialBackedUp   bool       `json:"credentialBackedUp"`
	Transports           string     `json:"transports,omitempty"`
	Label                string     `json:"label,omitempty"`
	LastUsed             *time.Time `json:"lastUsed,omitempty"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`

	// Credential is the full stored WebAuthn credential. Never exposed
	// over the API.
	Credential webauthn.Credential `json:"-"`
}

// EncodeCredentialID renders a raw WebAuthn credential ID the way the
// browser presents it: base64url without padding.
func EncodeCredentialID(rawID []byte) string {
	return base64.RawURLEncoding.EncodeToString(rawID)
}

// NewAuthenticator builds a record for a credential produced by a
// registration ceremony. Device type and backup state come from the
// credential flags reported by the authenticator.
func NewAuthenticator(id, userID string, cred *webauthn.Credential, now time.Time) *Authenticator {
	deviceType := DeviceTypeSingleDevice
	if cred.Flags.BackupEligible {
		deviceType = DeviceTypeMultiDevice
	}

	transports := make([]string, 0, len(cred.Transport))
	for _, t := range cred.Transport {
		transports = append(transports, string(t))
	}

	return &Authenticator{
		ID:                   id,
		UserID:               userID,
		CredentialID:         EncodeCredentialID(cred.ID),
		CredentialDeviceType: deviceType,
		CredentialBackedUp:   cred.Flags.BackupState,
		Transports:           strings.Join(transports, ","),
		CreatedAt:            now,
		UpdatedAt:            now,
		Credential:           *cred,
	}
}

// DisplayLabel returns the user-assigned label, or a derived device
// description when no label has been set.
func (a *Authenticator) DisplayLabel() string {
	if a.Label != "" {
		return a.Label
	}
	return a.DeviceDescription()
}

// DeviceDescription derives a human-readable description from the stored
// credential metadata.
func (a *Authenticator) DeviceDescription() string {
	if a.CredentialDeviceType == DeviceTypeMultiDevice {
		if a.CredentialBackedUp {
			return "Synced passkey"
		}
		return "Multi-device passkey"
	}

	for _, t := range strings.Split(a.Transports, ",") {
		switch protocol.AuthenticatorTransport(t) {
		case protocol.USB, protocol.NFC, protocol.BLE:
			return "Security key"
		case protocol.Internal:
			return "This device"
		}
	}
	return "Passkey"
}

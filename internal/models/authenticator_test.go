package models

import (
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/stretchr/testify/assert"
)

func TestNewAuthenticatorDerivesDeviceType(t *testing.T) {
	now := time.Now()

	synced := NewAuthenticator("id-1", "user-1", &webauthn.Credential{
		ID:    []byte{0x01, 0x02, 0x03},
		Flags: webauthn.CredentialFlags{BackupEligible: true, BackupState: true},
	}, now)
	assert.Equal(t, DeviceTypeMultiDevice, synced.CredentialDeviceType)
	assert.True(t, synced.CredentialBackedUp)

	bound := NewAuthenticator("id-2", "user-1", &webauthn.Credential{
		ID: []byte{0x04, 0x05},
	}, now)
	assert.Equal(t, DeviceTypeSingleDevice, bound.CredentialDeviceType)
	assert.False(t, bound.CredentialBackedUp)
}

func TestNewAuthenticatorEncodesCredentialID(t *testing.T) {
	record := NewAuthenticator("id-1", "user-1", &webauthn.Credential{
		ID: []byte{0xff, 0xfe, 0xfd},
	}, time.Now())

	// base64url, no padding.
	assert.Equal(t, "__79", record.CredentialID)
}

func TestNewAuthenticatorJoinsTransports(t *testing.T) {
	record := NewAuthenticator("id-1", "user-1", &webauthn.Credential{
		ID:        []byte{0x01},
		Transport: []protocol.AuthenticatorTransport{protocol.Internal, protocol.Hybrid},
	}, time.Now())

	assert.Equal(t, "internal,hybrid", record.Transports)
}

func TestDisplayLabel(t *testing.T) {
	record := &Authenticator{Label: "Work laptop"}
	assert.Equal(t, "Work laptop", record.DisplayLabel())

	record.Label = ""
	record.CredentialDeviceType = DeviceTypeMultiDevice
	record.CredentialBackedUp = true
	assert.Equal(t, "Synced passkey", record.DisplayLabel())
}

func TestDeviceDescription(t *testing.T) {
	cases := []struct {
		name   string
		record Authenticator
		want   string
	}{
		{"synced", Authenticator{CredentialDeviceType: DeviceTypeMultiDevice, CredentialBackedUp: true}, "Synced passkey"},
		{"multi device not backed up", Authenticator{CredentialDeviceType: DeviceTypeMultiDevice}, "Multi-device passkey"},
		{"security key", Authenticator{CredentialDeviceType: DeviceTypeSingleDevice, Transports: "usb"}, "Security key"},
		{"platform", Authenticator{CredentialDeviceType: DeviceTypeSingleDevice, Transports: "internal"}, "This device"},
		{"unknown transport", Authenticator{CredentialDeviceType: DeviceTypeSingleDevice}, "Passkey"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.record.DeviceDescription())
		})
	}
}

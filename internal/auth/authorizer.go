package auth

// Error codes understood by the auth error page.
const (
	CodePasskeyNotFound          = "passkey-not-found"
	CodePasskeyNewUserNotAllowed = "passkey-new-user-not-allowed"
	CodeConfiguration            = "Configuration"
)

// CeremonyOutcome is the result of a sign-in or registration ceremony,
// before any session is issued. Exactly one variant is produced per
// ceremony.
type CeremonyOutcome interface {
	ceremonyOutcome()
}

// OAuthSuccess is a completed OAuth sign-in, including sign-ins whose email
// already belongs to an existing account (account linking is permitted).
type OAuthSuccess struct {
	AccountID string
}

// PasskeyNewUserAttempt is a passkey ceremony that would create a brand-new
// account. Account creation is restricted to the OAuth path.
type PasskeyNewUserAttempt struct{}

// PasskeyVerificationError is a passkey ceremony the verifier rejected
// (credential unknown or invalid).
type PasskeyVerificationError struct {
	Err error
}

// PasskeyOk is a verified passkey sign-in for an existing account.
type PasskeyOk struct {
	AccountID string
}

func (OAuthSuccess) ceremonyOutcome()             {}
func (PasskeyNewUserAttempt) ceremonyOutcome()    {}
func (PasskeyVerificationError) ceremonyOutcome() {}
func (PasskeyOk) ceremonyOutcome()                {}

// Decision is the authorizer verdict. When Allow is set, Subject carries the
// durable account ID the session must be issued for. Otherwise RedirectCode
// names the error state the browser is sent to.
type Decision struct {
	Allow        bool
	Subject      string
	RedirectCode string
}

// Decide is the gatekeeping decision evaluated once per ceremony, before
// session issuance. It performs no ceremony cryptography.
func Decide(outcome CeremonyOutcome) Decision {
	switch o := outcome.(type) {
	case OAuthSuccess:
		return Decision{Allow: true, Subject: o.AccountID}
	case PasskeyNewUserAttempt:
		return Decision{RedirectCode: CodePasskeyNewUserNotAllowed}
	case PasskeyVerificationError:
		return Decision{RedirectCode: CodePasskeyNotFound}
	case PasskeyOk:
		return Decision{Allow: true, Subject: o.AccountID}
	default:
		return Decision{RedirectCode: CodeConfiguration}
	}
}

// ErrorRedirectURL builds the error page location for a rejected ceremony.
func ErrorRedirectURL(code string) string {
	return "/auth-error?error=" + code
}

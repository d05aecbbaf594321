package auth

import (
	"github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidCredentials = "invalid_credentials"
	TextCodeAccountDisabled    = "account_disabled"
	TextCodeTokenInvalid       = "token_invalid"
	TextCodeTokenExpired       = "token_expired"
	TextCodeTokenMalformed     = "token_malformed"
	TextCodeImmutableClaim     = "immutable_claim_mutation"
	TextCodeUserExists         = "user_already_exists"
)

// ErrInvalidCredentials is returned for a bad username or password. The two
// cases are deliberately indistinguishable so responses leak nothing about
// whether a username exists.
var ErrInvalidCredentials = errors.New("Invalid username or password", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrAccountDisabled is returned when credentials check out but the account
// is marked inactive.
var ErrAccountDisabled = errors.New("User account is disabled", errors.CategoryAuthz).
	WithTextCode(TextCodeAccountDisabled).
	WithCode(errors.CodeForbidden)

// ErrTokenInvalid is the single token failure callers see; missing, malformed,
// expired, and bad-signature tokens all collapse to it.
var ErrTokenInvalid = errors.New("Invalid or expired token", errors.CategoryAuth).
	WithTextCode(TextCodeTokenInvalid).
	WithCode(errors.CodeUnauthorized)

// ErrTokenExpired wraps ErrTokenInvalid for server-side logging. It carries
// the same code and message so the HTTP surface stays uniform.
var ErrTokenExpired = errors.New("Invalid or expired token", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is the internal variant for envelopes that never parsed.
var ErrTokenMalformed = errors.New("Invalid or expired token", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrImmutableClaimMutation is returned when a claims decorator touches a
// protected claim.
var ErrImmutableClaimMutation = errors.New("claims decorator mutated a protected claim", errors.CategoryInternal).
	WithTextCode(TextCodeImmutableClaim).
	WithCode(errors.CodeInternal)

// ErrUserAlreadyExists is returned by the create-user command on a duplicate username.
var ErrUserAlreadyExists = errors.New("user already exists", errors.CategoryConflict).
	WithTextCode(TextCodeUserExists).
	WithCode(errors.CodeConflict)

// IsCredentialError reports whether err is the invalid-credentials outcome.
func IsCredentialError(err error) bool {
	return hasTextCode(err, TextCodeInvalidCredentials)
}

// IsAccountDisabledError reports whether err is the disabled-account outcome.
func IsAccountDisabledError(err error) bool {
	return hasTextCode(err, TextCodeAccountDisabled)
}

// IsTokenError reports whether err is any token validation failure.
func IsTokenError(err error) bool {
	return hasTextCode(err, TextCodeTokenInvalid) ||
		hasTextCode(err, TextCodeTokenExpired) ||
		hasTextCode(err, TextCodeTokenMalformed)
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var rich *errors.Error
	if errors.As(err, &rich) {
		return rich.TextCode == code
	}
	return false
}

// wrapInternal tags unexpected faults (store unreachable, signing failure)
// so the HTTP layer surfaces them as a generic 500.
func wrapInternal(err error, msg string) error {
	return errors.Wrap(err, errors.CategoryInternal, msg).
		WithCode(errors.CodeInternal)
}

package auth

import (
	"crypto/subtle"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// bcryptCost matches the cost the original deployment used for stored hashes.
const bcryptCost = 12

// CredentialKind is the closed set of stored credential formats.
type CredentialKind int

const (
	// CredentialHashed is a bcrypt hash verified with a constant-time compare.
	CredentialHashed CredentialKind = iota
	// CredentialPlaintext is a legacy unhashed value. See VerifyCredential.
	CredentialPlaintext
)

func (k CredentialKind) String() string {
	if k == CredentialPlaintext {
		return "plaintext"
	}
	return "hashed"
}

// DetectCredentialKind sniffs the stored value's format. Anything that does
// not look like a bcrypt hash is treated as a legacy plaintext credential.
func DetectCredentialKind(stored string) CredentialKind {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(stored, prefix) {
			return CredentialHashed
		}
	}
	return CredentialPlaintext
}

// VerifyCredential checks the submitted password against the stored value,
// dispatching on the detected format. Both paths compare in constant time.
// The plaintext path exists only for backward compatibility with pre-existing
// unhashed records; callers must log and audit any match through it.
func VerifyCredential(password, stored string) (CredentialKind, bool) {
	kind := DetectCredentialKind(stored)
	switch kind {
	case CredentialHashed:
		return kind, bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
	default:
		return kind, subtle.ConstantTimeCompare([]byte(stored), []byte(password)) == 1
	}
}

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty", errors.CategoryValidation).
			WithCode(errors.CodeBadRequest)
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to hash password")
	}
	return string(h), nil
}

// RandomPasswordHash is a temporary password
func RandomPasswordHash() string {
	pwd := uuid.New()

	h, err := HashPassword(pwd.String())
	if err != nil {
		return RandomPasswordHash()
	}

	return h
}

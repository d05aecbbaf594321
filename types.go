package auth

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Authenticator holds methods to deal with authentication
type Authenticator interface {
	VerifyLogin(ctx context.Context, identifier, password string) (*ResolvedIdentity, error)
	Login(ctx context.Context, identifier, password string) (string, *ResolvedIdentity, error)
	IdentityFromToken(ctx context.Context, token string) (*ResolvedIdentity, error)
	TokenService() TokenService
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetTokenExpiration() int
	GetIssuer() string
	GetAudience() []string
}

// TokenService signs and validates session tokens
type TokenService interface {
	Generate(identity *ResolvedIdentity) (string, error)
	SignClaims(claims *JWTClaims) (string, error)
	Validate(tokenString string) (AuthClaims, error)
}

// UserStore ensures we have a store to retrieve user records.
// Lookups that find no record return a not-found error distinguishable
// from transport failure via errors.IsNotFound.
type UserStore interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
}

// RoleStore resolves role references to role records. The ref may be a
// numeric id, an ObjectID, or the hex/decimal string form of either.
type RoleStore interface {
	FindByRef(ctx context.Context, ref any) (*Role, error)
}

// UserWriter is the store surface the create-user command needs.
type UserWriter interface {
	CountByUsername(ctx context.Context, username string) (int64, error)
	Insert(ctx context.Context, user *User) error
}

// SequenceAllocator hands out auto-incrementing integer ids.
type SequenceAllocator interface {
	Next(ctx context.Context, name string) (int64, error)
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

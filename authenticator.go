package auth

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
)

// Auther verifies credentials against the user store and issues session
// tokens for verified identities.
type Auther struct {
	users           UserStore
	roles           RoleStore
	signingKey      []byte
	tokenExpiration int
	issuer          string
	audience        []string
	logger          Logger
	tokenService    TokenService
	tokenValidator  TokenValidator
	activitySink    ActivitySink
	claimsDecorator ClaimsDecorator
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(users UserStore, roles RoleStore, opts Config) *Auther {
	tokenService := NewTokenService(
		[]byte(opts.GetSigningKey()),
		opts.GetTokenExpiration(),
		opts.GetIssuer(),
		opts.GetAudience(),
		defLogger{},
	)

	return &Auther{
		users:           users,
		roles:           roles,
		signingKey:      []byte(opts.GetSigningKey()),
		tokenExpiration: opts.GetTokenExpiration(),
		audience:        opts.GetAudience(),
		issuer:          opts.GetIssuer(),
		logger:          defLogger{},
		tokenService:    tokenService,
		activitySink:    noopActivitySink{},
		claimsDecorator: noopClaimsDecorator{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = logger
	// Update the TokenService logger as well
	s.tokenService = NewTokenService(
		s.signingKey,
		s.tokenExpiration,
		s.issuer,
		s.audience,
		logger,
	)
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithClaimsDecorator configures a ClaimsDecorator for enriching JWTs.
func (s *Auther) WithClaimsDecorator(decorator ClaimsDecorator) *Auther {
	s.claimsDecorator = normalizeClaimsDecorator(decorator)
	return s
}

// WithTokenValidator sets a custom token validator for externally issued tokens.
func (s *Auther) WithTokenValidator(validator TokenValidator) *Auther {
	s.tokenValidator = validator
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// VerifyLogin locates the user record for identifier, checks the submitted
// password against the stored credential, enforces the active flag, and
// resolves the final role. The ordered fallback rules live on the User model;
// this method applies them. A wrong password and an unknown username both
// surface as ErrInvalidCredentials so responses cannot enumerate users.
func (s *Auther) VerifyLogin(ctx context.Context, identifier, password string) (*ResolvedIdentity, error) {
	user, err := s.lookupUser(ctx, identifier)
	if err != nil {
		if errors.IsNotFound(err) {
			s.emitAuthEvent(ctx, ActivityEventLoginFailure, identifier, "", map[string]any{
				"reason": "user_not_found",
			})
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("VerifyLogin user lookup error", "error", err)
		return nil, wrapInternal(err, "failed to retrieve user during verification")
	}

	stored, ok := user.Credential()
	if !ok {
		s.logger.Warn("VerifyLogin user record has no credential", "username", user.Username)
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, user.Username, user.Identifier(), map[string]any{
			"reason": "missing_credential",
		})
		return nil, ErrInvalidCredentials
	}

	kind, match := VerifyCredential(password, stored)
	if !match {
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, user.Username, user.Identifier(), map[string]any{
			"reason": "credential_mismatch",
		})
		return nil, ErrInvalidCredentials
	}

	if kind == CredentialPlaintext {
		// Legacy compatibility path. Accepted, but never silently.
		s.logger.Warn("VerifyLogin matched a legacy plaintext credential", "username", user.Username)
		s.emitAuthEvent(ctx, ActivityEventLegacyCredential, user.Username, user.Identifier(), map[string]any{
			"credential_kind": kind.String(),
		})
	}

	if !user.ActiveState() {
		s.logger.Warn("VerifyLogin blocked inactive account", "username", user.Username)
		s.emitAuthEvent(ctx, ActivityEventLoginDisabled, user.Username, user.Identifier(), nil)
		return nil, ErrAccountDisabled
	}

	identity, err := s.resolveIdentity(ctx, user)
	if err != nil {
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, identity.Username, identity.Ref, map[string]any{
		"role": identity.Role,
	})

	return identity, nil
}

// Login verifies credentials and issues a signed session token on success.
func (s *Auther) Login(ctx context.Context, identifier, password string) (string, *ResolvedIdentity, error) {
	identity, err := s.VerifyLogin(ctx, identifier, password)
	if err != nil {
		return "", nil, err
	}

	token, err := s.generateJWT(ctx, identity)
	if err != nil {
		s.logger.Error("Login token generation failed", "error", err)
		return "", nil, err
	}

	return token, identity, nil
}

// IdentityFromToken validates a session token and re-fetches the user record
// keyed by the token subject. A valid token whose subject no longer resolves
// reports the same token error as an invalid one.
func (s *Auther) IdentityFromToken(ctx context.Context, token string) (*ResolvedIdentity, error) {
	validator := s.tokenValidator
	if validator == nil {
		validator = s.tokenService
	}

	claims, err := validator.Validate(token)
	if err != nil {
		s.logger.Error("IdentityFromToken validation failed", "error", err)
		return nil, err
	}

	user, err := s.users.FindByUsername(ctx, claims.Subject())
	if err != nil {
		if errors.IsNotFound(err) {
			s.logger.Warn("IdentityFromToken subject no longer resolves", "subject", claims.Subject())
			return nil, ErrTokenInvalid
		}
		return nil, wrapInternal(err, "failed to retrieve user for token subject")
	}

	return s.resolveIdentity(ctx, user)
}

// lookupUser finds a user by exact username match, falling back to the email
// field with the same input. First match wins; results are never merged.
func (s *Auther) lookupUser(ctx context.Context, identifier string) (*User, error) {
	user, err := s.users.FindByUsername(ctx, identifier)
	if err == nil {
		return user, nil
	}
	if !errors.IsNotFound(err) {
		return nil, err
	}

	return s.users.FindByEmail(ctx, identifier)
}

// resolveIdentity applies the role, admin-flag, and canonical-id rules to a
// located user record. It never inspects credentials.
func (s *Auther) resolveIdentity(ctx context.Context, user *User) (*ResolvedIdentity, error) {
	role, err := s.resolveRole(ctx, user)
	if err != nil {
		return nil, err
	}

	ref := user.Identifier()

	return &ResolvedIdentity{
		ID:         CanonicalUserID(ref),
		Ref:        ref,
		Username:   user.Username,
		FullName:   user.DisplayName(),
		Position:   stringOrEmpty(user.Position),
		Department: stringOrEmpty(user.Department),
		Role:       role,
		IsAdmin:    strings.EqualFold(role, RoleAdmin) || user.AdminFlag(),
		CreatedAt:  isoTimestamp(user.CreatedAt),
		UpdatedAt:  isoTimestamp(user.UpdatedAt),
	}, nil
}

// resolveRole follows a role reference when present, falls back to the inline
// role field, and defaults to RoleDefault. A reference that resolves to no
// role document falls through; a store fault does not.
func (s *Auther) resolveRole(ctx context.Context, user *User) (string, error) {
	if ref, ok := user.RoleRef(); ok && s.roles != nil {
		role, err := s.roles.FindByRef(ctx, ref)
		if err == nil && role != nil && role.Name != "" {
			return role.Name, nil
		}
		if err != nil && !errors.IsNotFound(err) {
			s.logger.Error("resolveRole reference lookup failed", "error", err)
			return "", wrapInternal(err, "failed to resolve role reference")
		}
	}

	if inline := user.InlineRole(); inline != "" {
		return inline, nil
	}

	return RoleDefault, nil
}

func (s *Auther) generateJWT(ctx context.Context, identity *ResolvedIdentity) (string, error) {
	claims := s.newJWTClaims(identity)
	snapshot := captureImmutableClaims(claims)

	decorator := normalizeClaimsDecorator(s.claimsDecorator)
	if err := decorator.Decorate(ctx, identity, claims); err != nil {
		s.logger.Error("claims decorator failed", "error", err)
		return "", err
	}

	if err := snapshot.validate(claims); err != nil {
		s.logger.Error("claims decorator mutated immutable claims", "error", err)
		return "", err
	}

	return s.tokenService.SignClaims(claims)
}

func (s *Auther) newJWTClaims(identity *ResolvedIdentity) *JWTClaims {
	return newSessionClaims(identity, s.issuer, s.audience, s.tokenExpiration)
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, username, userID string, metadata map[string]any) {
	sink := normalizeActivitySink(s.activitySink)
	event := ActivityEvent{
		EventType: eventType,
		Username:  username,
		UserID:    userID,
		Metadata:  metadata,
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error", "error", err)
	}
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var _ Authenticator = (*Auther)(nil)

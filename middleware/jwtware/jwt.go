// Package jwtware provides a fiber middleware that guards routes behind a
// bearer session token. Validated claims are stored in fiber locals and the
// request's user context so both handlers and downstream services can read
// them.
package jwtware

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
)

var (
	defaultTokenLookup = "header:" + fiber.HeaderAuthorization

	// ErrJWTMissingOrMalformed is reported when no usable token is present
	// in the request.
	ErrJWTMissingOrMalformed = errors.New("missing or malformed JWT")
)

// AuthClaims mirrors the claims interface from the auth package without
// creating an import cycle.
type AuthClaims interface {
	Subject() string
	UserID() string
	Role() string
}

// TokenValidator validates raw tokens. It mirrors TokenService.Validate from
// the auth package.
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// TokenValidatorFunc adapts a function into a TokenValidator.
type TokenValidatorFunc func(tokenString string) (AuthClaims, error)

// Validate satisfies the TokenValidator interface.
func (f TokenValidatorFunc) Validate(tokenString string) (AuthClaims, error) {
	return f(tokenString)
}

type Config struct {
	// Filter defines a function to skip the middleware.
	Filter func(*fiber.Ctx) bool
	// SuccessHandler runs after a token has been validated. Defaults to Next.
	SuccessHandler fiber.Handler
	// ErrorHandler runs when extraction or validation fails. The default
	// collapses every failure to a 401 with a uniform message.
	ErrorHandler func(*fiber.Ctx, error) error
	// ContextKey is the fiber locals key claims are stored under.
	ContextKey string
	// TokenLookup is a "<source>:<name>" list, e.g. "header:Authorization",
	// "query:token", "cookie:jwt". Sources are tried in order.
	TokenLookup string
	// AuthScheme is the scheme stripped from header values. Only used with
	// the header source.
	AuthScheme string
	// TokenValidator is required for token validation.
	TokenValidator TokenValidator
	// ContextEnricher is an optional function to propagate claims to the
	// standard Go context. If provided, it is called after successful
	// validation and the result replaces the request's user context.
	ContextEnricher func(ctx context.Context, claims AuthClaims) context.Context
}

// New returns a fiber handler enforcing bearer-token authentication.
func New(config ...Config) fiber.Handler {
	cfg := GetDefaultConfig(config...)
	extractors := cfg.getExtractors()

	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		raw, err := extractRawToken(c, extractors)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		claims, err := cfg.TokenValidator.Validate(raw)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		c.Locals(cfg.ContextKey, claims)

		if cfg.ContextEnricher != nil {
			c.SetUserContext(cfg.ContextEnricher(c.UserContext(), claims))
		}

		return cfg.SuccessHandler(c)
	}
}

// GetDefaultConfig fills in defaults for any missing config fields.
func GetDefaultConfig(config ...Config) Config {
	var cfg Config
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "claims"
	}

	if cfg.TokenValidator == nil {
		panic("jwtware: TokenValidator is required")
	}

	return cfg
}

func defaultErrorHandler(c *fiber.Ctx, _ error) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"success": false,
		"message": "Invalid or expired token",
	})
}

type tokenExtractor func(*fiber.Ctx) (string, error)

func (cfg Config) getExtractors() []tokenExtractor {
	sources := strings.Split(cfg.TokenLookup, ",")
	extractors := make([]tokenExtractor, 0, len(sources))

	for _, source := range sources {
		parts := strings.SplitN(strings.TrimSpace(source), ":", 2)
		if len(parts) != 2 {
			continue
		}

		name := parts[1]
		switch parts[0] {
		case "header":
			extractors = append(extractors, jwtFromHeader(name, cfg.AuthScheme))
		case "query":
			extractors = append(extractors, jwtFromQuery(name))
		case "cookie":
			extractors = append(extractors, jwtFromCookie(name))
		case "param":
			extractors = append(extractors, jwtFromParam(name))
		}
	}

	return extractors
}

func extractRawToken(c *fiber.Ctx, extractors []tokenExtractor) (string, error) {
	for _, extractor := range extractors {
		if token, err := extractor(c); err == nil && token != "" {
			return token, nil
		}
	}
	return "", ErrJWTMissingOrMalformed
}

func jwtFromHeader(header, authScheme string) tokenExtractor {
	return func(c *fiber.Ctx) (string, error) {
		value := c.Get(header)
		if authScheme == "" {
			if value != "" {
				return value, nil
			}
			return "", ErrJWTMissingOrMalformed
		}

		prefix := authScheme + " "
		if len(value) > len(prefix) && strings.EqualFold(value[:len(prefix)], prefix) {
			return strings.TrimSpace(value[len(prefix):]), nil
		}

		return "", ErrJWTMissingOrMalformed
	}
}

func jwtFromQuery(param string) tokenExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Query(param)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}

func jwtFromCookie(name string) tokenExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Cookies(name)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}

func jwtFromParam(param string) tokenExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Params(param)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}

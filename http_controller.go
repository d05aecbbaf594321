package auth

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"

	"github.com/goliatone/go-auth-service/middleware/jwtware"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// AuthControllerRoutes fixes the HTTP surface.
type AuthControllerRoutes struct {
	Banner string
	Health string
	Login  string
	Verify string
	Me     string
	Test   string
}

// HTTPController wires the authenticator to fiber routes.
type HTTPController struct {
	Debug       bool
	Banner      string
	Logger      Logger
	Auth        Authenticator
	Store       Pinger
	Routes      *AuthControllerRoutes
	TokenLookup string
	AuthScheme  string
}

type HTTPControllerOption func(*HTTPController) *HTTPController

// NewHTTPController builds a controller with the default route table.
func NewHTTPController(auther Authenticator, opts ...HTTPControllerOption) *HTTPController {
	c := &HTTPController{
		Auth:       auther,
		Banner:     "Authentication API is running",
		Logger:     defLogger{},
		AuthScheme: "Bearer",
		Routes: &AuthControllerRoutes{
			Banner: "/",
			Health: "/health",
			Login:  "/api/auth/login",
			Verify: "/api/auth/verify",
			Me:     "/api/auth/me",
			Test:   "/api/test",
		},
	}

	for _, opt := range opts {
		if opt != nil {
			c = opt(c)
		}
	}

	return c
}

// WithControllerLogger overrides the controller logger.
func WithControllerLogger(logger Logger) HTTPControllerOption {
	return func(c *HTTPController) *HTTPController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// WithControllerStore provides the store handle used by the health endpoint.
func WithControllerStore(store Pinger) HTTPControllerOption {
	return func(c *HTTPController) *HTTPController {
		c.Store = store
		return c
	}
}

// WithControllerDebug enables request payload dumps.
func WithControllerDebug(debug bool) HTTPControllerOption {
	return func(c *HTTPController) *HTTPController {
		c.Debug = debug
		return c
	}
}

// RegisterRoutes mounts all routes on the app. Verify, me, and the sample
// protected route sit behind the bearer-token middleware.
func (a *HTTPController) RegisterRoutes(app *fiber.App) {
	app.Get(a.Routes.Banner, a.BannerShow)
	app.Get(a.Routes.Health, a.HealthCheck)
	app.Post(a.Routes.Login, a.LoginPost)

	protected := jwtware.New(jwtware.Config{
		TokenValidator: tokenValidatorBridge{a.Auth.TokenService()},
		TokenLookup:    a.TokenLookup,
		AuthScheme:     a.AuthScheme,
		ContextEnricher: func(ctx context.Context, claims jwtware.AuthClaims) context.Context {
			if authClaims, ok := claims.(AuthClaims); ok {
				return WithClaimsContext(ctx, authClaims)
			}
			return ctx
		},
	})

	app.Get(a.Routes.Verify, protected, a.VerifyGet)
	app.Get(a.Routes.Me, protected, a.MeGet)
	app.Get(a.Routes.Test, protected, a.TestGet)
}

// LoginRequest is the login payload
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate will validate the payload
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Password, validation.Required, validation.Length(1, 200)),
	)
}

// LoginResponse is the envelope every login outcome uses.
type LoginResponse struct {
	Success     bool              `json:"success"`
	Message     string            `json:"message"`
	AccessToken *string           `json:"access_token"`
	TokenType   string            `json:"token_type"`
	User        *ResolvedIdentity `json:"user"`
}

// BannerShow reports the service banner.
func (a *HTTPController) BannerShow(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": a.Banner})
}

// HealthCheck pings the store and reports connectivity.
func (a *HTTPController) HealthCheck(c *fiber.Ctx) error {
	if a.Store == nil {
		return c.JSON(fiber.Map{"status": "healthy"})
	}

	if err := a.Store.Ping(c.UserContext()); err != nil {
		a.Logger.Error("health check store ping failed", "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":   "unhealthy",
			"database": "disconnected",
			"error":    err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"status":   "healthy",
		"database": "connected",
	})
}

// LoginPost validates credentials and issues a session token.
func (a *HTTPController) LoginPost(c *fiber.Ctx) error {
	payload := LoginRequest{}
	if err := c.BodyParser(&payload); err != nil {
		a.Logger.Error("login failed to parse request body", "error", err)
		return a.loginFailure(c, fiber.StatusBadRequest, "Invalid request body")
	}

	if a.Debug {
		safe := LoginRequest{Username: payload.Username, Password: "[redacted]"}
		a.Logger.Debug("login payload", "body", print.MaybeHighlightJSON(safe))
	}

	if err := payload.Validate(); err != nil {
		return a.loginFailure(c, fiber.StatusBadRequest, "username and password are required")
	}

	token, identity, err := a.Auth.Login(c.UserContext(), payload.Username, payload.Password)
	if err != nil {
		return a.translateLoginError(c, err)
	}

	return c.JSON(LoginResponse{
		Success:     true,
		Message:     "Login successful",
		AccessToken: &token,
		TokenType:   "bearer",
		User:        identity,
	})
}

// VerifyGet returns the claims embedded in a valid token. No store access.
func (a *HTTPController) VerifyGet(c *fiber.Ctx) error {
	claims, ok := c.Locals("claims").(jwtware.AuthClaims)
	if !ok {
		return a.unauthorized(c)
	}

	return c.JSON(fiber.Map{
		"valid": true,
		"user": fiber.Map{
			"username": claims.Subject(),
			"user_id":  claims.UserID(),
			"role":     claims.Role(),
		},
	})
}

// MeGet re-fetches the user record keyed by the token subject and returns
// the full summary.
func (a *HTTPController) MeGet(c *fiber.Ctx) error {
	raw := a.rawToken(c)
	if raw == "" {
		return a.unauthorized(c)
	}

	identity, err := a.Auth.IdentityFromToken(c.UserContext(), raw)
	if err != nil {
		if IsTokenError(err) {
			return a.unauthorized(c)
		}
		return a.internalError(c, err)
	}

	return c.JSON(identity)
}

// TestGet is the sample protected route.
func (a *HTTPController) TestGet(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": "API is working correctly"})
}

func (a *HTTPController) translateLoginError(c *fiber.Ctx, err error) error {
	var rich *errors.Error
	if errors.As(err, &rich) {
		switch rich.TextCode {
		case TextCodeInvalidCredentials:
			return a.loginFailure(c, fiber.StatusUnauthorized, rich.Message)
		case TextCodeAccountDisabled:
			return a.loginFailure(c, fiber.StatusForbidden, rich.Message)
		}
	}

	return a.internalError(c, err)
}

func (a *HTTPController) loginFailure(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(LoginResponse{
		Success:   false,
		Message:   message,
		TokenType: "bearer",
	})
}

func (a *HTTPController) unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"success": false,
		"message": ErrTokenInvalid.Message,
	})
}

func (a *HTTPController) internalError(c *fiber.Ctx, err error) error {
	a.Logger.Error("unexpected error handling request", "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"success": false,
		"message": "An unexpected error occurred",
	})
}

func (a *HTTPController) rawToken(c *fiber.Ctx) string {
	value := c.Get(fiber.HeaderAuthorization)
	prefix := a.AuthScheme + " "
	if len(value) > len(prefix) && strings.EqualFold(value[:len(prefix)], prefix) {
		return strings.TrimSpace(value[len(prefix):])
	}
	return ""
}

// tokenValidatorBridge adapts the auth TokenService to the middleware's
// validator interface.
type tokenValidatorBridge struct {
	service TokenService
}

func (b tokenValidatorBridge) Validate(tokenString string) (jwtware.AuthClaims, error) {
	claims, err := b.service.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

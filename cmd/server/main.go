package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-print"
	"github.com/joho/godotenv"

	auth "github.com/goliatone/go-auth-service"
	"github.com/goliatone/go-auth-service/repository"
)

const shutdownTimeout = 30 * time.Second

// defaultSigningKey is the development fallback. Running with it logs a loud
// warning; production deployments must set JWT_SECRET.
const defaultSigningKey = "dev-secret-change-me"

type appConfig struct {
	MongoURL     string
	DatabaseName string
	Port         string
	SigningKey   string
	Issuer       string
	Audience     []string
	TokenTTL     int
	Debug        bool
}

func (c appConfig) GetSigningKey() string   { return c.SigningKey }
func (c appConfig) GetTokenExpiration() int { return c.TokenTTL }
func (c appConfig) GetIssuer() string       { return c.Issuer }
func (c appConfig) GetAudience() []string   { return c.Audience }

func loadConfig() appConfig {
	// .env is optional; the environment always wins
	_ = godotenv.Load()

	cfg := appConfig{
		MongoURL:     envOr("MONGO_URL", "mongodb://localhost:27017"),
		DatabaseName: envOr("DATABASE_NAME", "procurement"),
		Port:         envOr("PORT", "8000"),
		SigningKey:   envOr("JWT_SECRET", defaultSigningKey),
		Issuer:       os.Getenv("JWT_ISSUER"),
		TokenTTL:     envIntOr("TOKEN_TTL_MINUTES", 30),
		Debug:        envBool("DEBUG"),
	}

	if aud := os.Getenv("JWT_AUDIENCE"); aud != "" {
		for _, entry := range strings.Split(aud, ",") {
			if entry = strings.TrimSpace(entry); entry != "" {
				cfg.Audience = append(cfg.Audience, entry)
			}
		}
	}

	return cfg
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}

func main() {
	cfg := loadConfig()

	level := glog.Info
	if cfg.Debug {
		level = glog.Trace
	}

	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(level),
		glog.WithName("auth-service"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)
	logger := lgr.GetLogger("server")

	if cfg.SigningKey == defaultSigningKey {
		logger.Warn("running with the default signing secret, set JWT_SECRET")
	}

	if cfg.Debug {
		safe := cfg
		safe.SigningKey = "[redacted]"
		fmt.Println(print.MaybeHighlightJSON(safe))
	}

	ctx := context.Background()

	client, err := repository.Connect(ctx, cfg.MongoURL)
	if err != nil {
		logger.Error("store connection failed", "error", err)
		os.Exit(1)
	}

	repo := repository.NewManager(client, cfg.DatabaseName)
	repo.MustValidate()
	logger.Info("connected to document store", "database", cfg.DatabaseName)

	auditLogger := lgr.GetLogger("audit")
	auther := auth.NewAuthenticator(repo.Users(), repo.Roles(), cfg).
		WithLogger(lgr.GetLogger("auth")).
		WithActivitySink(auth.ActivitySinkFunc(func(_ context.Context, event auth.ActivityEvent) error {
			auditLogger.Info("auth activity",
				"event", string(event.EventType),
				"username", event.Username,
				"user_id", event.UserID,
			)
			return nil
		}))

	app := fiber.New(fiber.Config{
		AppName:               "go-auth-service",
		DisableStartupMessage: !cfg.Debug,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	controller := auth.NewHTTPController(auther,
		auth.WithControllerLogger(lgr.GetLogger("http")),
		auth.WithControllerStore(repo),
		auth.WithControllerDebug(cfg.Debug),
	)
	controller.RegisterRoutes(app)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("server stopped", "error", err)
		}
	}()
	logger.Info("listening", "port", cfg.Port)

	wait := gfshutdown.GracefulShutdown(
		ctx,
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"http": func(ctx context.Context) error {
				return app.ShutdownWithContext(ctx)
			},
			"store": func(ctx context.Context) error {
				return client.Disconnect(ctx)
			},
		},
	)

	exitCode := <-wait
	logger.Info("shutdown complete", "code", exitCode)
	os.Exit(exitCode)
}

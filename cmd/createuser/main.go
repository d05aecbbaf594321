// Command createuser inserts a user document with a hashed credential and an
// auto-incremented integer id. It is the out-of-band companion to the login
// service; records it writes are what the verifier reads.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/joho/godotenv"

	auth "github.com/goliatone/go-auth-service"
	"github.com/goliatone/go-auth-service/repository"
)

func main() {
	username := flag.String("username", "", "username for the new account (required)")
	password := flag.String("password", "", "plaintext password, stored bcrypt-hashed (required)")
	email := flag.String("email", "", "email address")
	fullName := flag.String("full-name", "", "display name")
	role := flag.String("role", auth.RoleDefault, "role name")
	position := flag.String("position", "", "position")
	department := flag.String("department", "", "department")
	admin := flag.Bool("admin", false, "mark the account as administrator")
	flag.Parse()

	if *username == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "both --username and --password are required")
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()
	mongoURL := envOr("MONGO_URL", "mongodb://localhost:27017")
	dbName := envOr("DATABASE_NAME", "procurement")

	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Info),
		glog.WithName("createuser"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)
	logger := lgr.GetLogger("cli")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := repository.Connect(ctx, mongoURL)
	if err != nil {
		logger.Error("store connection failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = client.Disconnect(context.Background())
	}()

	repo := repository.NewManager(client, dbName)
	repo.MustValidate()

	handler := auth.NewCreateUserHandler(repo.Users(), repo.Counters()).
		WithLogger(logger)

	user, err := handler.Execute(ctx, auth.CreateUserMessage{
		Username:   *username,
		Password:   *password,
		Email:      *email,
		FullName:   *fullName,
		Role:       *role,
		Position:   *position,
		Department: *department,
		Admin:      *admin,
	})
	if err != nil {
		logger.Error("user creation failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("created user %q (id %d, role %s)\n", user.Username, *user.ID, *user.Role)
	fmt.Printf("log in with: POST /api/auth/login {\"username\": %q, \"password\": \"...\"}\n", user.Username)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

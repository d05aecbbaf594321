package auth

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

// usersSequence names the counter document backing user id allocation.
const usersSequence = "users"

// CreateUserMessage carries everything needed to insert a user record.
type CreateUserMessage struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	Email      string `json:"email"`
	FullName   string `json:"full_name"`
	Role       string `json:"role"`
	Position   string `json:"position"`
	Department string `json:"department"`
	Admin      bool   `json:"admin"`
}

func (e CreateUserMessage) Type() string { return "user.create" }

// Validate will validate the message
func (e CreateUserMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Username, validation.Required, validation.Length(1, 200)),
		validation.Field(&e.Password, validation.Required, validation.Length(1, 200)),
	)
}

// CreateUserHandler inserts user documents with a hashed credential and an
// auto-incremented integer id.
type CreateUserHandler struct {
	users    UserWriter
	counters SequenceAllocator
	logger   Logger
	now      func() time.Time
}

// NewCreateUserHandler wires the handler to its store surfaces.
func NewCreateUserHandler(users UserWriter, counters SequenceAllocator) *CreateUserHandler {
	return &CreateUserHandler{
		users:    users,
		counters: counters,
		logger:   defLogger{},
		now:      time.Now,
	}
}

func (h *CreateUserHandler) WithLogger(logger Logger) *CreateUserHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// Execute creates the user record described by event.
func (h *CreateUserHandler) Execute(ctx context.Context, event CreateUserMessage) (*User, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user creation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *CreateUserHandler) execute(ctx context.Context, event CreateUserMessage) (*User, error) {
	if err := event.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid create user message")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	count, err := h.users.CountByUsername(ctx, event.Username)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check for existing username")
	}
	if count > 0 {
		return nil, ErrUserAlreadyExists.Clone().
			WithMetadata(map[string]any{"username": event.Username})
	}

	hash, err := HashPassword(event.Password)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	id := h.allocateID(ctx)
	role := event.Role
	if role == "" {
		role = RoleDefault
	}

	now := h.now().UTC()
	active := true
	user := &User{
		ID:           &id,
		Username:     event.Username,
		PasswordHash: &hash,
		Role:         &role,
		IsActive:     &active,
		IsAdmin:      &event.Admin,
		CreatedAt:    &now,
	}

	if event.Email != "" {
		user.Email = &event.Email
	}
	if event.FullName != "" {
		user.FullName = &event.FullName
	}
	if event.Position != "" {
		user.Position = &event.Position
	}
	if event.Department != "" {
		user.Department = &event.Department
	}

	if err := h.users.Insert(ctx, user); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not create user")
	}

	return user, nil
}

// allocateID takes the next value from the users counter, falling back to a
// timestamp-derived id when the counter is unavailable. The fallback is not
// deterministic and exists only here; canonical id derivation in the verifier
// never consults it.
func (h *CreateUserHandler) allocateID(ctx context.Context) int64 {
	if h.counters != nil {
		if id, err := h.counters.Next(ctx, usersSequence); err == nil {
			return id
		} else {
			h.logger.Warn("counter allocation failed, deriving id from timestamp", "error", err)
		}
	}

	return h.now().UnixMilli() % (1<<31 - 1)
}

package auth

import (
	"hash/fnv"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	// RoleDefault is the fallback role when a record resolves no role at all.
	RoleDefault = "user"
	// RoleAdmin marks administrator accounts.
	RoleAdmin = "admin"
)

// User is the typed-but-partial representation of a stored user document.
// Several field spellings coexist in the wild, so every field is optional and
// the resolution methods below apply a fixed preference order. The verifier
// treats these records as read-only; only the create-user command writes them.
type User struct {
	OID      primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	ID       *int64             `bson:"id,omitempty" json:"id,omitempty"`
	Username string             `bson:"username" json:"username"`
	Email    *string            `bson:"email,omitempty" json:"email,omitempty"`

	// Credential spellings. Never serialized in responses.
	PasswordHash   *string `bson:"password_hash,omitempty" json:"-"`
	Password       *string `bson:"password,omitempty" json:"-"`
	HashedPassword *string `bson:"hashed_password,omitempty" json:"-"`

	Role   *string `bson:"role,omitempty" json:"role,omitempty"`
	RoleID any     `bson:"role_id,omitempty" json:"-"`

	IsActive *bool   `bson:"is_active,omitempty" json:"is_active,omitempty"`
	Active   *bool   `bson:"active,omitempty" json:"-"`
	Status   *string `bson:"status,omitempty" json:"-"`

	IsAdmin *bool `bson:"is_admin,omitempty" json:"is_admin,omitempty"`
	Admin   *bool `bson:"admin,omitempty" json:"-"`

	FullName   *string `bson:"full_name,omitempty" json:"full_name,omitempty"`
	Name       *string `bson:"name,omitempty" json:"-"`
	Position   *string `bson:"position,omitempty" json:"position,omitempty"`
	Department *string `bson:"department,omitempty" json:"department,omitempty"`

	CreatedAt *time.Time `bson:"created_at,omitempty" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// Role is a stored role document referenced by User.RoleID.
type Role struct {
	OID  primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	ID   *int64             `bson:"id,omitempty" json:"id,omitempty"`
	Name string             `bson:"name" json:"name"`
}

// Credential returns the stored credential value, preferring password_hash,
// then password, then hashed_password. First non-empty value wins.
func (u *User) Credential() (string, bool) {
	for _, candidate := range []*string{u.PasswordHash, u.Password, u.HashedPassword} {
		if candidate != nil && *candidate != "" {
			return *candidate, true
		}
	}
	return "", false
}

// ActiveState resolves the account's active flag. A missing flag means
// active; an explicit false or an inactive-equivalent status string
// disables login.
func (u *User) ActiveState() bool {
	if u.IsActive != nil {
		return *u.IsActive
	}
	if u.Active != nil {
		return *u.Active
	}
	if u.Status != nil {
		switch strings.ToLower(strings.TrimSpace(*u.Status)) {
		case "inactive", "disabled", "suspended":
			return false
		}
	}
	return true
}

// RoleRef returns the role reference when one is present.
func (u *User) RoleRef() (any, bool) {
	if u.RoleID == nil {
		return nil, false
	}
	return u.RoleID, true
}

// InlineRole returns the inline role name, if any.
func (u *User) InlineRole() string {
	if u.Role != nil {
		return strings.TrimSpace(*u.Role)
	}
	return ""
}

// AdminFlag reports whether an explicit admin boolean is set on the record.
func (u *User) AdminFlag() bool {
	if u.IsAdmin != nil && *u.IsAdmin {
		return true
	}
	return u.Admin != nil && *u.Admin
}

// DisplayName resolves the display name: full_name, then name, then empty.
func (u *User) DisplayName() string {
	if u.FullName != nil && *u.FullName != "" {
		return *u.FullName
	}
	if u.Name != nil && *u.Name != "" {
		return *u.Name
	}
	return ""
}

// Identifier returns the canonical string form of the user identifier:
// the numeric id when present, otherwise the ObjectID hex.
func (u *User) Identifier() string {
	if u.ID != nil {
		return strconv.FormatInt(*u.ID, 10)
	}
	return u.OID.Hex()
}

// ResolvedIdentity is the outcome of a successful credential verification.
// It doubles as the user summary returned to HTTP callers; credential fields
// never appear on it.
type ResolvedIdentity struct {
	ID         int64   `json:"id"`
	Username   string  `json:"username"`
	FullName   string  `json:"full_name"`
	Position   string  `json:"position"`
	Department string  `json:"department"`
	Role       string  `json:"role"`
	IsAdmin    bool    `json:"is_admin"`
	CreatedAt  *string `json:"created_at"`
	UpdatedAt  *string `json:"updated_at"`

	// Ref is the canonical string identifier carried in the user_id claim.
	Ref string `json:"-"`
}

// CanonicalUserID maps a stored identifier to its deterministic integer form.
// All-digit strings parse as the integer value; anything else hashes into
// [0, 2^31-1) via FNV-1a. The same input always yields the same output.
func CanonicalUserID(identifier string) int64 {
	if identifier == "" {
		return 0
	}

	if isAllDigits(identifier) {
		if n, err := strconv.ParseInt(identifier, 10, 64); err == nil {
			return n
		}
		// overflow: fall through to the bounded hash
	}

	h := fnv.New32a()
	h.Write([]byte(identifier))
	return int64(h.Sum32() % (1<<31 - 1))
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

func isoTimestamp(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yee Contributors

package auth

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// MaxNameLength bounds first and last names.
const MaxNameLength = 100

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// User is an account that can sign in to the admin app.
type User struct {
	ID             ulid.ULID
	Email          string
	FirstName      string
	LastName       string
	Role           Role
	GroupID        *int64 // nil when the user is not affiliated with a group
	IsActive       bool
	PasswordDigest string
	LastLogin      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// FullName joins first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Clone returns a deep copy so callers cannot mutate shared state.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.GroupID != nil {
		g := *u.GroupID
		c.GroupID = &g
	}
	if u.LastLogin != nil {
		t := *u.LastLogin
		c.LastLogin = &t
	}
	return &c
}

// Apply copies the set fields of p onto u.
func (u *User) Apply(p ProfileUpdate) {
	if p.Email != nil {
		u.Email = NormalizeEmail(*p.Email)
	}
	if p.FirstName != nil {
		u.FirstName = strings.TrimSpace(*p.FirstName)
	}
	if p.LastName != nil {
		u.LastName = strings.TrimSpace(*p.LastName)
	}
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks the shape of an email address.
func ValidateEmail(email string) error {
	if email == "" {
		return oops.Code(CodeUserInvalid).Errorf("email cannot be empty")
	}
	if !emailRegex.MatchString(email) {
		return oops.Code(CodeUserInvalid).With("email", email).Errorf("email is not valid")
	}
	return nil
}

func validateName(field, value string) error {
	if value == "" {
		return oops.Code(CodeUserInvalid).With("field", field).Errorf("%s cannot be empty", field)
	}
	if len(value) > MaxNameLength {
		return oops.Code(CodeUserInvalid).
			With("field", field).
			With("length", len(value)).
			Errorf("%s exceeds %d characters", field, MaxNameLength)
	}
	return nil
}

// NewUserInput carries the fields an admin supplies when registering a user.
type NewUserInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      Role
	GroupID   *int64
}

// Validate checks the input without touching the password beyond emptiness.
// Chairpersons and secretaries must carry a group affiliation.
func (in NewUserInput) Validate() error {
	if err := ValidateEmail(NormalizeEmail(in.Email)); err != nil {
		return err
	}
	if err := validateName("first_name", strings.TrimSpace(in.FirstName)); err != nil {
		return err
	}
	if err := validateName("last_name", strings.TrimSpace(in.LastName)); err != nil {
		return err
	}
	if !in.Role.Valid() {
		return oops.Code(CodeUserInvalid).With("role", string(in.Role)).Errorf("unknown role")
	}
	if in.Role.GroupScoped() && in.GroupID == nil {
		return oops.Code(CodeUserInvalid).
			With("role", string(in.Role)).
			Errorf("role %s requires a group", in.Role)
	}
	if in.Password == "" {
		return oops.Code(CodeUserInvalid).Errorf("password cannot be empty")
	}
	return nil
}

// NewUser builds a validated, active User from input and an already computed digest.
func NewUser(in NewUserInput, digest string) (*User, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if digest == "" {
		return nil, oops.Code(CodeUserInvalid).Errorf("password digest cannot be empty")
	}

	now := time.Now()
	u := &User{
		ID:             ulid.Make(),
		Email:          NormalizeEmail(in.Email),
		FirstName:      strings.TrimSpace(in.FirstName),
		LastName:       strings.TrimSpace(in.LastName),
		Role:           in.Role,
		IsActive:       true,
		PasswordDigest: digest,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if in.GroupID != nil {
		g := *in.GroupID
		u.GroupID = &g
	}
	return u, nil
}

// ProfileUpdate is a partial update of the caller's own profile. Nil fields are left alone.
type ProfileUpdate struct {
	Email     *string
	FirstName *string
	LastName  *string
}

// Empty reports whether the update changes nothing.
func (p ProfileUpdate) Empty() bool {
	return p.Email == nil && p.FirstName == nil && p.LastName == nil
}

// Validate checks every set field.
func (p ProfileUpdate) Validate() error {
	if p.Empty() {
		return oops.Code(CodeUserInvalid).Errorf("profile update has no fields")
	}
	if p.Email != nil {
		if err := ValidateEmail(NormalizeEmail(*p.Email)); err != nil {
			return err
		}
	}
	if p.FirstName != nil {
		if err := validateName("first_name", strings.TrimSpace(*p.FirstName)); err != nil {
			return err
		}
	}
	if p.LastName != nil {
		if err := validateName("last_name", strings.TrimSpace(*p.LastName)); err != nil {
			return err
		}
	}
	return nil
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user. Returns an AUTH_EMAIL_TAKEN error when the email exists.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByEmail retrieves a user by normalized email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// UpdateProfile persists the set fields of p and returns the stored user.
	UpdateProfile(ctx context.Context, id ulid.ULID, p ProfileUpdate) (*User, error)

	// UpdatePassword replaces the password digest.
	UpdatePassword(ctx context.Context, id ulid.ULID, digest string) error

	// TouchLastLogin records a successful login time.
	TouchLastLogin(ctx context.Context, id ulid.ULID, at time.Time) error
}

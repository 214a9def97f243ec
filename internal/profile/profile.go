package profile

import (
	"context"
	"errors"
	"strings"
	"time"

	"tiergate.org/internal/tier"
)

var (
	ErrNotFound      = errors.New("profile: not found")
	ErrAlreadyExists = errors.New("profile: already exists")
	ErrInvalidInput  = errors.New("profile: invalid input")
)

// Profile is the canonical application-side user record, keyed 1:1 by the
// directory subject id.
type Profile struct {
	SubjectID   string    `json:"subject_id"`
	Email       string    `json:"email"`
	GivenName   string    `json:"given_name,omitempty"`
	FamilyName  string    `json:"family_name,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	Tier        tier.Tier `json:"tier"`
	Active      bool      `json:"active"`
	LastLoginAt time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Update describes a partial profile write. Nil fields are left untouched.
type Update struct {
	Email       *string
	GivenName   *string
	FamilyName  *string
	DisplayName *string
	AvatarURL   *string
	Tier        *tier.Tier
	Active      *bool
	LastLoginAt *time.Time
}

// Store persists profiles.
type Store interface {
	Get(ctx context.Context, subjectID string) (Profile, error)
	Create(ctx context.Context, p Profile) error
	Update(ctx context.Context, subjectID string, upd Update) error
	List(ctx context.Context) ([]Profile, error)
}

// DisplayName computes the visible name for a profile. Priority: explicit
// display name, "given family", given name alone, the local part of the
// email, then the literal "User".
func DisplayName(explicit, given, family, email string) string {
	explicit = strings.TrimSpace(explicit)
	given = strings.TrimSpace(given)
	family = strings.TrimSpace(family)
	switch {
	case explicit != "":
		return explicit
	case given != "" && family != "":
		return given + " " + family
	case given != "":
		return given
	}
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return "User"
}

package directory

import (
	"context"
	"errors"
	"time"
)

// Error kinds returned by every Directory implementation. Callers branch on
// these sentinels instead of inspecting provider-specific error text.
var (
	ErrNotFound       = errors.New("directory: user not found")
	ErrUsernameExists = errors.New("directory: username already exists")
	ErrAlreadyLinked  = errors.New("directory: identities already linked")
	ErrAccessDenied   = errors.New("directory: access denied")
	ErrUnavailable    = errors.New("directory: service unavailable")
)

// NativeProvider is the destination provider name for accounts held directly
// by the directory, as opposed to a federated external provider.
const NativeProvider = "internal"

// SubjectAttribute is the fixed provider attribute name used when linking an
// external identity to a native account.
const SubjectAttribute = "provider_subject"

// User is an identity record as stored by the directory. SubjectID is the
// stable identifier; Username is the human-facing login name and may equal
// the email for shadow accounts.
type User struct {
	Username   string
	SubjectID  string
	Email      string
	GivenName  string
	FamilyName string
	Confirmed  bool
	CreatedAt  time.Time
}

// NewUser carries the attributes seeded onto a freshly created account.
type NewUser struct {
	Username   string
	Email      string
	GivenName  string
	FamilyName string
	// SuppressMessage skips the welcome notification for shadow accounts
	// created on behalf of a federated signup.
	SuppressMessage bool
}

// ProviderIdentity identifies a user at an external identity provider.
type ProviderIdentity struct {
	ProviderName  string
	AttributeName string
	UserID        string
}

// Directory abstracts the identity directory consumed by signup linking and
// group reconciliation. Implementations must map provider failures onto the
// sentinel error kinds above.
type Directory interface {
	// ListUsersByEmail returns up to limit users whose email attribute
	// matches exactly, ordered by creation time ascending.
	ListUsersByEmail(ctx context.Context, email string, limit int) ([]User, error)

	// CreateUser provisions a new account and returns it with the assigned
	// subject id. A username collision yields ErrUsernameExists.
	CreateUser(ctx context.Context, nu NewUser) (User, error)

	// SetUserPassword sets the account password. With permanent=true the
	// account leaves any forced-change state and becomes confirmed.
	SetUserPassword(ctx context.Context, username, password string, permanent bool) error

	AddUserToGroup(ctx context.Context, user, group string) error
	RemoveUserFromGroup(ctx context.Context, user, group string) error

	// ListGroupsForUser accepts either a username or a subject id.
	ListGroupsForUser(ctx context.Context, user string) ([]string, error)

	// LinkProviderIdentity attaches the external identity src to the native
	// account destUser. Linking the same pair twice yields ErrAlreadyLinked.
	LinkProviderIdentity(ctx context.Context, destUser string, src ProviderIdentity) error
}

package signup

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"

	"tiergate.org/internal/directory"
	"tiergate.org/internal/obs"
	"tiergate.org/internal/profile"
)

const defaultSearchLimit = 10

// Linker reconciles an external-provider signup against possibly-existing
// directory accounts: it finds or creates a native account for the signup's
// email, links the external identity to it, and syncs the user profile.
//
// Every failure path returns the event unmodified so the directory's own
// default behavior proceeds; availability of signup is prioritized over
// strict linking. The one exception is an already-linked identity, which is
// treated as success and still finalizes the event.
type Linker struct {
	dir         directory.Directory
	sync        *profile.Synchronizer
	searchLimit int
}

// LinkerOption configures a Linker.
type LinkerOption func(*Linker)

// WithSearchLimit bounds the directory email search page size.
func WithSearchLimit(n int) LinkerOption {
	return func(l *Linker) {
		if n > 0 {
			l.searchLimit = n
		}
	}
}

func NewLinker(dir directory.Directory, sync *profile.Synchronizer, opts ...LinkerOption) *Linker {
	l := &Linker{dir: dir, sync: sync, searchLimit: defaultSearchLimit}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Handle runs the linking state machine for one pre-signup event.
func (l *Linker) Handle(ctx context.Context, ev *Event) *Event {
	email := ev.Email()
	if email == "" || ev.TriggerSource != TriggerPreSignUpExternal {
		// Direct signups and email-less events pass through untouched.
		obs.SignupLinks.WithLabelValues("passthrough").Inc()
		return ev
	}

	providerName, providerUserID, err := parseProviderUsername(ev.UserName)
	if err != nil {
		obs.Log(map[string]any{
			"level":    "error",
			"msg":      "signup_link_invalid_username",
			"username": ev.UserName,
			"error":    err.Error(),
		})
		obs.SignupLinks.WithLabelValues("error").Inc()
		return ev
	}

	target, created, err := l.resolveTarget(ctx, ev, email)
	if err != nil {
		l.fail(ev, "signup_link_resolve_failed", err)
		return ev
	}

	err = l.dir.LinkProviderIdentity(ctx, target.Username, directory.ProviderIdentity{
		ProviderName:  providerName,
		AttributeName: directory.SubjectAttribute,
		UserID:        providerUserID,
	})
	if err != nil && !errors.Is(err, directory.ErrAlreadyLinked) {
		l.fail(ev, "signup_link_failed", err)
		return ev
	}

	// The post-confirmation hook never fires for auto-confirmed federated
	// signups, so the profile upsert has to happen here.
	l.sync.Sync(ctx, target.SubjectID, email, ev.GivenName(), ev.FamilyName())

	ev.Response.AutoConfirmUser = true
	ev.Response.AutoVerifyEmail = true

	outcome := "linked_existing"
	if created {
		outcome = "created"
	}
	obs.SignupLinks.WithLabelValues(outcome).Inc()
	obs.Log(map[string]any{
		"level":      "info",
		"msg":        "signup_linked",
		"provider":   providerName,
		"subject_id": target.SubjectID,
		"outcome":    outcome,
	})
	return ev
}

// resolveTarget finds the canonical account for email, creating a shadow
// account when none exists. The bool result reports whether an account was
// created by this invocation.
func (l *Linker) resolveTarget(ctx context.Context, ev *Event, email string) (directory.User, bool, error) {
	users, err := l.dir.ListUsersByEmail(ctx, email, l.searchLimit)
	if err != nil {
		return directory.User{}, false, fmt.Errorf("search users: %w", err)
	}
	if len(users) > 0 {
		return oldest(users), false, nil
	}

	created, err := l.dir.CreateUser(ctx, directory.NewUser{
		Username:        email,
		Email:           email,
		GivenName:       ev.GivenName(),
		FamilyName:      ev.FamilyName(),
		SuppressMessage: true,
	})
	if errors.Is(err, directory.ErrUsernameExists) {
		// A concurrent signup for the same email won the create; search
		// again and adopt its account.
		retry, retryErr := l.dir.ListUsersByEmail(ctx, email, l.searchLimit)
		if retryErr == nil && len(retry) > 0 {
			return oldest(retry), false, nil
		}
		// Still nothing: propagate the original conflict.
		return directory.User{}, false, fmt.Errorf("create user after duplicate race: %w", err)
	}
	if err != nil {
		return directory.User{}, false, fmt.Errorf("create user: %w", err)
	}

	// A permanent random password flips the shadow account out of its
	// forced-change state; the user signs in through the provider and
	// never sees it.
	if err := l.dir.SetUserPassword(ctx, created.Username, randomPassword(), true); err != nil {
		return directory.User{}, false, fmt.Errorf("set password: %w", err)
	}
	return created, true, nil
}

func (l *Linker) fail(ev *Event, msg string, err error) {
	obs.Log(map[string]any{
		"level":    "error",
		"msg":      msg,
		"username": ev.UserName,
		"error":    err.Error(),
	})
	obs.SignupLinks.WithLabelValues("error").Inc()
}

// parseProviderUsername splits a federated username of the form
// <Provider>_<ProviderUserID> on the first underscore. The provider name is
// capitalized to the directory's canonical spelling.
func parseProviderUsername(userName string) (string, string, error) {
	name, id, ok := strings.Cut(userName, "_")
	if !ok || name == "" || id == "" {
		return "", "", fmt.Errorf("expected Provider_UserId, got %q", userName)
	}
	return strings.ToUpper(name[:1]) + name[1:], id, nil
}

// oldest picks the account with the earliest creation timestamp; the sort is
// stable so duplicates resolve deterministically to the same record.
func oldest(users []directory.User) directory.User {
	sorted := make([]directory.User, len(users))
	copy(sorted, users)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})
	return sorted[0]
}

// randomPassword generates a throwaway password satisfying the directory's
// complexity rules (length, upper, digit, symbol).
func randomPassword() string {
	buf := make([]byte, 18)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing is unrecoverable for this process.
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf) + "aA1!"
}

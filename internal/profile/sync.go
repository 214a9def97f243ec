package profile

import (
	"context"
	"errors"
	"strings"
	"time"

	"tiergate.org/internal/obs"
	"tiergate.org/internal/tier"
)

// Synchronizer performs the idempotent create-or-update of a profile on
// signup events. Both the federated and the direct signup path may call it
// for the same subject, so a second call must degrade to a harmless update.
//
// Failures are logged and swallowed: a profile write must never block the
// authentication flow itself.
type Synchronizer struct {
	store Store
	now   func() time.Time
}

// SyncOption configures a Synchronizer.
type SyncOption func(*Synchronizer)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) SyncOption {
	return func(s *Synchronizer) {
		if fn != nil {
			s.now = fn
		}
	}
}

func NewSynchronizer(store Store, opts ...SyncOption) *Synchronizer {
	s := &Synchronizer{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync upserts the profile for subjectID. On the update path only non-empty
// incoming values overwrite stored fields and the stored tier is preserved;
// the last-login timestamp is always refreshed and the record reactivated.
func (s *Synchronizer) Sync(ctx context.Context, subjectID, email, givenName, familyName string) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		obs.Log(map[string]any{
			"level": "error",
			"msg":   "profile_sync_skipped",
			"error": "empty subject id",
		})
		return
	}

	if err := s.sync(ctx, subjectID, email, givenName, familyName); err != nil {
		obs.Log(map[string]any{
			"level":      "error",
			"msg":        "profile_sync_failed",
			"subject_id": subjectID,
			"error":      err.Error(),
		})
		obs.ProfileSyncs.WithLabelValues("error").Inc()
		return
	}
	obs.ProfileSyncs.WithLabelValues("ok").Inc()
}

func (s *Synchronizer) sync(ctx context.Context, subjectID, email, givenName, familyName string) error {
	now := s.now().UTC()
	displayName := DisplayName("", givenName, familyName, email)

	_, err := s.store.Get(ctx, subjectID)
	switch {
	case err == nil:
		return s.store.Update(ctx, subjectID, s.loginUpdate(givenName, familyName, displayName, now))

	case errors.Is(err, ErrNotFound):
		createErr := s.store.Create(ctx, Profile{
			SubjectID:   subjectID,
			Email:       email,
			GivenName:   givenName,
			FamilyName:  familyName,
			DisplayName: displayName,
			Tier:        tier.Basic,
			Active:      true,
			LastLoginAt: now,
		})
		if errors.Is(createErr, ErrAlreadyExists) {
			// Lost the create race against a concurrent signup trigger;
			// the record exists now, so fall back to the update path.
			return s.store.Update(ctx, subjectID, s.loginUpdate(givenName, familyName, displayName, now))
		}
		return createErr

	default:
		return err
	}
}

// loginUpdate builds the partial write applied on repeat signins: non-empty
// names overwrite, everything else (email, tier) is preserved, activity and
// last-login are always refreshed.
func (s *Synchronizer) loginUpdate(givenName, familyName, displayName string, now time.Time) Update {
	active := true
	upd := Update{
		Active:      &active,
		LastLoginAt: &now,
	}
	if givenName != "" {
		upd.GivenName = &givenName
	}
	if familyName != "" {
		upd.FamilyName = &familyName
	}
	if displayName != "" && displayName != "User" {
		upd.DisplayName = &displayName
	}
	return upd
}

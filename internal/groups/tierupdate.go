package groups

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tiergate.org/internal/directory"
	"tiergate.org/internal/obs"
	"tiergate.org/internal/profile"
	"tiergate.org/internal/tier"
)

// ErrUnknownTier is returned when the requested tier is not one of the
// defined values.
var ErrUnknownTier = errors.New("groups: unknown tier")

// Result reports the outcome of a tier update.
type Result struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	Tier    tier.Tier `json:"tier,omitempty"`
	Groups  []string  `json:"groups"`
}

// Updater applies a tier change: it converges directory groups first, and
// writes the new tier to the profile only after every group change landed.
// A partial group failure therefore leaves the stored tier unchanged, and
// retrying the update is safe.
type Updater struct {
	rec      *Reconciler
	profiles profile.Store
}

func NewUpdater(rec *Reconciler, profiles profile.Store) *Updater {
	return &Updater{rec: rec, profiles: profiles}
}

// UpdateTier moves the user identified by subjectID to newTier. currentHint
// is the caller's view of the present tier; the stored profile wins when the
// two disagree, and the hint fills in only when no profile exists yet.
func (u *Updater) UpdateTier(ctx context.Context, subjectID, newTier, currentHint string) (Result, error) {
	t, ok := tier.Parse(newTier)
	if !ok {
		return Result{Success: false, Message: fmt.Sprintf("unknown tier %q", newTier)},
			fmt.Errorf("%w: %q", ErrUnknownTier, newTier)
	}

	previous := tier.Basic
	if hint, ok := tier.Parse(currentHint); ok {
		previous = hint
	}
	current, err := u.profiles.Get(ctx, subjectID)
	switch {
	case err == nil:
		if current.Tier.Valid() {
			previous = current.Tier
		}
	case errors.Is(err, profile.ErrNotFound):
		// No profile yet; groups still converge and the tier write below
		// will report the missing profile.
	default:
		return Result{Success: false, Message: "could not load profile"},
			fmt.Errorf("load profile: %w", err)
	}

	groupList, err := u.rec.Reconcile(ctx, subjectID, t)
	if err != nil {
		msg := "group reconciliation failed"
		if errors.Is(err, directory.ErrAccessDenied) {
			msg = "server lacks permission to manage groups"
		}
		return Result{Success: false, Message: msg, Groups: groupList},
			fmt.Errorf("reconcile groups: %w", err)
	}

	if err := u.profiles.Update(ctx, subjectID, profile.Update{Tier: &t}); err != nil {
		return Result{Success: false, Message: "could not persist tier", Groups: groupList},
			fmt.Errorf("persist tier: %w", err)
	}

	obs.Log(map[string]any{
		"level":      "info",
		"msg":        "tier_updated",
		"subject_id": subjectID,
		"from":       string(previous),
		"to":         string(t),
		"groups":     groupList,
	})
	return Result{
		Success: true,
		Message: fmt.Sprintf("User tier updated from %s to %s. Groups: [%s]", previous, t, strings.Join(groupList, ", ")),
		Tier:    t,
		Groups:  groupList,
	}, nil
}

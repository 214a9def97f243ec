// Package groups converges directory group membership with a user's tier.
package groups

import (
	"context"
	"errors"
	"fmt"

	"tiergate.org/internal/directory"
	"tiergate.org/internal/obs"
	"tiergate.org/internal/tier"
)

// Reconciler drives a user's directory groups toward the set implied by a
// tier. Each membership change is an independent directory call; one failed
// call does not stop the remaining ones.
type Reconciler struct {
	dir directory.Directory
}

func NewReconciler(dir directory.Directory) *Reconciler {
	return &Reconciler{dir: dir}
}

// Reconcile converges the groups of user (username or subject id) to the set
// for t and returns that target set. Removals run before additions so a
// downgrade never widens access, even transiently. If any directory call
// fails the remaining calls still run and the joined errors are returned.
func (r *Reconciler) Reconcile(ctx context.Context, user string, t tier.Tier) ([]string, error) {
	current, err := r.dir.ListGroupsForUser(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}

	target := tier.Groups(t)
	inTarget := make(map[string]bool, len(target))
	for _, g := range target {
		inTarget[g] = true
	}
	inCurrent := make(map[string]bool, len(current))
	for _, g := range current {
		inCurrent[g] = true
	}

	var failures []error
	for _, g := range current {
		if inTarget[g] {
			continue
		}
		if err := r.dir.RemoveUserFromGroup(ctx, user, g); err != nil {
			r.logFailure(user, "remove", g, err)
			failures = append(failures, fmt.Errorf("remove %s: %w", g, err))
			continue
		}
		obs.GroupChanges.WithLabelValues("remove", "ok").Inc()
	}
	for _, g := range target {
		if inCurrent[g] {
			continue
		}
		if err := r.dir.AddUserToGroup(ctx, user, g); err != nil {
			r.logFailure(user, "add", g, err)
			failures = append(failures, fmt.Errorf("add %s: %w", g, err))
			continue
		}
		obs.GroupChanges.WithLabelValues("add", "ok").Inc()
	}

	if len(failures) > 0 {
		return target, errors.Join(failures...)
	}
	return target, nil
}

func (r *Reconciler) logFailure(user, direction, group string, err error) {
	obs.GroupChanges.WithLabelValues(direction, "error").Inc()
	obs.Log(map[string]any{
		"level":     "error",
		"msg":       "group_change_failed",
		"user":      user,
		"direction": direction,
		"group":     group,
		"error":     err.Error(),
	})
}

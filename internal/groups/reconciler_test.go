package groups

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"

	"tiergate.org/internal/directory"
	"tiergate.org/internal/tier"
)

// memoryDirectory keeps group membership in memory and records every
// mutation in order.
type memoryDirectory struct {
	groups map[string]bool
	ops    []string

	removeErr map[string]error
	addErr    map[string]error
}

func newMemoryDirectory(initial ...string) *memoryDirectory {
	d := &memoryDirectory{groups: map[string]bool{}}
	for _, g := range initial {
		d.groups[g] = true
	}
	return d
}

func (d *memoryDirectory) ListUsersByEmail(context.Context, string, int) ([]directory.User, error) {
	return nil, nil
}

func (d *memoryDirectory) CreateUser(context.Context, directory.NewUser) (directory.User, error) {
	return directory.User{}, nil
}

func (d *memoryDirectory) SetUserPassword(context.Context, string, string, bool) error {
	return nil
}

func (d *memoryDirectory) AddUserToGroup(_ context.Context, _, group string) error {
	d.ops = append(d.ops, "add:"+group)
	if err := d.addErr[group]; err != nil {
		return err
	}
	d.groups[group] = true
	return nil
}

func (d *memoryDirectory) RemoveUserFromGroup(_ context.Context, _, group string) error {
	d.ops = append(d.ops, "remove:"+group)
	if err := d.removeErr[group]; err != nil {
		return err
	}
	delete(d.groups, group)
	return nil
}

func (d *memoryDirectory) ListGroupsForUser(context.Context, string) ([]string, error) {
	out := make([]string, 0, len(d.groups))
	for g := range d.groups {
		out = append(out, g)
	}
	sort.Strings(out)
	return out, nil
}

func (d *memoryDirectory) LinkProviderIdentity(context.Context, string, directory.ProviderIdentity) error {
	return nil
}

func (d *memoryDirectory) current() []string {
	out, _ := d.ListGroupsForUser(context.Background(), "")
	return out
}

func TestReconcileConvergesFromAnyState(t *testing.T) {
	starts := [][]string{
		{},
		{tier.GroupPremium},
		{tier.GroupPremium, tier.GroupEditor, tier.GroupAdmin},
		{tier.GroupEditor},
	}
	for _, start := range starts {
		for _, target := range tier.All {
			name := fmt.Sprintf("%v_to_%s", start, target)
			t.Run(name, func(t *testing.T) {
				dir := newMemoryDirectory(start...)
				rec := NewReconciler(dir)

				got, err := rec.Reconcile(context.Background(), "sub-1", target)
				if err != nil {
					t.Fatalf("reconcile: %v", err)
				}
				want := tier.Groups(target)
				if strings.Join(got, ",") != strings.Join(want, ",") {
					t.Fatalf("returned groups %v, want %v", got, want)
				}
				final := dir.current()
				sortedWant := append([]string(nil), want...)
				sort.Strings(sortedWant)
				if strings.Join(final, ",") != strings.Join(sortedWant, ",") {
					t.Fatalf("directory state %v, want %v", final, sortedWant)
				}
			})
		}
	}
}

func TestReconcileRemovesBeforeAdds(t *testing.T) {
	dir := newMemoryDirectory(tier.GroupAdmin)
	rec := NewReconciler(dir)

	if _, err := rec.Reconcile(context.Background(), "sub-1", tier.Premium); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	firstAdd := -1
	lastRemove := -1
	for i, op := range dir.ops {
		if strings.HasPrefix(op, "add:") && firstAdd == -1 {
			firstAdd = i
		}
		if strings.HasPrefix(op, "remove:") {
			lastRemove = i
		}
	}
	if lastRemove == -1 || firstAdd == -1 || lastRemove > firstAdd {
		t.Fatalf("removals must precede additions, ops: %v", dir.ops)
	}
}

func TestReconcileNoopWhenAlreadyConverged(t *testing.T) {
	dir := newMemoryDirectory(tier.GroupPremium, tier.GroupEditor)
	rec := NewReconciler(dir)

	if _, err := rec.Reconcile(context.Background(), "sub-1", tier.Editor); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(dir.ops) != 0 {
		t.Fatalf("expected no mutations, got %v", dir.ops)
	}
}

func TestReconcileContinuesPastFailures(t *testing.T) {
	dir := newMemoryDirectory(tier.GroupAdmin, tier.GroupEditor)
	dir.removeErr = map[string]error{tier.GroupAdmin: errors.New("directory down")}
	rec := NewReconciler(dir)

	_, err := rec.Reconcile(context.Background(), "sub-1", tier.Premium)
	if err == nil {
		t.Fatalf("expected joined failure")
	}

	var sawAdd, sawEditorRemove bool
	for _, op := range dir.ops {
		switch op {
		case "add:" + tier.GroupPremium:
			sawAdd = true
		case "remove:" + tier.GroupEditor:
			sawEditorRemove = true
		}
	}
	if !sawAdd || !sawEditorRemove {
		t.Fatalf("remaining changes must still run, ops: %v", dir.ops)
	}
}

func TestReconcileSurfacesAccessDenied(t *testing.T) {
	dir := newMemoryDirectory()
	dir.addErr = map[string]error{tier.GroupPremium: directory.ErrAccessDenied}
	rec := NewReconciler(dir)

	_, err := rec.Reconcile(context.Background(), "sub-1", tier.Premium)
	if !errors.Is(err, directory.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
}

package signup

import (
	"context"
	"testing"

	"tiergate.org/internal/profile"
	"tiergate.org/internal/tier"
)

func TestPostConfirmationUpsertsProfile(t *testing.T) {
	profiles := newProfileRecorder()
	hook := NewPostConfirmation(profile.NewSynchronizer(profiles))

	ev := &Event{
		UserName:      "alice",
		TriggerSource: TriggerPostConfirmation,
		Request: EventRequest{UserAttributes: map[string]string{
			"sub":         "sub-42",
			"email":       "alice@x.com",
			"given_name":  "Alice",
			"family_name": "Smith",
		}},
	}
	out := hook.Handle(context.Background(), ev)
	if out != ev {
		t.Fatalf("event must be returned unchanged")
	}

	p, err := profiles.Get(context.Background(), "sub-42")
	if err != nil {
		t.Fatalf("profile not created: %v", err)
	}
	if p.Tier != tier.Basic || p.DisplayName != "Alice Smith" || p.Email != "alice@x.com" {
		t.Fatalf("unexpected profile: %+v", p)
	}
}

func TestPostConfirmationMissingSubject(t *testing.T) {
	profiles := newProfileRecorder()
	hook := NewPostConfirmation(profile.NewSynchronizer(profiles))

	ev := &Event{
		UserName:      "alice",
		TriggerSource: TriggerPostConfirmation,
		Request:       EventRequest{UserAttributes: map[string]string{"email": "alice@x.com"}},
	}
	hook.Handle(context.Background(), ev)

	if len(profiles.records) != 0 {
		t.Fatalf("no profile expected without a subject id")
	}
}

package signup

import (
	"context"

	"tiergate.org/internal/obs"
	"tiergate.org/internal/profile"
)

// PostConfirmation handles the hook fired after a direct (non-federated)
// signup is confirmed. Its only job is the profile upsert; errors are logged
// and swallowed so the confirmation is never blocked.
type PostConfirmation struct {
	sync *profile.Synchronizer
}

func NewPostConfirmation(sync *profile.Synchronizer) *PostConfirmation {
	return &PostConfirmation{sync: sync}
}

// Handle upserts the profile for the confirmed user and returns the event
// unchanged.
func (h *PostConfirmation) Handle(ctx context.Context, ev *Event) *Event {
	subjectID := ev.SubjectID()
	if subjectID == "" {
		obs.Log(map[string]any{
			"level":    "error",
			"msg":      "post_confirmation_missing_subject",
			"username": ev.UserName,
		})
		return ev
	}
	h.sync.Sync(ctx, subjectID, ev.Email(), ev.GivenName(), ev.FamilyName())
	return ev
}

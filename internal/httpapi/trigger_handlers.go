package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"tiergate.org/internal/audit"
	"tiergate.org/internal/signup"
)

const webhookSecretHeader = "X-Webhook-Secret"

// checkWebhookSecret authenticates trigger calls. The comparison is
// constant-time; an unset secret disables the endpoints entirely.
func (a *API) checkWebhookSecret(w http.ResponseWriter, r *http.Request) bool {
	if a.webhookSecret == "" {
		writeError(w, r, http.StatusServiceUnavailable, "trigger endpoints are disabled")
		return false
	}
	got := strings.TrimSpace(r.Header.Get(webhookSecretHeader))
	if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(a.webhookSecret)) != 1 {
		writeError(w, r, http.StatusUnauthorized, "invalid webhook secret")
		return false
	}
	return true
}

func (a *API) handlePreSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.checkWebhookSecret(w, r) {
		return
	}

	var ev signup.Event
	if err := decodeJSON(w, r, &ev); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(ev.UserName) == "" {
		writeError(w, r, http.StatusBadRequest, "userName is required")
		return
	}

	out := a.linker.Handle(r.Context(), &ev)

	_ = audit.LogEvent(r.Context(), "signup.pre_signup.processed", map[string]any{
		"username":       out.UserName,
		"trigger_source": out.TriggerSource,
		"auto_confirm":   out.Response.AutoConfirmUser,
	})
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handlePostConfirmation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.checkWebhookSecret(w, r) {
		return
	}

	var ev signup.Event
	if err := decodeJSON(w, r, &ev); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(ev.UserName) == "" {
		writeError(w, r, http.StatusBadRequest, "userName is required")
		return
	}

	out := a.confirmer.Handle(r.Context(), &ev)

	_ = audit.LogEvent(r.Context(), "signup.post_confirmation.processed", map[string]any{
		"username":       out.UserName,
		"trigger_source": out.TriggerSource,
	})
	writeJSON(w, http.StatusOK, out)
}

package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"tiergate.org/internal/audit"
	"tiergate.org/internal/auth"
	"tiergate.org/internal/groups"
)

type tierUpdateRequest struct {
	UserID      string `json:"userId"`
	NewTier     string `json:"newTier"`
	CurrentTier string `json:"currentTier"`
}

func (a *API) handleTierUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if a.requireAdmin && !auth.HasRole(r.Context(), "admin") {
		w.Header().Set("WWW-Authenticate", `Bearer realm="tiergate", error="insufficient_scope"`)
		writeError(w, r, http.StatusForbidden, "admin role required")
		return
	}

	var req tierUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		writeError(w, r, http.StatusBadRequest, "userId is required")
		return
	}
	if strings.TrimSpace(req.NewTier) == "" {
		writeError(w, r, http.StatusBadRequest, "newTier is required")
		return
	}

	result, err := a.tiers.UpdateTier(r.Context(), userID, req.NewTier, req.CurrentTier)
	if err != nil {
		if errors.Is(err, groups.ErrUnknownTier) {
			writeJSON(w, http.StatusBadRequest, result)
			return
		}
		// Business failures still answer 200: the result carries the
		// structured outcome for the interactive caller.
		writeJSON(w, http.StatusOK, result)
		return
	}

	_ = audit.LogEvent(r.Context(), "user.tier.updated", map[string]any{
		"subject_id": userID,
		"tier":       string(result.Tier),
		"groups":     result.Groups,
	})
	writeJSON(w, http.StatusOK, result)
}

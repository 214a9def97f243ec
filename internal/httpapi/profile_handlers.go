package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"tiergate.org/internal/auth"
	"tiergate.org/internal/profile"
)

type listProfilesResponse struct {
	Items []profile.Profile `json:"items"`
	AsOf  time.Time         `json:"as_of"`
}

func (a *API) handleProfilesCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listProfiles(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet)
	}
}

func (a *API) handleProfileResource(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/profiles/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if id == "me" {
		subject, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			writeError(w, r, http.StatusUnauthorized, "authentication required")
			return
		}
		id = subject
	}
	a.getProfile(w, r, id)
}

func (a *API) getProfile(w http.ResponseWriter, r *http.Request, id string) {
	p, err := a.profiles.Get(r.Context(), id)
	if err != nil {
		handleProfileError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) listProfiles(w http.ResponseWriter, r *http.Request) {
	items, err := a.profiles.List(r.Context())
	if err != nil {
		handleProfileError(w, r, err)
		return
	}
	if items == nil {
		items = []profile.Profile{}
	}
	writeJSON(w, http.StatusOK, listProfilesResponse{
		Items: items,
		AsOf:  time.Now().UTC(),
	})
}

func handleProfileError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, profile.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, profile.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

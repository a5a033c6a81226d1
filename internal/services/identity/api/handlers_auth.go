package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"lifeasagame.dev/internal/platform/httpx"
	"lifeasagame.dev/internal/services/identity/session"
)

// handleToken exchanges form-encoded credentials for a token pair.
func (a *API) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		a.writeInvalidPayload(w, err)
		return
	}
	username := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")
	if username == "" || password == "" {
		a.writeInvalidPayload(w, errors.New("username and password are required"))
		return
	}

	sess, err := a.sessions.Authenticate(httpx.RequestContext(r), username, password)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, newSessionPayload(sess))
}

type refreshPayload struct {
	Token string `json:"token"`
}

// handleRefresh rotates a refresh token into a fresh token pair.
func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var payload refreshPayload
	if err := a.decodeJSON(r, &payload); err != nil {
		a.writeInvalidPayload(w, err)
		return
	}
	if strings.TrimSpace(payload.Token) == "" {
		a.writeInvalidPayload(w, errors.New("missing required field token"))
		return
	}

	sess, err := a.sessions.Refresh(httpx.RequestContext(r), payload.Token)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, newSessionPayload(sess))
}

// handleLogout revokes the presented session, or every session of the
// account when full_logout is set.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request, identity session.Identity) {
	fullLogout := false
	if raw := r.URL.Query().Get("full_logout"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			a.writeInvalidPayload(w, err)
			return
		}
		fullLogout = parsed
	}

	ctx := httpx.RequestContext(r)
	var err error
	if fullLogout {
		err = a.sessions.Clear(ctx, identity.User.ID)
	} else {
		err = a.sessions.Revoke(ctx, identity.Token)
	}
	if err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

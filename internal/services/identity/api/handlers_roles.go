package api

import (
	"errors"
	"net/http"

	"lifeasagame.dev/internal/platform/httpx"
	"lifeasagame.dev/internal/services/identity/authz"
	"lifeasagame.dev/internal/services/identity/filter"
	"lifeasagame.dev/internal/services/identity/session"
	"lifeasagame.dev/internal/services/identity/storage"
)

// handleMyRoles returns a page of the roles the caller holds through its
// groups.
func (a *API) handleMyRoles(w http.ResponseWriter, r *http.Request, identity session.Identity) {
	params, ok := a.parsePage(w, r)
	if !ok {
		return
	}
	page, err := a.authz.ListRolesByCodenames(httpx.RequestContext(r), identity.Roles, params)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, mapPage(page, newRolePayload))
}

// handleListRoles returns a filtered page of every role.
func (a *API) handleListRoles(w http.ResponseWriter, r *http.Request, identity session.Identity) {
	params, ok := a.parsePage(w, r)
	if !ok {
		return
	}
	predicate, err := filter.Parse(r.URL.Query().Get("filter"), filter.RoleFields())
	if err != nil {
		a.writeInvalidPayload(w, err)
		return
	}

	page, err := a.authz.ListRoles(httpx.RequestContext(r), storage.ListQuery{
		LastID:    params.LastID,
		Size:      params.Size,
		Predicate: predicate,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, mapPage(page, newRolePayload))
}

func (a *API) handleGetRole(w http.ResponseWriter, r *http.Request, identity session.Identity) {
	record, err := a.authz.GetRole(httpx.RequestContext(r), r.PathValue("roleID"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, newRolePayload(record))
}

func (a *API) handleGetRoleByCodename(w http.ResponseWriter, r *http.Request, identity session.Identity) {
	record, err := a.authz.GetRoleByCodename(httpx.RequestContext(r), r.PathValue("codename"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, newRolePayload(record))
}

type createRolePayload struct {
	Codename    *string `json:"codename"`
	Description *string `json:"description"`
}

func (a *API) handleCreateRole(w http.ResponseWriter, r *http.Request, identity session.Identity) {
	var payload createRolePayload
	if err := a.decodeJSON(r, &payload); err != nil {
		a.writeInvalidPayload(w, err)
		return
	}
	if payload.Codename == nil || payload.Description == nil {
		a.writeInvalidPayload(w, errors.New("codename and description are required"))
		return
	}

	record, err := a.authz.CreateRole(httpx.RequestContext(r), authz.CreateRoleParams{
		Codename:    *payload.Codename,
		Description: *payload.Description,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, newRolePayload(record))
}

type updateRolePayload struct {
	Codename    string `json:"codename"`
	Description string `json:"description"`
}

func (a *API) handleUpdateRole(w http.ResponseWriter, r *http.Request, identity session.Identity) {
	var payload updateRolePayload
	if err := a.decodeJSON(r, &payload); err != nil {
		a.writeInvalidPayload(w, err)
		return
	}

	record, err := a.authz.UpdateRole(httpx.RequestContext(r), r.PathValue("roleID"), authz.UpdateRoleParams{
		Codename:    payload.Codename,
		Description: payload.Description,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, newRolePayload(record))
}

func (a *API) handleDeleteRole(w http.ResponseWriter, r *http.Request, identity session.Identity) {
	if err := a.authz.DeleteRole(httpx.RequestContext(r), r.PathValue("roleID")); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

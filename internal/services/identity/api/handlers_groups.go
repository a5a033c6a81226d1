package api

import (
	"errors"
	"net/http"

	"lifeasagame.dev/internal/platform/httpx"
	"lifeasagame.dev/internal/services/identity/authz"
	"lifeasagame.dev/internal/services/identity/session"
)

// handleMyGroups returns a page of the groups the caller belongs to.
func (a *API) handleMyGroups(w http.ResponseWriter, r *http.Request, identity session.Identity) {
	params, ok := a.parsePage(w, r)
	if !ok {
		return
	}
	page, err := a.authz.ListGroupsByNames(httpx.RequestContext(r), identity.Groups, params)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, mapPage(page, newGroupPayload))
}

func (a *API) handleGetGroupByName(w http.ResponseWriter, r *http.Request, identity session.Identity) {
	record, err := a.authz.GetGroupByName(httpx.RequestContext(r), r.PathValue("name"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, newGroupPayload(record))
}

func (a *API) handleGetGroup(w http.ResponseWriter, r *http.Request, identity session.Identity) {
	record, err := a.authz.GetGroup(httpx.RequestContext(r), r.PathValue("groupID"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, newGroupPayload(record))
}

type createGroupPayload struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (a *API) handleCreateGroup(w http.ResponseWriter, r *http.Request, identity session.Identity) {
	var payload createGroupPayload
	if err := a.decodeJSON(r, &payload); err != nil {
		a.writeInvalidPayload(w, err)
		return
	}
	if payload.Name == nil || payload.Description == nil {
		a.writeInvalidPayload(w, errors.New("name and description are required"))
		return
	}

	record, err := a.authz.CreateGroup(httpx.RequestContext(r), authz.CreateGroupParams{
		Name:        *payload.Name,
		Description: *payload.Description,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, newGroupPayload(record))
}

type updateGroupPayload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (a *API) handleUpdateGroup(w http.ResponseWriter, r *http.Request, identity session.Identity) {
	var payload updateGroupPayload
	if err := a.decodeJSON(r, &payload); err != nil {
		a.writeInvalidPayload(w, err)
		return
	}

	record, err := a.authz.UpdateGroup(httpx.RequestContext(r), r.PathValue("groupID"), authz.UpdateGroupParams{
		Name:        payload.Name,
		Description: payload.Description,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, newGroupPayload(record))
}

type roleBindingPayload struct {
	RoleIDs []string `json:"roleIds"`
}

// handleAttachRoles grants the payload roles to a group.
func (a *API) handleAttachRoles(w http.ResponseWriter, r *http.Request, identity session.Identity) {
	var payload roleBindingPayload
	if err := a.decodeJSON(r, &payload); err != nil {
		a.writeInvalidPayload(w, err)
		return
	}
	if payload.RoleIDs == nil {
		a.writeInvalidPayload(w, errors.New("missing required field roleIds"))
		return
	}

	err := a.authz.AttachRoles(httpx.RequestContext(r), identity.User, r.PathValue("groupID"), payload.RoleIDs)
	if err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDetachRoles removes the payload roles from a group.
func (a *API) handleDetachRoles(w http.ResponseWriter, r *http.Request, identity session.Identity) {
	var payload roleBindingPayload
	if err := a.decodeJSON(r, &payload); err != nil {
		a.writeInvalidPayload(w, err)
		return
	}
	if payload.RoleIDs == nil {
		a.writeInvalidPayload(w, errors.New("missing required field roleIds"))
		return
	}

	err := a.authz.DetachRoles(httpx.RequestContext(r), identity.User, r.PathValue("groupID"), payload.RoleIDs)
	if err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type userBindingPayload struct {
	UserIDs []string `json:"userIds"`
}

// handleJoinGroup adds the payload users to a group.
func (a *API) handleJoinGroup(w http.ResponseWriter, r *http.Request, identity session.Identity) {
	var payload userBindingPayload
	if err := a.decodeJSON(r, &payload); err != nil {
		a.writeInvalidPayload(w, err)
		return
	}
	if payload.UserIDs == nil {
		a.writeInvalidPayload(w, errors.New("missing required field userIds"))
		return
	}

	if err := a.authz.JoinGroup(httpx.RequestContext(r), r.PathValue("groupID"), payload.UserIDs); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleLeaveGroup removes the payload users from a group.
func (a *API) handleLeaveGroup(w http.ResponseWriter, r *http.Request, identity session.Identity) {
	var payload userBindingPayload
	if err := a.decodeJSON(r, &payload); err != nil {
		a.writeInvalidPayload(w, err)
		return
	}
	if payload.UserIDs == nil {
		a.writeInvalidPayload(w, errors.New("missing required field userIds"))
		return
	}

	if err := a.authz.LeaveGroup(httpx.RequestContext(r), r.PathValue("groupID"), payload.UserIDs); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteGroup removes a group. Groups holding the admin role need a
// superuser caller.
func (a *API) handleDeleteGroup(w http.ResponseWriter, r *http.Request, identity session.Identity) {
	if err := a.authz.DeleteGroup(httpx.RequestContext(r), identity.User, r.PathValue("groupID")); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

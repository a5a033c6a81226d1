// Package api exposes the identity service over HTTP: session issuing,
// account management, and role and group administration.
package api

import (
	"net/http"
	"strings"

	"lifeasagame.dev/internal/platform/config"
	apperrors "lifeasagame.dev/internal/platform/errors"
	"lifeasagame.dev/internal/platform/httpx"
	"lifeasagame.dev/internal/platform/requestctx"
	"lifeasagame.dev/internal/services/identity/authz"
	"lifeasagame.dev/internal/services/identity/session"
	"lifeasagame.dev/internal/services/identity/user"
)

// API routes identity HTTP requests to the backing services.
type API struct {
	sessions *session.Service
	users    *user.Service
	authz    *authz.Service
	env      config.Environment
}

// New builds the HTTP API over the identity services.
func New(sessions *session.Service, users *user.Service, authzService *authz.Service, env config.Environment) *API {
	return &API{
		sessions: sessions,
		users:    users,
		authz:    authzService,
		env:      env,
	}
}

// RegisterRoutes registers every identity endpoint on the provided mux.
func (a *API) RegisterRoutes(mux *http.ServeMux) {
	if mux == nil {
		return
	}

	mux.HandleFunc(http.MethodGet+" /healthcheck", a.handleHealthcheck)

	mux.HandleFunc(http.MethodPost+" /auth/token", a.handleToken)
	mux.HandleFunc(http.MethodPost+" /auth/refresh", a.handleRefresh)
	mux.HandleFunc(http.MethodDelete+" /auth/logout", a.withIdentity(a.handleLogout))

	mux.HandleFunc(http.MethodPost+" /users", a.handleCreateUser)
	mux.HandleFunc(http.MethodGet+" /users/me", a.withIdentity(a.handleGetMe))
	mux.HandleFunc(http.MethodPatch+" /users/me", a.withIdentity(a.handleUpdateMe))
	mux.HandleFunc(http.MethodGet+" /users", a.withAdmin(a.handleListUsers))
	mux.HandleFunc(http.MethodDelete+" /users/{userID}", a.withAdmin(a.handleDeleteUser))

	mux.HandleFunc(http.MethodGet+" /roles/me", a.withIdentity(a.handleMyRoles))
	mux.HandleFunc(http.MethodGet+" /roles", a.withIdentity(a.handleListRoles))
	mux.HandleFunc(http.MethodGet+" /roles/find/{roleID}", a.withIdentity(a.handleGetRole))
	mux.HandleFunc(http.MethodGet+" /roles/find-by-codename/{codename}", a.withIdentity(a.handleGetRoleByCodename))
	mux.HandleFunc(http.MethodPost+" /roles", a.withAdmin(a.handleCreateRole))
	mux.HandleFunc(http.MethodPatch+" /roles/{roleID}", a.withAdmin(a.handleUpdateRole))
	mux.HandleFunc(http.MethodDelete+" /roles/{roleID}", a.withAdmin(a.handleDeleteRole))

	mux.HandleFunc(http.MethodGet+" /groups/me", a.withIdentity(a.handleMyGroups))
	mux.HandleFunc(http.MethodGet+" /groups/find-by-name/{name}", a.withIdentity(a.handleGetGroupByName))
	mux.HandleFunc(http.MethodGet+" /groups/find/{groupID}", a.withIdentity(a.handleGetGroup))
	mux.HandleFunc(http.MethodPost+" /groups", a.withAdmin(a.handleCreateGroup))
	mux.HandleFunc(http.MethodPatch+" /groups/attach/{groupID}", a.withAdmin(a.handleAttachRoles))
	mux.HandleFunc(http.MethodPatch+" /groups/detach/{groupID}", a.withAdmin(a.handleDetachRoles))
	mux.HandleFunc(http.MethodPatch+" /groups/join/{groupID}", a.withAdmin(a.handleJoinGroup))
	mux.HandleFunc(http.MethodPatch+" /groups/leave/{groupID}", a.withAdmin(a.handleLeaveGroup))
	mux.HandleFunc(http.MethodPatch+" /groups/{groupID}", a.withAdmin(a.handleUpdateGroup))
	mux.HandleFunc(http.MethodDelete+" /groups/{groupID}", a.withAdmin(a.handleDeleteGroup))
}

// identityHandler is a handler that requires an authenticated caller.
type identityHandler func(w http.ResponseWriter, r *http.Request, identity session.Identity)

// withIdentity resolves the bearer token into the caller's identity before
// invoking the handler.
func (a *API) withIdentity(next identityHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := a.authenticate(r)
		if err != nil {
			a.writeError(w, err)
			return
		}
		ctx := requestctx.WithUserID(r.Context(), identity.User.ID)
		next(w, r.WithContext(ctx), identity)
	}
}

// withAdmin additionally requires the admin role or a superuser account.
// The gate rejects with a bare Forbidden body, unlike the domain-level
// permission errors which render the error envelope.
func (a *API) withAdmin(next identityHandler) http.HandlerFunc {
	return a.withIdentity(func(w http.ResponseWriter, r *http.Request, identity session.Identity) {
		if !authz.IsAdmin(identity) {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte("Forbidden"))
			return
		}
		next(w, r, identity)
	})
}

func (a *API) authenticate(r *http.Request) (session.Identity, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, raw, found := strings.Cut(header, " ")
	raw = strings.TrimSpace(raw)
	if !found || !strings.EqualFold(scheme, "Bearer") || raw == "" {
		return session.Identity{}, apperrors.Unauthenticated()
	}
	return a.sessions.LoadIdentity(httpx.RequestContext(r), raw)
}

func (a *API) handleHealthcheck(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]string{
		"status":      "ok",
		"environment": a.env.String(),
	})
}

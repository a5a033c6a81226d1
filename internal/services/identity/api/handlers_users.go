package api

import (
	"errors"
	"net/http"
	"strings"

	"golang.org/x/text/language"

	apperrors "lifeasagame.dev/internal/platform/errors"
	"lifeasagame.dev/internal/platform/httpx"
	"lifeasagame.dev/internal/platform/i18n"
	"lifeasagame.dev/internal/services/identity/filter"
	"lifeasagame.dev/internal/services/identity/session"
	"lifeasagame.dev/internal/services/identity/storage"
	"lifeasagame.dev/internal/services/identity/user"
)

type createUserPayload struct {
	Email     *string   `json:"email"`
	Password  *string   `json:"password"`
	FullName  *string   `json:"fullName"`
	BirthDate civilDate `json:"birthDate"`
	Locale    string    `json:"locale"`
}

// handleCreateUser registers a new account. Signup is open, no token needed.
func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var payload createUserPayload
	if err := a.decodeJSON(r, &payload); err != nil {
		a.writeInvalidPayload(w, err)
		return
	}
	if payload.Email == nil || payload.Password == nil || payload.FullName == nil || payload.BirthDate.IsZero() {
		a.writeInvalidPayload(w, errors.New("email, password, fullName and birthDate are required"))
		return
	}

	locale, err := a.resolveLocale(r, payload.Locale)
	if err != nil {
		a.writeError(w, err)
		return
	}

	record, err := a.users.Create(httpx.RequestContext(r), user.CreateParams{
		Email:     *payload.Email,
		Password:  *payload.Password,
		FullName:  *payload.FullName,
		BirthDate: payload.BirthDate.Time,
		Locale:    locale,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, newUserPayload(record))
}

// handleGetMe returns the authenticated account.
func (a *API) handleGetMe(w http.ResponseWriter, r *http.Request, identity session.Identity) {
	a.writeJSON(w, http.StatusOK, newUserPayload(identity.User))
}

type updateUserPayload struct {
	Email     string    `json:"email"`
	Password  string    `json:"password"`
	FullName  string    `json:"fullName"`
	BirthDate civilDate `json:"birthDate"`
	Locale    string    `json:"locale"`
}

// handleUpdateMe merges the sent fields into the authenticated account.
func (a *API) handleUpdateMe(w http.ResponseWriter, r *http.Request, identity session.Identity) {
	var payload updateUserPayload
	if err := a.decodeJSON(r, &payload); err != nil {
		a.writeInvalidPayload(w, err)
		return
	}
	locale := strings.TrimSpace(payload.Locale)
	if locale != "" {
		tag, ok := i18n.ParseTag(locale)
		if !ok {
			a.writeError(w, invalidLocale(locale))
			return
		}
		locale = tag.String()
	}

	record, err := a.users.Update(httpx.RequestContext(r), identity.User.ID, user.UpdateParams{
		Email:     payload.Email,
		Password:  payload.Password,
		FullName:  payload.FullName,
		BirthDate: payload.BirthDate.Time,
		Locale:    locale,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, newUserPayload(record))
}

// handleListUsers returns a filtered page of accounts.
func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request, identity session.Identity) {
	params, ok := a.parsePage(w, r)
	if !ok {
		return
	}
	predicate, err := filter.Parse(r.URL.Query().Get("filter"), filter.UserFields())
	if err != nil {
		a.writeInvalidPayload(w, err)
		return
	}

	page, err := a.users.List(httpx.RequestContext(r), storage.ListQuery{
		LastID:    params.LastID,
		Size:      params.Size,
		Predicate: predicate,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, mapPage(page, newUserPayload))
}

// handleDeleteUser removes an account by id.
func (a *API) handleDeleteUser(w http.ResponseWriter, r *http.Request, identity session.Identity) {
	if err := a.users.Delete(httpx.RequestContext(r), r.PathValue("userID")); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// resolveLocale picks the account language: an explicit locale must be
// supported, otherwise the Accept-Language header is matched against the
// supported set with en-US as the fallback.
func (a *API) resolveLocale(r *http.Request, explicit string) (string, error) {
	if locale := strings.TrimSpace(explicit); locale != "" {
		tag, ok := i18n.ParseTag(locale)
		if !ok {
			return "", invalidLocale(locale)
		}
		return tag.String(), nil
	}
	tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	if err != nil {
		return i18n.DefaultTag().String(), nil
	}
	return i18n.MatchTags(tags).String(), nil
}

func invalidLocale(locale string) *apperrors.Error {
	return apperrors.Validation(
		"Invalid locale",
		apperrors.FieldError{Name: "locale", Detail: "Locale " + locale + " is not supported"},
	)
}

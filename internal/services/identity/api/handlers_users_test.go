package api

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func signupPayload(overrides map[string]any) map[string]any {
	payload := map[string]any{
		"email":     "new@example.com",
		"password":  testPassword,
		"fullName":  "New Player",
		"birthDate": "1990-06-15",
	}
	for key, value := range overrides {
		if value == nil {
			delete(payload, key)
			continue
		}
		payload[key] = value
	}
	return payload
}

func TestSignup(t *testing.T) {
	f := newFixture(t)

	rec := f.doJSON(t, http.MethodPost, "/users", "", signupPayload(nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d, body %s", rec.Code, http.StatusCreated, rec.Body)
	}
	var created userPayload
	decodeBody(t, rec, &created)
	if created.ID == "" {
		t.Error("id is empty")
	}
	if created.Email != "new@example.com" {
		t.Errorf("email = %q, want new@example.com", created.Email)
	}
	if created.FullName != "New Player" {
		t.Errorf("fullName = %q, want New Player", created.FullName)
	}
	if created.IsSuperuser {
		t.Error("isSuperuser = true, want false")
	}
	if created.Locale != "en-US" {
		t.Errorf("locale = %q, want en-US", created.Locale)
	}
	if got := created.BirthDate.Format(civilDateLayout); got != "1990-06-15" {
		t.Errorf("birthDate = %q, want 1990-06-15", got)
	}

	body := rec.Body.String()
	if !strings.Contains(body, `"birthDate":"1990-06-15"`) {
		t.Errorf("body %q misses the date-only birthDate", body)
	}
	if !strings.Contains(body, `"deletedAt":null`) {
		t.Errorf("body %q misses the null deletedAt", body)
	}
	if strings.Contains(body, "password") {
		t.Errorf("body %q leaks a password field", body)
	}

	// The fresh account can sign in right away.
	f.login(t, "new@example.com", testPassword)
}

func TestSignupLocale(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name           string
		email          string
		locale         any
		acceptLanguage string
		want           string
	}{
		{name: "explicit supported", email: "a@example.com", locale: "pt-BR", want: "pt-BR"},
		{name: "header match", email: "b@example.com", locale: nil, acceptLanguage: "pt-BR,pt;q=0.9,en;q=0.5", want: "pt-BR"},
		{name: "header fallback", email: "c@example.com", locale: nil, acceptLanguage: "ja-JP", want: "en-US"},
		{name: "no preference", email: "d@example.com", locale: nil, want: "en-US"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload := signupPayload(map[string]any{"email": tc.email, "locale": tc.locale})
			req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(marshalJSON(t, payload)))
			req.Header.Set("Content-Type", "application/json")
			if tc.acceptLanguage != "" {
				req.Header.Set("Accept-Language", tc.acceptLanguage)
			}
			rec := httptest.NewRecorder()
			f.mux.ServeHTTP(rec, req)

			if rec.Code != http.StatusCreated {
				t.Fatalf("status = %d, want %d, body %s", rec.Code, http.StatusCreated, rec.Body)
			}
			var created userPayload
			decodeBody(t, rec, &created)
			if created.Locale != tc.want {
				t.Errorf("locale = %q, want %q", created.Locale, tc.want)
			}
		})
	}
}

func TestSignupRejectsUnsupportedLocale(t *testing.T) {
	f := newFixture(t)

	rec := f.doJSON(t, http.MethodPost, "/users", "", signupPayload(map[string]any{"locale": "de-DE"}))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
	var envelope errorEnvelope
	decodeBody(t, rec, &envelope)
	if envelope.Message != "Invalid locale" {
		t.Errorf("message = %q, want Invalid locale", envelope.Message)
	}
	if len(envelope.Fields) != 1 || envelope.Fields[0].Name != "locale" {
		t.Errorf("fields = %v, want a single locale entry", envelope.Fields)
	}
}

func TestSignupRequiresFields(t *testing.T) {
	f := newFixture(t)

	for _, field := range []string{"email", "password", "fullName", "birthDate"} {
		t.Run(field, func(t *testing.T) {
			rec := f.doJSON(t, http.MethodPost, "/users", "", signupPayload(map[string]any{field: nil}))
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
			}
			var envelope errorEnvelope
			decodeBody(t, rec, &envelope)
			if envelope.Detail != "Invalid JSON payload" {
				t.Errorf("detail = %q, want Invalid JSON payload", envelope.Detail)
			}
		})
	}
}

func TestSignupEnforcesPasswordPolicy(t *testing.T) {
	f := newFixture(t)

	rec := f.doJSON(t, http.MethodPost, "/users", "", signupPayload(map[string]any{"password": "weak"}))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
	var envelope errorEnvelope
	decodeBody(t, rec, &envelope)
	if envelope.Message != "Invalid password" {
		t.Errorf("message = %q, want Invalid password", envelope.Message)
	}
	if len(envelope.Fields) == 0 {
		t.Error("fields is empty, want one entry per violated rule")
	}
	for _, field := range envelope.Fields {
		if field.Name != "password" {
			t.Errorf("field name = %q, want password", field.Name)
		}
	}
}

func TestSignupRejectsDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, "taken@example.com", false)

	rec := f.doJSON(t, http.MethodPost, "/users", "", signupPayload(map[string]any{"email": "taken@example.com"}))
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
	var envelope errorEnvelope
	decodeBody(t, rec, &envelope)
	if envelope.Message != "User already exists" {
		t.Errorf("message = %q, want User already exists", envelope.Message)
	}
	if len(envelope.Fields) != 1 || envelope.Fields[0].Name != "email" {
		t.Fatalf("fields = %v, want a single email entry", envelope.Fields)
	}
	if envelope.Fields[0].Detail != "Email taken@example.com already exists" {
		t.Errorf("field detail = %q, want the taken-email text", envelope.Fields[0].Detail)
	}
}

func TestUpdateMe(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, "player@example.com", false)
	sess := f.login(t, "player@example.com", testPassword)

	rec := f.doJSON(t, http.MethodPatch, "/users/me", sess.AccessToken, map[string]any{"fullName": "Renamed Player"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body %s", rec.Code, http.StatusOK, rec.Body)
	}
	var updated userPayload
	decodeBody(t, rec, &updated)
	if updated.FullName != "Renamed Player" {
		t.Errorf("fullName = %q, want Renamed Player", updated.FullName)
	}
	if updated.Email != "player@example.com" {
		t.Errorf("email = %q, want it untouched", updated.Email)
	}

	rec = f.doJSON(t, http.MethodPatch, "/users/me", sess.AccessToken, map[string]any{"birthDate": "1992-02-29"})
	if rec.Code != http.StatusOK {
		t.Fatalf("birthDate status = %d, want %d, body %s", rec.Code, http.StatusOK, rec.Body)
	}
	decodeBody(t, rec, &updated)
	if got := updated.BirthDate.Format(civilDateLayout); got != "1992-02-29" {
		t.Errorf("birthDate = %q, want 1992-02-29", got)
	}
	if updated.FullName != "Renamed Player" {
		t.Errorf("fullName = %q, want the earlier rename kept", updated.FullName)
	}
}

func TestUpdateMeRejectsSamePassword(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, "player@example.com", false)
	sess := f.login(t, "player@example.com", testPassword)

	rec := f.doJSON(t, http.MethodPatch, "/users/me", sess.AccessToken, map[string]any{"password": testPassword})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
	var envelope errorEnvelope
	decodeBody(t, rec, &envelope)
	if envelope.Message != "New password cannot be the same as the old one" {
		t.Errorf("message = %q, want the same-password error", envelope.Message)
	}
}

func TestUpdateMeRejectsUnsupportedLocale(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, "player@example.com", false)
	sess := f.login(t, "player@example.com", testPassword)

	rec := f.doJSON(t, http.MethodPatch, "/users/me", sess.AccessToken, map[string]any{"locale": "fr-FR"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
}

func TestListUsersPagination(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, "root@example.com", true)
	f.seedAccount(t, "a@example.com", false)
	f.seedAccount(t, "b@example.com", false)
	sess := f.login(t, "root@example.com", testPassword)

	rec := f.doJSON(t, http.MethodGet, "/users?size=2", sess.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body %s", rec.Code, http.StatusOK, rec.Body)
	}
	var first struct {
		Data    []userPayload `json:"data"`
		Total   int64         `json:"total"`
		HasNext bool          `json:"hasNext"`
		Page    struct {
			LastID *string `json:"lastId"`
			Size   int     `json:"size"`
		} `json:"page"`
	}
	decodeBody(t, rec, &first)
	if len(first.Data) != 2 {
		t.Fatalf("len(data) = %d, want 2", len(first.Data))
	}
	if first.Total != 3 {
		t.Errorf("total = %d, want 3", first.Total)
	}
	if !first.HasNext {
		t.Error("hasNext = false, want true")
	}
	if first.Page.Size != 2 {
		t.Errorf("page.size = %d, want 2", first.Page.Size)
	}
	if first.Page.LastID == nil || *first.Page.LastID != first.Data[1].ID {
		t.Fatalf("page.lastId = %v, want the final row id", first.Page.LastID)
	}

	rec = f.doJSON(t, http.MethodGet, "/users?size=2&lastId="+*first.Page.LastID, sess.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("second page status = %d, want %d", rec.Code, http.StatusOK)
	}
	var second struct {
		Data    []userPayload `json:"data"`
		HasNext bool          `json:"hasNext"`
	}
	decodeBody(t, rec, &second)
	if len(second.Data) != 1 {
		t.Fatalf("len(second page) = %d, want 1", len(second.Data))
	}
	if second.HasNext {
		t.Error("second page hasNext = true, want false")
	}
	if second.Data[0].ID == first.Data[0].ID || second.Data[0].ID == first.Data[1].ID {
		t.Error("second page repeats a first-page row")
	}
}

func TestListUsersRejectsZeroSize(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, "root@example.com", true)
	sess := f.login(t, "root@example.com", testPassword)

	rec := f.doJSON(t, http.MethodGet, "/users?size=0", sess.AccessToken, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
	var envelope errorEnvelope
	decodeBody(t, rec, &envelope)
	if envelope.Message != "Size must be greater than or equal to 1" {
		t.Errorf("message = %q, want the size bound error", envelope.Message)
	}
}

func TestListUsersFilter(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, "root@example.com", true)
	f.seedAccount(t, "ada@example.com", false)
	f.seedAccount(t, "grace@example.com", false)
	sess := f.login(t, "root@example.com", testPassword)

	query := url.Values{"filter": {`email = "ada@example.com"`}}
	rec := f.doJSON(t, http.MethodGet, "/users?"+query.Encode(), sess.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body %s", rec.Code, http.StatusOK, rec.Body)
	}
	var page struct {
		Data  []userPayload `json:"data"`
		Total int64         `json:"total"`
	}
	decodeBody(t, rec, &page)
	if len(page.Data) != 1 || page.Data[0].Email != "ada@example.com" {
		t.Fatalf("data = %v, want only ada@example.com", page.Data)
	}
	if page.Total != 1 {
		t.Errorf("total = %d, want the filtered count", page.Total)
	}

	query = url.Values{"filter": {"is_superuser = true"}}
	rec = f.doJSON(t, http.MethodGet, "/users?"+query.Encode(), sess.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("superuser filter status = %d, want %d, body %s", rec.Code, http.StatusOK, rec.Body)
	}
	decodeBody(t, rec, &page)
	if len(page.Data) != 1 || page.Data[0].Email != "root@example.com" {
		t.Fatalf("data = %v, want only the superuser", page.Data)
	}
}

func TestListUsersRejectsBadFilter(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, "root@example.com", true)
	sess := f.login(t, "root@example.com", testPassword)

	for name, filterExpr := range map[string]string{
		"syntax":        `=== nope`,
		"unknown field": `codename = "x"`,
	} {
		t.Run(name, func(t *testing.T) {
			query := url.Values{"filter": {filterExpr}}
			rec := f.doJSON(t, http.MethodGet, "/users?"+query.Encode(), sess.AccessToken, nil)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d, want %d, body %s", rec.Code, http.StatusUnprocessableEntity, rec.Body)
			}
		})
	}
}

func TestDeleteUser(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, "root@example.com", true)
	target := f.seedAccount(t, "doomed@example.com", false)
	sess := f.login(t, "root@example.com", testPassword)

	rec := f.doJSON(t, http.MethodDelete, "/users/"+target.ID, sess.AccessToken, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d, body %s", rec.Code, http.StatusNoContent, rec.Body)
	}

	rec = f.doJSON(t, http.MethodDelete, "/users/"+target.ID, sess.AccessToken, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("repeat status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
	var envelope errorEnvelope
	decodeBody(t, rec, &envelope)
	if envelope.Message != "User does not exist" {
		t.Errorf("message = %q, want User does not exist", envelope.Message)
	}

	// The deleted account cannot sign in again.
	form := url.Values{"username": {"doomed@example.com"}, "password": {testPassword}}
	rec = f.doBody(t, http.MethodPost, "/auth/token", "", "application/x-www-form-urlencoded", form.Encode())
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("deleted login status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

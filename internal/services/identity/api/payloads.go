package api

import (
	"fmt"
	"strconv"
	"time"

	"lifeasagame.dev/internal/services/identity/session"
	"lifeasagame.dev/internal/services/identity/storage"
)

const civilDateLayout = "2006-01-02"

// civilDate renders a timestamp as a calendar date on the wire.
type civilDate struct {
	time.Time
}

func (d civilDate) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(d.Format(civilDateLayout))), nil
}

func (d *civilDate) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	raw, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("birth date must be a %q string", civilDateLayout)
	}
	parsed, err := time.Parse(civilDateLayout, raw)
	if err != nil {
		return err
	}
	d.Time = parsed
	return nil
}

// sessionPayload is the OAuth-style token response.
type sessionPayload struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

func newSessionPayload(sess session.Session) sessionPayload {
	return sessionPayload{
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
		ExpiresIn:    sess.ExpiresIn,
		TokenType:    "Bearer",
	}
}

type userPayload struct {
	ID          string     `json:"id"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	DeletedAt   *time.Time `json:"deletedAt"`
	Email       string     `json:"email"`
	FullName    string     `json:"fullName"`
	IsSuperuser bool       `json:"isSuperuser"`
	BirthDate   civilDate  `json:"birthDate"`
	LastLogin   *time.Time `json:"lastLogin"`
	Locale      string     `json:"locale"`
}

func newUserPayload(record storage.UserRecord) userPayload {
	return userPayload{
		ID:          record.ID,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
		DeletedAt:   record.DeletedAt,
		Email:       record.Email,
		FullName:    record.FullName,
		IsSuperuser: record.IsSuperuser,
		BirthDate:   civilDate{Time: record.BirthDate},
		LastLogin:   record.LastLogin,
		Locale:      record.Locale,
	}
}

type rolePayload struct {
	ID          string     `json:"id"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	DeletedAt   *time.Time `json:"deletedAt"`
	Codename    string     `json:"codename"`
	Description string     `json:"description"`
}

func newRolePayload(record storage.RoleRecord) rolePayload {
	return rolePayload{
		ID:          record.ID,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
		DeletedAt:   record.DeletedAt,
		Codename:    record.Codename,
		Description: record.Description,
	}
}

// groupPayload inlines the attached roles so group reads never need a
// second request.
type groupPayload struct {
	ID          string        `json:"id"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
	DeletedAt   *time.Time    `json:"deletedAt"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Roles       []rolePayload `json:"roles"`
}

func newGroupPayload(record storage.GroupRecord) groupPayload {
	roles := make([]rolePayload, 0, len(record.Roles))
	for _, role := range record.Roles {
		roles = append(roles, newRolePayload(role))
	}
	return groupPayload{
		ID:          record.ID,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
		DeletedAt:   record.DeletedAt,
		Name:        record.Name,
		Description: record.Description,
		Roles:       roles,
	}
}

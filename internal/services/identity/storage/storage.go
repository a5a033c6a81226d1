package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness constraint was violated.
var ErrAlreadyExists = errors.New("record already exists")

// UserRecord stores a persisted account.
type UserRecord struct {
	ID           string
	Email        string
	PasswordHash string
	FullName     string
	BirthDate    time.Time
	Locale       string
	IsSuperuser  bool
	LastLogin    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

// RoleRecord stores a persisted role.
type RoleRecord struct {
	ID          string
	Codename    string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

// GroupRecord stores a persisted group together with its attached roles.
type GroupRecord struct {
	ID          string
	Name        string
	Description string
	Roles       []RoleRecord
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

// SessionRecord stores one issued token pair keyed by its token id.
type SessionRecord struct {
	UserID    string
	TokenID   string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Predicate is an optional SQL fragment pushed into list and count queries.
// The zero value matches every row.
type Predicate struct {
	SQL  string
	Args []any
}

// ListQuery carries keyset pagination inputs for list operations. LastID is
// exclusive: rows with ids greater than it are returned, in id order.
type ListQuery struct {
	LastID    string
	Size      int
	Predicate Predicate
}

// UserStore persists account records.
type UserStore interface {
	CreateUser(ctx context.Context, record UserRecord) error
	GetUserByID(ctx context.Context, userID string) (UserRecord, error)
	GetUserByEmail(ctx context.Context, email string) (UserRecord, error)
	UpdateUser(ctx context.Context, record UserRecord) error
	DeleteUser(ctx context.Context, userID string) (int64, error)
	UserExists(ctx context.Context, userID string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	CountUsersByIDs(ctx context.Context, userIDs []string) (int64, error)
	ListUsers(ctx context.Context, query ListQuery) ([]UserRecord, error)
	CountUsers(ctx context.Context, predicate Predicate) (int64, error)
}

// RoleStore persists role records.
type RoleStore interface {
	CreateRole(ctx context.Context, record RoleRecord) error
	GetRoleByID(ctx context.Context, roleID string) (RoleRecord, error)
	GetRoleByCodename(ctx context.Context, codename string) (RoleRecord, error)
	UpdateRole(ctx context.Context, record RoleRecord) error
	RoleCodenameExists(ctx context.Context, codename string, excludeRoleID string) (bool, error)
	CountActiveRolesByIDs(ctx context.Context, roleIDs []string) (int64, error)
	ListRoles(ctx context.Context, query ListQuery) ([]RoleRecord, error)
	CountRoles(ctx context.Context, predicate Predicate) (int64, error)
	ListRolesByCodenames(ctx context.Context, codenames []string, query ListQuery) ([]RoleRecord, error)
	CountRolesByCodenames(ctx context.Context, codenames []string) (int64, error)
	CountRolesForDelete(ctx context.Context, roleID string, excludeCodename string) (int64, error)
	DeleteRole(ctx context.Context, roleID string, excludeCodename string) (int64, error)
}

// GroupStore persists group records, role attachments and memberships.
type GroupStore interface {
	CreateGroup(ctx context.Context, record GroupRecord) error
	GetGroupByID(ctx context.Context, groupID string) (GroupRecord, error)
	GetGroupByName(ctx context.Context, name string) (GroupRecord, error)
	UpdateGroup(ctx context.Context, record GroupRecord) error
	DeleteGroup(ctx context.Context, groupID string) error
	GroupExists(ctx context.Context, groupID string) (bool, error)
	GroupNameExists(ctx context.Context, name string) (bool, error)
	ListGroupsByNames(ctx context.Context, names []string, query ListQuery) ([]GroupRecord, error)
	CountGroupsByNames(ctx context.Context, names []string) (int64, error)
	GroupsByUser(ctx context.Context, userID string) ([]GroupRecord, error)
	AttachRoles(ctx context.Context, groupID string, roleIDs []string) (int64, error)
	DetachRoles(ctx context.Context, groupID string, roleIDs []string) (int64, error)
	GroupHasRoles(ctx context.Context, groupID string, roleIDs []string) (bool, error)
	RoleAttachedToAnyGroup(ctx context.Context, roleID string) (bool, error)
	AddGroupMembers(ctx context.Context, groupID string, userIDs []string) (int64, error)
	RemoveGroupMembers(ctx context.Context, groupID string, userIDs []string) (int64, error)
	GroupHasMembers(ctx context.Context, groupID string, userIDs []string) (bool, error)
}

// SessionStore persists issued token sessions. Rows past their expiry are
// treated as absent and reaped by DeleteExpiredSessions.
type SessionStore interface {
	PutSession(ctx context.Context, record SessionRecord) error
	SessionExists(ctx context.Context, userID string, tokenID string, now time.Time) (bool, error)
	DeleteSession(ctx context.Context, userID string, tokenID string) error
	DeleteUserSessions(ctx context.Context, userID string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// Package sqlite provides SQLite-backed identity persistence.
//
// It is the on-disk store used by the identity service for accounts, roles,
// groups and issued sessions.
package sqlite

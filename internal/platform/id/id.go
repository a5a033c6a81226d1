// Package id generates unique identifiers for persisted records.
//
// Identifiers are UUIDv7 values in canonical string form. The leading
// timestamp bits make the string ordering match creation order, which keyset
// pagination in the storage layer relies on.
package id

import "github.com/google/uuid"

// NewID returns a new UUIDv7 identifier in canonical lowercase form.
func NewID() (string, error) {
	u, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

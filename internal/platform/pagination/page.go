// Package pagination implements keyset pagination for list endpoints.
package pagination

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
)

// SizeConfig configures page size normalization.
type SizeConfig struct {
	Default int
	Max     int
}

// ClampSize applies defaults and limits for page sizes.
func ClampSize(value int, cfg SizeConfig) int {
	pageSize := value
	if pageSize <= 0 {
		pageSize = cfg.Default
	}
	if cfg.Max > 0 && pageSize > cfg.Max {
		pageSize = cfg.Max
	}
	if pageSize <= 0 {
		pageSize = 1
	}
	return pageSize
}

// Params carries the cursor inputs parsed from a request query string.
type Params struct {
	LastID string
	Size   int
}

// ParseParams reads lastId and size query parameters. lastId is preferred,
// last_id is accepted as a fallback. A missing size falls back to cfg
// defaults; an explicit size below 1 is rejected. Error texts are
// client-facing and pass through to the response envelope unchanged.
func ParseParams(query url.Values, cfg SizeConfig) (Params, error) {
	size := 0
	if raw := strings.TrimSpace(query.Get("size")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return Params{}, errors.New("Size must be a valid integer")
		}
		if parsed < 1 {
			return Params{}, errors.New("Size must be greater than or equal to 1")
		}
		size = parsed
	}
	lastID := strings.TrimSpace(query.Get("lastId"))
	if lastID == "" {
		lastID = strings.TrimSpace(query.Get("last_id"))
	}
	return Params{
		LastID: lastID,
		Size:   ClampSize(size, cfg),
	}, nil
}

// Info echoes the cursor callers pass to fetch the next page.
type Info struct {
	LastID *string `json:"lastId"`
	Size   int     `json:"size"`
}

// Page is the envelope returned by list endpoints.
type Page[T any] struct {
	Data    []T   `json:"data"`
	Total   int64 `json:"total"`
	Page    Info  `json:"page"`
	HasNext bool  `json:"hasNext"`
}

// NewPage builds a page envelope. lastID is the id of the final row in data
// and is omitted when the page is empty. A full page reports hasNext so the
// caller knows to request another one.
func NewPage[T any](data []T, total int64, size int, lastID string) Page[T] {
	if data == nil {
		data = []T{}
	}
	page := Page[T]{
		Data:    data,
		Total:   total,
		Page:    Info{Size: size},
		HasNext: len(data) == size && size > 0,
	}
	if len(data) > 0 {
		page.Page.LastID = &lastID
	}
	return page
}

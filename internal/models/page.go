package models

import (
	"fmt"
	"strconv"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PageRequest selects one page of a listing.
type PageRequest struct {
	Limit  int
	Cursor string
}

// Normalize clamps Limit into [1, MaxPageSize].
func (p PageRequest) Normalize() PageRequest {
	switch {
	case p.Limit <= 0:
		p.Limit = DefaultPageSize
	case p.Limit > MaxPageSize:
		p.Limit = MaxPageSize
	}
	return p
}

// Page is one page of results plus the cursor for the next one.
type Page[T any] struct {
	Items      []T    `json:"items"`
	Count      int    `json:"count"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// NewPage builds a page, never leaving Items nil.
func NewPage[T any](items []T, next string) *Page[T] {
	if items == nil {
		items = []T{}
	}
	return &Page[T]{Items: items, Count: len(items), NextCursor: next}
}

// ParsePageRequest reads the limit and cursor query parameters. An empty
// limit means the default page size.
func ParsePageRequest(limit, cursor string) (PageRequest, error) {
	p := PageRequest{Cursor: cursor}
	if limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n <= 0 {
			return p, fmt.Errorf("limit must be a positive integer")
		}
		p.Limit = n
	}
	return p.Normalize(), nil
}

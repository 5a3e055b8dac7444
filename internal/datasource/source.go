// Package datasource contains the per-platform paging sources. A source maps
// one page request to a network call through an injected typed fetch function
// and normalizes the platform DTOs into cache rows. Sources never touch the
// store; the mediator persists their output transactionally.
package datasource

import (
	"context"

	"github.com/d60-Lab/timeline-cache/internal/model"
)

// LoadKind identifies which frontier of the feed a fetch targets.
type LoadKind int

const (
	LoadRefresh LoadKind = iota + 1
	LoadPrepend
	LoadAppend
)

// PageRequest is a single fetch instruction. Cursor is empty for LoadRefresh
// and holds the opaque platform cursor for LoadPrepend/LoadAppend.
type PageRequest struct {
	Kind   LoadKind
	Cursor string
	Limit  int
}

// Row is one normalized timeline row: the status itself, every entity observed
// alongside it (authors, referenced statuses and their authors), the reference
// edges, and the sort id establishing feed order. Referenced statuses go into
// Statuses, not their own rows — only Status gets a timeline entry.
type Row struct {
	Status     model.Status
	SortID     int64
	Users      []model.User
	Statuses   []model.Status
	References []model.StatusReference
}

// PageResult is a fetched page. A nil cursor declares end-of-pagination for
// that direction; an empty Rows with a non-nil cursor means a transient empty
// page and must not be conflated with the end.
type PageResult struct {
	Rows    []Row
	NextKey *string
	PrevKey *string
}

// PagingSource fetches pages for one feed instance.
type PagingSource interface {
	FetchPage(ctx context.Context, req PageRequest) (*PageResult, error)
	// SingleShot declares that the source has no incremental paging at all
	// (e.g. RSS): only refresh fetches, prepend/append end immediately.
	SingleShot() bool
}

func strptr(s string) *string { return &s }

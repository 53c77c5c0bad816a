package domain

import "math"

const (
	DefaultPerPage = 15
	MaxPerPage     = 100
	// MaxPage keeps Offset representable for every per-page value.
	MaxPage = math.MaxInt / MaxPerPage
)

// PageRequest is a 1-based page selector used by list queries.
type PageRequest struct {
	Page    int
	PerPage int
}

// NewPageRequest clamps page and per-page into their supported ranges.
func NewPageRequest(page, perPage int) PageRequest {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return PageRequest{Page: page, PerPage: perPage}
}

// Offset is the number of rows skipped before the page. Requests built
// without NewPageRequest are clamped the same way, so it is never negative.
func (p PageRequest) Offset() int {
	p = NewPageRequest(p.Page, p.PerPage)
	return (p.Page - 1) * p.PerPage
}

// Limit is the page size.
func (p PageRequest) Limit() int {
	return NewPageRequest(p.Page, p.PerPage).PerPage
}

// Page is one slice of a list result plus the total number of matching rows.
type Page[T any] struct {
	Items   []T
	Total   int
	Request PageRequest
}

// LastPage returns the number of the final page, at least 1.
func (p Page[T]) LastPage() int {
	if p.Request.PerPage <= 0 || p.Total == 0 {
		return 1
	}
	return (p.Total + p.Request.PerPage - 1) / p.Request.PerPage
}

// Paginate applies a page request to an in-memory slice.
func Paginate[T any](items []T, req PageRequest) Page[T] {
	total := len(items)
	start := min(max(req.Offset(), 0), total)
	end := min(start+req.Limit(), total)
	return Page[T]{Items: items[start:end], Total: total, Request: req}
}

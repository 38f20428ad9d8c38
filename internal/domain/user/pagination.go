package user

import "math"

const (
	// DefaultPageSize is used whenever a requested page size is out of range.
	DefaultPageSize int64 = 10
	// MaxPageSize is the largest page size served.
	MaxPageSize int64 = 100
)

// PageRequest is a normalized 1-based page window.
type PageRequest struct {
	Page     int64
	PageSize int64
}

// NewPageRequest clamps page and pageSize instead of rejecting them:
// page below 1 becomes 1, and a pageSize outside [1, MaxPageSize] falls back
// to DefaultPageSize.
func NewPageRequest(page, pageSize int64) PageRequest {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		pageSize = DefaultPageSize
	}
	return PageRequest{Page: page, PageSize: pageSize}
}

// Skip returns the number of records preceding the page window. It saturates
// instead of overflowing for absurdly large pages.
func (p PageRequest) Skip() int64 {
	if p.PageSize > 0 && p.Page-1 > math.MaxInt64/p.PageSize {
		return math.MaxInt64
	}
	return (p.Page - 1) * p.PageSize
}

// PagedResult is one page of users plus the total count of matching users,
// independent of the page window.
type PagedResult struct {
	Users      []User
	Page       int64
	PageSize   int64
	TotalCount int64
}

// NewPagedResult wraps users fetched for the given window.
func NewPagedResult(users []User, p PageRequest, total int64) *PagedResult {
	if users == nil {
		users = []User{}
	}
	return &PagedResult{
		Users:      users,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalCount: total,
	}
}

package utils

import "math"

// PaginationParams holds pagination request parameters
type PaginationParams struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

// PaginationMeta holds pagination response metadata
type PaginationMeta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalCount int `json:"totalCount"`
	TotalPages int `json:"totalPages"`
}

// GetPaginationParams normalizes page and limit.
// Default: page=1, limit=0 (0 means all items)
func GetPaginationParams(page, limit int) PaginationParams {
	if page < 1 {
		page = 1
	}
	if limit < 0 {
		limit = 0
	}
	return PaginationParams{
		Page:  page,
		Limit: limit,
	}
}

// Offset returns the index of the first item on the page. Pages whose offset
// does not fit in an int clamp to math.MaxInt.
func (p PaginationParams) Offset() int {
	if p.Page < 1 || p.Limit <= 0 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.Limit {
		return math.MaxInt
	}
	return (p.Page - 1) * p.Limit
}

// Paginate returns the window of items selected by p. A zero limit keeps all
// items; a page past the end yields an empty slice.
func Paginate[T any](items []T, p PaginationParams) []T {
	if p.Limit <= 0 {
		return items
	}
	start := p.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + p.Limit
	if end > len(items) || end < start {
		end = len(items)
	}
	return items[start:end]
}

// CalculateMeta generates pagination metadata
func CalculateMeta(totalCount int, p PaginationParams) PaginationMeta {
	if p.Limit <= 0 {
		return PaginationMeta{
			Page:       1,
			Limit:      totalCount,
			TotalCount: totalCount,
			TotalPages: 1,
		}
	}

	return PaginationMeta{
		Page:       p.Page,
		Limit:      p.Limit,
		TotalCount: totalCount,
		TotalPages: int(math.Ceil(float64(totalCount) / float64(p.Limit))),
	}
}

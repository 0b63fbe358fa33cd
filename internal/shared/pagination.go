package shared

import (
	"math"
	"net/http"
	"strconv"
	"strings"
)

const (
	// DefaultPerPage is used when the caller does not ask for a page size.
	DefaultPerPage = 20
	// MaxPerPage caps page sizes requested by clients.
	MaxPerPage = 200
)

// ListFilters represents the standard list query parameters.
type ListFilters struct {
	Page    int
	PerPage int
	Search  string
	SortBy  string
	SortDir string
}

// Offset returns the row offset of the requested page.
func (f ListFilters) Offset() int {
	if f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit()
}

// Limit returns the normalised page size.
func (f ListFilters) Limit() int {
	switch {
	case f.PerPage <= 0:
		return DefaultPerPage
	case f.PerPage > MaxPerPage:
		return MaxPerPage
	default:
		return f.PerPage
	}
}

// Descending reports whether the caller asked for descending order.
func (f ListFilters) Descending() bool {
	return strings.EqualFold(f.SortDir, "desc")
}

// ListFiltersFromRequest reads page, per_page, q, sort and dir query parameters.
func ListFiltersFromRequest(r *http.Request) ListFilters {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	return ListFilters{
		Page:    page,
		PerPage: perPage,
		Search:  strings.TrimSpace(q.Get("q")),
		SortBy:  q.Get("sort"),
		SortDir: q.Get("dir"),
	}
}

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if page <= 0 {
		page = 1
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// Page is the JSON envelope of a paginated list.
type Page[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// NewPage builds a Page from the filters that produced items.
func NewPage[T any](items []T, filters ListFilters, total int) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Pagination: NewPagination(filters.Page, filters.Limit(), total)}
}

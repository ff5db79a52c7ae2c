// Package utils holds the page arithmetic shared by the HTTP layer and the
// services. Pages are 1-based.
package utils

import "strconv"

// Page size bounds applied to every listing.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// AtoiDefault converts s with strconv.Atoi, returning def when s is empty or
// not an integer.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// ParseQuery reads the page and page_size query values. Missing or garbled
// values fall back to the defaults; an explicit size below 1 becomes 1.
func ParseQuery(page, pageSize string) (int, int) {
	p := AtoiDefault(page, 1)
	if p < 1 {
		p = 1
	}
	ps := AtoiDefault(pageSize, DefaultPageSize)
	if ps < 1 {
		ps = 1
	}
	if ps > MaxPageSize {
		ps = MaxPageSize
	}
	return p, ps
}

// Normalize bounds values coming from callers other than the query parser.
// A non-positive size means DefaultPageSize.
func Normalize(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// Offset returns how many rows precede page.
func Offset(page, pageSize int) int {
	return (page - 1) * pageSize
}

// TotalPages returns the number of pages needed for total rows.
func TotalPages(total int64, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}

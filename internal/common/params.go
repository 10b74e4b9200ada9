package common

import (
	"net/http"
	"strconv"
)

// maxPerPage caps list sizes so a terminal cannot ask for the whole
// transaction history in one page.
const maxPerPage = 100

// Pagination is the metadata block attached to list responses.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
}

// ParsePagination reads page and limit query parameters, clamping both
// to sane bounds.
func ParsePagination(r *http.Request, defaultPerPage int) (page, perPage int) {
	page = 1
	if p := AtoiDefault(r.URL.Query().Get("page"), 1); p > 0 {
		page = p
	}
	perPage = defaultPerPage
	if l := AtoiDefault(r.URL.Query().Get("limit"), defaultPerPage); l > 0 {
		perPage = l
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}

// AtoiDefault parses value as an integer, returning def on failure.
func AtoiDefault(value string, def int) int {
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

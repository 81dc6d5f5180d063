// Package params parses list query parameters shared by the API handlers.
package params

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Pagination describes one page of a list response: ?page=2&limit=30
// selects items 30..59.
type Pagination struct {
	Limit      int  `json:"limit"`
	Offset     int  `json:"-"`
	Page       int  `json:"page"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// ParsePagination reads limit and page from q. Missing or invalid values
// fall back to the defaults; limit is clamped to MaxLimit.
func ParsePagination(q url.Values) Pagination {
	p := Pagination{Limit: DefaultLimit, Page: 1}

	if s := strings.TrimSpace(q.Get("limit")); s != "" {
		if limit, err := strconv.Atoi(s); err == nil && limit > 0 {
			p.Limit = min(limit, MaxLimit)
		}
	}
	if s := strings.TrimSpace(q.Get("page")); s != "" {
		if page, err := strconv.Atoi(s); err == nil && page > 0 {
			p.Page = page
		}
	}

	p.Offset = (p.Page - 1) * p.Limit
	return p
}

// ComputeMeta fills the totals once the full item count is known.
func (p *Pagination) ComputeMeta(total int) {
	p.Total = total
	p.TotalPages = 0
	if p.Limit > 0 {
		p.TotalPages = int(math.Ceil(float64(total) / float64(p.Limit)))
	}
	p.HasPrev = p.Page > 1
	p.HasNext = p.Offset+p.Limit < total
}

package service

// Page size bounds
const (
	DefaultLimit = 10        // Used when limit is missing or not positive
	MaxLimit     = 100       // Larger limits are capped
	MaxPage      = 1_000_000 // MaxPage * MaxLimit stays within a 32-bit int
)

// Page is a 1-based page request.
type Page struct {
	Page  int // 1-based page number
	Limit int // Page size
}

// NewPage normalises raw page/limit values: non-positive values fall back to
// page 1 and DefaultLimit, page is capped at MaxPage and limit at MaxLimit.
func NewPage(page, limit int) Page {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Page{Page: page, Limit: limit}
}

// Offset converts the 1-based page into a row offset.
func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Pagination describes a page of results relative to the full set.
type Pagination struct {
	Total int64 `json:"total"` // Rows matching the query
	Page  int   `json:"page"`  // Current page
	Pages int   `json:"pages"` // ceil(Total / Limit)
	Limit int   `json:"limit"` // Page size
}

// NewPagination computes the page count for total rows.
func NewPagination(total int64, p Page) Pagination {
	pages := int((total + int64(p.Limit) - 1) / int64(p.Limit))
	return Pagination{Total: total, Page: p.Page, Pages: pages, Limit: p.Limit}
}

package pagination

const (
	DefaultPage     = 1
	DefaultPageSize = 12
)

// Pagination is a page-number request as bound from query strings.
type Pagination struct {
	Page     int `form:"page"`
	PageSize int `form:"itemsPerPage"`
}

type PageInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"itemsPerPage"`
	Total    int  `json:"total"`
	HasMore  bool `json:"hasMore"`
}

// Normalize applies defaults to unset or non-positive values and caps the
// page size when maxPageSize is positive.
func (p Pagination) Normalize(maxPageSize int) Pagination {
	if p.Page <= 0 {
		p.Page = DefaultPage
	}
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	if maxPageSize > 0 && p.PageSize > maxPageSize {
		p.PageSize = maxPageSize
	}
	return p
}

// Skip returns the number of rows preceding the page.
func (p Pagination) Skip() int {
	return SkipValue(p.Page, p.PageSize)
}

// SkipValue computes (page-1)*pageSize, or 0 when either input is invalid.
func SkipValue(page, pageSize int) int {
	if page <= 0 || pageSize <= 0 {
		return 0
	}
	return (page - 1) * pageSize
}

// Window returns the [start, end) bounds of the page within total items.
func Window(total int, p Pagination) (int, int) {
	start := p.Skip()
	if start > total {
		start = total
	}
	end := start + p.PageSize
	if p.PageSize <= 0 || end > total {
		end = total
	}
	return start, end
}

func BuildPageInfo(total int, p Pagination) PageInfo {
	_, end := Window(total, p)
	return PageInfo{
		Page:     p.Page,
		PageSize: p.PageSize,
		Total:    total,
		HasMore:  end < total,
	}
}

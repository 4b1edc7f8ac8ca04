package domain

// Page sizes applied to event and notification listings.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PaginationParams selects one page of a listing. Page is 1-based.
type PaginationParams struct {
	Page     int
	PageSize int
}

// Normalized returns p with Page at least 1 and PageSize in 1..MaxPageSize;
// a missing page size becomes DefaultPageSize.
func (p PaginationParams) Normalized() PaginationParams {
	if p.Page < 1 {
		p.Page = 1
	}
	switch {
	case p.PageSize < 1:
		p.PageSize = DefaultPageSize
	case p.PageSize > MaxPageSize:
		p.PageSize = MaxPageSize
	}
	return p
}

func (p PaginationParams) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}

package helpers

import (
	"net/http"
	"strconv"

	"eventhub/internal/domain"
)

// ParsePagination reads ?page= and ?page_size= for event and notification
// listings. Unparseable values are ignored and the result is normalized, so
// page_size=1000 is served as domain.MaxPageSize.
func ParsePagination(r *http.Request) domain.PaginationParams {
	q := r.URL.Query()
	return domain.PaginationParams{
		Page:     queryInt(q.Get("page")),
		PageSize: queryInt(q.Get("page_size")),
	}.Normalized()
}

func queryInt(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}

// PaginationMeta accompanies every paginated listing in the response envelope.
type PaginationMeta struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func NewPaginationMeta(page domain.PaginationParams, total int) PaginationMeta {
	meta := PaginationMeta{Page: page.Page, PageSize: page.PageSize, Total: total}
	if page.PageSize > 0 {
		meta.TotalPages = (total + page.PageSize - 1) / page.PageSize
	}
	return meta
}

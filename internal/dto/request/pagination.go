package request

const (
	defaultPerPage = 10
	maxPerPage     = 100
)

// PaginatedRequest carries the paging knobs for list endpoints. Zero values
// fall back to the first page at the default size.
type PaginatedRequest struct {
	Page    int `json:"page" validate:"min=1"`
	PerPage int `json:"per_page" validate:"min=1,max=100"`
}

func (r PaginatedRequest) Limit() int {
	switch {
	case r.PerPage < 1:
		return defaultPerPage
	case r.PerPage > maxPerPage:
		return maxPerPage
	default:
		return r.PerPage
	}
}

func (r PaginatedRequest) Offset() int {
	if r.Page < 1 {
		return 0
	}
	return (r.Page - 1) * r.Limit()
}

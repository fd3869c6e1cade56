package humastar

import "fmt"

// DefaultLimit is the page size used when a request leaves limit unset.
const DefaultLimit = 50

// Pager is implemented by response bodies that carry pagination metadata.
// LinkTransformer turns the result into RFC 8288 Link headers.
type Pager interface {
	PaginationLinks(basePath string) []string
}

// PageBody is a generic paginated response envelope.
type PageBody[T any] struct {
	Total  int `json:"total" doc:"Total number of items"`
	Offset int `json:"offset" doc:"Current offset"`
	Limit  int `json:"limit" doc:"Page size"`
	Data   []T `json:"data" doc:"Items"`
}

// PageInput is embedded by list operations.
type PageInput struct {
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Items to skip"`
	Limit  int `query:"limit" minimum:"1" maximum:"500" default:"50" doc:"Page size"`
}

// Paginate cuts one page out of items. Out-of-range offsets give an empty
// page with the correct total.
func Paginate[T any](items []T, offset, limit int) PageBody[T] {
	if limit <= 0 {
		limit = DefaultLimit
	}
	offset = max(offset, 0)
	start := min(offset, len(items))
	end := min(start+limit, len(items))

	data := make([]T, end-start)
	copy(data, items[start:end])
	return PageBody[T]{Total: len(items), Offset: offset, Limit: limit, Data: data}
}

// PaginationLinks returns first/prev/next/last Link header values.
func (p PageBody[T]) PaginationLinks(basePath string) []string {
	limit := p.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	links := []string{fmt.Sprintf(`<%s?offset=0&limit=%d>; rel="first"`, basePath, limit)}

	if p.Offset > 0 {
		prev := max(p.Offset-limit, 0)
		links = append(links, fmt.Sprintf(`<%s?offset=%d&limit=%d>; rel="prev"`, basePath, prev, limit))
	}
	if p.Offset+limit < p.Total {
		links = append(links, fmt.Sprintf(`<%s?offset=%d&limit=%d>; rel="next"`, basePath, p.Offset+limit, limit))
	}

	lastOffset := max(((p.Total-1)/limit)*limit, 0)
	return append(links, fmt.Sprintf(`<%s?offset=%d&limit=%d>; rel="last"`, basePath, lastOffset, limit))
}

package shared

import (
	"net/http"
	"strconv"
)

// Pagination is the window a list endpoint returns. Clients may send either
// limit/offset or page/pageSize; page numbers start at 1.
type Pagination struct {
	Limit  int
	Offset int
}

func ParsePagination(r *http.Request, defaultLimit, maxLimit int) Pagination {
	q := r.URL.Query()
	limit := positive(q.Get("limit"), positive(q.Get("pageSize"), defaultLimit))
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}

	offset := 0
	if raw := q.Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	} else if page := positive(q.Get("page"), 1); page > 1 {
		offset = (page - 1) * limit
	}
	return Pagination{Limit: limit, Offset: offset}
}

// WriteTotal sets the paging headers for a list response.
func (p Pagination) WriteTotal(w http.ResponseWriter, total int) {
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	if p.Offset+p.Limit < total {
		w.Header().Set("X-Next-Offset", strconv.Itoa(p.Offset+p.Limit))
	}
}

func positive(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

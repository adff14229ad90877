package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/devicehub-backend/pkg/errors"
	"github.com/angelmondragon/devicehub-backend/pkg/pagination"
)

// ParsePage reads ?limit= and ?cursor= for cursor paginated listings. A cursor
// that does not decode is rejected here rather than deep in a repository.
func ParsePage(r *http.Request) (pagination.Params, error) {
	query := r.URL.Query()

	limit := pagination.DefaultLimit
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return pagination.Params{}, fieldError("limit", "must be numeric")
		}
		if n < 1 || n > pagination.MaxLimit {
			return pagination.Params{}, pkgerrors.New(pkgerrors.CodeValidation, "query parameter out of range").
				WithDetails(map[string]any{"field": "limit", "min": 1, "max": pagination.MaxLimit})
		}
		limit = n
	}

	cursor := strings.TrimSpace(query.Get("cursor"))
	if _, err := pagination.ParseCursor(cursor); err != nil {
		return pagination.Params{}, fieldError("cursor", "is not a valid cursor")
	}
	return pagination.Params{Limit: limit, Cursor: cursor}, nil
}

// QueryList collects a repeated query key, also splitting comma separated
// values, and drops blanks.
func QueryList(r *http.Request, key string) []string {
	var out []string
	for _, raw := range r.URL.Query()[key] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func fieldError(field, msg string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid query parameter").
		WithDetails(map[string]any{"field": field, "reason": msg})
}

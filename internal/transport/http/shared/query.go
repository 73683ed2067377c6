package shared

import (
	"net/http"
	"strconv"
)

// ParseLimit reads ?limit=, falling back to defaultLimit and capping at maxLimit.
func ParseLimit(r *http.Request, defaultLimit, maxLimit int) int {
	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	return limit
}

// ParseOffset reads ?offset=; negative or malformed values read as 0.
func ParseOffset(r *http.Request) int {
	v, err := strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil || v < 0 {
		return 0
	}
	return v
}

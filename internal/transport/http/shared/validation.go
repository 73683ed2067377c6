package shared

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"cpis/internal/transport/http/api"
)

type ValidationIssue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

type Validator struct {
	issues []ValidationIssue
}

func NewValidator() *Validator {
	return &Validator{issues: make([]ValidationIssue, 0, 4)}
}

func (v *Validator) Add(field, reason string) {
	if v == nil {
		return
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return
	}
	v.issues = append(v.issues, ValidationIssue{Field: strings.TrimSpace(field), Reason: reason})
}

func (v *Validator) Required(field, value, reason string) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, reason)
	}
}

const dateOnly = "2006-01-02"

// OptionalDate parses raw as RFC3339 or YYYY-MM-DD. An empty value yields
// the zero time.
func (v *Validator) OptionalDate(field, raw string) time.Time {
	parsed, _ := v.optionalDate(field, raw)
	return parsed
}

// OptionalEndDate is OptionalDate for inclusive upper bounds: a bare date
// covers that whole day.
func (v *Validator) OptionalEndDate(field, raw string) time.Time {
	parsed, bare := v.optionalDate(field, raw)
	if bare {
		return parsed.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return parsed
}

func (v *Validator) optionalDate(field, raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed, false
	}
	parsed, err := time.Parse(dateOnly, raw)
	if err != nil {
		v.Add(field, "must be a valid date in YYYY-MM-DD or RFC3339 format")
		return time.Time{}, false
	}
	return parsed, true
}

func (v *Validator) DateOrder(startField string, start time.Time, endField string, end time.Time) {
	if start.IsZero() || end.IsZero() {
		return
	}
	if end.Before(start) {
		v.Add(startField, "must be on or before "+endField)
		v.Add(endField, "must be on or after "+startField)
	}
}

func (v *Validator) Check(field string, err error) {
	if err != nil {
		v.Add(field, err.Error())
	}
}

func (v *Validator) HasIssues() bool {
	return v != nil && len(v.issues) > 0
}

func (v *Validator) Issues() []ValidationIssue {
	if v == nil || len(v.issues) == 0 {
		return nil
	}
	out := make([]ValidationIssue, len(v.issues))
	copy(out, v.issues)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Field == out[j].Field {
			return out[i].Reason < out[j].Reason
		}
		return out[i].Field < out[j].Field
	})
	return out
}

// Reject writes a validation_error response when issues were collected.
func (v *Validator) Reject(w http.ResponseWriter, requestID string) bool {
	if !v.HasIssues() {
		return false
	}
	api.FailWithDetails(w, http.StatusBadRequest, "validation_error", "payload validation failed", map[string]any{"fields": v.Issues()}, requestID)
	return true
}

package cpis

import (
	"errors"
	"fmt"
)

var ErrInvalidPolicy = errors.New("invalid cpis policy")

// MalformedEvidenceError rejects a single structurally invalid record.
type MalformedEvidenceError struct {
	Index     int
	SubjectID string
	Dimension string
	Reason    string
}

func (e *MalformedEvidenceError) Error() string {
	return fmt.Sprintf("malformed evidence record %d (subject %q, dimension %q): %s", e.Index, e.SubjectID, e.Dimension, e.Reason)
}

func policyError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidPolicy, fmt.Sprintf(format, args...))
}

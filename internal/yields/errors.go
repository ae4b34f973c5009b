package yields

import (
	"fmt"
	"strings"

	"github.com/seenimoa/yieldcharts/internal/maturity"
)

// ValidationError is returned when inputs are structurally inconsistent:
// duplicate labels handed to Combine, a differential of a duration with
// itself, or a curve comparison whose dates resolve to the same day.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// InvalidMaturityError is returned when a requested duration is not among
// the loaded columns.
type InvalidMaturityError struct {
	Label     string
	Available []maturity.Duration
}

func (e *InvalidMaturityError) Error() string {
	names := make([]string, len(e.Available))
	for i, d := range e.Available {
		names[i] = d.String()
	}
	return fmt.Sprintf("maturity %q not loaded (available: %s)", e.Label, strings.Join(names, ", "))
}

// DataUnavailableError means the request was valid but no non-missing
// observations remain for it. It is distinct from a legitimately empty
// result so callers can tell "nothing to show" from "nothing happened".
type DataUnavailableError struct {
	What   string
	Reason string
}

func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("no data for %s: %s", e.What, e.Reason)
}

package log

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// extractStacktrace returns the first safe detail recorded by
// cockroachdb/errors, which holds the stack captured at creation.
func extractStacktrace(err error) string {
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return fmt.Sprintf("%+v", err)
}

// splitError separates a leading error value from the remaining key/value
// pairs.
func splitError(fields []any) (error, []any) {
	if len(fields) == 0 {
		return nil, fields
	}
	if err, ok := fields[0].(error); ok {
		return err, fields[1:]
	}
	return nil, fields
}

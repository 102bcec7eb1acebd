package shared

import "errors"

// ErrUnavailable marks storage failures that are expected to clear on their own, such as a
// lost database connection. Callers may retry after a delay.
var ErrUnavailable = errors.New("storage unavailable")

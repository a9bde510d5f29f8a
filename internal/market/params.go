// Package market fetches ranked entity lists from the upstream market source
// and feeds them to the simulation loop.
package market

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MaxCount is the largest list the upstream source serves in one page.
const MaxCount = 250

var (
	ErrInvalidCount = errors.New("market: invalid count")
	ErrUpstream     = errors.New("market: upstream request failed")
	ErrMalformed    = errors.New("market: malformed upstream response")
)

// ParseCount validates a user-supplied list size. It must be a positive
// integer no larger than limit; limit <= 0 means MaxCount.
func ParseCount(s string, limit int) (int, error) {
	if limit <= 0 {
		limit = MaxCount
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidCount, s)
	}
	if err := CheckCount(n, limit); err != nil {
		return 0, err
	}
	return n, nil
}

// CheckCount is ParseCount for values that are already integers.
func CheckCount(n, limit int) error {
	if limit <= 0 {
		limit = MaxCount
	}
	if n <= 0 || n > limit {
		return fmt.Errorf("%w: %d (expected 1..%d)", ErrInvalidCount, n, limit)
	}
	return nil
}

package search

import (
	"context"
	"errors"
	"fmt"
)

// ErrSuperseded is returned by Session.Resolve when a newer resolution started
// before this one finished.
var ErrSuperseded = errors.New("search superseded by a newer request")

// IndexUnavailableError records why a space contributed no results.
type IndexUnavailableError struct {
	SpaceID string
	Err     error
}

func (e *IndexUnavailableError) Error() string {
	if e.TimedOut() {
		return fmt.Sprintf("space %s timed out", e.SpaceID)
	}
	return fmt.Sprintf("space %s unavailable: %v", e.SpaceID, e.Err)
}

func (e *IndexUnavailableError) Unwrap() error { return e.Err }

// TimedOut reports whether the space exceeded its time budget.
func (e *IndexUnavailableError) TimedOut() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

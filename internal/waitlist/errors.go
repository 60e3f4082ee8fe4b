package waitlist

import (
	"errors"
	"fmt"

	"github.com/iliyamo/waitlist-display/internal/model"
)

// ValidationError reports bad input to Register.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NotFoundError reports an unknown reservation id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("reservation %s not found", e.ID)
}

// InvalidStateError reports a transition that is not allowed from the
// reservation's current status.  State is left unchanged.
type InvalidStateError struct {
	ID     string
	Op     string
	Status model.Status
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s reservation %s in status %s", e.Op, e.ID, e.Status)
}

// ErrContention is returned when a transition kept losing compare-and-set
// races.  Statuses only move forward, so this indicates a misbehaving store.
var ErrContention = errors.New("waitlist: too many concurrent updates")

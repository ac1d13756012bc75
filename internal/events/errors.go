package events

import (
	"fmt"

	"github.com/ecclesia-records/ecclesia/internal/platform/httpx"
)

var (
	// ErrEventNotFound is returned for unknown event ids.
	ErrEventNotFound = fmt.Errorf("%w: event not found", httpx.ErrNotFound)
	// ErrRSVPNotRequired is returned when RSVPing to an open event.
	ErrRSVPNotRequired = fmt.Errorf("%w: Event does not require RSVP", httpx.ErrValidation)
	// ErrEventFull is returned when the guests do not fit.
	ErrEventFull = fmt.Errorf("%w: Event is at full capacity", httpx.ErrValidation)
	// ErrDioceseRequired is returned when no diocese is given and the principal has none.
	ErrDioceseRequired = fmt.Errorf("%w: Diocese ID required", httpx.ErrValidation)
)

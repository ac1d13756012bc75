package members

import (
	"fmt"

	"github.com/ecclesia-records/ecclesia/internal/platform/httpx"
)

var (
	// ErrMemberNotFound is returned when a member id does not exist.
	ErrMemberNotFound = fmt.Errorf("%w: member not found", httpx.ErrNotFound)
	// ErrDioceseRequired is returned when no diocese is given and the principal has none.
	ErrDioceseRequired = fmt.Errorf("%w: Diocese ID required", httpx.ErrValidation)
)

package sacraments

import (
	"fmt"

	"github.com/ecclesia-records/ecclesia/internal/platform/httpx"
)

var (
	// ErrSacramentNotFound is returned for unknown record ids.
	ErrSacramentNotFound = fmt.Errorf("%w: sacrament not found", httpx.ErrNotFound)
	// ErrAlreadyApproved is returned when approving an approved record.
	ErrAlreadyApproved = fmt.Errorf("%w: sacrament already approved", httpx.ErrConflict)
	// ErrDioceseRequired is returned when no diocese is given and the principal has none.
	ErrDioceseRequired = fmt.Errorf("%w: Diocese ID required", httpx.ErrValidation)
	// ErrUnknownMember is returned when a linked member does not exist in the diocese.
	ErrUnknownMember = fmt.Errorf("%w: linked member not found in diocese", httpx.ErrValidation)
)

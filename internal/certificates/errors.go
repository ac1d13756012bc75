package certificates

import (
	"fmt"

	"github.com/ecclesia-records/ecclesia/internal/platform/httpx"
)

// ErrNotRendered is returned when a record has no certificate on disk yet.
var ErrNotRendered = fmt.Errorf("%w: certificate not generated", httpx.ErrNotFound)

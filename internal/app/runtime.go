package app

import (
	"os"
	"strconv"
)

// InTestMode reports whether ECCLESIA_TEST_MODE holds a true value. The
// binaries return before touching postgres, redis or the listener when it does.
func InTestMode() bool {
	on, err := strconv.ParseBool(os.Getenv("ECCLESIA_TEST_MODE"))
	return err == nil && on
}

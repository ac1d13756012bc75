// Package testing puts the process in test mode. Test files import it for its
// side effects so binaries and config loading never reach real services.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

// envDefaults are applied only when the variable is unset, so CI can point
// tests at real services.
var envDefaults = map[string]string{
	"TOKEN_SECRET":  "test-secret-test-secret-test-secret",
	"GOTENBERG_URL": "http://127.0.0.1:0",
	"APP_ENV":       "test",
}

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("ECCLESIA_TEST_MODE", "1")
		for key, value := range envDefaults {
			if _, ok := os.LookupEnv(key); !ok {
				_ = os.Setenv(key, value)
			}
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}

package shared

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NewMemberID returns an id of the form MBR-{PARISH}-{8HEX}.
func NewMemberID(parishID string) string {
	return fmt.Sprintf("MBR-%s-%s", strings.ToUpper(parishID), shortHex())
}

// NewRecordID returns an id of the form {PREFIX}-{SCOPE}-{YEAR}-{8HEX}, where
// scope is the parish or diocese the record belongs to.
func NewRecordID(prefix, scope string, year int) string {
	return fmt.Sprintf("%s-%s-%d-%s", strings.ToUpper(prefix), strings.ToUpper(scope), year, shortHex())
}

func shortHex() string {
	id := uuid.New()
	return strings.ToUpper(hex.EncodeToString(id[:4]))
}

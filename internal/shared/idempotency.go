package shared

import (
	"context"
	"fmt"
	"time"
)

const maxIdempotencyKeyLen = 128

// IdempotencyStore remembers client supplied request keys so that a retried
// submission, such as an RSVP posted twice over a flaky connection, is applied
// once. Keys are unique per scope.
type IdempotencyStore struct {
	db  Execer
	now func() time.Time
}

// NewIdempotencyStore builds a store on db, usually the caller's transaction
// so the key and the guarded write commit together.
func NewIdempotencyStore(db Execer) *IdempotencyStore {
	return &IdempotencyStore{db: db, now: time.Now}
}

// CheckAndInsert claims key within scope. A key already claimed returns
// ErrIdempotencyConflict.
func (s *IdempotencyStore) CheckAndInsert(ctx context.Context, key, scope string) error {
	switch {
	case s == nil || s.db == nil:
		return fmt.Errorf("shared: idempotency: store not initialised")
	case key == "" || scope == "":
		return fmt.Errorf("shared: idempotency: key and scope required")
	case len(key) > maxIdempotencyKeyLen:
		return fmt.Errorf("shared: idempotency: key longer than %d bytes", maxIdempotencyKeyLen)
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO idempotency_keys (key, scope, created_at) VALUES ($1, $2, $3)`,
		key, scope, s.now().UTC())
	if IsUniqueViolation(err) {
		return ErrIdempotencyConflict
	}
	return err
}

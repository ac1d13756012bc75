package identity

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "identity:revoked:"

// RevocationStore keeps revoked token ids in redis until the token would
// have expired anyway.
type RevocationStore struct {
	client redis.Cmdable
	now    func() time.Time
}

// NewRevocationStore builds a store on client.
func NewRevocationStore(client redis.Cmdable) *RevocationStore {
	return &RevocationStore{client: client, now: time.Now}
}

// Revoke marks jti as revoked until the given time. Tokens already expired
// need no entry.
func (s *RevocationStore) Revoke(ctx context.Context, jti string, until time.Time) error {
	if jti == "" {
		return ErrNotRevocable
	}
	ttl := until.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, revokedKeyPrefix+jti, 1, ttl).Err()
}

// IsRevoked reports whether jti was revoked.
func (s *RevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	err := s.client.Get(ctx, revokedKeyPrefix+jti).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

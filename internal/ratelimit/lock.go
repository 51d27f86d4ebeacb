package ratelimit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const leaseKeyPrefix = "dreamline:lease:"

var (
	ErrLockerUnavailable = errors.New("locker_unavailable")
	ErrLeaseLost         = errors.New("lease_lost")
)

// Both scripts act only while the key still holds the caller's token.
var (
	renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)
)

// Locker hands out named leases shared by every replica on the same redis.
type Locker struct {
	client *redis.Client
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{client: client}
}

// Lease is exclusive ownership of a name until its ttl lapses or it is
// released.
type Lease struct {
	client *redis.Client
	key    string
	token  string
}

func leaseKey(name string) string {
	return leaseKeyPrefix + strings.TrimSpace(name)
}

// Acquire takes the named lease for ttl. It returns a nil lease and no error
// when another holder has it.
func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (*Lease, error) {
	if l == nil || l.client == nil {
		return nil, ErrLockerUnavailable
	}
	if strings.TrimSpace(name) == "" || ttl <= 0 {
		return nil, errors.New("invalid_lease_request")
	}

	lease := &Lease{client: l.client, key: leaseKey(name), token: uuid.NewString()}
	ok, err := l.client.SetNX(ctx, lease.key, lease.token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return lease, nil
}

// Renew resets the lease to expire ttl from now. ErrLeaseLost means the lease
// lapsed and may already belong to someone else.
func (le *Lease) Renew(ctx context.Context, ttl time.Duration) error {
	if le == nil {
		return ErrLeaseLost
	}
	n, err := renewScript.Run(ctx, le.client, []string{le.key}, le.token, ttl.Milliseconds()).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLeaseLost
	}
	return nil
}

func (le *Lease) Release(ctx context.Context) error {
	if le == nil {
		return nil
	}
	return releaseScript.Run(ctx, le.client, []string{le.key}, le.token).Err()
}

func (le *Lease) Key() string {
	if le == nil {
		return ""
	}
	return le.key
}

package locker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// Memcache is the memcache-based locker: an ADD with TTL used as a
// distributed mutex (spec.md §4.2, §5).
type Memcache struct {
	Client *memcache.Client
}

func NewMemcache(servers ...string) *Memcache {
	return &Memcache{Client: memcache.New(servers...)}
}

func (m *Memcache) Acquire(ctx context.Context, key string, timeout time.Duration) (Outcome, error) {
	err := m.Client.Add(&memcache.Item{
		Key:        memKey(key),
		Value:      []byte("1"),
		Expiration: int32(timeout.Seconds()),
	})
	if err == nil {
		return Acquired, nil
	}
	if err == memcache.ErrNotStored {
		return Locked, nil
	}
	return Locked, fmt.Errorf("memcache locker: add: %w", err)
}

func (m *Memcache) Ping(ctx context.Context, key string) (bool, error) {
	_, err := m.Client.Get(memKey(key))
	if err == memcache.ErrCacheMiss {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (m *Memcache) Release(ctx context.Context, key string) error {
	err := m.Client.Delete(memKey(key))
	if err != nil && err != memcache.ErrCacheMiss {
		return fmt.Errorf("memcache locker: delete: %w", err)
	}
	return nil
}

// ClearAllLocks is not supported by the memcache protocol (no key
// enumeration); it is a no-op, matching the limited surface memcache
// exposes.
func (m *Memcache) ClearAllLocks(ctx context.Context) error { return nil }

func memKey(key string) string {
	return "mapcache-lock:" + strings.ReplaceAll(key, " ", "_")
}

package kv

import (
	"context"
	"errors"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/arx-os/mapcache/internal/cache"
	"github.com/arx-os/mapcache/internal/tile"
)

// Memcache is the Memcache key-value cache back-end (spec.md §4.2).
// github.com/bradfitz/gomemcache/memcache is named rather than grounded:
// no example repo in the pack imports a memcache client, but the spec
// requires one and this is the de facto standard Go client (SPEC_FULL.md
// §2.2).
type Memcache struct {
	Client     *memcache.Client
	AutoExpire time.Duration
}

func NewMemcache(servers ...string) *Memcache {
	return &Memcache{Client: memcache.New(servers...)}
}

func (m *Memcache) Name() string { return "memcache" }

func (m *Memcache) TileGet(ctx context.Context, t *tile.Tile) (cache.Entry, cache.Result, error) {
	item, err := m.Client.Get(key(t))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return cache.Entry{}, cache.Miss, nil
	}
	if err != nil {
		return cache.Entry{}, cache.Miss, err
	}
	e, err := decode(item.Value)
	if err != nil {
		return cache.Entry{}, cache.Miss, err
	}
	return e, cache.Hit, nil
}

func (m *Memcache) TileSet(ctx context.Context, t *tile.Tile, e cache.Entry) error {
	if e.Mtime.IsZero() {
		e.Mtime = time.Now()
	}
	return m.Client.Set(&memcache.Item{
		Key:        key(t),
		Value:      encode(e),
		Expiration: int32(m.AutoExpire.Seconds()),
	})
}

func (m *Memcache) TileExists(ctx context.Context, t *tile.Tile) (bool, error) {
	_, err := m.Client.Get(key(t))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return false, nil
	}
	return err == nil, err
}

func (m *Memcache) TileDelete(ctx context.Context, t *tile.Tile) error {
	err := m.Client.Delete(key(t))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil
	}
	return err
}

// Package pool implements the process-wide, per-worker bounded
// connection pool keyed by back-end instance, with LRU eviction
// (spec.md §3 "Connection pool", §5). Grounded on
// NERVsystems-osmmcp/pkg/core/osrm.go's use of hashicorp/golang-lru.
package pool

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Conn is anything the pool can own: one live connection object plus its
// destructor.
type Conn interface {
	Close() error
}

// Pool is a thread-safe, bounded LRU map from key to live connection.
type Pool[K comparable, V Conn] struct {
	mu    sync.Mutex
	cache *lru.Cache[K, V]
}

// New builds a pool bounded at maxSize entries (default 10 per
// spec.md §3). Evicted entries are closed.
func New[K comparable, V Conn](maxSize int) (*Pool[K, V], error) {
	if maxSize <= 0 {
		maxSize = 10
	}
	p := &Pool[K, V]{}
	c, err := lru.NewWithEvict[K, V](maxSize, func(_ K, v V) {
		_ = v.Close()
	})
	if err != nil {
		return nil, err
	}
	p.cache = c
	return p, nil
}

// Get returns the pooled connection for key, or creates one via open and
// stores it.
func (p *Pool[K, V]) Get(key K, open func() (V, error)) (V, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if v, ok := p.cache.Get(key); ok {
		return v, nil
	}
	v, err := open()
	if err != nil {
		var zero V
		return zero, err
	}
	p.cache.Add(key, v)
	return v, nil
}

// Len returns the current number of pooled connections.
func (p *Pool[K, V]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cache.Len()
}

// Purge closes and removes every pooled connection.
func (p *Pool[K, V]) Purge() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache.Purge()
}

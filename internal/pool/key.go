package pool

import "strings"

// Key builds a connection-pool key from a back-end type tag plus its
// connection parameters, so two tilesets pointing at the same physical
// instance (e.g. Redis host:port) share one pool entry rather than one
// per cache name (SPEC_FULL.md §3.1, grounded on
// _examples/original_source's lib/connection_pool.c).
func Key(backendType string, params ...string) string {
	return backendType + "://" + strings.Join(params, "/")
}

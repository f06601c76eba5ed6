// Package kv implements the key-value cache back-ends of spec.md §4.2:
// Redis, Memcache, and SQLite share the blob convention below
// ("[encoded_bytes || 8-byte little-endian mtime]", with a 5-byte
// '#'+RGBA blank sentinel in place of encoded_bytes); MBTiles instead
// follows the fixed upstream MBTiles schema and does not use encode/decode.
package kv

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/arx-os/mapcache/internal/cache"
)

// encode packs an Entry into the shared wire format.
func encode(e cache.Entry) []byte {
	if e.Blank != nil {
		c := *e.Blank
		buf := make([]byte, 5+8)
		buf[0] = '#'
		copy(buf[1:5], c[:])
		binary.LittleEndian.PutUint64(buf[5:], uint64(e.Mtime.UnixMicro()))
		return buf
	}
	buf := make([]byte, len(e.Data)+8)
	copy(buf, e.Data)
	binary.LittleEndian.PutUint64(buf[len(e.Data):], uint64(e.Mtime.UnixMicro()))
	return buf
}

// decode unpacks the shared wire format, expanding the blank sentinel
// back into a synthetic solid-color tile when present (spec.md §4.2).
func decode(raw []byte) (cache.Entry, error) {
	if len(raw) < 8 {
		return cache.Entry{}, fmt.Errorf("kv: entry too short (%d bytes)", len(raw))
	}
	mtimeOffset := len(raw) - 8
	mtime := time.UnixMicro(int64(binary.LittleEndian.Uint64(raw[mtimeOffset:])))

	if mtimeOffset == 5 && raw[0] == '#' {
		var c [4]uint8
		copy(c[:], raw[1:5])
		return cache.Entry{Blank: &c, Mtime: mtime}, nil
	}
	data := make([]byte, mtimeOffset)
	copy(data, raw[:mtimeOffset])
	return cache.Entry{Data: data, Mtime: mtime}, nil
}

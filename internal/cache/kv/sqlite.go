package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/arx-os/mapcache/internal/cache"
	"github.com/arx-os/mapcache/internal/tile"
)

// SQLite is the SQLite key-value cache back-end (spec.md §4.2), bound to
// the statement templates mapcache.xml configures rather than a fixed
// schema, grounded on internal/dimension's SQLite type and
// original_source/lib/cache_sqlite3.c's parameterized-statement design.
type SQLite struct {
	DB *sql.DB

	ExistsQuery   string // :tileset :grid :x :y :z :dim
	GetQuery      string
	SetQuery      string // :tileset :grid :x :y :z :dim :data :mtime
	DeleteQuery   string
	CreateQuery   string // run once at Open; empty skips
}

func OpenSQLite(path string, schema SQLite) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("kv: open sqlite: %w", err)
	}
	schema.DB = db
	if schema.CreateQuery != "" {
		if _, err := db.Exec(schema.CreateQuery); err != nil {
			return nil, fmt.Errorf("kv: sqlite schema: %w", err)
		}
	}
	return &schema, nil
}

func (s *SQLite) Name() string { return "sqlite3" }

func namedArgs(t *tile.Tile) []any {
	return []any{
		sql.Named("tileset", t.Tileset),
		sql.Named("grid", t.GridLink.Grid.Name),
		sql.Named("x", t.X),
		sql.Named("y", t.Y),
		sql.Named("z", t.Z),
		sql.Named("dim", dimJoined(t)),
	}
}

func dimJoined(t *tile.Tile) string {
	s := ""
	for i, d := range t.Dimensions {
		if i > 0 {
			s += "/"
		}
		s += d.CachedValue
	}
	return s
}

func (s *SQLite) TileGet(ctx context.Context, t *tile.Tile) (cache.Entry, cache.Result, error) {
	row := s.DB.QueryRowContext(ctx, s.GetQuery, namedArgs(t)...)
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return cache.Entry{}, cache.Miss, nil
		}
		return cache.Entry{}, cache.Miss, fmt.Errorf("kv: sqlite get: %w", err)
	}
	e, err := decode(raw)
	if err != nil {
		return cache.Entry{}, cache.Miss, err
	}
	return e, cache.Hit, nil
}

func (s *SQLite) TileSet(ctx context.Context, t *tile.Tile, e cache.Entry) error {
	if e.Mtime.IsZero() {
		e.Mtime = time.Now()
	}
	args := append(namedArgs(t),
		sql.Named("data", encode(e)),
		sql.Named("mtime", e.Mtime.UnixMicro()),
	)
	_, err := s.DB.ExecContext(ctx, s.SetQuery, args...)
	if err != nil {
		return fmt.Errorf("kv: sqlite set: %w", err)
	}
	return nil
}

func (s *SQLite) TileExists(ctx context.Context, t *tile.Tile) (bool, error) {
	row := s.DB.QueryRowContext(ctx, s.ExistsQuery, namedArgs(t)...)
	var n int
	if err := row.Scan(&n); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return n > 0, nil
}

func (s *SQLite) TileDelete(ctx context.Context, t *tile.Tile) error {
	_, err := s.DB.ExecContext(ctx, s.DeleteQuery, namedArgs(t)...)
	return err
}

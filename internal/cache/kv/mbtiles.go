package kv

import (
	"context"
	"crypto/sha1"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/arx-os/mapcache/internal/cache"
	"github.com/arx-os/mapcache/internal/grid"
	"github.com/arx-os/mapcache/internal/tile"
)

// MBTiles is the canonical MBTiles back-end: one .mbtiles file per
// tileset/grid, schema `map(zoom_level,tile_column,tile_row,tile_id,mtime)`
// plus `images(tile_id,tile_data)`, joined by the canonical `tiles` view,
// so identical tile bodies (most often blank tiles) are stored once, as
// mapcache's own MBTiles writer does
// (spec.md §4.2). Grounded on internal/dimension/sqlite.go's driver
// wiring; no MBTiles-specific teacher code exists in the pack.
type MBTiles struct {
	DB *sql.DB
}

const mbtilesSchema = `
CREATE TABLE IF NOT EXISTS map (
  zoom_level INTEGER, tile_column INTEGER, tile_row INTEGER,
  tile_id TEXT, mtime INTEGER,
  PRIMARY KEY (zoom_level, tile_column, tile_row)
);
CREATE TABLE IF NOT EXISTS images (
  tile_id TEXT PRIMARY KEY, tile_data BLOB
);
CREATE VIEW IF NOT EXISTS tiles AS
  SELECT map.zoom_level AS zoom_level, map.tile_column AS tile_column,
         map.tile_row AS tile_row, images.tile_data AS tile_data
  FROM map JOIN images ON map.tile_id = images.tile_id;
`

func OpenMBTiles(path string) (*MBTiles, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("kv: open mbtiles: %w", err)
	}
	if _, err := db.Exec(mbtilesSchema); err != nil {
		return nil, fmt.Errorf("kv: mbtiles schema: %w", err)
	}
	return &MBTiles{DB: db}, nil
}

func (m *MBTiles) Name() string { return "mbtiles" }

// mbtilesRow maps Y to the MBTiles (TMS, bottom-up) convention
// regardless of the grid's own origin, since the file format is fixed:
// bottom-left grids already number rows bottom-up, top-left grids are
// flipped.
func mbtilesRow(t *tile.Tile) (int, error) {
	if t.GridLink.Grid.Origin != grid.OriginTopLeft {
		return t.Y, nil
	}
	limits, err := t.GridLink.Limits(t.Z)
	if err != nil {
		return 0, err
	}
	return limits.MaxY - 1 - t.Y, nil
}

func (m *MBTiles) TileGet(ctx context.Context, t *tile.Tile) (cache.Entry, cache.Result, error) {
	row, err := mbtilesRow(t)
	if err != nil {
		return cache.Entry{}, cache.Miss, err
	}
	var raw []byte
	var mtime int64
	err = m.DB.QueryRowContext(ctx,
		`SELECT images.tile_data, map.mtime FROM map JOIN images ON map.tile_id = images.tile_id
		 WHERE map.zoom_level = ? AND map.tile_column = ? AND map.tile_row = ?`,
		t.Z, t.X, row).Scan(&raw, &mtime)
	if errors.Is(err, sql.ErrNoRows) {
		return cache.Entry{}, cache.Miss, nil
	}
	if err != nil {
		return cache.Entry{}, cache.Miss, fmt.Errorf("kv: mbtiles get: %w", err)
	}
	return cache.Entry{Data: raw, Mtime: time.UnixMicro(mtime)}, cache.Hit, nil
}

func (m *MBTiles) TileSet(ctx context.Context, t *tile.Tile, e cache.Entry) error {
	if e.Mtime.IsZero() {
		e.Mtime = time.Now()
	}
	row, err := mbtilesRow(t)
	if err != nil {
		return err
	}
	data := e.Data
	if e.Blank != nil && t.Image != nil {
		data = t.Image.Encoded
	}
	sum := sha1.Sum(data)
	tileID := hex.EncodeToString(sum[:])

	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO images (tile_id, tile_data) VALUES (?, ?)`, tileID, data); err != nil {
		return fmt.Errorf("kv: mbtiles image insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO map (zoom_level, tile_column, tile_row, tile_id, mtime) VALUES (?, ?, ?, ?, ?)`,
		t.Z, t.X, row, tileID, e.Mtime.UnixMicro()); err != nil {
		return fmt.Errorf("kv: mbtiles map insert: %w", err)
	}
	return tx.Commit()
}

func (m *MBTiles) TileExists(ctx context.Context, t *tile.Tile) (bool, error) {
	row, err := mbtilesRow(t)
	if err != nil {
		return false, err
	}
	var n int
	err = m.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM map WHERE zoom_level = ? AND tile_column = ? AND tile_row = ?`,
		t.Z, t.X, row).Scan(&n)
	return n > 0, err
}

func (m *MBTiles) TileDelete(ctx context.Context, t *tile.Tile) error {
	row, err := mbtilesRow(t)
	if err != nil {
		return err
	}
	_, err = m.DB.ExecContext(ctx,
		`DELETE FROM map WHERE zoom_level = ? AND tile_column = ? AND tile_row = ?`, t.Z, t.X, row)
	return err
}

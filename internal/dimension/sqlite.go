package dimension

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/arx-os/mapcache/internal/extent"
)

// SQLite is the Dimension{db, validate_query, list_query} variant
// (spec.md §3). ValidateQuery and ListQuery are bound with named
// parameters :value, :minx, :miny, :maxx, :maxy, following the original
// implementation's statement-template approach (spec.md §4.2's SQLite
// cache back-end uses the same convention for its own statements).
//
// The original C implementation carries two near-identical
// `_mapcache_dimension_sqlite_parse_xml` parsers in different files
// (spec.md §9 open question); here there is exactly one Go type.
type SQLite struct {
	DimName       string
	DB            *sql.DB
	ValidateQuery string
	ListQuery     string
}

// NewSQLite opens the dimension's backing SQLite database.
func NewSQLite(name, dbFile, validateQuery, listQuery string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", dbFile)
	if err != nil {
		return nil, fmt.Errorf("dimension %s: open sqlite %s: %w", name, dbFile, err)
	}
	return &SQLite{DimName: name, DB: db, ValidateQuery: validateQuery, ListQuery: listQuery}, nil
}

func (d *SQLite) Name() string { return d.DimName }

func (d *SQLite) ValidateAndExpand(ctx context.Context, value string, tileExtent extent.Extent) ([]string, error) {
	rows, err := d.DB.QueryContext(ctx, d.ValidateQuery,
		sql.Named("value", value),
		sql.Named("minx", tileExtent.MinX), sql.Named("miny", tileExtent.MinY),
		sql.Named("maxx", tileExtent.MaxX), sql.Named("maxy", tileExtent.MaxY),
	)
	if err != nil {
		return nil, fmt.Errorf("dimension %s: validate query: %w", d.DimName, err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

func (d *SQLite) Enumerate(ctx context.Context) ([]string, error) {
	rows, err := d.DB.QueryContext(ctx, d.ListQuery)
	if err != nil {
		return nil, fmt.Errorf("dimension %s: list query: %w", d.DimName, err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

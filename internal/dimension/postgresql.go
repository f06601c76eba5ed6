package dimension

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/arx-os/mapcache/internal/extent"
)

// PostgreSQL is the Dimension{connstr, validate_query, list_query}
// variant (spec.md §3), grounded on the same database/sql + lib/pq
// pattern as services/tile-server's own PostgreSQL connection.
type PostgreSQL struct {
	DimName       string
	DB            *sql.DB
	ValidateQuery string
	ListQuery     string
}

// NewPostgreSQL opens the dimension's backing PostgreSQL connection.
func NewPostgreSQL(name, connStr, validateQuery, listQuery string) (*PostgreSQL, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("dimension %s: open postgres: %w", name, err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("dimension %s: ping postgres: %w", name, err)
	}
	return &PostgreSQL{DimName: name, DB: db, ValidateQuery: validateQuery, ListQuery: listQuery}, nil
}

func (d *PostgreSQL) Name() string { return d.DimName }

func (d *PostgreSQL) ValidateAndExpand(ctx context.Context, value string, tileExtent extent.Extent) ([]string, error) {
	rows, err := d.DB.QueryContext(ctx, d.ValidateQuery, value,
		tileExtent.MinX, tileExtent.MinY, tileExtent.MaxX, tileExtent.MaxY)
	if err != nil {
		return nil, fmt.Errorf("dimension %s: validate query: %w", d.DimName, err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

func (d *PostgreSQL) Enumerate(ctx context.Context) ([]string, error) {
	rows, err := d.DB.QueryContext(ctx, d.ListQuery)
	if err != nil {
		return nil, fmt.Errorf("dimension %s: list query: %w", d.DimName, err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

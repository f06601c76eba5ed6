package dimension

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arx-os/mapcache/internal/extent"
)

func newTestSQLiteDim(t *testing.T) *SQLite {
	t.Helper()
	d, err := NewSQLite("YEAR", ":memory:",
		`SELECT value FROM years WHERE value = :value`,
		`SELECT value FROM years ORDER BY value`)
	require.NoError(t, err)

	_, err = d.DB.Exec(`CREATE TABLE years (value TEXT)`)
	require.NoError(t, err)
	_, err = d.DB.Exec(`INSERT INTO years (value) VALUES ('2023'), ('2024')`)
	require.NoError(t, err)
	return d
}

func TestSQLiteDimensionValidateAndExpand(t *testing.T) {
	d := newTestSQLiteDim(t)
	values, err := d.ValidateAndExpand(context.Background(), "2024", extent.Extent{})
	require.NoError(t, err)
	assert.Equal(t, []string{"2024"}, values)
}

func TestSQLiteDimensionValidateRejectsUnknownValue(t *testing.T) {
	d := newTestSQLiteDim(t)
	values, err := d.ValidateAndExpand(context.Background(), "1999", extent.Extent{})
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestSQLiteDimensionEnumerate(t *testing.T) {
	d := newTestSQLiteDim(t)
	values, err := d.Enumerate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"2023", "2024"}, values)
}

func TestSQLiteDimensionName(t *testing.T) {
	d := newTestSQLiteDim(t)
	assert.Equal(t, "YEAR", d.Name())
}

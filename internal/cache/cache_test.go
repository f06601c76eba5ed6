package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arx-os/mapcache/internal/extent"
	"github.com/arx-os/mapcache/internal/grid"
	"github.com/arx-os/mapcache/internal/tile"
)

type fakeBackend struct {
	entries map[string]Entry
	getErrs []error // consumed in order, nil meaning success
	getN    int
	setN    int
	delN    int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{entries: map[string]Entry{}}
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) key(t *tile.Tile) string {
	return t.Tileset
}

func (f *fakeBackend) TileGet(ctx context.Context, t *tile.Tile) (Entry, Result, error) {
	f.getN++
	if len(f.getErrs) > 0 {
		err := f.getErrs[0]
		f.getErrs = f.getErrs[1:]
		if err != nil {
			return Entry{}, Miss, err
		}
	}
	e, ok := f.entries[f.key(t)]
	if !ok {
		return Entry{}, Miss, nil
	}
	return e, Hit, nil
}

func (f *fakeBackend) TileSet(ctx context.Context, t *tile.Tile, e Entry) error {
	f.setN++
	f.entries[f.key(t)] = e
	return nil
}

func (f *fakeBackend) TileExists(ctx context.Context, t *tile.Tile) (bool, error) {
	_, ok := f.entries[f.key(t)]
	return ok, nil
}

func (f *fakeBackend) TileDelete(ctx context.Context, t *tile.Tile) error {
	f.delN++
	delete(f.entries, f.key(t))
	return nil
}

func testGridLink() *grid.GridLink {
	g := &grid.Grid{
		Name: "g", TileWidth: 2, TileHeight: 2, Origin: grid.OriginBottomLeft,
		Extent: extent.Extent{MinX: 0, MinY: 0, MaxX: 2, MaxY: 2},
		Levels: []grid.Level{{Resolution: 1, MaxX: 1, MaxY: 1}},
	}
	return &grid.GridLink{Grid: g, MinZ: 0, MaxZ: 1}
}

func TestWrapperGetHit(t *testing.T) {
	b := newFakeBackend()
	tl := &tile.Tile{Tileset: "t1", GridLink: testGridLink()}
	require.NoError(t, b.TileSet(context.Background(), tl, Entry{Data: []byte("x")}))

	w := &Wrapper{Backend: b}
	e, result, err := w.Get(context.Background(), tl)
	require.NoError(t, err)
	assert.Equal(t, Hit, result)
	assert.Equal(t, []byte("x"), e.Data)
}

func TestWrapperRetriesThenSucceeds(t *testing.T) {
	b := newFakeBackend()
	b.getErrs = []error{errors.New("transient"), errors.New("transient"), nil}
	tl := &tile.Tile{Tileset: "t1", GridLink: testGridLink()}

	w := &Wrapper{Backend: b, Policy: RetryPolicy{RetryCount: 3, RetryDelay: time.Millisecond}}
	_, result, err := w.Get(context.Background(), tl)
	require.NoError(t, err)
	assert.Equal(t, Miss, result)
	assert.Equal(t, 3, b.getN)
}

func TestWrapperRetriesExhaustedReturnsLastError(t *testing.T) {
	b := newFakeBackend()
	b.getErrs = []error{errors.New("e1"), errors.New("e2")}
	tl := &tile.Tile{Tileset: "t1", GridLink: testGridLink()}

	w := &Wrapper{Backend: b, Policy: RetryPolicy{RetryCount: 1, RetryDelay: time.Millisecond}}
	_, _, err := w.Get(context.Background(), tl)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "e2")
	assert.Equal(t, 2, b.getN)
}

// TestWrapperReadonlySafety is spec.md §8's "Readonly safety" invariant:
// a readonly tileset never calls TileSet/TileDelete.
func TestWrapperReadonlySafety(t *testing.T) {
	b := newFakeBackend()
	tl := &tile.Tile{Tileset: "t1", GridLink: testGridLink()}
	w := &Wrapper{Backend: b, ReadOnly: true}

	require.NoError(t, w.Set(context.Background(), tl, Entry{Data: []byte("x")}))
	require.NoError(t, w.Delete(context.Background(), tl))
	assert.Equal(t, 0, b.setN)
	assert.Equal(t, 0, b.delN)
}

func TestWrapperRuleHiddenShortCircuitsBackend(t *testing.T) {
	b := newFakeBackend()
	gl := testGridLink()
	tl := &tile.Tile{Tileset: "t1", GridLink: gl, Z: 0, X: 0, Y: 0}

	rule := &grid.Rule{HiddenColor: [4]uint8{255, 0, 0, 255}}
	w := &Wrapper{
		Backend:    b,
		TileWidth:  2,
		TileHeight: 2,
		Format:     "png",
		RuleLookup: func(*tile.Tile) (*grid.Rule, bool) { return rule, true },
	}

	_, result, err := w.Get(context.Background(), tl)
	require.NoError(t, err)
	assert.Equal(t, Hit, result)
	assert.NotNil(t, tl.Image)
	assert.Equal(t, 0, b.getN)
}

func TestWrapperRuleReadOnlyBlocksSetAndDelete(t *testing.T) {
	b := newFakeBackend()
	gl := testGridLink()
	tl := &tile.Tile{Tileset: "t1", GridLink: gl, Z: 0, X: 0, Y: 0}
	rule := &grid.Rule{ReadOnly: true}
	w := &Wrapper{Backend: b, RuleLookup: func(*tile.Tile) (*grid.Rule, bool) { return rule, true }}

	require.NoError(t, w.Set(context.Background(), tl, Entry{Data: []byte("x")}))
	assert.Equal(t, 0, b.setN)
}

func TestWrapperMultiSetFallsBackToLoop(t *testing.T) {
	b := newFakeBackend()
	gl := testGridLink()
	t1 := &tile.Tile{Tileset: "a", GridLink: gl}
	t2 := &tile.Tile{Tileset: "b", GridLink: gl}
	w := &Wrapper{Backend: b}

	err := w.MultiSet(context.Background(), map[*tile.Tile]Entry{
		t1: {Data: []byte("1")},
		t2: {Data: []byte("2")},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, b.setN)
}

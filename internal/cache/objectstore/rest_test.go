package objectstore

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arx-os/mapcache/internal/cache"
	"github.com/arx-os/mapcache/internal/tile"
)

type memStore struct {
	objects map[string][]byte
}

func newRESTServer(t *testing.T) (*httptest.Server, *memStore) {
	t.Helper()
	store := &memStore{objects: map[string][]byte{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead:
			data, ok := store.objects[r.URL.Path]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			if r.Method == http.MethodHead {
				w.WriteHeader(http.StatusOK)
				return
			}
			_, _ = w.Write(data)
		case http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			store.objects[r.URL.Path] = body
			w.WriteHeader(http.StatusOK)
		case http.MethodDelete:
			delete(store.objects, r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, store
}

func TestRESTSetThenGet(t *testing.T) {
	srv, _ := newRESTServer(t)
	r := NewREST(srv.URL+"/{tileset}/{z}/{x}/{y}.{ext}", nil)
	ctx := context.Background()
	tl := &tile.Tile{Tileset: "osm", GridLink: testGridLink(), Z: 1, X: 0, Y: 0}

	_, result, err := r.TileGet(ctx, tl)
	require.NoError(t, err)
	assert.Equal(t, cache.Miss, result)

	require.NoError(t, r.TileSet(ctx, tl, cache.Entry{Data: []byte("fake-png-bytes")}))

	e, result, err := r.TileGet(ctx, tl)
	require.NoError(t, err)
	assert.Equal(t, cache.Hit, result)
	assert.Equal(t, []byte("fake-png-bytes"), e.Data)
}

func TestRESTExistsAndDelete(t *testing.T) {
	srv, _ := newRESTServer(t)
	r := NewREST(srv.URL+"/{tileset}/{z}/{x}/{y}.{ext}", nil)
	ctx := context.Background()
	tl := &tile.Tile{Tileset: "osm", GridLink: testGridLink(), Z: 1, X: 0, Y: 0}

	exists, err := r.TileExists(ctx, tl)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, r.TileSet(ctx, tl, cache.Entry{Data: []byte("x")}))
	exists, err = r.TileExists(ctx, tl)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, r.TileDelete(ctx, tl))
	exists, err = r.TileExists(ctx, tl)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRESTSetWithSignerAndLegacyAWSAuthorizationHeader(t *testing.T) {
	srv, _ := newRESTServer(t)
	signer := &LegacyAWSSigner{AccessKeyID: "AKID", SecretAccessKey: "secret", Bucket: "my-bucket"}
	r := NewREST(srv.URL+"/{tileset}/{z}/{x}/{y}.{ext}", signer)
	tl := &tile.Tile{Tileset: "osm", GridLink: testGridLink(), Z: 1, X: 0, Y: 0}

	require.NoError(t, r.TileSet(context.Background(), tl, cache.Entry{Data: []byte("x")}))

	req, err := http.NewRequest(http.MethodPut, r.url(tl), nil)
	require.NoError(t, err)
	require.NoError(t, signer.Sign(req, []byte("x")))
	assert.True(t, strings.HasPrefix(req.Header.Get("Authorization"), "AWS AKID:"))
}

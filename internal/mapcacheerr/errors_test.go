package mapcacheerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		InvalidRequest:   "InvalidRequest",
		NotFound:         "NotFound",
		MethodNotAllowed: "MethodNotAllowed",
		EntityTooLarge:   "EntityTooLarge",
		UpstreamError:    "UpstreamError",
		Internal:         "Internal",
		Kind(999):        "Unknown",
	}
	for k, want := range cases {
		assert.Equal(t, want, k.String())
	}
}

func TestNewFormatsMessage(t *testing.T) {
	err := New(NotFound, "tileset %q not found", "osm")
	assert.Equal(t, `NotFound: tileset "osm" not found`, err.Error())
	assert.Nil(t, err.Unwrap())
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(UpstreamError, cause, "source request failed")
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "boom")
}

func TestKindOfUnwrapsThroughFmtErrorf(t *testing.T) {
	base := New(EntityTooLarge, "tile too large")
	wrapped := fmt.Errorf("render: leaf fetch: %w", base)
	assert.Equal(t, EntityTooLarge, KindOf(wrapped))
}

func TestKindOfDefaultsToInternal(t *testing.T) {
	assert.Equal(t, Internal, KindOf(errors.New("plain error")))
	assert.Equal(t, Internal, KindOf(nil))
}

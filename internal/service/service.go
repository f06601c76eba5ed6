// Package service defines the parse-only HTTP-protocol contract: turn an
// incoming client request (WMS KVP, WMTS RESTful, TMS path) into a
// uniform Request the render engine understands, and turn an error back
// into the protocol's own envelope. No caching or locking logic lives
// here (spec.md §1 "contains no caching logic"); that is render's job.
package service

import (
	"net/http"

	"github.com/arx-os/mapcache/internal/mapcacheerr"
)

// Request is a protocol-independent tile addressing, grounded on
// SPEC_FULL.md §4.8.
type Request struct {
	Tileset, Grid, Format string
	Z, X, Y               int
	Dimensions            map[string]string
}

// Service parses one protocol's request shape and renders its own error
// envelope (WMS ServiceExceptionReport, WMTS OWS ExceptionReport, plain
// text — spec.md §4.8).
type Service interface {
	Name() string
	ParseRequest(r *http.Request) (*Request, error)
	WriteError(w http.ResponseWriter, err error)
}

// statusFor maps a mapcacheerr.Kind to the HTTP status every Service
// implementation's WriteError should use (spec.md §7).
func statusFor(err error) int {
	switch mapcacheerr.KindOf(err) {
	case mapcacheerr.InvalidRequest:
		return http.StatusBadRequest
	case mapcacheerr.NotFound:
		return http.StatusNotFound
	case mapcacheerr.MethodNotAllowed:
		return http.StatusMethodNotAllowed
	case mapcacheerr.EntityTooLarge:
		return http.StatusRequestEntityTooLarge
	case mapcacheerr.UpstreamError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

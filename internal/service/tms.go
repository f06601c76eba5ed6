package service

import (
	"encoding/xml"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/arx-os/mapcache/internal/mapcacheerr"
)

// TMS implements the "/tms/1.0.0/{layer}[@{grid}]/{z}/{x}/{y}.{ext}" path
// shape (spec.md §6). Routes are registered by the caller (cmd/mapcache-serve)
// using gorilla/mux; ParseRequest reads mux.Vars off the already-matched
// request.
type TMS struct {
	// ReverseY marks the Gmaps variant, whose y coordinate increases
	// downward from the top of the grid instead of TMS's native bottom-up
	// convention (spec.md §6 "optional reverse_y"). ParseRequest returns y
	// as given either way; ReverseY only makes Name report "gmaps", and
	// cmd/mapcache-serve flips y for that service.
	ReverseY bool
}

func (s *TMS) Name() string {
	if s.ReverseY {
		return "gmaps"
	}
	return "tms"
}

func (s *TMS) ParseRequest(r *http.Request) (*Request, error) {
	vars := mux.Vars(r)

	layer := vars["layer"]
	if at := strings.IndexByte(layer, '@'); at >= 0 {
		layer = layer[:at]
	}
	if layer == "" {
		return nil, mapcacheerr.New(mapcacheerr.InvalidRequest, "tms: missing layer")
	}

	grid := vars["grid"]

	z, err := strconv.Atoi(vars["z"])
	if err != nil {
		return nil, mapcacheerr.Wrap(mapcacheerr.InvalidRequest, err, "tms: invalid z")
	}
	x, err := strconv.Atoi(vars["x"])
	if err != nil {
		return nil, mapcacheerr.Wrap(mapcacheerr.InvalidRequest, err, "tms: invalid x")
	}

	yExt := vars["y"]
	ext := ""
	if dot := strings.LastIndexByte(yExt, '.'); dot >= 0 {
		ext = yExt[dot+1:]
		yExt = yExt[:dot]
	}
	y, err := strconv.Atoi(yExt)
	if err != nil {
		return nil, mapcacheerr.Wrap(mapcacheerr.InvalidRequest, err, "tms: invalid y")
	}

	return &Request{
		Tileset: layer,
		Grid:    grid,
		Format:  ext,
		Z:       z,
		X:       x,
		Y:       y,
	}, nil
}

// tmsExceptionReport mirrors the minimal XML envelope TMS/WMS clients
// expect on error (spec.md §4.8 "Error envelopes").
type tmsExceptionReport struct {
	XMLName xml.Name `xml:"TileMapServerError"`
	Message string   `xml:"Message"`
}

func (s *TMS) WriteError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(statusFor(err))
	_ = xml.NewEncoder(w).Encode(tmsExceptionReport{Message: fmt.Sprint(err)})
}

// Command mapcache-serve is the thin demo binary that exercises the
// Service contract end to end (SPEC_FULL.md §4.8): gorilla/mux routes
// matching spec.md §6's TMS and Gmaps path shapes parse an incoming request
// into a service.Request, and the handler calls straight into the render
// engine. No cache or lock logic lives in this package, matching spec.md
// §1's "contains no caching logic" for the service layer.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/arx-os/mapcache/internal/config"
	"github.com/arx-os/mapcache/internal/mapcacheerr"
	"github.com/arx-os/mapcache/internal/render"
	"github.com/arx-os/mapcache/internal/service"
	"github.com/arx-os/mapcache/internal/tile"
)

func main() {
	configPath := flag.String("config", "mapcache.xml", "path to the mapcache XML configuration")
	addr := flag.String("addr", ":8080", "listen address")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	watcher, err := config.NewWatcher(*configPath)
	if err != nil {
		logger.WithError(err).Fatal("mapcache-serve: load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if watcher.Current().AutoReload {
		go watcher.Run(ctx)
	}

	srv := &server{watcher: watcher, logger: logger}

	router := mux.NewRouter()
	router.HandleFunc("/tms/1.0.0/{layer}/{z}/{x}/{y}", srv.handle(&service.TMS{})).Methods(http.MethodGet)
	router.HandleFunc("/gmaps/{layer}/{z}/{x}/{y}", srv.handle(&service.TMS{ReverseY: true})).Methods(http.MethodGet)

	handler := cors.Default().Handler(router)

	httpServer := &http.Server{
		Addr:         *addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		logger.WithField("addr", *addr).Info("mapcache-serve: listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("mapcache-serve: serve")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
}

type server struct {
	watcher *config.Watcher
	logger  *logrus.Logger
}

// handle adapts one service.Service implementation into an
// http.HandlerFunc: parse, resolve the tileset, fetch the tile, write
// the encoded bytes (spec.md §4.8).
func (s *server) handle(svc service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := svc.ParseRequest(r)
		if err != nil {
			svc.WriteError(w, err)
			return
		}

		cfg := s.watcher.Current()
		ts, ok := cfg.Tilesets[req.Tileset]
		if !ok {
			svc.WriteError(w, mapcacheerr.New(mapcacheerr.NotFound, fmt.Sprintf("unknown tileset %q", req.Tileset)))
			return
		}

		t := &tile.Tile{
			Tileset:  req.Tileset,
			GridLink: ts.GridLink,
			Z:        req.Z,
			X:        req.X,
			Y:        req.Y,
		}
		if svc.Name() == "gmaps" {
			lvl := ts.GridLink.Grid.Levels[t.Z]
			t.Y = lvl.MaxY - 1 - t.Y
		}
		for name, value := range req.Dimensions {
			t.Dimensions = append(t.Dimensions, tile.RequestedDimension{Name: name, RequestedValue: value})
		}

		ctx := render.WithBlocking(r.Context(), true)
		if err := ts.Get(ctx, t); err != nil {
			svc.WriteError(w, err)
			return
		}
		if t.Nodata {
			svc.WriteError(w, mapcacheerr.New(mapcacheerr.NotFound, "tile has no data"))
			return
		}

		data, err := t.Image.Encode()
		if err != nil {
			svc.WriteError(w, mapcacheerr.Wrap(mapcacheerr.Internal, err, "encode tile"))
			return
		}

		w.Header().Set("Content-Type", contentType(ts.Format))
		if t.Expires > 0 {
			w.Header().Set("Cache-Control", fmt.Sprintf("max-age=%d", int(t.Expires.Seconds())))
		}
		if !t.Mtime.IsZero() {
			w.Header().Set("Last-Modified", t.Mtime.UTC().Format(http.TimeFormat))
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}

func contentType(format string) string {
	switch format {
	case "jpeg":
		return "image/jpeg"
	default:
		return "image/png"
	}
}

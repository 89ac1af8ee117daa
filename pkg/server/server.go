// Package server exposes matching over HTTP: browsers upload a photo and get
// back the closest reference and its product recommendations.
package server

import (
	"context"
	"errors"
	"fmt"
	stdlog "log"
	"net"
	"net/http"
	"runtime"
	"time"

	"github.com/BitPonyLLC/huematch/internal/image_matcher"
	"github.com/BitPonyLLC/huematch/pkg/catalog"
	"github.com/BitPonyLLC/huematch/pkg/util"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"go.uber.org/atomic"
)

// DefaultMaxUpload bounds request bodies when MaxUpload is unset.
const DefaultMaxUpload = 20 << 20

const shutdownTimeout = 5 * time.Second

// Server holds everything the handlers need. Matcher and Catalog are
// required; the rest have defaults.
type Server struct {
	Matcher *image_matcher.Matcher
	Catalog *catalog.Store
	Log     *zerolog.Logger

	// MaxUpload caps the request body in bytes.
	MaxUpload int64
	// UploadDir keeps a copy of every upload when set.
	UploadDir string
	// CORSOrigins lists allowed origins ("*" for any).
	CORSOrigins []string
	// Workers bounds concurrent extractions (defaults to NumCPU).
	Workers int

	slots    chan struct{}
	inFlight atomic.Int64
	served   atomic.Int64
}

// Handler builds the routed, CORS-wrapped and access-logged handler.
func (s *Server) Handler() http.Handler {
	s.init()

	mux := http.NewServeMux()
	mux.HandleFunc("/upload", s.handleUpload)
	mux.HandleFunc("/catalog", s.handleCatalog)
	mux.HandleFunc("/healthz", s.handleHealth)

	origins := s.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	var h http.Handler = c.Handler(mux)
	h = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("took", duration).
			Msg("request")
	})(h)
	h = hlog.RemoteAddrHandler("remote")(h)
	h = hlog.NewHandler(*s.Log)(h)

	return h
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.init()

	errLog := &util.LineLogger{Log: func(line string) {
		s.Log.Warn().Str("component", "http").Msg(line)
	}}
	defer errLog.Close()

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ErrorLog:          stdlog.New(errLog, "", 0),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	go func() {
		defer util.LogRecover()
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		if err != nil {
			s.Log.Err(err).Msg("http shutdown")
		}
	}()

	s.Log.Info().Str("addr", addr).Int("workers", cap(s.slots)).Msg("listening")

	err := srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("unable to serve on %s: %w", addr, err)
	}

	return nil
}

// InFlight is the number of uploads currently being processed.
func (s *Server) InFlight() int64 {
	return s.inFlight.Load()
}

// Served counts completed uploads.
func (s *Server) Served() int64 {
	return s.served.Load()
}

//--------------------------------------------------------------------------------
// private

func (s *Server) init() {
	if s.slots != nil {
		return
	}

	workers := s.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	s.slots = make(chan struct{}, workers)

	if s.MaxUpload <= 0 {
		s.MaxUpload = DefaultMaxUpload
	}

	if s.Log == nil {
		nop := zerolog.Nop()
		s.Log = &nop
	}
}

// acquire waits for a worker slot; false means the request gave up first.
func (s *Server) acquire(ctx context.Context) bool {
	select {
	case s.slots <- struct{}{}:
		s.inFlight.Inc()
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Server) release() {
	s.inFlight.Dec()
	<-s.slots
}

// Package ui serves the HTTP build API: books are posted as JSON, compiled
// in the background and fetched as PDFs once finished.
package ui

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/gorilla/websocket"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/opd-ai/storybook/bookcompiler"
	"github.com/opd-ai/storybook/srv/generator"
	"github.com/opd-ai/storybook/srv/store"
	"github.com/opd-ai/storybook/srv/util"
)

type Options struct {
	Config  bookcompiler.Config
	WorkDir string
	Store   store.Store
	Logger  *zap.Logger
	// RateLimit is the number of build submissions allowed per IP per minute.
	RateLimit    int
	MaxBodyBytes int64
	// BuildTTL is how long finished build folders are kept under WorkDir.
	BuildTTL time.Duration
}

type BookServer struct {
	router   chi.Router
	cfg      bookcompiler.Config
	workDir  string
	store    store.Store
	progress *cache.Cache
	log      *zap.Logger
	upgrader websocket.Upgrader
	maxBody  int64
	builds   sync.WaitGroup
	active   sync.Map
	buildTTL time.Duration
}

func NewBookServer(opts Options) *BookServer {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Store == nil {
		opts.Store = store.NewMemory(store.DefaultTTL)
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 10
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 512 << 20
	}
	if opts.BuildTTL <= 0 {
		opts.BuildTTL = store.DefaultTTL
	}
	s := &BookServer{
		router:   chi.NewRouter(),
		cfg:      opts.Config,
		workDir:  opts.WorkDir,
		store:    opts.Store,
		progress: cache.New(store.DefaultTTL, time.Hour),
		log:      opts.Logger,
		maxBody:  opts.MaxBodyBytes,
		buildTTL: opts.BuildTTL,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	s.setupRoutes(opts.RateLimit)
	return s
}

func (s *BookServer) setupRoutes(rateLimit int) {
	s.router.Use(middleware.RequestID)
	s.router.Use(util.LoggingMiddleware(s.log))
	s.router.Use(util.RecoveryMiddleware(s.log))
	s.router.Use(middleware.SetHeader("X-Content-Type-Options", "nosniff"))

	s.router.Get("/health", s.handleHealth)
	s.router.Route("/api/books", func(r chi.Router) {
		r.With(httprate.LimitByIP(rateLimit, time.Minute)).Post("/", s.handleCreate)
		r.Get("/{id}", s.handleStatus)
		r.Get("/{id}/manuscript.pdf", s.handleDownload(bookcompiler.ManuscriptFile))
		r.Get("/{id}/cover.pdf", s.handleDownload(bookcompiler.CoverFile))
	})
	s.router.Get("/ws/{id}", s.handleWebSocket)
}

func (s *BookServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Wait blocks until every started build has finished.
func (s *BookServer) Wait() {
	s.builds.Wait()
}

// Shutdown waits for running builds, up to ctx's deadline, then closes the store.
func (s *BookServer) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.builds.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("shutting down with builds still running")
	}
	return s.store.Close()
}

func (s *BookServer) persist(status generator.Status) {
	if err := s.store.Save(context.Background(), status); err != nil {
		s.log.Error("saving build status", zap.String("id", status.ID), zap.Error(err))
	}
}

func (s *BookServer) startBuild(id string, req generator.BuildRequest, progress *generator.BuildProgress) {
	s.builds.Add(1)
	s.active.Store(id, struct{}{})
	go func() {
		defer s.builds.Done()
		defer s.active.Delete(id)
		log := s.log.With(zap.String("build", id))
		progress.UpdateState(generator.StateBuilding, "Building \""+req.Title+"\"")
		res, err := generator.RunBuild(context.Background(), progress, req, s.cfg, s.buildDir(id), log)
		if err != nil {
			log.Warn("build failed", zap.Error(err))
			progress.Fail(err, res)
			return
		}
		log.Info("build finished", zap.Int("pages", res.Pages))
		progress.Complete(res)
	}()
}

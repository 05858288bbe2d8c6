package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/mindsight/journal/config"
	"github.com/mindsight/journal/internal/annotate"
	"github.com/mindsight/journal/internal/db"
	"github.com/mindsight/journal/internal/handlers"
	"github.com/mindsight/journal/internal/logging"
	"github.com/mindsight/journal/internal/metrics"
	"github.com/mindsight/journal/internal/middleware"
	"github.com/mindsight/journal/internal/mq"
	"github.com/mindsight/journal/internal/services"
	"github.com/mindsight/journal/internal/session"
	"github.com/mindsight/journal/internal/storage"
	"github.com/mindsight/journal/internal/store"
	"github.com/rs/zerolog"
)

const limiterIdleTTL = 10 * time.Minute

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	mq         *mq.MQ
	events     *mq.Publisher
	sessions   session.Store
	limiter    *middleware.RateLimiter
	logger     zerolog.Logger
	done       chan struct{}
}

// Dependencies are the collaborators the router needs. New builds them from
// config; tests can build them directly.
type Dependencies struct {
	Users    *services.UserService
	Entries  *services.EntryService
	Exports  *services.ExportService
	Sessions *session.Manager
	Limiter  *middleware.RateLimiter
	Logger   zerolog.Logger
}

// New connects every backend named in cfg and assembles the server.
func New(ctx context.Context, cfg config.Config, logger zerolog.Logger) (s *Server, err error) {
	var closers []io.Closer
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				_ = closers[i].Close()
			}
		}
	}()

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	closers = append(closers, dbConn)

	broker, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		return nil, fmt.Errorf("open mq: %w", err)
	}
	closers = append(closers, broker)
	events := mq.NewPublisher(broker, cfg.MQ.Topic, logger.With().Str("component", "mq").Logger())

	analyzer, err := newAnalyzer(ctx, cfg.Gemini, logger)
	if err != nil {
		return nil, err
	}

	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	sessionStore, err := session.OpenStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	if closer, ok := sessionStore.(io.Closer); ok {
		closers = append(closers, closer)
	}

	userRepo := store.NewUserRepository(dbConn)
	entryRepo := store.NewEntryRepository(dbConn)

	// A nil *storage.Storage must stay a nil interface so exports report
	// themselves disabled.
	var exportWriter services.ObjectStore
	if objects != nil {
		exportWriter = objects
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, logger)
	router, err := NewRouter(Dependencies{
		Users:    services.NewUserService(userRepo, events, logger),
		Entries:  services.NewEntryService(entryRepo, analyzer, events, logger),
		Exports:  services.NewExportService(userRepo, entryRepo, exportWriter, logger),
		Sessions: session.NewManager(sessionStore, cfg.Session, cfg.SecretKey),
		Limiter:  limiter,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Gemini.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		mq:         broker,
		events:     events,
		sessions:   sessionStore,
		limiter:    limiter,
		logger:     logger,
		done:       make(chan struct{}),
	}, nil
}

func newAnalyzer(ctx context.Context, cfg config.GeminiConfig, logger zerolog.Logger) (*annotate.Analyzer, error) {
	opts := []annotate.Option{
		annotate.WithTimeout(cfg.Timeout),
		annotate.WithLogger(logger.With().Str("component", "annotate").Logger()),
		annotate.WithObserver(func(f annotate.Failure, elapsed time.Duration) {
			metrics.ObserveAnnotation(f.String(), elapsed)
		}),
	}
	if cfg.APIKey == "" {
		logger.Warn().Msg("GEMINI_API_KEY not set, entries will use fallback annotations")
		return annotate.NewAnalyzer(nil, opts...), nil
	}

	generator, err := annotate.NewGeminiGenerator(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	logger.Info().Str("model", generator.Model()).Msg("gemini annotation enabled")
	return annotate.NewAnalyzer(generator, opts...), nil
}

// NewRouter builds the HTTP routes over deps.
func NewRouter(deps Dependencies) (*chi.Mux, error) {
	view, err := handlers.NewView(deps.Sessions, deps.Logger)
	if err != nil {
		return nil, err
	}

	var limit func(http.Handler) http.Handler
	if deps.Limiter != nil {
		limit = deps.Limiter.Handler
	}

	router := chi.NewRouter()
	router.Use(
		middleware.PeerAddr,
		chimiddleware.RequestID,
		chimiddleware.RealIP,
		logging.RequestLogger(deps.Logger),
		chimiddleware.Recoverer,
		metrics.InstrumentHandler,
		chimiddleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Handle("/metrics", metrics.Handler())

	router.Group(func(r chi.Router) {
		r.Use(handlers.LoadUser(deps.Users, deps.Sessions, deps.Logger))
		r.Get("/", handlers.Index(view))
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, handlers.NewAuthHandler(deps.Users, deps.Sessions, view, deps.Logger), limit)
		})
		r.Route("/entries", func(r chi.Router) {
			handlers.EntryRouter(r, handlers.NewEntryHandler(deps.Entries, deps.Exports, deps.Sessions, view, deps.Logger))
		})
	})

	return router, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	go s.sweepLimiters()

	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) sweepLimiters() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.limiter.Cleanup(limiterIdleTTL)
		}
	}
}

// Shutdown drains in-flight requests and releases every backend.
func (s *Server) Shutdown(ctx context.Context) error {
	close(s.done)
	err := s.httpServer.Shutdown(ctx)

	if closer, ok := s.sessions.(io.Closer); ok {
		_ = closer.Close()
	}
	if s.events != nil {
		s.events.Wait()
	}
	if s.mq != nil {
		_ = s.mq.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}

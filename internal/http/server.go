package http

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/handlers"

	"bizdash/internal/cache"
	"bizdash/internal/core"
	"bizdash/internal/dashboard"
	"bizdash/internal/log"
	"bizdash/internal/middleware/ratelimit"
	"bizdash/internal/middleware/security"
	"bizdash/internal/middleware/trace"
	"bizdash/internal/services"
	"bizdash/internal/session"
	"bizdash/internal/storage"
	appweb "bizdash/web"
)

const (
	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 60 * time.Second
	idleTimeout       = 120 * time.Second
	remoteTimeout     = 30 * time.Second
	recentExports     = 10
)

// Authenticator verifies login credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (core.User, error)
}

// Pages resolves dashboard pages by slug.
type Pages interface {
	Get(slug string) (dashboard.Page, error)
	All() []dashboard.Page
}

// OverviewReader builds the landing summary.
type OverviewReader interface {
	Overview(ctx context.Context, years []int) (core.Overview, error)
}

// RecordWriter validates and writes records to the table API.
type RecordWriter interface {
	AddExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	AddIncome(ctx context.Context, in core.Income) (core.Income, error)
	AddProject(ctx context.Context, p core.Project) (core.Project, error)
	AddPayroll(ctx context.Context, p core.Payroll) (core.Payroll, error)
	EditProject(ctx context.Context, p core.Project) (core.Project, error)
}

// ProjectReader returns the current projects, used to prefill the edit form.
type ProjectReader interface {
	Get(ctx context.Context) (services.Dataset[core.Project], error)
}

// ExportQueue schedules spreadsheet exports.
type ExportQueue interface {
	Enabled() bool
	Queue(ctx context.Context, page, query, user string) (storage.ExportJob, error)
	Recent(ctx context.Context, limit int) ([]storage.ExportJob, error)
}

// Deps are the collaborators the server is wired with. Exports and Ready may
// be nil.
type Deps struct {
	Pages    Pages
	Overview OverviewReader
	Records  RecordWriter
	Projects ProjectReader
	Exports  ExportQueue
	Sessions *session.Manager
	Auth     Authenticator
	// Ready reports whether backing stores are reachable.
	Ready func(ctx context.Context) error
}

// Options tune the server.
type Options struct {
	CookieSecure    bool
	CleanupInterval time.Duration
	// LoginRateLimit is the number of login and write attempts allowed per
	// client per minute.
	LoginRateLimit int
	// Templates overrides the embedded template and static file system.
	Templates fs.FS
}

type Server struct {
	http.Server
	deps     Deps
	opts     Options
	views    *renderer
	logger   *log.Logger
	detector *security.Detector
	tracer   *trace.Middleware
	limiter  *ratelimit.Limiter
	caches   *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(addr string, deps Deps, opts Options, logger *log.Logger) (*Server, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = 5 * time.Minute
	}
	fsys := opts.Templates
	if fsys == nil {
		fsys = appweb.FS
	}
	views, err := newRenderer(fsys)
	if err != nil {
		return nil, err
	}

	logger = logger.WithComponent(log.ComponentHTTP)
	s := &Server{
		deps:     deps,
		opts:     opts,
		views:    views,
		logger:   logger,
		detector: security.NewDetector(logger),
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.LoginRateLimit}),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, logger)

	cacheLog := logger.WithComponent(log.ComponentCache)
	s.caches = cache.NewManager(func(removed int) {
		cacheLog.Debug("Cache cleanup completed", "entries_removed", removed)
	})
	for _, p := range deps.Pages.All() {
		s.caches.Register(p.Cleaner())
	}
	s.caches.Register(s.limiter)
	if deps.Sessions != nil {
		s.caches.Register(cache.CleanerFunc(func() int {
			n, err := deps.Sessions.GC(context.Background())
			if err != nil {
				cacheLog.Warn("Session cleanup failed", log.FieldError, err)
			}
			return n
		}))
	}
	s.caches.StartCleanup(opts.CleanupInterval)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(fsys),
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
	return s, nil
}

func (s *Server) routes(fsys fs.FS) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.tracer.Handler)
	r.Use(log.Middleware(s.logger, trace.FromRequest))
	r.Use(s.detector.Middleware)
	r.Use(security.Headers(security.DefaultHeadersConfig()))
	r.Use(handlers.CompressHandler)

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	if sub, err := fs.Sub(fsys, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.With(security.StaticAssetMiddleware(3600)).Handle("/static/*", static)
	} else {
		s.logger.Warn("Failed to mount static files", log.FieldError, err)
	}

	limited := s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, _ *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "Too many attempts. Please wait a minute.").Write(w)
	})

	r.Get("/login", s.handleLoginForm)
	r.With(limited).Post("/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)

		r.Post("/logout", s.handleLogout)
		r.Get("/", s.handleOverview)

		r.Route("/{page}", func(r chi.Router) {
			r.Use(s.withPage)
			r.Get("/", s.handlePage)
			r.Get("/table", s.handleTable)
			r.Get("/chart", s.handleChart)
			r.Post("/refresh", s.handleRefresh)
			r.Get("/export.zip", s.handleExportZip)
			r.Post("/export", s.handleQueueExport)
			r.Get("/exports", s.handleRecentExports)
			r.With(limited).Post("/records", s.handleCreate)
			r.Get("/records/{id}/edit", s.handleEditForm)
			r.With(limited).Post("/records/{id}", s.handleEdit)
		})
	})
	return r
}

// Start runs the server until ctx is cancelled, then shuts it down within
// timeout.
func (s *Server) Start(ctx context.Context, timeout time.Duration) error {
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.Addr, log.FieldOperation, log.OpStartup)
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops the cleanup goroutines and the HTTP server. Safe to call
// more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// remoteContext bounds a request that reaches the table API.
func remoteContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), remoteTimeout)
}

// isHTMX reports whether the request was issued by htmx.
func isHTMX(r *http.Request) bool { return r.Header.Get("HX-Request") == "true" }

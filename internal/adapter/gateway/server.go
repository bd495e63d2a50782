// Package gateway serves the file and settings operations over HTTP: REST
// routes, the static asset mount, operational endpoints and a WebSocket
// channel carrying RPC calls and live events.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"filedeck/internal/domain"
	"filedeck/internal/infra/middleware"
	"filedeck/internal/usecase/scheduling"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 8 << 20

// SettingsAPI is the settings surface the gateway needs.
type SettingsAPI interface {
	domain.SettingsManager
	Backend() string
}

// EventSource is the part of the event bus the gateway consumes.
type EventSource interface {
	SubscribeAll(handler domain.EventHandler) func()
	Counts() map[domain.EventType]uint64
	Subscribers() int
}

// Config holds listener and HTTP-surface settings.
type Config struct {
	Addr            string
	AssetsDir       string // "" disables the /assets mount
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	CORS            middleware.CORSConfig
	RateLimit       *middleware.RateLimitConfig // nil disables rate limiting
	Version         string
	SandboxRoot     string
}

// Deps holds the services behind the routes.
type Deps struct {
	Files    domain.FileManager
	Settings SettingsAPI
	Events   EventSource
	Tasks    func() []scheduling.TaskStatus // may be nil
	Logger   *slog.Logger
}

// Server is the HTTP and WebSocket gateway.
type Server struct {
	cfg     Config
	deps    Deps
	logger  *slog.Logger
	schemas schemas
	rpc     map[string]RPCHandler
	metrics *Metrics
	started time.Time

	clients  sync.Map // conn ID -> *clientConn
	nextConn atomic.Uint64

	mu        sync.Mutex
	httpSrv   *http.Server
	boundAddr string
	unsub     func()
}

// NewServer creates a gateway server.
func NewServer(cfg Config, deps Deps) (*Server, error) {
	compiled, err := compileSchemas()
	if err != nil {
		return nil, fmt.Errorf("gateway schemas: %w", err)
	}
	s := &Server{
		cfg:     cfg,
		deps:    deps,
		logger:  deps.Logger,
		schemas: compiled,
		metrics: &Metrics{},
		started: time.Now(),
	}
	s.rpc = s.rpcHandlers()
	if deps.Events != nil {
		s.unsub = deps.Events.SubscribeAll(s.broadcast)
	}
	return s, nil
}

// Handler builds the complete HTTP handler with middleware applied. The
// rate limiter's sweeper lives until ctx is done.
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	s.registerREST(mux)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /ws", s.handleUpgrade)
	s.mountAssets(mux)

	mws := []func(http.Handler) http.Handler{
		middleware.Recover(s.logger),
		middleware.RequestID,
		middleware.AccessLog(s.logger),
		middleware.SecurityHeaders,
		middleware.CORS(s.cfg.CORS),
	}
	var trusted []string
	if s.cfg.RateLimit != nil {
		trusted = s.cfg.RateLimit.TrustedProxies
		mws = append(mws, middleware.RateLimit(ctx, *s.cfg.RateLimit))
	}
	mws = append(mws, withActor(trusted))
	return middleware.Chain(mux, mws...)
}

func (s *Server) mountAssets(mux *http.ServeMux) {
	dir := s.cfg.AssetsDir
	if dir == "" {
		return
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		s.logger.Warn("assets directory not found, static mount skipped", "dir", dir)
		return
	}
	mux.Handle("GET /assets/", http.StripPrefix("/assets/", http.FileServer(assetFS{http.Dir(dir)})))
}

// assetFS reports directories without an index.html as missing so the file
// server never renders a directory listing.
type assetFS struct{ http.FileSystem }

func (a assetFS) Open(name string) (http.File, error) {
	f, err := a.FileSystem.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		index, err := a.FileSystem.Open(path.Join(name, "index.html"))
		if err != nil {
			f.Close()
			return nil, fs.ErrNotExist
		}
		index.Close()
	}
	return f, nil
}

// withActor records the client address as the acting identity for audit
// records.
func withActor(trusted []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := middleware.ClientIP(r, trusted)
			next.ServeHTTP(w, r.WithContext(domain.ContextWithActor(r.Context(), actor)))
		})
	}
}

// Start listens on the configured address and serves until ctx is cancelled
// or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("gateway listen: %w", err)
	}

	srv := &http.Server{
		Handler:      s.Handler(ctx),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	s.mu.Lock()
	s.httpSrv = srv
	s.boundAddr = listener.Addr().String()
	s.mu.Unlock()

	s.logger.Info("gateway started", "addr", listener.Addr().String())

	go func() {
		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout())
		defer cancel()
		if err := s.Stop(stopCtx); err != nil {
			s.logger.Warn("gateway shutdown", "error", err)
		}
	}()

	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("gateway serve: %w", err)
	}
	return nil
}

func (s *Server) shutdownTimeout() time.Duration {
	if s.cfg.ShutdownTimeout > 0 {
		return s.cfg.ShutdownTimeout
	}
	return 10 * time.Second
}

// Stop closes WebSocket clients and gracefully shuts the HTTP server down.
// It is safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpSrv
	unsub := s.unsub
	s.httpSrv = nil
	s.unsub = nil
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	s.closeClients()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// BoundAddr returns the address the server is listening on. Empty until
// Start has bound the listener.
func (s *Server) BoundAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boundAddr
}

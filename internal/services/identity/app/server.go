package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/net/netutil"

	"lifeasagame.dev/internal/platform/config"
	"lifeasagame.dev/internal/platform/httpx"
	"lifeasagame.dev/internal/platform/timeouts"
	"lifeasagame.dev/internal/services/identity/api"
	"lifeasagame.dev/internal/services/identity/authz"
	"lifeasagame.dev/internal/services/identity/session"
	"lifeasagame.dev/internal/services/identity/storage/sqlite"
	"lifeasagame.dev/internal/services/identity/token"
	"lifeasagame.dev/internal/services/identity/user"
)

const defaultDatabasePath = "identity.db"

// Config defines the inputs for the identity server process.
type Config struct {
	HTTPAddr     string
	DatabasePath string
	Environment  config.Environment
	// MaxConns caps concurrent HTTP connections when positive.
	MaxConns          int
	Tokens            token.Config
	Sessions          session.Config
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server hosts the identity service.
type Server struct {
	listener        net.Listener
	httpServer      *http.Server
	store           *sqlite.Store
	sessions        *session.Service
	cleanupInterval time.Duration
	shutdownTimeout time.Duration
}

// New creates a configured identity server listening on the provided address.
func New(cfg Config) (*Server, error) {
	httpAddr := strings.TrimSpace(cfg.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = timeouts.Shutdown
	}

	codec, err := token.NewCodec(cfg.Tokens)
	if err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", httpAddr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", httpAddr, err)
	}
	if cfg.MaxConns > 0 {
		listener = netutil.LimitListener(listener, cfg.MaxConns)
	}

	store, err := openStore(cfg.DatabasePath)
	if err != nil {
		_ = listener.Close()
		return nil, err
	}

	sessions := session.New(codec, store, store, store)
	mux := http.NewServeMux()
	api.New(sessions, user.New(store), authz.New(store, store, store), cfg.Environment).RegisterRoutes(mux)
	handler := httpx.Chain(mux,
		httpx.RequestID(),
		httpx.RequestLogger(log.Default()),
		httpx.RecoverPanic(),
	)

	return &Server{
		listener: listener,
		httpServer: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		},
		store:           store,
		sessions:        sessions,
		cleanupInterval: cfg.Sessions.CleanupInterval,
		shutdownTimeout: cfg.ShutdownTimeout,
	}, nil
}

// Addr returns the listener address for the identity server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves an identity server until the context ends.
func Run(ctx context.Context, cfg Config) error {
	server, err := New(cfg)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve starts the identity server and blocks until it stops or the context
// ends.
func (s *Server) Serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	serverCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.closeStore()

	s.sessions.StartCleanup(serverCtx, s.cleanupInterval)

	log.Printf("identity server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		<-serveErr
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

func openStore(path string) (*sqlite.Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = defaultDatabasePath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	store, err := sqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open identity sqlite store: %w", err)
	}
	return store, nil
}

func (s *Server) closeStore() {
	if s == nil || s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		log.Printf("close identity store: %v", err)
	}
}

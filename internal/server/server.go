package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"audioconv/internal/artifact"
)

const (
	allowRemoteEnvKey      = "AUDIOCONV_ALLOW_REMOTE"
	readHeaderTimeout      = 5 * time.Second
	readTimeout            = 5 * time.Minute
	idleTimeout            = 60 * time.Second
	writeTimeoutSlack      = 60 * time.Second
	defaultWriteTimeout    = 5 * time.Minute
	defaultMaxPending      = 64
	defaultMultipartMemory = 8 << 20   // 8 MiB
	defaultMaxUploadBytes  = 100 << 20 // 100 MiB
	multipartOverheadBytes = 1 << 20   // 1 MiB for form fields and part headers
)

// Options configures the HTTP surface.
type Options struct {
	Conversions     *ConversionService
	Artifacts       artifact.Store
	MaxUploadBytes  int64
	MultipartMemory int64
	MaxPending      int
	PublicBaseURL   string
	// EngineBudget is the longest a conversion may hold a request open,
	// queueing included. It sizes the write timeout.
	EngineBudget time.Duration
}

// Server wraps HTTP handlers for the audioconv API.
type Server struct {
	addr            string
	conversions     *ConversionService
	artifacts       artifact.Store
	maxUploadBytes  int64
	multipartMemory int64
	publicBaseURL   string
	writeTimeout    time.Duration
	logger          *slog.Logger
	convertLimiter  chan struct{}
}

// New creates a new server instance.
func New(addr string, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if opts.MultipartMemory <= 0 {
		opts.MultipartMemory = defaultMultipartMemory
	}
	if opts.MaxPending <= 0 {
		opts.MaxPending = defaultMaxPending
	}
	writeTimeout := defaultWriteTimeout
	if opts.EngineBudget > 0 {
		writeTimeout = opts.EngineBudget + writeTimeoutSlack
	}

	return &Server{
		addr:            addr,
		conversions:     opts.Conversions,
		artifacts:       opts.Artifacts,
		maxUploadBytes:  opts.MaxUploadBytes,
		multipartMemory: opts.MultipartMemory,
		publicBaseURL:   strings.TrimRight(strings.TrimSpace(opts.PublicBaseURL), "/"),
		writeTimeout:    writeTimeout,
		logger:          logger,
		convertLimiter:  make(chan struct{}, opts.MaxPending),
	}
}

// Handler returns the fully wired HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.withRequestLogging(s.withTraversalGuard(s.routes()))
}

// ListenAndServe listens on the configured address and serves until ctx is
// done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then stops accepting and
// waits up to the write timeout for in-flight conversions to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.log().Info("starting server", "addr", ln.Addr().String(), "write_timeout", s.writeTimeout.String())
	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      s.writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log().Info("shutting down", "grace", s.writeTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAddr converts a base API URL into a listen address.
func ListenAddr(apiURL string) (string, error) {
	if apiURL == "" {
		return "", fmt.Errorf("api url is required")
	}
	if u, err := url.Parse(apiURL); err == nil && u.Host != "" {
		host := u.Hostname()
		if !isAllowedListenHost(host) {
			return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
		}
		return u.Host, nil
	}

	host, _, err := net.SplitHostPort(apiURL)
	if err == nil && !isAllowedListenHost(host) {
		return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
	}

	return apiURL, nil
}

func isAllowedListenHost(host string) bool {
	if host == "" {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv(allowRemoteEnvKey)), "true") {
		return true
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (s *Server) acquireLimiter(limiter chan struct{}, w http.ResponseWriter, r *http.Request, name string) bool {
	if limiter == nil {
		return true
	}
	select {
	case limiter <- struct{}{}:
		return true
	default:
		s.writeError(w, r, classResourceExhausted.errorf("too many pending %s requests", name))
		return false
	}
}

func (s *Server) releaseLimiter(limiter chan struct{}) {
	if limiter == nil {
		return
	}
	select {
	case <-limiter:
	default:
	}
}

func (s *Server) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

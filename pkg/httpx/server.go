// Package httpx provides the HTTP plumbing for the analyzer's serving side:
// a server with graceful shutdown and optional mTLS, JSON response helpers,
// and the middleware every route runs behind.
package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	gmtls "github.com/riiali/green-microbench/pkg/tls"
)

// Server wraps http.Server with graceful shutdown and mTLS.
type Server struct {
	srv      *http.Server
	log      *slog.Logger
	certFile string
	keyFile  string
}

// NewServer creates a server listening on addr. With TLS enabled in tlsCfg
// the server requires and verifies client certificates.
func NewServer(addr string, handler http.Handler, tlsCfg gmtls.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		log: logger,
	}

	if tlsCfg.Enabled {
		tc, err := tlsCfg.ServerConfig()
		if err != nil {
			return nil, fmt.Errorf("server tls config: %w", err)
		}
		s.srv.TLSConfig = tc
		s.certFile = tlsCfg.CertFile
		s.keyFile = tlsCfg.KeyFile
	}
	return s, nil
}

// Start serves requests, blocking until Stop is called. It serves HTTPS
// when the server was built with TLS enabled.
func (s *Server) Start() error {
	var err error
	if s.srv.TLSConfig != nil {
		s.log.Info("serving HTTPS", "addr", s.srv.Addr)
		err = s.srv.ListenAndServeTLS(s.certFile, s.keyFile)
	} else {
		s.log.Info("serving HTTP", "addr", s.srv.Addr)
		err = s.srv.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// Stop drains active connections for up to timeout, then shuts down.
func (s *Server) Stop(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.log.Info("HTTP server stopped")
	return nil
}

// ErrorResponse is the JSON error body used across all endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
}

// WriteJSON writes v as a JSON response with the given status code. The
// value is marshaled before any bytes hit the wire so an encoding failure
// never produces a half-written body.
func WriteJSON(w http.ResponseWriter, status int, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(data)
	return err
}

// WriteErrorMessage writes {"error": message} with the given status code.
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	if err := WriteJSON(w, status, ErrorResponse{Error: message}); err != nil {
		slog.Error("failed to write error response", "error", err, "message", message)
	}
}

// HealthHandler responds 200 OK, or 503 when check is non-nil and failing.
func HealthHandler(check func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				WriteErrorMessage(w, http.StatusServiceUnavailable, err.Error())
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

// Middleware wraps next with panic recovery and access logging. A panicking
// handler is logged and answered with 500; every request is logged with its
// status and duration.
func Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			defer func() {
				if p := recover(); p != nil {
					logger.Error("panic in handler",
						"panic", p,
						"method", r.Method,
						"path", r.URL.Path,
					)
					WriteErrorMessage(sw, http.StatusInternalServerError, "internal server error")
				}
				logger.Info("request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", sw.status,
					"duration_ms", time.Since(start).Milliseconds(),
				)
			}()

			next.ServeHTTP(sw, r)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

// NewClient creates an HTTP client for fetching remote sample sources. With
// TLS enabled in tlsCfg the client uses mTLS for HTTPS connections.
func NewClient(tlsCfg gmtls.Config, timeout time.Duration) (*http.Client, error) {
	transport := &http.Transport{
		MaxIdleConns:        10,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}

	if tlsCfg.Enabled {
		tc, err := tlsCfg.ClientConfig()
		if err != nil {
			return nil, fmt.Errorf("client tls config: %w", err)
		}
		transport.TLSClientConfig = tc
	}

	return &http.Client{Timeout: timeout, Transport: transport}, nil
}

package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

type Option func(*Server) error

func Address(address string) Option {
	return func(s *Server) error {
		s.h1.Addr = address
		return nil
	}
}

func Handle(handler http.Handler) Option {
	return func(s *Server) error {
		s.handler = handler
		return nil
	}
}

func RequestLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		s.requestLogger = logger
		return nil
	}
}

// CertificateFile and CertificateKeyFile enable TLS if both are set.
func CertificateFile(file string) Option {
	return func(s *Server) error {
		s.certFile = file
		return nil
	}
}

func CertificateKeyFile(file string) Option {
	return func(s *Server) error {
		s.keyFile = file
		return nil
	}
}

func ShutdownTimeout(d time.Duration) Option {
	return func(s *Server) error {
		if d <= 0 {
			return fmt.Errorf("invalid shutdown timeout: %v", d)
		}
		s.shutdownTimeout = d
		return nil
	}
}

type Server struct {
	certFile string
	keyFile  string

	logger        *slog.Logger
	requestLogger *slog.Logger

	handler         http.Handler
	shutdownTimeout time.Duration
	h1              *http.Server
}

func NewServer(opts ...Option) (*Server, error) {
	s := &Server{
		certFile:        "",
		keyFile:         "",
		logger:          slog.Default(),
		requestLogger:   nil,
		handler:         http.DefaultServeMux,
		shutdownTimeout: time.Second,
		h1: &http.Server{
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if (s.certFile == "") != (s.keyFile == "") {
		return nil, errors.New("TLS requires both a certificate and a key file")
	}
	if s.requestLogger != nil {
		s.handler = s.logRequest(s.handler)
	}
	s.h1.Handler = s.handler
	return s, nil
}

// ListenAndServe serves on the configured address until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.h1.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is canceled and then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		if s.certFile != "" {
			s.logger.Info("serving HTTPS", "address", ln.Addr())
			err = s.h1.ServeTLS(ln, s.certFile, s.keyFile)
		} else {
			s.logger.Info("serving HTTP", "address", ln.Addr())
			err = s.h1.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.h1.Shutdown(shutdownCtx); err != nil {
			return errors.Join(err, s.h1.Close())
		}
		return nil
	})
	return eg.Wait()
}

// Middleware

func (s *Server) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.requestLogger.Info("got request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr, "duration", time.Since(start))
	})
}

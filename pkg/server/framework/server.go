// Package framework is a minimal web framework on top of gin.
package framework

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/openg2p/vci-service/config"
)

type contextKey string

const (
	TraceIDKey       contextKey = "traceID"
	ShutdownErrorKey contextKey = "shutdownError"
)

func (c contextKey) String() string {
	return string(c)
}

// Server owns the HTTP listener of the service.
type Server struct {
	*http.Server
}

// NewServer binds handler to the configured address and timeouts.
func NewServer(cfg config.ServerConfig, handler *gin.Engine) *Server {
	return &Server{
		Server: &http.Server{
			Addr:              cfg.APIHost,
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
		},
	}
}

// Serve starts listening in the background. The returned channel receives the error that stopped the listener;
// a graceful Stop does not send one.
func (s *Server) Serve() <-chan error {
	serverErrors := make(chan error, 1)
	go func() {
		logrus.Infof("server listening on %s", s.Addr)
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	return serverErrors
}

// Stop drains in-flight requests until ctx is done, then closes the remaining connections.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("could not stop server gracefully, forcing close")
		return errors.Wrap(s.Close(), "closing server")
	}
	return nil
}

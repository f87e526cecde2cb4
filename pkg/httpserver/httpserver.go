// Package httpserver exposes the inbound message endpoint over HTTP.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	HealthPath   = "/healthz"
	MessagesPath = "/v1/messages"

	signatureHeader = "Upstash-Signature"
	maxBodyBytes    = 1 << 20
)

type Config struct {
	Port            int           `default:"8080"`
	Mode            string        `default:"release"`
	PublicURL       string        `envconfig:"PUBLIC_URL"`
	ShutdownTimeout time.Duration `split_words:"true" default:"10s"`
	// AllowUnsigned serves the message endpoint without signature checks.
	// Local use only.
	AllowUnsigned   bool          `split_words:"true" default:"false"`
}

// MessageHandler processes one inbound record body.
type MessageHandler func(ctx context.Context, body []byte) error

// Verifier checks a signed push request. *qstash.Receiver satisfies it.
type Verifier interface {
	CanVerify() bool
	Verify(signature string, body []byte, destination string) error
}

type Server struct {
	gin       *gin.Engine
	port      int
	publicURL string
	shutdown  time.Duration

	handle    MessageHandler
	retryable func(error) bool
	verifier  Verifier
}

// New builds the server. verifier may only be nil when cfg.AllowUnsigned is
// set; retryable decides whether a failed record is answered with 500 so the
// sender redelivers it.
func New(cfg Config, handle MessageHandler, retryable func(error) bool, verifier Verifier) (*Server, error) {
	if handle == nil {
		return nil, errors.New("message handler is required")
	}
	if cfg.Port <= 0 {
		return nil, errors.New("port is required")
	}
	if !cfg.AllowUnsigned && (verifier == nil || !verifier.CanVerify()) {
		return nil, errors.New("signature verifier is required unless unsigned requests are allowed")
	}
	if retryable == nil {
		retryable = func(err error) bool { return err != nil }
	}
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}

	srv := &Server{
		gin:       gin.New(),
		port:      cfg.Port,
		publicURL: strings.TrimRight(strings.TrimSpace(cfg.PublicURL), "/"),
		shutdown:  cfg.ShutdownTimeout,
		handle:    handle,
		retryable: retryable,
		verifier:  verifier,
	}
	srv.mapHandlers()
	return srv, nil
}

func (srv *Server) mapHandlers() {
	srv.gin.Use(gin.Recovery(), requestLogger())
	srv.gin.GET(HealthPath, srv.healthCheck)
	srv.gin.POST(MessagesPath, srv.receiveMessage)
}

// Handler returns the router, mainly for tests.
func (srv *Server) Handler() http.Handler {
	return srv.gin
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (srv *Server) Run(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", srv.port),
		Handler:           srv.gin,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", srv.port).Msg("http server listening")
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := srv.shutdown
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	log.Info().Msg("http server shutting down")
	return httpSrv.Shutdown(shutdownCtx)
}

func (srv *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (srv *Server) receiveMessage(c *gin.Context) {
	ctx := c.Request.Context()
	logger := zerolog.Ctx(ctx)

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logger.Warn().Int64("limit", tooLarge.Limit).Msg("inbound body too large")
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "body too large"})
			return
		}
		logger.Error().Err(err).Msg("read inbound body")
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	if srv.verifier != nil && srv.verifier.CanVerify() {
		destination := ""
		if srv.publicURL != "" {
			destination = srv.publicURL + MessagesPath
		}
		if err := srv.verifier.Verify(c.GetHeader(signatureHeader), body, destination); err != nil {
			logger.Warn().Err(err).Msg("inbound signature verification failed")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
	}

	if err := srv.handle(ctx, body); err != nil {
		if srv.retryable(err) {
			logger.Error().Err(err).Msg("inbound record failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
			return
		}
		logger.Warn().Err(err).Msg("inbound record rejected")
		c.JSON(http.StatusOK, gin.H{"status": "rejected"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "processed"})
}

// requestLogger logs each request through zerolog and binds the global
// logger into the request context.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		ctx := log.Logger.WithContext(c.Request.Context())
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		zerolog.Ctx(ctx).Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("http request")
	}
}

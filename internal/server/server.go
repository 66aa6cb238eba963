// Package server exposes the per-user document hierarchy over HTTP.
//
//	GET   /healthz                     liveness and store check
//	GET   /metrics                     Prometheus exposition
//	GET   /v1/users/:uid/pages/:path   200 document | 404
//	PATCH /v1/users/:uid/pages/:path   shallow merge, 200 merged document
//
// Every /v1 request needs "Authorization: Bearer <token>" where the token
// subject equals :uid.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/qwsync/internal/auth"
	"github.com/roach88/qwsync/internal/doc"
	"github.com/roach88/qwsync/internal/metrics"
	"github.com/roach88/qwsync/internal/remote"
	"github.com/roach88/qwsync/internal/store"
)

// MaxBodyBytes caps a PATCH body.
const MaxBodyBytes = 1 << 20

const shutdownTimeout = 5 * time.Second

// Options configures a Server.
type Options struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// Store holds the documents.
	Store *store.Store

	// Issuer verifies bearer tokens.
	Issuer *auth.Issuer

	// Metrics records request counts. Optional.
	Metrics *metrics.Metrics

	// Gatherer is served on /metrics. Optional; /metrics is absent without it.
	Gatherer prometheus.Gatherer

	Logger *slog.Logger
}

// AreValid reports the first missing required option.
func (o *Options) AreValid() error {
	if o.Addr == "" {
		return fmt.Errorf("listen address is required")
	}
	if o.Store == nil {
		return fmt.Errorf("store is required")
	}
	if o.Issuer == nil {
		return fmt.Errorf("token issuer is required")
	}
	return nil
}

// Server is the document server.
type Server struct {
	server  *http.Server
	store   *store.Store
	docs    *remote.Local
	issuer  *auth.Issuer
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New builds the router. Call ListenAndServe or Serve to accept requests.
func New(o Options) (*Server, error) {
	if err := o.AreValid(); err != nil {
		return nil, fmt.Errorf("invalid server options: %w", err)
	}
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		store:   o.Store,
		docs:    remote.NewLocal(o.Store),
		issuer:  o.Issuer,
		metrics: o.Metrics,
		logger:  logger,
	}

	router := gin.New()
	router.Use(gin.Recovery(), s.observe)

	router.GET("/healthz", s.health)
	if o.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(o.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/v1/users/:uid", s.authenticate)
	v1.GET("/"+doc.PagesCollection+"/:path", s.getDocument)
	v1.PATCH("/"+doc.PagesCollection+"/:path", s.mergeDocument)

	s.server = &http.Server{
		Addr:              o.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// ListenAndServe listens on Options.Addr. It returns nil after Shutdown.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.server.Addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln. It returns nil after Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("document server listening", "addr", ln.Addr().String())
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully, waiting at most five seconds for
// pending requests.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

func (s *Server) observe(c *gin.Context) {
	start := time.Now()
	c.Next()

	status := c.Writer.Status()
	s.metrics.HTTPRequest(c.Request.Method, strconv.Itoa(status))
	s.logger.Debug("request",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"status", status,
		"latency", time.Since(start))
}

func (s *Server) health(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) authenticate(c *gin.Context) {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		abort(c, http.StatusUnauthorized, "missing bearer token")
		return
	}
	subject, err := s.issuer.Verify(token)
	if err != nil {
		abort(c, http.StatusUnauthorized, "invalid token")
		return
	}
	if subject != c.Param("uid") {
		abort(c, http.StatusForbidden, "token does not grant access to this user")
		return
	}
	c.Next()
}

func (s *Server) getDocument(c *gin.Context) {
	uid, path, ok := documentParams(c)
	if !ok {
		return
	}

	d, err := s.docs.Get(c.Request.Context(), uid, path)
	if remote.IsNotFound(err) {
		s.metrics.RemoteRead(metrics.ResultNotFound)
		abort(c, http.StatusNotFound, "document not found")
		return
	}
	if err != nil {
		s.metrics.RemoteRead(metrics.ResultError)
		s.logger.Error("get document", "uid", uid, "path", path, "error", err)
		abort(c, http.StatusInternalServerError, "storage error")
		return
	}
	s.metrics.RemoteRead(metrics.ResultOK)
	writeDocument(c, d)
}

func (s *Server) mergeDocument(c *gin.Context) {
	uid, path, ok := documentParams(c)
	if !ok {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes))
	if err != nil {
		abort(c, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	patch, err := doc.Decode(body)
	if err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}

	merged, err := s.docs.Merge(c.Request.Context(), uid, path, patch)
	if err != nil {
		s.metrics.RemoteWrite(metrics.ResultError)
		s.logger.Error("merge document", "uid", uid, "path", path, "error", err)
		abort(c, http.StatusInternalServerError, "storage error")
		return
	}
	s.metrics.RemoteWrite(metrics.ResultOK)
	writeDocument(c, merged)
}

func documentParams(c *gin.Context) (uid, path string, ok bool) {
	uid = c.Param("uid")
	path = doc.SanitizePath(c.Param("path"))
	if path == "" {
		abort(c, http.StatusBadRequest, "empty document path")
		return "", "", false
	}
	return uid, path, true
}

func writeDocument(c *gin.Context, d doc.Document) {
	data, err := doc.Encode(d)
	if err != nil {
		abort(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// Package rest exposes the account and prediction services over HTTP.
package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/windbreaker/internal/logging"
	"github.com/dmitrijs2005/windbreaker/internal/metrics"
	"github.com/dmitrijs2005/windbreaker/internal/server/services"
	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 10 * time.Second

// Info is reported by the root endpoint.
type Info struct {
	ProjectName string
	Version     string
}

// Options tune request handling in front of the handlers.
type Options struct {
	// TrustedProxies may set X-Forwarded-For. Nil trusts nobody, so the
	// client address is always the direct peer.
	TrustedProxies []string
	// AllowedOrigins for CORS. Empty allows any origin.
	AllowedOrigins []string
}

type HTTPServer struct {
	address string
	info    Info
	opts    Options
	users   *services.UserService
	delay   *services.DelayService
	price   *services.PriceService
	logger  logging.Logger
	metrics *metrics.Metrics
	router  *gin.Engine
}

func NewHTTPServer(addr string, info Info, opts Options, l logging.Logger, mx *metrics.Metrics,
	us *services.UserService, ds *services.DelayService, ps *services.PriceService) (*HTTPServer, error) {

	s := &HTTPServer{
		address: addr,
		info:    info,
		opts:    opts,
		users:   us,
		delay:   ds,
		price:   ps,
		logger:  l.With("module", "http_server"),
		metrics: mx,
	}
	r, err := s.routes()
	if err != nil {
		return nil, err
	}
	s.router = r
	return s, nil
}

// Handler returns the configured router.
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

func (s *HTTPServer) routes() (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(s.opts.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	r.Use(s.accessLog(), gin.Recovery(), corsMiddleware(s.opts.AllowedOrigins))

	r.GET("/", s.root)
	r.GET("/healthz", s.health)
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := r.Group("/api")
	api.POST("/register", s.register)
	api.POST("/login", s.login)
	api.POST("/forgot-password", s.forgotPassword)
	api.GET("/delay-options", s.delayOptions)
	api.GET("/price-options", s.priceOptions)
	api.GET("/options", s.allOptions)

	authed := api.Group("", s.requireUser())
	authed.GET("/me", s.me)
	authed.POST("/predict-delay", s.predictDelay)
	authed.POST("/predict-price", s.predictPrice)

	return r, nil
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *HTTPServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Starting HTTP server", "address", s.address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info(ctx, "Stopping HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Package api serves the generation pipeline over HTTP with gin.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/custodia-labs/pda/internal/core/ports/driving"
	"github.com/custodia-labs/pda/internal/logger"
)

const timeLayout = time.RFC3339

// shutdownTimeout bounds draining in-flight requests on exit.
const shutdownTimeout = 10 * time.Second

// ErrMissingPorts is returned when a required driving port is nil.
var ErrMissingPorts = errors.New("api: generation, fact sheet and verifier services are required")

// Ports aggregates the driving ports the API serves.
type Ports struct {
	Generation driving.GenerationService
	FactSheet  driving.FactSheetService
	Verifier   driving.VerifierService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Generation == nil || p.FactSheet == nil || p.Verifier == nil {
		return ErrMissingPorts
	}
	return nil
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(ports *Ports) (*gin.Engine, error) {
	if err := ports.Validate(); err != nil {
		return nil, err
	}
	h := &Handlers{
		generation: ports.Generation,
		factSheets: ports.FactSheet,
		verifier:   ports.Verifier,
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", Health)

	api := router.Group("/api")
	{
		api.POST("/products/:product_id/generate-content", h.GenerateContent)
		api.GET("/products/:product_id/generation-jobs", h.ListJobs)
		api.GET("/products/:product_id/drafts", h.GetDrafts)
		api.GET("/products/:product_id/factsheet", h.GetFactSheet)
		api.POST("/products/:product_id/verify", h.Verify)
		api.GET("/generation-jobs/:job_id", h.GetJob)
	}

	router.NoRoute(func(c *gin.Context) {
		respondErrorCode(c, http.StatusNotFound, codeNotFound, "no route for "+c.Request.URL.Path)
	})

	return router, nil
}

// requestLogger logs one debug line per request.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path,
			c.Writer.Status(), time.Since(start).Round(time.Millisecond))
	}
}

// Serve runs the API on addr until ctx is cancelled, then drains
// in-flight requests.
func Serve(ctx context.Context, addr string, ports *Ports) error {
	router, err := NewRouter(ports)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.Info("HTTP API listening on %s", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	<-errCh
	return nil
}

// Package api is the HTTP surface the surrounding application talks to the
// engine through: tracker/notifier/credential CRUD, manual checks, release
// projections and stats.
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/signalbox/internal/models"
	"github.com/zulandar/signalbox/internal/secrets"
	"github.com/zulandar/signalbox/internal/store"
)

// Engine is the scheduler surface the API needs: manual checks and config
// reactions.
type Engine interface {
	CheckNow(ctx context.Context, name string) (models.TrackerStatus, error)
	Refresh(name string) error
	Remove(name string)
}

// Tester sends a single synchronous test notification.
type Tester interface {
	Test(ctx context.Context, notifier models.Notifier) error
}

// StartOpts holds configuration for the API server.
type StartOpts struct {
	Store  *store.Store
	Engine Engine
	Tester Tester
	Cipher secrets.Cipher
	Listen string
	Out    io.Writer
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	router, err := NewRouter(opts)
	if err != nil {
		return err
	}

	addr := opts.Listen
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Signalbox API listening on %s\n", addr)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}

// NewRouter builds the Gin router with all routes registered.
func NewRouter(opts StartOpts) (*gin.Engine, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("api: store is required")
	}
	if opts.Engine == nil {
		return nil, fmt.Errorf("api: engine is required")
	}
	if opts.Cipher == nil {
		opts.Cipher = secrets.Passthrough{}
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	h := &handlers{store: opts.Store, engine: opts.Engine, tester: opts.Tester, cipher: opts.Cipher}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		api.GET("/trackers", h.listTrackers)
		api.POST("/trackers", h.createTracker)
		api.GET("/trackers/:name", h.getTracker)
		api.GET("/trackers/:name/config", h.getTrackerConfig)
		api.PUT("/trackers/:name", h.updateTracker)
		api.DELETE("/trackers/:name", h.deleteTracker)
		api.POST("/trackers/:name/check", h.checkTracker)

		api.GET("/releases", h.listReleases)
		api.GET("/releases/latest", h.latestReleases)
		api.GET("/stats", h.stats)

		api.GET("/notifiers", h.listNotifiers)
		api.POST("/notifiers", h.createNotifier)
		api.PUT("/notifiers/:name", h.updateNotifier)
		api.DELETE("/notifiers/:name", h.deleteNotifier)
		api.POST("/notifiers/:name/test", h.testNotifier)

		api.GET("/credentials", h.listCredentials)
		api.POST("/credentials", h.createCredential)
		api.PUT("/credentials/:name", h.updateCredential)
		api.DELETE("/credentials/:name", h.deleteCredential)
	}

	return router, nil
}

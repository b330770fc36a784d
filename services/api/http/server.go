package http

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/text/language"

	"github.com/f5703swl/swl-web-sdr/internal/i18n"
	"github.com/f5703swl/swl-web-sdr/internal/live"
	"github.com/f5703swl/swl-web-sdr/internal/sources"
	"github.com/f5703swl/swl-web-sdr/services/api/config"
	"github.com/f5703swl/swl-web-sdr/services/api/db"
	"github.com/f5703swl/swl-web-sdr/services/api/snapshot"
)

const (
	AppName    = "SWL Web SDR"
	AppAuthor  = "F5703SWL - Olivier"
	AppVersion = "2025.17.1"
)

// HistoryStore is the read side of the watcher's database.
type HistoryStore interface {
	GetDeviceByURL(ctx context.Context, url string) (*db.Device, error)
	FetchSamples(ctx context.Context, q db.SampleQuery) ([]db.Sample, error)
	GetOccupancyAverages(ctx context.Context) (*db.OccupancyAverages, error)
}

// Deps are the collaborators of a Server. History may be nil, in which case
// the history endpoints answer 501.
type Deps struct {
	Registry  *sources.Registry
	Snapshots *snapshot.Store
	Hubs      map[string]*live.Hub
	History   HistoryStore
	Log       zerolog.Logger
	// Rand seeds the random pick; nil uses the package-level source.
	Rand *rand.Rand
}

// Server bundles router and dependencies for the REST API.
type Server struct {
	cfg    config.Config
	deps   Deps
	engine *gin.Engine

	randMu sync.Mutex
}

// New constructs a server with routes and middleware.
func New(cfg config.Config, deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(deps.Log))
	engine.Use(corsMiddleware())

	if cfg.BearerToken != "" {
		engine.Use(bearerAuthMiddleware(cfg.BearerToken))
	}

	server := &Server{cfg: cfg, deps: deps, engine: engine}
	server.registerRoutes()
	return server
}

// Engine exposes the underlying gin engine (for tests).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.ListenAddr(),
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	s.registerV1Routes()
}

// lang picks the response language from ?lang= first, then Accept-Language.
func lang(c *gin.Context) language.Tag {
	return i18n.Match(c.Query("lang"), c.GetHeader("Accept-Language"))
}

// abortLocalized writes a translated error message.
func abortLocalized(c *gin.Context, status int, tag language.Tag, key string) {
	c.AbortWithStatusJSON(status, gin.H{"error": i18n.Text(tag, key)})
}

// snapshotFor returns the current snapshot in the request's language, or
// answers 503 when the first refresh has not completed.
func (s *Server) snapshotFor(c *gin.Context) (*snapshot.Snapshot, language.Tag, bool) {
	tag := lang(c)
	snap, ok := s.deps.Snapshots.Get(tag)
	if !ok {
		abortLocalized(c, http.StatusServiceUnavailable, tag, i18n.MsgDataUnavailable)
		return nil, tag, false
	}
	return snap, tag, true
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ev := log.Info()
		if status >= http.StatusInternalServerError {
			ev = log.Error()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request")
	}
}

func bearerAuthMiddleware(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		if token != expected {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept-Language")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func apiVersionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-API-Version", "v1")
		c.Next()
	}
}

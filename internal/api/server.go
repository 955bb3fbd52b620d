package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/soundhaven/feedsync/internal/api/handlers"
	"github.com/soundhaven/feedsync/internal/database"
	"github.com/soundhaven/feedsync/internal/services/episodes"
	"github.com/soundhaven/feedsync/internal/services/shows"
	"github.com/soundhaven/feedsync/pkg/config"
)

// Services bundles the service layer the API serves.
type Services struct {
	Shows     shows.ShowService
	Episodes  *episodes.Service
	Refresher handlers.Refresher
	DB        *database.DB
}

// Server represents the HTTP server
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	services   Services
	log        logrus.FieldLogger

	rateLimiters       sync.Map
	cleanupStop        chan struct{}
	cleanupInitialized sync.Once
}

// Engine returns the server's gin engine for testing
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// NewServer creates a new HTTP server
func NewServer(addr string, cfg *config.Config, services Services, log logrus.FieldLogger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	server := &Server{
		engine:   engine,
		services: services,
		log:      log,
		httpServer: &http.Server{
			Addr:           addr,
			Handler:        engine,
			ReadTimeout:    cfg.Server.ReadTimeout,
			WriteTimeout:   cfg.Server.WriteTimeout,
			IdleTimeout:    30 * time.Second,
			MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
		},
		cleanupStop: make(chan struct{}),
	}

	server.setupMiddleware(cfg)
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(cfg *config.Config) {
	if cfg.Security.EnableRecovery {
		s.engine.Use(gin.Recovery())
	}

	s.engine.Use(requestLogger(s.log))

	if cfg.Security.EnableCORS {
		s.engine.Use(CORS(cfg.Security))
	}

	maxBody := cfg.Security.MaxRequestBody
	if maxBody <= 0 {
		maxBody = 1024 * 1024
	}
	s.engine.Use(RequestSizeLimit(maxBody))

	if cfg.Security.RateLimitPerMin > 0 {
		s.engine.Use(PerClientRateLimit(&s.rateLimiters, s.cleanupStop, &s.cleanupInitialized, cfg.Security.RateLimitPerMin))
	}
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.healthHandler)
	s.engine.GET("/", s.versionHandler)

	showHandler := handlers.NewShowHandler(s.services.Shows, s.services.Refresher)
	episodeHandler := handlers.NewEpisodeHandler(s.services.Episodes)

	v1 := s.engine.Group("/api/v1")
	{
		v1.POST("/shows", showHandler.Subscribe)
		v1.GET("/shows", showHandler.ListShows)
		v1.GET("/shows/:id", showHandler.GetShow)
		v1.DELETE("/shows/:id", showHandler.Unsubscribe)
		v1.POST("/shows/:id/refresh", showHandler.Refresh)
		v1.GET("/shows/:id/episodes", episodeHandler.GetEpisodesByShowID)

		v1.GET("/episodes/recent", episodeHandler.GetRecentEpisodes)
		v1.GET("/episodes/:id", episodeHandler.GetEpisodeByID)
		v1.PUT("/episodes/:id/playback", episodeHandler.UpdatePlaybackState)
	}

	s.engine.NoRoute(s.notFoundHandler)
}

// requestLogger logs each request with method, path, status and latency.
func requestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"client":  c.ClientIP(),
		}).Debug("request handled")
	}
}

// healthHandler handles health check requests
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"database":  s.getDatabaseStatus(),
	})
}

// getDatabaseStatus returns the database status
func (s *Server) getDatabaseStatus() gin.H {
	if s.services.DB == nil {
		return gin.H{
			"status": "not configured",
		}
	}

	if err := s.services.DB.HealthCheck(); err != nil {
		return gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		}
	}

	return gin.H{
		"status": "healthy",
	}
}

// versionHandler handles version requests
func (s *Server) versionHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "feedsync",
		"version":     "1.0.0",
		"description": "Podcast feed ingestion and sync service",
	})
}

// notFoundHandler handles 404 responses
func (s *Server) notFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"status":  "error",
		"message": "Resource not found",
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	close(s.cleanupStop)
	return s.httpServer.Shutdown(ctx)
}

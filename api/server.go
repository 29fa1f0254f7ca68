package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"necc_scraper/metrics"
	"necc_scraper/models"
	"necc_scraper/scraper"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
)

// Runner scrapes the current month
type Runner interface {
	RunCurrent(ctx context.Context) (*models.ScrapeResult, error)
}

// RunLogReader lists recent run logs
type RunLogReader interface {
	RecentScrapeRunLogs(ctx context.Context, limit int) ([]models.ScrapeRunLog, error)
}

type Config struct {
	// ServiceKey is the only credential accepted on the Authorization header
	ServiceKey string
	// Enabled mirrors the NECC_SCRAPER_ENABLED kill switch
	Enabled bool
}

// Server is the HTTP invocation entrypoint of the scraper
type Server struct {
	cfg    Config
	runner Runner
	runs   RunLogReader
	logger *zap.Logger
	engine *gin.Engine
}

func NewServer(cfg Config, runner Runner, runs RunLogReader, logger *zap.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		runner: runner,
		runs:   runs,
		logger: logger,
		engine: gin.New(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	r := s.engine
	r.Use(gin.Recovery(), s.observe(), cors.New(corsConfig()))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "necc-price-scraper",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/scrape-necc-prices", s.authorize, s.handleScrape)
	r.POST("/functions/v1/scrape-necc-prices", s.authorize, s.handleScrape)
	r.GET("/runs", s.authorize, s.handleRuns)
}

func corsConfig() cors.Config {
	return cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"POST", "GET", "OPTIONS"},
		AllowHeaders:    []string{"authorization", "x-client-info", "apikey", "content-type"},
		MaxAge:          12 * time.Hour,
	}
}

// authorize rejects any caller that does not present the service key, with
// or without a Bearer prefix
func (s *Server) authorize(c *gin.Context) {
	header := c.GetHeader("Authorization")
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))

	if s.cfg.ServiceKey == "" || token == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.ServiceKey)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	c.Next()
}

func (s *Server) handleScrape(c *gin.Context) {
	if !s.cfg.Enabled {
		s.logger.Info("Scraper is disabled via environment variable, skipping")
		c.JSON(http.StatusOK, gin.H{
			"message": "Scraper is disabled via environment variable",
			"skipped": true,
		})
		return
	}

	// A run outlives its caller; the fetch is bounded by the scraping client timeout
	ctx := context.WithoutCancel(c.Request.Context())
	result, err := s.runner.RunCurrent(ctx)
	if errors.Is(err, scraper.ErrPaused) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Scraper is paused",
			"skipped": true,
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": result.Success,
		"message": fmt.Sprintf("Scraped %d/%d zones", result.ZonesSuccessful, result.ZonesScraped),
		"result":  result,
	})
}

func (s *Server) handleRuns(c *gin.Context) {
	limit := defaultRunsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxRunsLimit)
	}

	runs, err := s.runs.RecentScrapeRunLogs(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to list run logs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if runs == nil {
		runs = []models.ScrapeRunLog{}
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// observe records request metrics and an access log line
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := c.Writer.Status()
		metrics.HttpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(status)).Inc()

		s.logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

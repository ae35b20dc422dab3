package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"harrisrecords/internal/entity"
	"harrisrecords/internal/export"
	"harrisrecords/internal/history"
	"harrisrecords/internal/resolve"
)

// RecordSource scrapes instrument records for one type over a date range.
type RecordSource interface {
	ScrapeRecords(ctx context.Context, instrumentType, startDate, endDate string) ([]entity.InputRecord, error)
}

// Resolver runs the address-resolution pipeline over scraped records.
type Resolver interface {
	Resolve(ctx context.Context, records []entity.InputRecord, progress resolve.ProgressFunc) ([]entity.ResolvedAddress, error)
}

// Server exposes the scrape/resolve pipeline and run history over HTTP.
type Server struct {
	source   RecordSource
	resolver Resolver
	store    *history.Store
	exporter *export.Service
	logger   *slog.Logger
}

func New(source RecordSource, resolver Resolver, store *history.Store, exporter *export.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		source:   source,
		resolver: resolver,
		store:    store,
		exporter: exporter,
		logger:   logger,
	}
}

// Router constructs the Gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.handleHealth)

	api := r.Group("/api")
	api.POST("/scrape", s.handleScrape)
	api.POST("/resolve", s.handleResolve)
	api.GET("/runs", s.handleListRuns)
	api.GET("/runs/:id", s.handleGetRun)
	api.GET("/runs/:id/export", s.handleExportRun)
	api.DELETE("/runs/:id", s.handleDeleteRun)

	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

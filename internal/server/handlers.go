package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"harrisrecords/internal/common"
	"harrisrecords/internal/entity"
	"harrisrecords/internal/history"
)

// PipelineRequest selects the records to scrape and resolve.
type PipelineRequest struct {
	InstrumentTypes []string `json:"instrument_types" binding:"required,min=1"`
	StartDate       string   `json:"start_date" binding:"required"` // MM/DD/YYYY
	EndDate         string   `json:"end_date" binding:"required"`   // MM/DD/YYYY
}

func (r PipelineRequest) dateRange() string {
	return fmt.Sprintf("%s - %s", r.StartDate, r.EndDate)
}

// handleScrape runs the scrape stage only and returns the raw records.
// POST /api/scrape
func (s *Server) handleScrape(c *gin.Context) {
	var req PipelineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	records, err := s.scrapeAll(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":   len(records),
		"records": records,
	})
}

// handleResolve starts a full scrape-and-resolve run in the background and
// returns its run identifier immediately.
// POST /api/resolve
func (s *Server) handleResolve(c *gin.Context) {
	var req PipelineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	runID := uuid.NewString()
	if err := s.store.StartRun(c.Request.Context(), runID, req.InstrumentTypes, req.dateRange()); err != nil {
		s.respondError(c, err)
		return
	}

	// The run outlives the request; it carries its own context.
	go s.executeRun(context.Background(), runID, req)

	c.JSON(http.StatusAccepted, gin.H{
		"run_id": runID,
		"status": history.StatusRunning,
	})
}

// executeRun drives scrape → resolve → persist for one run, recording
// progress and the terminal status in the history store.
func (s *Server) executeRun(ctx context.Context, runID string, req PipelineRequest) {
	start := time.Now()
	logger := s.logger.With("run_id", runID)
	logger.Info("run.start", "instrument_types", req.InstrumentTypes, "date_range", req.dateRange())

	fail := func(stage string, err error) {
		logger.Error("run.failed", "stage", stage, "error", err)
		if herr := s.store.CompleteRun(ctx, runID, history.StatusFailed, err.Error()); herr != nil {
			logger.Error("run.history_update_failed", "error", herr)
		}
	}

	records, err := s.scrapeAll(ctx, req)
	if err != nil {
		fail("scrape", err)
		return
	}
	if err := s.store.UpdateProgress(ctx, runID, len(records), 0); err != nil {
		logger.Warn("run.history_update_failed", "error", err)
	}

	results, err := s.resolver.Resolve(ctx, records, func(fraction float64, message string) {
		logger.Info("run.progress", "fraction", fraction, "message", message)
	})
	// A run-level resolve failure may still leave partial results worth
	// persisting.
	if len(results) > 0 {
		if herr := s.store.SaveResults(ctx, runID, results); herr != nil {
			logger.Error("run.history_update_failed", "error", herr)
		}
		if herr := s.store.UpdateProgress(ctx, runID, len(records), countResolved(results)); herr != nil {
			logger.Warn("run.history_update_failed", "error", herr)
		}
	}
	if err != nil {
		fail("resolve", err)
		return
	}

	if err := s.store.CompleteRun(ctx, runID, history.StatusCompleted, ""); err != nil {
		logger.Error("run.history_update_failed", "error", err)
	}
	logger.Info("run.done",
		"records", len(records),
		"resolved", countResolved(results),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
}

func (s *Server) scrapeAll(ctx context.Context, req PipelineRequest) ([]entity.InputRecord, error) {
	var records []entity.InputRecord
	for _, it := range req.InstrumentTypes {
		recs, err := s.source.ScrapeRecords(ctx, it, req.StartDate, req.EndDate)
		if err != nil {
			return nil, err
		}
		records = append(records, recs...)
	}
	return records, nil
}

func countResolved(results []entity.ResolvedAddress) int {
	n := 0
	for _, r := range results {
		if r.Resolved() {
			n++
		}
	}
	return n
}

// handleListRuns returns recent runs, newest first.
// GET /api/runs?limit=50
func (s *Server) handleListRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := s.store.ListRuns(c.Request.Context(), limit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// handleGetRun returns one run with its results.
// GET /api/runs/:id
func (s *Server) handleGetRun(c *gin.Context) {
	runID := c.Param("id")
	run, err := s.store.GetRun(c.Request.Context(), runID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	results, err := s.store.GetResults(c.Request.Context(), runID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"run":     run,
		"results": results,
	})
}

// handleExportRun streams a run's results as an XLSX attachment.
// GET /api/runs/:id/export
func (s *Server) handleExportRun(c *gin.Context) {
	runID := c.Param("id")
	if _, err := s.store.GetRun(c.Request.Context(), runID); err != nil {
		s.respondError(c, err)
		return
	}
	results, err := s.store.GetResults(c.Request.Context(), runID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	data, err := s.exporter.ResultsXLSX(results)
	if err != nil {
		s.respondError(c, err)
		return
	}
	filename := fmt.Sprintf("results-%s.xlsx", runID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// handleDeleteRun removes a run and its results.
// DELETE /api/runs/:id
func (s *Server) handleDeleteRun(c *gin.Context) {
	if err := s.store.DeleteRun(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, common.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, common.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, common.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, common.ErrUnreachable):
		status = http.StatusBadGateway
	}
	s.logger.Error("http.request.failed", "path", c.FullPath(), "error", err)
	c.JSON(status, gin.H{"error": err.Error()})
}

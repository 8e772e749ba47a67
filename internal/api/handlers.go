package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/signalfleet/intelligence-engine/internal/detect"
	"github.com/signalfleet/intelligence-engine/internal/models"
)

type logsRequest struct {
	Entries []models.LogRecord `json:"entries"`
}

type tracesRequest struct {
	Spans []models.SpanRecord `json:"spans"`
}

type healRequest struct {
	IssueType string            `json:"issue_type"`
	Target    map[string]string `json:"target"`
}

type trainRequest struct {
	Model string `json:"model"`
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleAnalyzeCommit(c *gin.Context) {
	var batch models.CommitBatch
	if err := c.ShouldBindJSON(&batch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid commit batch: " + err.Error()})
		return
	}

	summary, err := s.analyzer.AnalyzeCommit(c.Request.Context(), batch)
	if err != nil {
		s.logger.Error("commit analysis failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "commit analysis failed"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleAnalyzeLogs(c *gin.Context) {
	var req logsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid log batch: " + err.Error()})
		return
	}

	summary, err := s.analyzer.AnalyzeLogs(c.Request.Context(), req.Entries)
	if err != nil {
		s.logger.Error("log analysis failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "log analysis failed"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleAnalyzeTraces(c *gin.Context) {
	var req tracesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid span batch: " + err.Error()})
		return
	}

	summary, err := s.analyzer.AnalyzeTraces(c.Request.Context(), req.Spans)
	if err != nil {
		s.logger.Error("trace analysis failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "trace analysis failed"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleHeal(c *gin.Context) {
	var req healRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid heal request: " + err.Error()})
		return
	}
	if req.IssueType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "issue_type is required"})
		return
	}

	result, err := s.healer.Heal(c.Request.Context(), req.IssueType, req.Target)
	if err != nil {
		s.logger.Error("heal request failed",
			slog.String("issue_type", req.IssueType), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "healing could not be recorded"})
		return
	}
	// Unknown issue types and disabled healing are valid outcomes, not
	// transport errors.
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleTrain(c *gin.Context) {
	var req trainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid train request: " + err.Error()})
		return
	}

	targets := make([]detect.Model, 0, len(s.models))
	if req.Model != "" {
		model, ok := s.models[req.Model]
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown model: " + req.Model})
			return
		}
		targets = append(targets, model)
	} else {
		for _, model := range s.models {
			targets = append(targets, model)
		}
	}

	statuses := make([]detect.TrainingStatus, 0, len(targets))
	conflicts := make([]string, 0)
	for _, model := range targets {
		status, err := s.trainer.Start(model)
		switch {
		case errors.Is(err, detect.ErrTrainingInProgress):
			conflicts = append(conflicts, model.Name())
		case err != nil:
			s.logger.Error("training start failed",
				slog.String("model", model.Name()), slog.Any("error", err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not start training"})
			return
		default:
			statuses = append(statuses, status)
		}
	}

	// Models already training do not hide the runs that did start; 409 is
	// reserved for requests where nothing could be accepted.
	if len(statuses) == 0 && len(conflicts) > 0 {
		c.JSON(http.StatusConflict, gin.H{
			"error":     "training already in progress",
			"conflicts": conflicts,
		})
		return
	}

	resp := gin.H{"training": statuses}
	if len(conflicts) > 0 {
		resp["conflicts"] = conflicts
	}
	c.JSON(http.StatusAccepted, resp)
}

func (s *Server) handleTrainStatus(c *gin.Context) {
	name := c.Param("model")
	if _, ok := s.models[name]; !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown model: " + name})
		return
	}

	status, ok := s.trainer.Status(name)
	if !ok {
		status = detect.TrainingStatus{Model: name, State: detect.TrainingIdle}
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleStatusCommits(c *gin.Context) {
	view, err := s.status.Commits(c.Request.Context())
	s.renderStatus(c, view, err)
}

func (s *Server) handleStatusLogs(c *gin.Context) {
	view, err := s.status.Logs(c.Request.Context())
	s.renderStatus(c, view, err)
}

func (s *Server) handleStatusTraces(c *gin.Context) {
	view, err := s.status.Traces(c.Request.Context())
	s.renderStatus(c, view, err)
}

func (s *Server) handleStatusHealing(c *gin.Context) {
	view, err := s.status.Healing(c.Request.Context())
	s.renderStatus(c, view, err)
}

func (s *Server) handleStatusOverview(c *gin.Context) {
	view, err := s.status.Overview(c.Request.Context())
	s.renderStatus(c, view, err)
}

func (s *Server) renderStatus(c *gin.Context, view any, err error) {
	if err != nil {
		s.logger.Error("status view failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "status unavailable"})
		return
	}
	c.JSON(http.StatusOK, view)
}

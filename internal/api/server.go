package api

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/signalfleet/intelligence-engine/internal/detect"
	"github.com/signalfleet/intelligence-engine/internal/models"
)

// Analyzer is the ingestion surface exposed over HTTP.
type Analyzer interface {
	AnalyzeCommit(ctx context.Context, batch models.CommitBatch) (models.AnalysisSummary, error)
	AnalyzeLogs(ctx context.Context, entries []models.LogRecord) (models.AnalysisSummary, error)
	AnalyzeTraces(ctx context.Context, spans []models.SpanRecord) (models.AnalysisSummary, error)
}

// Healer handles manual heal requests.
type Healer interface {
	Heal(ctx context.Context, issueType string, target map[string]string) (models.HealResult, error)
}

// StatusSource serves the read-only platform views.
type StatusSource interface {
	Commits(ctx context.Context) (models.CommitStatus, error)
	Logs(ctx context.Context) (models.LogStatus, error)
	Traces(ctx context.Context) (models.TraceStatus, error)
	Healing(ctx context.Context) (models.HealingStatus, error)
	Overview(ctx context.Context) (models.PlatformOverview, error)
}

// Server holds the HTTP handler dependencies and owns the healing feed.
type Server struct {
	logger   *slog.Logger
	analyzer Analyzer
	healer   Healer
	status   StatusSource
	trainer  *detect.Trainer
	models   map[string]detect.Model
	feed     *Feed
}

// NewServer wires the API layer. The detection models double as the
// registry for training endpoints.
func NewServer(logger *slog.Logger, analyzer Analyzer, healer Healer, status StatusSource, trainer *detect.Trainer, scorers []detect.Model) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	registry := make(map[string]detect.Model, len(scorers))
	for _, m := range scorers {
		registry[m.Name()] = m
	}
	return &Server{
		logger:   logger,
		analyzer: analyzer,
		healer:   healer,
		status:   status,
		trainer:  trainer,
		models:   registry,
		feed:     NewFeed(logger),
	}
}

// Feed exposes the healing broadcast hub so the dispatcher listener can be
// attached at wiring time.
func (s *Server) Feed() *Feed {
	return s.feed
}

// Router builds the Gin engine with all routes attached.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.handleHealthz)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/analyze/commit", s.handleAnalyzeCommit)
		v1.POST("/analyze/logs", s.handleAnalyzeLogs)
		v1.POST("/analyze/traces", s.handleAnalyzeTraces)

		v1.POST("/heal", s.handleHeal)

		v1.POST("/train", s.handleTrain)
		v1.GET("/train/:model/status", s.handleTrainStatus)

		v1.GET("/status/commits", s.handleStatusCommits)
		v1.GET("/status/logs", s.handleStatusLogs)
		v1.GET("/status/traces", s.handleStatusTraces)
		v1.GET("/status/healing", s.handleStatusHealing)
		v1.GET("/status/overview", s.handleStatusOverview)

		v1.GET("/healing/ws", func(c *gin.Context) {
			s.feed.Serve(c.Writer, c.Request)
		})
	}

	return r
}

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/darrentmorgan/singura-sub007/pkg/evaluation"
)

// EvaluationController handles evaluation-harness API endpoints.
type EvaluationController struct {
	metrics   *evaluation.MetricsService
	baselines *evaluation.BaselineManager
	tracker   *evaluation.MisclassificationTracker
	tracer    trace.Tracer
}

// NewEvaluationController creates an evaluation controller.
func NewEvaluationController(metrics *evaluation.MetricsService, baselines *evaluation.BaselineManager, tracker *evaluation.MisclassificationTracker) *EvaluationController {
	return &EvaluationController{
		metrics:   metrics,
		baselines: baselines,
		tracker:   tracker,
		tracer:    otel.Tracer("evaluation-controller"),
	}
}

// RegisterRoutes registers evaluation routes.
func (c *EvaluationController) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/evaluation")
	{
		group.POST("/report", c.GenerateReport)
		group.POST("/misclassifications", c.AnalyzeMisclassifications)
		group.POST("/baselines", c.RecordBaseline)
		group.GET("/baselines/:detector", c.GetBaselineHistory)
		group.POST("/drift/:detector", c.DetectDrift)
	}
}

// ThresholdSpec selects the PR-curve threshold strategy.
type ThresholdSpec struct {
	Type    string    `json:"type"` // fixed or adaptive
	Values  []float64 `json:"values,omitempty"`
	Samples int       `json:"samples,omitempty"`
}

func (spec *ThresholdSpec) strategy() evaluation.ThresholdStrategy {
	if spec == nil {
		return nil
	}
	if spec.Type == "fixed" {
		return evaluation.FixedThresholds(spec.Values)
	}
	return evaluation.AdaptiveThresholds{Samples: spec.Samples}
}

// ReportRequest is the body of an evaluation-report call.
type ReportRequest struct {
	DetectorName string                        `json:"detector_name" binding:"required"`
	Predictions  []evaluation.Prediction       `json:"predictions" binding:"required"`
	GroundTruth  []evaluation.GroundTruthLabel `json:"ground_truth" binding:"required"`
	Thresholds   *ThresholdSpec                `json:"thresholds,omitempty"`
	IncludeDrift bool                          `json:"include_drift"`
}

// GenerateReport evaluates predictions against ground truth. The format
// query parameter selects json (default), csv (the PR curve), or text.
func (c *EvaluationController) GenerateReport(ctx *gin.Context) {
	_, span := c.tracer.Start(ctx.Request.Context(), "api.evaluation.report")
	defer span.End()

	var request ReportRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	report, err := c.metrics.Evaluate(request.DetectorName, request.Predictions, request.GroundTruth, request.Thresholds.strategy())
	if err != nil {
		writeEvaluationError(ctx, err)
		return
	}

	if request.IncludeDrift {
		alerts, err := c.baselines.DetectDrift(request.DetectorName, report.Metrics)
		if err != nil && !errors.Is(err, evaluation.ErrNotFound) {
			writeEvaluationError(ctx, err)
			return
		}
		report.Drift = alerts
	}

	switch ctx.Query("format") {
	case "csv":
		if report.Curve == nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "csv format requires a threshold strategy"})
			return
		}
		csv, err := evaluation.ExportCurveCSV(report.Curve)
		if err != nil {
			writeEvaluationError(ctx, err)
			return
		}
		ctx.Data(http.StatusOK, "text/csv", []byte(csv))
	case "text":
		text, err := evaluation.ExportText(report)
		if err != nil {
			writeEvaluationError(ctx, err)
			return
		}
		ctx.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(text))
	default:
		ctx.JSON(http.StatusOK, report)
	}
}

// MisclassificationRequest is the body of a misclassification analysis.
type MisclassificationRequest struct {
	Predictions []evaluation.Prediction                 `json:"predictions" binding:"required"`
	GroundTruth []evaluation.GroundTruthLabel           `json:"ground_truth" binding:"required"`
	Contexts    map[string]evaluation.AutomationContext `json:"contexts,omitempty"`
}

// AnalyzeMisclassifications explains every wrong verdict and aggregates
// remediation recommendations.
func (c *EvaluationController) AnalyzeMisclassifications(ctx *gin.Context) {
	var request MisclassificationRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	report, err := c.tracker.Analyze(request.Predictions, request.GroundTruth, request.Contexts)
	if err != nil {
		writeEvaluationError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, report)
}

// RecordBaseline persists a baseline metrics record.
func (c *EvaluationController) RecordBaseline(ctx *gin.Context) {
	var baseline evaluation.BaselineMetrics
	if err := ctx.ShouldBindJSON(&baseline); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if baseline.Timestamp.IsZero() {
		baseline.Timestamp = time.Now().UTC()
	}

	if err := c.baselines.Record(baseline); err != nil {
		writeEvaluationError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"status": "recorded"})
}

// GetBaselineHistory returns the detector's baseline history.
func (c *EvaluationController) GetBaselineHistory(ctx *gin.Context) {
	history, err := c.baselines.History(ctx.Param("detector"))
	if err != nil {
		writeEvaluationError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"history": history, "count": len(history)})
}

// DriftRequest carries the freshly computed metrics to compare.
type DriftRequest struct {
	Metrics evaluation.Metrics `json:"metrics" binding:"required"`
}

// DetectDrift compares current metrics against the latest baseline.
func (c *EvaluationController) DetectDrift(ctx *gin.Context) {
	var request DriftRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	alerts, err := c.baselines.DetectDrift(ctx.Param("detector"), request.Metrics)
	if err != nil {
		writeEvaluationError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"alerts": alerts, "count": len(alerts)})
}

// writeEvaluationError maps evaluation error kinds onto HTTP statuses.
func writeEvaluationError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, evaluation.ErrValidation):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, evaluation.ErrNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

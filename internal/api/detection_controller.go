package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/darrentmorgan/singura-sub007/pkg/correlation"
	"github.com/darrentmorgan/singura-sub007/pkg/detection"
)

// DetectionController handles detection and correlation API endpoints.
type DetectionController struct {
	service *detection.Service
	engine  *correlation.Engine
	tracer  trace.Tracer

	pending sync.Map // uuid.UUID -> *detection.AnalysisRequest
}

// NewDetectionController creates a detection controller.
func NewDetectionController(service *detection.Service, engine *correlation.Engine) *DetectionController {
	return &DetectionController{
		service: service,
		engine:  engine,
		tracer:  otel.Tracer("detection-controller"),
	}
}

// RegisterRoutes registers detection and correlation routes.
func (c *DetectionController) RegisterRoutes(router *gin.RouterGroup) {
	detectionGroup := router.Group("/detection")
	{
		detectionGroup.POST("/analyze", c.Analyze)
		detectionGroup.POST("/analyze/async", c.AnalyzeAsync)
		detectionGroup.GET("/result/:request_id", c.GetResult)
		detectionGroup.GET("/detectors", c.ListDetectors)
	}

	correlationGroup := router.Group("/correlation")
	{
		correlationGroup.POST("/analyze", c.Correlate)
		correlationGroup.POST("/temporal", c.TemporalCorrelation)
	}
}

// AnalyzeRequest is the body of a detection analysis call.
type AnalyzeRequest struct {
	Events []detection.Event `json:"events" binding:"required"`
}

// Analyze runs all detectors synchronously over the posted events.
func (c *DetectionController) Analyze(ctx *gin.Context) {
	spanCtx, span := c.tracer.Start(ctx.Request.Context(), "api.detection.analyze")
	defer span.End()

	var request AnalyzeRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if len(request.Events) == 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "events must not be empty"})
		return
	}

	span.SetAttributes(attribute.Int("event_count", len(request.Events)))

	result, err := c.service.Analyze(spanCtx, request.Events)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// AnalyzeAsync queues an analysis job and returns its request ID.
func (c *DetectionController) AnalyzeAsync(ctx *gin.Context) {
	var request AnalyzeRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	job, err := c.service.AnalyzeAsync(ctx.Request.Context(), request.Events)
	if err != nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.pending.Store(job.ID, job)

	ctx.JSON(http.StatusAccepted, gin.H{
		"request_id": job.ID,
		"submitted":  job.Submitted,
	})
}

// GetResult waits briefly for an async job's result.
func (c *DetectionController) GetResult(ctx *gin.Context) {
	requestID, err := uuid.Parse(ctx.Param("request_id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request ID"})
		return
	}

	value, ok := c.pending.Load(requestID)
	if !ok {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "request not found"})
		return
	}

	job := value.(*detection.AnalysisRequest)
	result, err := c.service.WaitForResult(job, 2*time.Second)
	if err != nil {
		ctx.JSON(http.StatusAccepted, gin.H{"request_id": requestID, "status": "processing"})
		return
	}
	c.pending.Delete(requestID)
	ctx.JSON(http.StatusOK, result)
}

// ListDetectors returns the registered detector inventory.
func (c *DetectionController) ListDetectors(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"detectors": c.service.Detectors()})
}

// Correlate groups the posted events into automation chains.
func (c *DetectionController) Correlate(ctx *gin.Context) {
	spanCtx, span := c.tracer.Start(ctx.Request.Context(), "api.correlation.analyze")
	defer span.End()

	var request AnalyzeRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if len(request.Events) == 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "events must not be empty"})
		return
	}

	chains, err := c.engine.Correlate(spanCtx, request.Events)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	span.SetAttributes(attribute.Int("chain_count", len(chains)))
	ctx.JSON(http.StatusOK, gin.H{"chains": chains, "count": len(chains)})
}

// TemporalRequest is the body of a pairwise temporal-correlation call.
type TemporalRequest struct {
	Events   []detection.Event `json:"events" binding:"required"`
	WindowMs int64             `json:"window_ms"`
}

// TemporalCorrelation computes pairwise timing relationships.
func (c *DetectionController) TemporalCorrelation(ctx *gin.Context) {
	var request TemporalRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	window := time.Duration(request.WindowMs) * time.Millisecond
	if window <= 0 {
		window = 5 * time.Minute
	}

	pairs := c.engine.TemporalCorrelation(request.Events, window)
	ctx.JSON(http.StatusOK, gin.H{"pairs": pairs, "count": len(pairs)})
}

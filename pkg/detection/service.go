package detection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/darrentmorgan/singura-sub007/pkg/logger"
)

// Service runs registered detectors over event slices. Detection itself
// is stateless per call; the service only holds the registry, config, and
// the telemetry side-channel. Construct one explicitly and pass it where
// needed; there is no package-level instance.
type Service struct {
	config    *ServiceConfig
	detectors map[string]Detector
	notifier  Notifier
	metrics   *Metrics
	log       *logger.Logger
	tracer    trace.Tracer
	mutex     sync.RWMutex

	processingQueue chan *AnalysisRequest
	workerStop      chan struct{}
	workerWG        sync.WaitGroup
}

// ServiceConfig tunes the detection run loop, not detector logic.
type ServiceConfig struct {
	MinConfidence  float64       `json:"min_confidence"`
	MaxConcurrent  int           `json:"max_concurrent"`
	Timeout        time.Duration `json:"timeout"`
	QueueSize      int           `json:"queue_size"`
	WorkerCount    int           `json:"worker_count"`
}

// AnalysisRequest is a queued asynchronous analysis job.
type AnalysisRequest struct {
	ID         uuid.UUID            `json:"id"`
	Events     []Event              `json:"events"`
	Context    context.Context      `json:"-"`
	Submitted  time.Time            `json:"submitted"`
	ResultChan chan *AnalysisResult `json:"-"`
}

// NewService creates a detection service. A nil config gets defaults; a
// nil notifier or metrics disables that side-channel.
func NewService(config *ServiceConfig, notifier Notifier, metrics *Metrics, log *logger.Logger) *Service {
	if config == nil {
		config = &ServiceConfig{
			MinConfidence: 30,
			MaxConcurrent: 4,
			Timeout:       30 * time.Second,
			QueueSize:     64,
			WorkerCount:   2,
		}
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 64
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = 2
	}
	if log == nil {
		log = logger.NewDefaultLogger("detection", "")
	}

	service := &Service{
		config:          config,
		detectors:       make(map[string]Detector),
		notifier:        notifier,
		metrics:         metrics,
		log:             log,
		tracer:          otel.Tracer("detection-service"),
		processingQueue: make(chan *AnalysisRequest, config.QueueSize),
		workerStop:      make(chan struct{}),
	}
	service.startWorkers()
	return service
}

// RegisterDetector adds a detector to the registry.
func (s *Service) RegisterDetector(detector Detector) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	name := detector.GetName()
	if _, exists := s.detectors[name]; exists {
		return fmt.Errorf("detector %s already registered", name)
	}
	s.detectors[name] = detector
	s.log.Info("registered detector %s (version %s)", name, detector.GetVersion())
	return nil
}

// UnregisterDetector removes a detector from the registry.
func (s *Service) UnregisterDetector(name string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.detectors[name]; !exists {
		return fmt.Errorf("detector %s not found", name)
	}
	delete(s.detectors, name)
	return nil
}

// DetectorInfo describes one registered detector.
type DetectorInfo struct {
	Name              string        `json:"name"`
	Version           string        `json:"version"`
	Enabled           bool          `json:"enabled"`
	SupportedPatterns []PatternType `json:"supported_patterns"`
}

// Detectors returns information about every registered detector.
func (s *Service) Detectors() []DetectorInfo {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	infos := make([]DetectorInfo, 0, len(s.detectors))
	for _, detector := range s.detectors {
		infos = append(infos, DetectorInfo{
			Name:              detector.GetName(),
			Version:           detector.GetVersion(),
			Enabled:           detector.IsEnabled(),
			SupportedPatterns: detector.GetSupportedPatterns(),
		})
	}
	return infos
}

// Analyze runs every enabled detector over the event slice and returns
// the filtered findings. Notifications are fire-and-forget; the return
// value is the authoritative result.
func (s *Service) Analyze(ctx context.Context, events []Event) (*AnalysisResult, error) {
	ctx, span := s.tracer.Start(ctx, "detection_service.analyze")
	defer span.End()

	if len(events) == 0 {
		return nil, fmt.Errorf("no events to analyze")
	}

	span.SetAttributes(attribute.Int("event_count", len(events)))

	startTime := time.Now()
	result := &AnalysisResult{
		RequestID:       uuid.New(),
		Findings:        []Finding{},
		DetectorResults: make(map[string]*DetectorResult),
		ProcessedAt:     startTime,
		EventCount:      len(events),
	}

	for _, detectorResult := range s.runDetectors(ctx, events) {
		result.DetectorResults[detectorResult.DetectorName] = detectorResult
		for _, finding := range detectorResult.Findings {
			if finding.Confidence < s.config.MinConfidence {
				continue
			}
			result.Findings = append(result.Findings, finding)
		}
	}
	result.ProcessingTime = time.Since(startTime)

	if s.metrics != nil {
		s.metrics.ObserveAnalysis(result)
	}
	if s.notifier != nil {
		for _, finding := range result.Findings {
			s.notifier.NotifyFinding(finding)
		}
	}

	span.SetAttributes(
		attribute.Int("findings", len(result.Findings)),
		attribute.Int64("processing_time_ms", result.ProcessingTime.Milliseconds()),
	)

	return result, nil
}

// AnalyzeAsync queues an analysis job on the worker pool.
func (s *Service) AnalyzeAsync(ctx context.Context, events []Event) (*AnalysisRequest, error) {
	if len(events) == 0 {
		return nil, fmt.Errorf("no events to analyze")
	}

	request := &AnalysisRequest{
		ID:         uuid.New(),
		Events:     events,
		Context:    ctx,
		Submitted:  time.Now(),
		ResultChan: make(chan *AnalysisResult, 1),
	}

	select {
	case s.processingQueue <- request:
		return request, nil
	default:
		return nil, fmt.Errorf("processing queue is full")
	}
}

// WaitForResult blocks until an async job completes or the timeout expires.
func (s *Service) WaitForResult(request *AnalysisRequest, timeout time.Duration) (*AnalysisResult, error) {
	select {
	case result := <-request.ResultChan:
		return result, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("analysis request %s timed out", request.ID)
	}
}

// Shutdown stops the worker pool and flushes the notifier.
func (s *Service) Shutdown(ctx context.Context) error {
	close(s.workerStop)

	done := make(chan struct{})
	go func() {
		s.workerWG.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if s.notifier != nil {
		return s.notifier.Close()
	}
	return nil
}

func (s *Service) runDetectors(ctx context.Context, events []Event) []*DetectorResult {
	s.mutex.RLock()
	enabled := make([]Detector, 0, len(s.detectors))
	for _, detector := range s.detectors {
		if detector.IsEnabled() {
			enabled = append(enabled, detector)
		}
	}
	s.mutex.RUnlock()

	resultsChan := make(chan *DetectorResult, len(enabled))
	semaphore := make(chan struct{}, s.config.MaxConcurrent)

	for _, detector := range enabled {
		go func(det Detector) {
			semaphore <- struct{}{}
			defer func() { <-semaphore }()
			resultsChan <- s.runSingleDetector(ctx, det, events)
		}(detector)
	}

	results := make([]*DetectorResult, 0, len(enabled))
	for i := 0; i < len(enabled); i++ {
		results = append(results, <-resultsChan)
	}
	return results
}

func (s *Service) runSingleDetector(ctx context.Context, detector Detector, events []Event) *DetectorResult {
	startTime := time.Now()

	ctx, span := s.tracer.Start(ctx, fmt.Sprintf("detector.%s", detector.GetName()))
	defer span.End()

	result := &DetectorResult{
		DetectorName:    detector.GetName(),
		DetectorVersion: detector.GetVersion(),
		Enabled:         detector.IsEnabled(),
		Findings:        []Finding{},
	}

	detectorCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	findings, err := detector.Detect(detectorCtx, events)
	if err != nil {
		result.Error = err.Error()
		span.RecordError(err)
		s.log.Error("detector %s failed: %v", detector.GetName(), err)
		if s.metrics != nil {
			s.metrics.DetectorErrors.WithLabelValues(detector.GetName()).Inc()
		}
	} else {
		result.Findings = findings
	}
	result.ProcessingTime = time.Since(startTime)

	span.SetAttributes(
		attribute.String("detector_name", detector.GetName()),
		attribute.Int("findings", len(result.Findings)),
		attribute.Int64("processing_time_ms", result.ProcessingTime.Milliseconds()),
	)

	return result
}

func (s *Service) startWorkers() {
	for i := 0; i < s.config.WorkerCount; i++ {
		s.workerWG.Add(1)
		go func(id int) {
			defer s.workerWG.Done()
			for {
				select {
				case <-s.workerStop:
					return
				case request := <-s.processingQueue:
					result, err := s.Analyze(request.Context, request.Events)
					if err != nil {
						result = &AnalysisResult{
							RequestID:   request.ID,
							ProcessedAt: time.Now(),
						}
						s.log.Error("async analysis %s failed: %v", request.ID, err)
					}
					result.RequestID = request.ID
					select {
					case request.ResultChan <- result:
					default:
						s.log.Warn("dropping result for request %s: channel unavailable", request.ID)
					}
				}
			}
		}(i)
	}
}

package evaluation

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/darrentmorgan/singura-sub007/pkg/logger"
)

// EvaluationSource supplies the labeled data a scheduled snapshot
// evaluates. Implementations typically read from the review queue or an
// annotation export.
type EvaluationSource interface {
	// LabeledData returns predictions and the ground truth to score them
	// against, per detector.
	LabeledData(detectorName string) ([]Prediction, []GroundTruthLabel, error)
}

// Scheduler records baseline snapshots for a set of detectors on a cron
// schedule, so drift detection always has a recent reference.
type Scheduler struct {
	cron      *cron.Cron
	metrics   *MetricsService
	baselines *BaselineManager
	source    EvaluationSource
	log       *logger.Logger
}

// NewScheduler creates a baseline snapshot scheduler.
func NewScheduler(metrics *MetricsService, baselines *BaselineManager, source EvaluationSource, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewDefaultLogger("evaluation-scheduler", "")
	}
	return &Scheduler{
		cron:      cron.New(),
		metrics:   metrics,
		baselines: baselines,
		source:    source,
		log:       log,
	}
}

// Schedule registers a snapshot job for the named detectors on the given
// cron spec.
func (s *Scheduler) Schedule(spec string, detectors map[string]string) error {
	if len(detectors) == 0 {
		return validationErr("at least one detector is required")
	}

	_, err := s.cron.AddFunc(spec, func() {
		for name, version := range detectors {
			if err := s.Snapshot(name, version); err != nil {
				s.log.Error("baseline snapshot for %s failed: %v", name, err)
			}
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	return nil
}

// Snapshot evaluates one detector's labeled data and records the result
// as a baseline.
func (s *Scheduler) Snapshot(detectorName, detectorVersion string) error {
	predictions, groundTruth, err := s.source.LabeledData(detectorName)
	if err != nil {
		return fmt.Errorf("failed to load labeled data for %s: %w", detectorName, err)
	}

	matrix, err := s.metrics.BuildConfusionMatrix(predictions, groundTruth)
	if err != nil {
		return err
	}

	baseline := BaselineMetrics{
		DetectorName:    detectorName,
		DetectorVersion: detectorVersion,
		Metrics:         ComputeMetrics(matrix),
		Timestamp:       time.Now().UTC(),
		SampleSize:      matrix.Total(),
	}
	if err := s.baselines.Record(baseline); err != nil {
		return err
	}

	s.log.Info("recorded baseline for %s v%s (samples=%d, f1=%.4f)",
		detectorName, detectorVersion, baseline.SampleSize, baseline.Metrics.F1Score)
	return nil
}

// Start begins running scheduled jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

package evaluation

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// MetricsService computes confusion matrices and derived quality metrics
// from (prediction, ground-truth) pairs. Calls are stateless; construct
// one and share it freely.
type MetricsService struct {
	validate *validator.Validate
}

// NewMetricsService creates a metrics service.
func NewMetricsService() *MetricsService {
	return &MetricsService{
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// ValidateInput rejects empty slices and out-of-range fields before any
// computation happens. Violations come back as ErrValidation.
func (s *MetricsService) ValidateInput(predictions []Prediction, groundTruth []GroundTruthLabel) error {
	if len(predictions) == 0 {
		return validationErr("predictions must not be empty")
	}
	if len(groundTruth) == 0 {
		return validationErr("ground truth must not be empty")
	}
	for i, prediction := range predictions {
		if err := s.validate.Struct(prediction); err != nil {
			return validationErr("prediction %d (%s): %v", i, prediction.AutomationID, err)
		}
	}
	for i, label := range groundTruth {
		if err := s.validate.Struct(label); err != nil {
			return validationErr("ground truth %d (%s): %v", i, label.AutomationID, err)
		}
	}
	return nil
}

// BuildConfusionMatrix joins predictions to ground truth by automation ID.
// Predictions without a matching label are dropped; malicious labels
// without a prediction count as false negatives.
func (s *MetricsService) BuildConfusionMatrix(predictions []Prediction, groundTruth []GroundTruthLabel) (ConfusionMatrix, error) {
	if err := s.ValidateInput(predictions, groundTruth); err != nil {
		return ConfusionMatrix{}, err
	}

	truthByID := make(map[string]GroundTruthLabel, len(groundTruth))
	for _, label := range groundTruth {
		truthByID[label.AutomationID] = label
	}

	var matrix ConfusionMatrix
	predicted := make(map[string]struct{}, len(predictions))
	for _, prediction := range predictions {
		label, ok := truthByID[prediction.AutomationID]
		if !ok {
			continue
		}
		predicted[prediction.AutomationID] = struct{}{}

		switch {
		case prediction.Predicted == LabelMalicious && label.Actual == LabelMalicious:
			matrix.TruePositives++
		case prediction.Predicted == LabelLegitimate && label.Actual == LabelLegitimate:
			matrix.TrueNegatives++
		case prediction.Predicted == LabelMalicious && label.Actual == LabelLegitimate:
			matrix.FalsePositives++
		default:
			matrix.FalseNegatives++
		}
	}

	// A malicious automation nobody predicted on is a miss, not an error.
	for _, label := range groundTruth {
		if label.Actual != LabelMalicious {
			continue
		}
		if _, ok := predicted[label.AutomationID]; !ok {
			matrix.FalseNegatives++
		}
	}

	return matrix, nil
}

// ComputeMetrics derives precision, recall, F1, and accuracy from a
// confusion matrix. Every metric whose denominator is zero is exactly 0.
func ComputeMetrics(matrix ConfusionMatrix) Metrics {
	var metrics Metrics

	if denom := matrix.TruePositives + matrix.FalsePositives; denom > 0 {
		metrics.Precision = float64(matrix.TruePositives) / float64(denom)
	}
	if denom := matrix.TruePositives + matrix.FalseNegatives; denom > 0 {
		metrics.Recall = float64(matrix.TruePositives) / float64(denom)
	}
	if metrics.Precision+metrics.Recall > 0 {
		metrics.F1Score = 2 * metrics.Precision * metrics.Recall / (metrics.Precision + metrics.Recall)
	}
	if total := matrix.Total(); total > 0 {
		metrics.Accuracy = float64(matrix.TruePositives+matrix.TrueNegatives) / float64(total)
	}

	return metrics
}

// Evaluate builds the full report for one detector's predictions,
// including the PR curve when a threshold strategy is given.
func (s *MetricsService) Evaluate(detectorName string, predictions []Prediction, groundTruth []GroundTruthLabel, thresholds ThresholdStrategy) (*EvaluationReport, error) {
	matrix, err := s.BuildConfusionMatrix(predictions, groundTruth)
	if err != nil {
		return nil, err
	}

	report := &EvaluationReport{
		DetectorName: detectorName,
		GeneratedAt:  time.Now().UTC(),
		SampleSize:   matrix.Total(),
		Matrix:       matrix,
		Metrics:      ComputeMetrics(matrix),
	}

	if thresholds != nil {
		curve, err := GeneratePRCurve(predictions, groundTruth, thresholds)
		if err != nil {
			return nil, err
		}
		report.Curve = curve
	}

	return report, nil
}

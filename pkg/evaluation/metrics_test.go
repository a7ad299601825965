package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func prediction(id string, predicted Label, confidence float64) Prediction {
	return Prediction{
		AutomationID: id,
		Predicted:    predicted,
		Confidence:   confidence,
		DetectorName: "velocity_detector",
	}
}

func truth(id string, actual Label) GroundTruthLabel {
	return GroundTruthLabel{AutomationID: id, Actual: actual, Confidence: 1}
}

func TestBuildConfusionMatrix(t *testing.T) {
	service := NewMetricsService()

	predictions := []Prediction{
		prediction("a1", LabelMalicious, 0.9),  // TP
		prediction("a2", LabelMalicious, 0.8),  // FP
		prediction("a3", LabelLegitimate, 0.2), // TN
		prediction("a4", LabelLegitimate, 0.1), // FN
		prediction("a9", LabelMalicious, 0.5),  // no label: dropped
	}
	groundTruth := []GroundTruthLabel{
		truth("a1", LabelMalicious),
		truth("a2", LabelLegitimate),
		truth("a3", LabelLegitimate),
		truth("a4", LabelMalicious),
		truth("a5", LabelMalicious), // never predicted on: FN
	}

	matrix, err := service.BuildConfusionMatrix(predictions, groundTruth)
	require.NoError(t, err)
	assert.Equal(t, ConfusionMatrix{
		TruePositives:  1,
		TrueNegatives:  1,
		FalsePositives: 1,
		FalseNegatives: 2,
	}, matrix)
	assert.Equal(t, 5, matrix.Total())
}

func TestComputeMetrics(t *testing.T) {
	metrics := ComputeMetrics(ConfusionMatrix{
		TruePositives:  1,
		TrueNegatives:  1,
		FalsePositives: 1,
		FalseNegatives: 2,
	})

	assert.InDelta(t, 0.5, metrics.Precision, 1e-9)
	assert.InDelta(t, 1.0/3, metrics.Recall, 1e-9)
	assert.InDelta(t, 0.4, metrics.F1Score, 1e-9)
	assert.InDelta(t, 0.4, metrics.Accuracy, 1e-9)
}

func TestComputeMetrics_ZeroDenominators(t *testing.T) {
	// All-legitimate predictions on all-legitimate truth: precision,
	// recall, and F1 are exactly 0 while accuracy is perfect.
	metrics := ComputeMetrics(ConfusionMatrix{TrueNegatives: 4})

	assert.Equal(t, 0.0, metrics.Precision)
	assert.Equal(t, 0.0, metrics.Recall)
	assert.Equal(t, 0.0, metrics.F1Score)
	assert.Equal(t, 1.0, metrics.Accuracy)
}

func TestComputeMetrics_EmptyMatrix(t *testing.T) {
	metrics := ComputeMetrics(ConfusionMatrix{})
	assert.Equal(t, Metrics{}, metrics)
}

func TestValidateInput_Errors(t *testing.T) {
	service := NewMetricsService()
	valid := []Prediction{prediction("a1", LabelMalicious, 0.9)}
	validTruth := []GroundTruthLabel{truth("a1", LabelMalicious)}

	tests := []struct {
		name        string
		predictions []Prediction
		groundTruth []GroundTruthLabel
	}{
		{"empty predictions", nil, validTruth},
		{"empty ground truth", valid, nil},
		{"bad label", []Prediction{prediction("a1", Label("bogus"), 0.9)}, validTruth},
		{"confidence above one", []Prediction{prediction("a1", LabelMalicious, 1.5)}, validTruth},
		{"missing automation id", []Prediction{prediction("", LabelMalicious, 0.9)}, validTruth},
		{"bad truth label", valid, []GroundTruthLabel{truth("a1", Label("meh"))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := service.ValidateInput(tt.predictions, tt.groundTruth)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestEvaluate(t *testing.T) {
	service := NewMetricsService()

	predictions := []Prediction{
		prediction("a1", LabelMalicious, 0.9),
		prediction("a2", LabelLegitimate, 0.2),
	}
	groundTruth := []GroundTruthLabel{
		truth("a1", LabelMalicious),
		truth("a2", LabelLegitimate),
	}

	report, err := service.Evaluate("velocity_detector", predictions, groundTruth, nil)
	require.NoError(t, err)
	assert.Equal(t, "velocity_detector", report.DetectorName)
	assert.Equal(t, 2, report.SampleSize)
	assert.Equal(t, 1.0, report.Metrics.Precision)
	assert.Equal(t, 1.0, report.Metrics.Recall)
	assert.Nil(t, report.Curve, "no curve without a threshold strategy")
	assert.False(t, report.GeneratedAt.IsZero())
}

func TestEvaluate_WithCurve(t *testing.T) {
	service := NewMetricsService()

	predictions := []Prediction{
		prediction("a1", LabelMalicious, 0.9),
		prediction("a2", LabelLegitimate, 0.2),
	}
	groundTruth := []GroundTruthLabel{
		truth("a1", LabelMalicious),
		truth("a2", LabelLegitimate),
	}

	report, err := service.Evaluate("velocity_detector", predictions, groundTruth, FixedThresholds{0, 0.5, 1})
	require.NoError(t, err)
	require.NotNil(t, report.Curve)
	assert.Len(t, report.Curve.Points, 3)
}

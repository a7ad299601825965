package evaluation

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func truthWithContext(id string, actual Label, attackType, platform string) GroundTruthLabel {
	label := truth(id, actual)
	label.AttackType = attackType
	label.Platform = platform
	return label
}

func TestMisclassificationTracker_ExplainsHighConfidenceFP(t *testing.T) {
	tracker := NewMisclassificationTracker(nil)

	predictions := []Prediction{prediction("a1", LabelMalicious, 0.92)}
	groundTruth := []GroundTruthLabel{truth("a1", LabelLegitimate)}
	contexts := map[string]AutomationContext{
		"a1": {AIProviderSignal: false, EventCount: 40},
	}

	report, err := tracker.Analyze(predictions, groundTruth, contexts)
	require.NoError(t, err)
	require.Len(t, report.Misclassifications, 1)

	m := report.Misclassifications[0]
	assert.Equal(t, "false_positive", m.Kind)
	assert.Contains(t, m.Explanation, "no AI-provider signal")
}

func TestMisclassificationTracker_ExplainsOffHoursFP(t *testing.T) {
	tracker := NewMisclassificationTracker(nil)

	predictions := []Prediction{prediction("a1", LabelMalicious, 0.5)}
	groundTruth := []GroundTruthLabel{truth("a1", LabelLegitimate)}
	contexts := map[string]AutomationContext{
		"a1": {FlaggedOffHours: true, NormalHoursActivity: true, EventCount: 30},
	}

	report, err := tracker.Analyze(predictions, groundTruth, contexts)
	require.NoError(t, err)
	require.Len(t, report.Misclassifications, 1)
	assert.Contains(t, report.Misclassifications[0].Explanation, "normal working hours")
}

func TestMisclassificationTracker_ExplainsSparseEvidence(t *testing.T) {
	tracker := NewMisclassificationTracker(nil)

	predictions := []Prediction{prediction("a1", LabelMalicious, 0.5)}
	groundTruth := []GroundTruthLabel{truth("a1", LabelLegitimate)}
	contexts := map[string]AutomationContext{"a1": {EventCount: 3}}

	report, err := tracker.Analyze(predictions, groundTruth, contexts)
	require.NoError(t, err)
	require.Len(t, report.Misclassifications, 1)
	assert.Contains(t, report.Misclassifications[0].Explanation, "only 3 events")
}

func TestMisclassificationTracker_ExplainsLowConfidenceFN(t *testing.T) {
	tracker := NewMisclassificationTracker(nil)

	predictions := []Prediction{prediction("a1", LabelLegitimate, 0.15)}
	groundTruth := []GroundTruthLabel{truth("a1", LabelMalicious)}

	report, err := tracker.Analyze(predictions, groundTruth, nil)
	require.NoError(t, err)
	require.Len(t, report.Misclassifications, 1)

	m := report.Misclassifications[0]
	assert.Equal(t, "false_negative", m.Kind)
	assert.Contains(t, m.Explanation, "below the decision threshold")
}

func TestMisclassificationTracker_ExplainsMissedAttackType(t *testing.T) {
	tracker := NewMisclassificationTracker(nil)

	predictions := []Prediction{prediction("a1", LabelLegitimate, 0.5)}
	groundTruth := []GroundTruthLabel{
		truthWithContext("a1", LabelMalicious, "data_exfiltration", "google"),
	}

	report, err := tracker.Analyze(predictions, groundTruth, nil)
	require.NoError(t, err)
	require.Len(t, report.Misclassifications, 1)
	assert.Contains(t, report.Misclassifications[0].Explanation, "data_exfiltration")
	assert.Equal(t, 1, report.ByAttackType["data_exfiltration"])
	assert.Equal(t, 1, report.ByPlatform["google"])
}

func TestMisclassificationTracker_UnpredictedMaliciousIsMiss(t *testing.T) {
	tracker := NewMisclassificationTracker(nil)

	predictions := []Prediction{prediction("a1", LabelLegitimate, 0.5)}
	groundTruth := []GroundTruthLabel{
		truth("a1", LabelLegitimate),
		truthWithContext("ghost", LabelMalicious, "oauth_abuse", "slack"),
	}

	report, err := tracker.Analyze(predictions, groundTruth, nil)
	require.NoError(t, err)
	require.Len(t, report.Misclassifications, 1)

	m := report.Misclassifications[0]
	assert.Equal(t, "false_negative", m.Kind)
	assert.Equal(t, "ghost", m.AutomationID)
	assert.Contains(t, m.Explanation, "no detector produced a prediction")
}

func TestMisclassificationTracker_RatesAndRecommendations(t *testing.T) {
	tracker := NewMisclassificationTracker(nil)

	predictions := []Prediction{
		prediction("tp", LabelMalicious, 0.9),
		prediction("fp", LabelMalicious, 0.9),
		prediction("tn", LabelLegitimate, 0.1),
		prediction("fn", LabelLegitimate, 0.2),
	}
	groundTruth := []GroundTruthLabel{
		truth("tp", LabelMalicious),
		truth("fp", LabelLegitimate),
		truth("tn", LabelLegitimate),
		truth("fn", LabelMalicious),
	}

	report, err := tracker.Analyze(predictions, groundTruth, nil)
	require.NoError(t, err)

	assert.InDelta(t, 0.5, report.FalsePositiveRate, 1e-9)
	assert.InDelta(t, 0.5, report.FalseNegativeRate, 1e-9)
	assert.Equal(t, 2, report.ByDetector["velocity_detector"])

	// Both rates blow past their limits, so two high-priority
	// recommendations come back.
	require.Len(t, report.Recommendations, 2)
	for _, recommendation := range report.Recommendations {
		assert.Equal(t, "high", recommendation.Priority)
	}
}

func TestMisclassificationTracker_HighConfidenceFPRecommendation(t *testing.T) {
	tracker := NewMisclassificationTracker(nil)

	var predictions []Prediction
	var groundTruth []GroundTruthLabel
	ids := []string{"a1", "a2", "a3", "a4"}
	for _, id := range ids {
		predictions = append(predictions, prediction(id, LabelMalicious, 0.95))
		groundTruth = append(groundTruth, truth(id, LabelLegitimate))
	}
	// Enough true negatives to keep the FP rate under the 20% line.
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("b%d", i)
		predictions = append(predictions, prediction(id, LabelLegitimate, 0.1))
		groundTruth = append(groundTruth, truth(id, LabelLegitimate))
	}

	report, err := tracker.Analyze(predictions, groundTruth, nil)
	require.NoError(t, err)

	found := false
	for _, recommendation := range report.Recommendations {
		if recommendation.Priority == "medium" {
			found = true
			assert.Contains(t, recommendation.Description, "high-confidence false positives")
		}
	}
	assert.True(t, found, "expected a medium recommendation about high-confidence FPs")
}

func TestMisclassificationTracker_CleanRunHasNoFindings(t *testing.T) {
	tracker := NewMisclassificationTracker(nil)

	predictions := []Prediction{
		prediction("a1", LabelMalicious, 0.9),
		prediction("a2", LabelLegitimate, 0.1),
	}
	groundTruth := []GroundTruthLabel{
		truth("a1", LabelMalicious),
		truth("a2", LabelLegitimate),
	}

	report, err := tracker.Analyze(predictions, groundTruth, nil)
	require.NoError(t, err)
	assert.Empty(t, report.Misclassifications)
	assert.Equal(t, 0.0, report.FalsePositiveRate)
	assert.Equal(t, 0.0, report.FalseNegativeRate)
	assert.Empty(t, report.Recommendations)
}

func TestMisclassificationTracker_ValidatesInput(t *testing.T) {
	tracker := NewMisclassificationTracker(nil)

	_, err := tracker.Analyze(nil, []GroundTruthLabel{truth("a1", LabelMalicious)}, nil)
	assert.ErrorIs(t, err, ErrValidation)
}

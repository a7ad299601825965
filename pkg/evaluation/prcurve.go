package evaluation

import (
	"math"
	"sort"
)

// ThresholdStrategy produces the threshold set a PR curve is evaluated
// over.
type ThresholdStrategy interface {
	Thresholds(predictions []Prediction) ([]float64, error)
}

// FixedThresholds evaluates the curve at an explicit threshold list.
type FixedThresholds []float64

// Thresholds validates and returns the fixed list, sorted and deduplicated.
func (f FixedThresholds) Thresholds(_ []Prediction) ([]float64, error) {
	if len(f) == 0 {
		return nil, validationErr("threshold list must not be empty")
	}
	for _, threshold := range f {
		if threshold < 0 || threshold > 1 {
			return nil, validationErr("threshold %v outside [0,1]", threshold)
		}
	}
	return normalizeThresholds(f), nil
}

// AdaptiveThresholds samples thresholds from percentiles of the observed
// confidence distribution. The endpoints 0 and 1 are always present.
type AdaptiveThresholds struct {
	// Samples is the number of percentile samples; default 10.
	Samples int
}

// Thresholds returns percentile-sampled thresholds from the sorted
// confidence distribution, deduplicated, with 0 and 1 always included.
func (a AdaptiveThresholds) Thresholds(predictions []Prediction) ([]float64, error) {
	if len(predictions) == 0 {
		return nil, validationErr("predictions must not be empty")
	}
	samples := a.Samples
	if samples <= 0 {
		samples = 10
	}

	confidences := make([]float64, 0, len(predictions))
	for _, prediction := range predictions {
		confidences = append(confidences, prediction.Confidence)
	}
	sort.Float64s(confidences)

	thresholds := []float64{0, 1}
	for i := 1; i < samples; i++ {
		idx := i * len(confidences) / samples
		if idx >= len(confidences) {
			idx = len(confidences) - 1
		}
		thresholds = append(thresholds, confidences[idx])
	}
	return normalizeThresholds(thresholds), nil
}

// normalizeThresholds sorts ascending and removes duplicates.
func normalizeThresholds(thresholds []float64) []float64 {
	sorted := make([]float64, len(thresholds))
	copy(sorted, thresholds)
	sort.Float64s(sorted)

	deduped := sorted[:0]
	for i, threshold := range sorted {
		if i == 0 || threshold != deduped[len(deduped)-1] {
			deduped = append(deduped, threshold)
		}
	}
	return deduped
}

// GeneratePRCurve re-labels every prediction as malicious iff its
// confidence clears each threshold, computes precision/recall/F1 per
// threshold, and integrates precision over recall with the trapezoidal
// rule for AUC. The optimal threshold is the maximum-F1 point, first
// occurrence winning ties; if every F1 is zero it falls back to the
// middle threshold by index.
func GeneratePRCurve(predictions []Prediction, groundTruth []GroundTruthLabel, strategy ThresholdStrategy) (*PRCurve, error) {
	if len(predictions) == 0 {
		return nil, validationErr("predictions must not be empty")
	}
	if len(groundTruth) == 0 {
		return nil, validationErr("ground truth must not be empty")
	}

	thresholds, err := strategy.Thresholds(predictions)
	if err != nil {
		return nil, err
	}

	truthByID := make(map[string]Label, len(groundTruth))
	for _, label := range groundTruth {
		truthByID[label.AutomationID] = label.Actual
	}

	// Malicious labels nobody predicted on stay false negatives at every
	// threshold.
	predicted := make(map[string]struct{}, len(predictions))
	for _, prediction := range predictions {
		predicted[prediction.AutomationID] = struct{}{}
	}
	unmatchedMalicious := 0
	for _, label := range groundTruth {
		if label.Actual != LabelMalicious {
			continue
		}
		if _, ok := predicted[label.AutomationID]; !ok {
			unmatchedMalicious++
		}
	}

	points := make([]PRPoint, 0, len(thresholds))
	for _, threshold := range thresholds {
		var matrix ConfusionMatrix
		matrix.FalseNegatives = unmatchedMalicious

		for _, prediction := range predictions {
			actual, ok := truthByID[prediction.AutomationID]
			if !ok {
				continue
			}
			predictedMalicious := prediction.Confidence >= threshold
			switch {
			case predictedMalicious && actual == LabelMalicious:
				matrix.TruePositives++
			case !predictedMalicious && actual == LabelLegitimate:
				matrix.TrueNegatives++
			case predictedMalicious && actual == LabelLegitimate:
				matrix.FalsePositives++
			default:
				matrix.FalseNegatives++
			}
		}

		metrics := ComputeMetrics(matrix)
		points = append(points, PRPoint{
			Threshold: threshold,
			Precision: metrics.Precision,
			Recall:    metrics.Recall,
			F1Score:   metrics.F1Score,
		})
	}

	curve := &PRCurve{Points: points}
	curve.AUC = integrateAUC(points)
	curve.OptimalThreshold, curve.OptimalF1 = optimalPoint(points)
	return curve, nil
}

// integrateAUC sorts the points by recall ascending and applies the
// trapezoidal rule to precision over recall. The result is clamped to
// [0,1] against floating-point dust.
func integrateAUC(points []PRPoint) float64 {
	if len(points) < 2 {
		return 0
	}

	sorted := make([]PRPoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Recall < sorted[j].Recall })

	var auc float64
	for i := 1; i < len(sorted); i++ {
		dr := sorted[i].Recall - sorted[i-1].Recall
		auc += dr * (sorted[i].Precision + sorted[i-1].Precision) / 2
	}
	return math.Max(0, math.Min(auc, 1))
}

// optimalPoint picks the maximum-F1 point in threshold order, first
// occurrence winning ties. All-zero F1 falls back to the middle point.
func optimalPoint(points []PRPoint) (threshold, f1 float64) {
	if len(points) == 0 {
		return 0, 0
	}

	best := -1
	for i, point := range points {
		if point.F1Score > 0 && (best == -1 || point.F1Score > points[best].F1Score) {
			best = i
		}
	}
	if best == -1 {
		best = len(points) / 2
	}
	return points[best].Threshold, points[best].F1Score
}

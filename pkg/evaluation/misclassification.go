package evaluation

import (
	"fmt"
	"time"
)

// AutomationContext carries the behavioral facts about one automation
// that explanation rules inspect. Callers supply whatever they know;
// missing context just means fewer specific explanations.
type AutomationContext struct {
	AIProviderSignal    bool   `json:"ai_provider_signal"`
	FlaggedOffHours     bool   `json:"flagged_off_hours"`
	NormalHoursActivity bool   `json:"normal_hours_activity"`
	EventCount          int    `json:"event_count"`
	Platform            string `json:"platform,omitempty"`
}

// misclassCase bundles everything an explanation rule can look at.
type misclassCase struct {
	kind       string
	prediction Prediction
	label      GroundTruthLabel
	context    AutomationContext
}

// explanationRule returns a non-empty explanation when its pattern
// matches. Rules run in order; the first match wins.
type explanationRule func(c misclassCase) string

var explanationRules = []explanationRule{
	func(c misclassCase) string {
		if c.kind == "false_positive" && c.prediction.Confidence >= 0.8 && !c.context.AIProviderSignal {
			return fmt.Sprintf("high confidence (%.2f) despite no AI-provider signal in the underlying events",
				c.prediction.Confidence)
		}
		return ""
	},
	func(c misclassCase) string {
		if c.kind == "false_positive" && c.context.FlaggedOffHours && c.context.NormalHoursActivity {
			return "off-hours flag raised on activity that falls inside the user's normal working hours"
		}
		return ""
	},
	func(c misclassCase) string {
		if c.kind == "false_positive" && c.context.EventCount > 0 && c.context.EventCount < 5 {
			return fmt.Sprintf("automation verdict rests on only %d events, too sparse to establish a pattern",
				c.context.EventCount)
		}
		return ""
	},
	func(c misclassCase) string {
		if c.kind == "false_negative" && c.prediction.Confidence > 0 && c.prediction.Confidence < 0.3 {
			return fmt.Sprintf("malicious automation scored %.2f, well below the decision threshold",
				c.prediction.Confidence)
		}
		return ""
	},
	func(c misclassCase) string {
		if c.kind == "false_negative" && c.label.AttackType != "" {
			return fmt.Sprintf("missed %s attack; detector %s has no signature for this pattern",
				c.label.AttackType, c.prediction.DetectorName)
		}
		return ""
	},
}

// explain picks the first matching rule, falling back to a generic
// template when nothing specific applies.
func explain(c misclassCase) string {
	for _, rule := range explanationRules {
		if explanation := rule(c); explanation != "" {
			return explanation
		}
	}
	return fmt.Sprintf("detector %s classified automation %s as %s but ground truth says %s",
		c.prediction.DetectorName, c.prediction.AutomationID, c.prediction.Predicted, c.label.Actual)
}

// MisclassificationTracker produces per-misclassification explanations
// and aggregate remediation recommendations.
type MisclassificationTracker struct {
	metrics *MetricsService
}

// NewMisclassificationTracker creates a tracker.
func NewMisclassificationTracker(metrics *MetricsService) *MisclassificationTracker {
	if metrics == nil {
		metrics = NewMetricsService()
	}
	return &MisclassificationTracker{metrics: metrics}
}

// Analyze joins predictions against ground truth, explains every
// misclassification, and emits prioritized recommendations. Contexts may
// be nil; unmatched malicious ground truth is still a miss.
func (t *MisclassificationTracker) Analyze(predictions []Prediction, groundTruth []GroundTruthLabel, contexts map[string]AutomationContext) (*MisclassificationReport, error) {
	if err := t.metrics.ValidateInput(predictions, groundTruth); err != nil {
		return nil, err
	}

	truthByID := make(map[string]GroundTruthLabel, len(groundTruth))
	for _, label := range groundTruth {
		truthByID[label.AutomationID] = label
	}

	report := &MisclassificationReport{
		GeneratedAt:  time.Now().UTC(),
		ByDetector:   make(map[string]int),
		ByPlatform:   make(map[string]int),
		ByAttackType: make(map[string]int),
	}

	var truePositives, trueNegatives int
	highConfidenceFPs := 0
	missedByAttackType := make(map[string]int)
	predicted := make(map[string]struct{}, len(predictions))

	for _, prediction := range predictions {
		label, ok := truthByID[prediction.AutomationID]
		if !ok {
			continue
		}
		predicted[prediction.AutomationID] = struct{}{}

		var kind string
		switch {
		case prediction.Predicted == LabelMalicious && label.Actual == LabelLegitimate:
			kind = "false_positive"
			if prediction.Confidence >= 0.8 {
				highConfidenceFPs++
			}
		case prediction.Predicted == LabelLegitimate && label.Actual == LabelMalicious:
			kind = "false_negative"
			if label.AttackType != "" {
				missedByAttackType[label.AttackType]++
			}
		case prediction.Predicted == LabelMalicious:
			truePositives++
			continue
		default:
			trueNegatives++
			continue
		}

		c := misclassCase{
			kind:       kind,
			prediction: prediction,
			label:      label,
			context:    contexts[prediction.AutomationID],
		}
		misclassification := Misclassification{
			AutomationID: prediction.AutomationID,
			Kind:         kind,
			DetectorName: prediction.DetectorName,
			Platform:     label.Platform,
			AttackType:   label.AttackType,
			Confidence:   prediction.Confidence,
			Explanation:  explain(c),
		}
		report.Misclassifications = append(report.Misclassifications, misclassification)

		report.ByDetector[prediction.DetectorName]++
		if label.Platform != "" {
			report.ByPlatform[label.Platform]++
		}
		if label.AttackType != "" {
			report.ByAttackType[label.AttackType]++
		}
	}

	// Malicious labels with no prediction at all are misses too.
	for _, label := range groundTruth {
		if label.Actual != LabelMalicious {
			continue
		}
		if _, ok := predicted[label.AutomationID]; ok {
			continue
		}
		report.Misclassifications = append(report.Misclassifications, Misclassification{
			AutomationID: label.AutomationID,
			Kind:         "false_negative",
			AttackType:   label.AttackType,
			Platform:     label.Platform,
			Explanation:  fmt.Sprintf("no detector produced a prediction for malicious automation %s", label.AutomationID),
		})
		if label.AttackType != "" {
			missedByAttackType[label.AttackType]++
			report.ByAttackType[label.AttackType]++
		}
		if label.Platform != "" {
			report.ByPlatform[label.Platform]++
		}
	}

	falsePositives, falseNegatives := 0, 0
	for _, misclassification := range report.Misclassifications {
		switch misclassification.Kind {
		case "false_positive":
			falsePositives++
		case "false_negative":
			falseNegatives++
		}
	}
	if denom := falsePositives + trueNegatives; denom > 0 {
		report.FalsePositiveRate = float64(falsePositives) / float64(denom)
	}
	if denom := falseNegatives + truePositives; denom > 0 {
		report.FalseNegativeRate = float64(falseNegatives) / float64(denom)
	}

	report.Recommendations = buildRecommendations(report, missedByAttackType, highConfidenceFPs)
	return report, nil
}

// Recommendation thresholds: FP rate above 20%, FN rate above 15%, more
// than 5 missed attacks of one type, more than 3 high-confidence FPs.
func buildRecommendations(report *MisclassificationReport, missedByAttackType map[string]int, highConfidenceFPs int) []Recommendation {
	var recommendations []Recommendation

	if report.FalsePositiveRate > 0.20 {
		recommendations = append(recommendations, Recommendation{
			Priority: "high",
			Description: fmt.Sprintf("false-positive rate %.0f%% exceeds 20%%; raise detector confidence thresholds or tighten heuristics",
				report.FalsePositiveRate*100),
		})
	}
	if report.FalseNegativeRate > 0.15 {
		recommendations = append(recommendations, Recommendation{
			Priority: "high",
			Description: fmt.Sprintf("false-negative rate %.0f%% exceeds 15%%; lower detection thresholds or add detector coverage",
				report.FalseNegativeRate*100),
		})
	}
	for attackType, count := range missedByAttackType {
		if count > 5 {
			recommendations = append(recommendations, Recommendation{
				Priority:    "high",
				Description: fmt.Sprintf("%d missed %s attacks; add a dedicated signature for this attack type", count, attackType),
			})
		}
	}
	if highConfidenceFPs > 3 {
		recommendations = append(recommendations, Recommendation{
			Priority:    "medium",
			Description: fmt.Sprintf("%d high-confidence false positives; review the scoring of the offending detectors", highConfidenceFPs),
		})
	}
	return recommendations
}

package evaluation

import (
	"time"
)

// Label is the binary classification vocabulary shared by predictions and
// ground truth.
type Label string

const (
	LabelMalicious  Label = "malicious"
	LabelLegitimate Label = "legitimate"
)

// Prediction is one detector's verdict on one automation.
type Prediction struct {
	AutomationID string    `json:"automation_id" validate:"required"`
	Predicted    Label     `json:"predicted" validate:"required,oneof=malicious legitimate"`
	Confidence   float64   `json:"confidence" validate:"gte=0,lte=1"`
	DetectorName string    `json:"detector_name" validate:"required"`
	Timestamp    time.Time `json:"timestamp"`
}

// GroundTruthLabel is the externally curated correct label for an
// automation. Used only for evaluation, never for detection.
type GroundTruthLabel struct {
	AutomationID string   `json:"automation_id" validate:"required"`
	Actual       Label    `json:"actual" validate:"required,oneof=malicious legitimate"`
	Confidence   float64  `json:"confidence" validate:"gte=0,lte=1"`
	Reviewers    []string `json:"reviewers,omitempty"`
	Rationale    string   `json:"rationale,omitempty"`
	AttackType   string   `json:"attack_type,omitempty"`
	Platform     string   `json:"platform,omitempty"`
}

// ConfusionMatrix is recomputed per evaluation call, never persisted.
type ConfusionMatrix struct {
	TruePositives  int `json:"true_positives"`
	TrueNegatives  int `json:"true_negatives"`
	FalsePositives int `json:"false_positives"`
	FalseNegatives int `json:"false_negatives"`
}

// Total returns the number of samples the matrix covers.
func (m ConfusionMatrix) Total() int {
	return m.TruePositives + m.TrueNegatives + m.FalsePositives + m.FalseNegatives
}

// Metrics is one set of derived quality measures, each in [0,1].
type Metrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1Score   float64 `json:"f1_score"`
	Accuracy  float64 `json:"accuracy"`
}

// EvaluationReport is the full output of one evaluation run.
type EvaluationReport struct {
	DetectorName string          `json:"detector_name"`
	GeneratedAt  time.Time       `json:"generated_at"`
	SampleSize   int             `json:"sample_size"`
	Matrix       ConfusionMatrix `json:"confusion_matrix"`
	Metrics      Metrics         `json:"metrics"`
	Curve        *PRCurve        `json:"pr_curve,omitempty"`
	Drift        []DriftAlert    `json:"drift_alerts,omitempty"`
}

// PRPoint is one point of a precision-recall curve.
type PRPoint struct {
	Threshold float64 `json:"threshold"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1Score   float64 `json:"f1"`
}

// PRCurve is a precision-recall curve with its scalar summaries.
type PRCurve struct {
	Points           []PRPoint `json:"points"`
	AUC              float64   `json:"auc"`
	OptimalThreshold float64   `json:"optimal_threshold"`
	OptimalF1        float64   `json:"optimal_f1"`
}

// BaselineMetrics is one persisted historical metrics record.
type BaselineMetrics struct {
	DetectorName    string    `json:"detector_name"`
	DetectorVersion string    `json:"version"`
	Metrics         Metrics   `json:"metrics"`
	Timestamp       time.Time `json:"timestamp"`
	SampleSize      int       `json:"sample_size"`
	GitCommit       string    `json:"git_commit,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// DriftSeverity grades a drift alert.
type DriftSeverity string

const (
	DriftWarning  DriftSeverity = "warning"
	DriftCritical DriftSeverity = "critical"
)

// DriftAlert reports one metric's degradation against the baseline.
type DriftAlert struct {
	DetectorName  string        `json:"detector_name"`
	Metric        string        `json:"metric"`
	BaselineValue float64       `json:"baseline_value"`
	CurrentValue  float64       `json:"current_value"`
	ChangePercent float64       `json:"change_percent"` // negative means degradation
	Severity      DriftSeverity `json:"severity"`
}

// Misclassification is one wrong verdict with its explanation.
type Misclassification struct {
	AutomationID string  `json:"automation_id"`
	Kind         string  `json:"kind"` // false_positive or false_negative
	DetectorName string  `json:"detector_name"`
	Platform     string  `json:"platform,omitempty"`
	AttackType   string  `json:"attack_type,omitempty"`
	Confidence   float64 `json:"confidence"`
	Explanation  string  `json:"explanation"`
}

// MisclassificationReport aggregates misclassifications with rates and
// remediation recommendations.
type MisclassificationReport struct {
	GeneratedAt        time.Time           `json:"generated_at"`
	Misclassifications []Misclassification `json:"misclassifications"`
	FalsePositiveRate  float64             `json:"false_positive_rate"`
	FalseNegativeRate  float64             `json:"false_negative_rate"`
	ByDetector         map[string]int      `json:"by_detector"`
	ByPlatform         map[string]int      `json:"by_platform"`
	ByAttackType       map[string]int      `json:"by_attack_type"`
	Recommendations    []Recommendation    `json:"recommendations"`
}

// Recommendation is a prioritized remediation suggestion.
type Recommendation struct {
	Priority    string `json:"priority"` // high, medium, low
	Description string `json:"description"`
}

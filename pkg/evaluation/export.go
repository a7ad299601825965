package evaluation

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExportJSON renders a report as pretty-printed JSON mirroring the
// in-memory shape.
func ExportJSON(report *EvaluationReport) ([]byte, error) {
	if report == nil {
		return nil, validationErr("report must not be nil")
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return data, nil
}

// ExportCurveCSV renders a PR curve as CSV: a threshold,precision,recall,f1
// header, one row per point, and a trailing metadata comment block.
func ExportCurveCSV(curve *PRCurve) (string, error) {
	if curve == nil || len(curve.Points) == 0 {
		return "", validationErr("curve must have at least one point")
	}

	var b strings.Builder
	b.WriteString("threshold,precision,recall,f1\n")
	for _, point := range curve.Points {
		fmt.Fprintf(&b, "%.4f,%.4f,%.4f,%.4f\n",
			point.Threshold, point.Precision, point.Recall, point.F1Score)
	}
	fmt.Fprintf(&b, "# AUC: %.4f\n", curve.AUC)
	fmt.Fprintf(&b, "# Optimal Threshold: %.4f\n", curve.OptimalThreshold)
	fmt.Fprintf(&b, "# Optimal F1: %.4f\n", curve.OptimalF1)
	return b.String(), nil
}

// ExportText renders a report as a fixed-width table for terminal display.
func ExportText(report *EvaluationReport) (string, error) {
	if report == nil {
		return "", validationErr("report must not be nil")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Evaluation Report: %s\n", report.DetectorName)
	fmt.Fprintf(&b, "Generated: %s\n", report.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Samples:   %d\n\n", report.SampleSize)

	fmt.Fprintf(&b, "%-20s %10s\n", "Metric", "Value")
	fmt.Fprintf(&b, "%s\n", strings.Repeat("-", 31))
	fmt.Fprintf(&b, "%-20s %10.4f\n", "Precision", report.Metrics.Precision)
	fmt.Fprintf(&b, "%-20s %10.4f\n", "Recall", report.Metrics.Recall)
	fmt.Fprintf(&b, "%-20s %10.4f\n", "F1 Score", report.Metrics.F1Score)
	fmt.Fprintf(&b, "%-20s %10.4f\n", "Accuracy", report.Metrics.Accuracy)

	fmt.Fprintf(&b, "\n%-20s %10s\n", "Confusion Matrix", "Count")
	fmt.Fprintf(&b, "%s\n", strings.Repeat("-", 31))
	fmt.Fprintf(&b, "%-20s %10d\n", "True Positives", report.Matrix.TruePositives)
	fmt.Fprintf(&b, "%-20s %10d\n", "True Negatives", report.Matrix.TrueNegatives)
	fmt.Fprintf(&b, "%-20s %10d\n", "False Positives", report.Matrix.FalsePositives)
	fmt.Fprintf(&b, "%-20s %10d\n", "False Negatives", report.Matrix.FalseNegatives)

	if report.Curve != nil {
		fmt.Fprintf(&b, "\n%-20s %10.4f\n", "PR-Curve AUC", report.Curve.AUC)
		fmt.Fprintf(&b, "%-20s %10.4f\n", "Optimal Threshold", report.Curve.OptimalThreshold)
		fmt.Fprintf(&b, "%-20s %10.4f\n", "Optimal F1", report.Curve.OptimalF1)
	}

	if len(report.Drift) > 0 {
		fmt.Fprintf(&b, "\n%-12s %-10s %10s %10s %9s\n",
			"Drift", "Severity", "Baseline", "Current", "Change%")
		fmt.Fprintf(&b, "%s\n", strings.Repeat("-", 55))
		for _, alert := range report.Drift {
			fmt.Fprintf(&b, "%-12s %-10s %10.4f %10.4f %8.1f%%\n",
				alert.Metric, alert.Severity, alert.BaselineValue, alert.CurrentValue, alert.ChangePercent)
		}
	}

	return b.String(), nil
}

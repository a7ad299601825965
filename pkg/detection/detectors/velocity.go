package detectors

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/darrentmorgan/singura-sub007/pkg/config"
	"github.com/darrentmorgan/singura-sub007/pkg/detection"
)

// VelocityDetector flags event groups whose sustained action rate exceeds
// what a human can plausibly produce. Events are grouped by event type and
// each group is scored over its full time span.
type VelocityDetector struct {
	name       string
	version    string
	enabled    bool
	thresholds config.VelocityThresholds
}

// Action-type weights applied to the anomaly score. Escalation-adjacent
// actions weigh heavier than plain content churn.
var velocityActionWeights = map[string]float64{
	"permission_change":     1.2,
	"permission_escalation": 1.25,
	"file_share":            1.1,
	"email_send":            1.05,
}

// NewVelocityDetector creates a velocity detector with the given thresholds.
func NewVelocityDetector(thresholds config.VelocityThresholds) *VelocityDetector {
	return &VelocityDetector{
		name:       "velocity_detector",
		version:    "1.0.0",
		enabled:    true,
		thresholds: thresholds,
	}
}

func (d *VelocityDetector) GetName() string    { return d.name }
func (d *VelocityDetector) GetVersion() string { return d.version }
func (d *VelocityDetector) IsEnabled() bool    { return d.enabled }

func (d *VelocityDetector) GetSupportedPatterns() []detection.PatternType {
	return []detection.PatternType{detection.PatternVelocity}
}

// Detect groups events by type and flags every group whose rate exceeds
// the type's human ceiling.
func (d *VelocityDetector) Detect(ctx context.Context, events []detection.Event) ([]detection.Finding, error) {
	groups := make(map[string][]detection.Event)
	for _, event := range events {
		groups[event.EventType] = append(groups[event.EventType], event)
	}

	var findings []detection.Finding
	for eventType, group := range groups {
		velocity, span := groupVelocity(group)
		ceiling := d.thresholds.HumanCeiling(eventType)
		if velocity <= ceiling {
			continue
		}

		score := d.anomalyScore(velocity, group)
		confidence := math.Min(score*1.2, 100)

		eventIDs := make([]string, 0, len(group))
		for _, event := range group {
			eventIDs = append(eventIDs, event.EventID)
		}

		findings = append(findings, detection.Finding{
			PatternID:   uuid.New(),
			PatternType: detection.PatternVelocity,
			DetectedAt:  time.Now().UTC(),
			Confidence:  confidence,
			RiskLevel:   detection.RiskLevelForScore(confidence),
			Platform:    group[0].Platform,
			UserID:      group[0].UserID,
			Metadata: map[string]string{
				"event_type": eventType,
			},
			Evidence: detection.Evidence{
				Description: fmt.Sprintf("%d %s events in %.1fs (%.2f/s, human ceiling %.2f/s)",
					len(group), eventType, span.Seconds(), velocity, ceiling),
				DataPoints: map[string]float64{
					"velocity":      velocity,
					"event_count":   float64(len(group)),
					"span_seconds":  span.Seconds(),
					"human_ceiling": ceiling,
					"anomaly_score": score,
				},
				SupportingEventIDs: eventIDs,
			},
			DetectorName:    d.name,
			DetectorVersion: d.version,
		})
	}

	return findings, nil
}

// groupVelocity returns the events-per-second rate over the group's full
// span. A zero-duration or sub-2-event group yields velocity 0 so it can
// never be flagged.
func groupVelocity(group []detection.Event) (float64, time.Duration) {
	if len(group) < 2 {
		return 0, 0
	}

	earliest, latest := group[0].Timestamp, group[0].Timestamp
	for _, event := range group[1:] {
		if event.Timestamp.Before(earliest) {
			earliest = event.Timestamp
		}
		if event.Timestamp.After(latest) {
			latest = event.Timestamp
		}
	}

	span := latest.Sub(earliest)
	if span <= 0 {
		return 0, 0
	}
	return float64(len(group)) / span.Seconds(), span
}

// anomalyScore maps velocity onto 0-100: the automation threshold sits at
// the midpoint and the critical threshold at 100, linear within each
// segment, then weighted by the group's dominant action type.
func (d *VelocityDetector) anomalyScore(velocity float64, group []detection.Event) float64 {
	automation := d.thresholds.AutomationPerSecond
	critical := d.thresholds.CriticalPerSecond

	var score float64
	if velocity <= automation {
		score = (velocity / automation) * 50
	} else {
		score = 50 + 50*(velocity-automation)/(critical-automation)
	}
	score = math.Min(score, 100)

	weight := 1.0
	if w, ok := velocityActionWeights[group[0].EventType]; ok {
		weight = w
	}
	return math.Min(score*weight, 100)
}

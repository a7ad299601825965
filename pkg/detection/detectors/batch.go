package detectors

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/darrentmorgan/singura-sub007/pkg/config"
	"github.com/darrentmorgan/singura-sub007/pkg/detection"
)

// BatchOperationDetector flags bursts of similarly-named, tightly-timed
// operations: bulk exports, scripted renames, mass permission grants.
// It slides a window over time-sorted events and groups candidates whose
// composite similarity clears the configured threshold.
type BatchOperationDetector struct {
	name       string
	version    string
	enabled    bool
	thresholds config.BatchThresholds
}

// sequencedName matches names like report_001.pdf: a base, a numeric
// suffix, and an optional extension.
var sequencedName = regexp.MustCompile(`^(.*?)(\d+)(\.[^.]*)?$`)

// NewBatchOperationDetector creates a batch-operation detector.
func NewBatchOperationDetector(thresholds config.BatchThresholds) *BatchOperationDetector {
	return &BatchOperationDetector{
		name:       "batch_operation_detector",
		version:    "1.0.0",
		enabled:    true,
		thresholds: thresholds,
	}
}

func (d *BatchOperationDetector) GetName() string    { return d.name }
func (d *BatchOperationDetector) GetVersion() string { return d.version }
func (d *BatchOperationDetector) IsEnabled() bool    { return d.enabled }

func (d *BatchOperationDetector) GetSupportedPatterns() []detection.PatternType {
	return []detection.PatternType{detection.PatternBatchOperation}
}

// Detect scans time-sorted events with a sliding window, collecting runs
// of similar events into batch candidates.
func (d *BatchOperationDetector) Detect(ctx context.Context, events []detection.Event) ([]detection.Finding, error) {
	sorted := detection.SortEventsByTime(events)

	consumed := make([]bool, len(sorted))
	var findings []detection.Finding
	for anchor := 0; anchor < len(sorted); anchor++ {
		if consumed[anchor] {
			continue
		}

		batch, indices, totalSimilarity := d.collectBatch(sorted, consumed, anchor)
		if len(batch) < d.thresholds.MinBatchSize {
			continue
		}

		avgSimilarity := totalSimilarity / float64(len(batch)-1)
		duration := batch[len(batch)-1].Timestamp.Sub(batch[0].Timestamp)
		timingScore := 1 - float64(duration.Milliseconds())/float64(time.Hour.Milliseconds())
		if timingScore < 0 {
			timingScore = 0
		}

		likelihood := math.Min(avgSimilarity*timingScore*1.2, 1)
		if likelihood > d.thresholds.LikelihoodThreshold {
			findings = append(findings, d.buildFinding(batch, likelihood, avgSimilarity, duration))
		}

		// Events consumed by this candidate never anchor another one;
		// skipped events in between stay anchor candidates.
		for _, i := range indices {
			consumed[i] = true
		}
	}

	return findings, nil
}

// collectBatch scans forward from the anchor while candidates stay inside
// the max window, keeping unconsumed events similar enough to the run so
// far. It returns the batch, the member indices, and the sum of member
// similarity scores.
func (d *BatchOperationDetector) collectBatch(sorted []detection.Event, consumed []bool, anchor int) ([]detection.Event, []int, float64) {
	batch := []detection.Event{sorted[anchor]}
	indices := []int{anchor}
	var totalSimilarity float64

	for i := anchor + 1; i < len(sorted); i++ {
		if consumed[i] {
			continue
		}
		candidate := sorted[i]
		if candidate.Timestamp.Sub(sorted[anchor].Timestamp) > d.thresholds.MaxWindow {
			break
		}

		previous := batch[len(batch)-1]
		similarity := d.similarity(previous, candidate)
		if similarity < d.thresholds.SimilarityThreshold {
			continue
		}
		batch = append(batch, candidate)
		indices = append(indices, i)
		totalSimilarity += similarity
	}

	return batch, indices, totalSimilarity
}

// similarity is the fraction of five boolean checks two events pass:
// same action type, same resource type, sequential naming, shared
// permission or scope metadata, and sub-gap pairwise timing.
func (d *BatchOperationDetector) similarity(a, b detection.Event) float64 {
	checks := 0
	passed := 0

	checks++
	if a.EventType == b.EventType && a.ActionDetails.Action == b.ActionDetails.Action {
		passed++
	}

	checks++
	if a.ResourceType == b.ResourceType {
		passed++
	}

	checks++
	if namesSequential(a.ActionDetails.ResourceName, b.ActionDetails.ResourceName) {
		passed++
	}

	checks++
	if sharedPermissions(a.ActionDetails.Metadata, b.ActionDetails.Metadata) {
		passed++
	}

	checks++
	if gap := b.Timestamp.Sub(a.Timestamp); gap >= 0 && gap < d.thresholds.MaxPairGap {
		passed++
	}

	return float64(passed) / float64(checks)
}

// namesSequential reports whether two resource names share a base and
// extension and their numeric suffixes are at most one apart in sequence
// (a single missing number is tolerated).
func namesSequential(a, b string) bool {
	ma := sequencedName.FindStringSubmatch(a)
	mb := sequencedName.FindStringSubmatch(b)
	if ma == nil || mb == nil {
		return false
	}
	if ma[1] != mb[1] || ma[3] != mb[3] {
		return false
	}

	na, errA := strconv.Atoi(ma[2])
	nb, errB := strconv.Atoi(mb[2])
	if errA != nil || errB != nil {
		return false
	}

	diff := nb - na
	if diff < 0 {
		diff = -diff
	}
	return diff >= 1 && diff <= 2
}

// sharedPermissions reports whether two events carry an overlapping
// permission or scope set.
func sharedPermissions(a, b detection.ActionMetadata) bool {
	if overlaps(a.Permissions, b.Permissions) {
		return true
	}
	return overlaps(a.Scopes, b.Scopes)
}

func overlaps(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}
	for _, v := range b {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}

func (d *BatchOperationDetector) buildFinding(batch []detection.Event, likelihood, avgSimilarity float64, duration time.Duration) detection.Finding {
	eventIDs := make([]string, 0, len(batch))
	for _, event := range batch {
		eventIDs = append(eventIDs, event.EventID)
	}

	confidence := likelihood * 100
	return detection.Finding{
		PatternID:   uuid.New(),
		PatternType: detection.PatternBatchOperation,
		DetectedAt:  time.Now().UTC(),
		Confidence:  confidence,
		RiskLevel:   batchRiskLevel(len(batch)),
		Platform:    batch[0].Platform,
		UserID:      batch[0].UserID,
		Metadata: map[string]string{
			"action":        batch[0].ActionDetails.Action,
			"resource_type": batch[0].ResourceType,
		},
		Evidence: detection.Evidence{
			Description: fmt.Sprintf("%d similar %s operations within %.1fs (likelihood %.2f)",
				len(batch), batch[0].EventType, duration.Seconds(), likelihood),
			DataPoints: map[string]float64{
				"batch_size":       float64(len(batch)),
				"likelihood":       likelihood,
				"avg_similarity":   avgSimilarity,
				"duration_seconds": duration.Seconds(),
			},
			SupportingEventIDs: eventIDs,
		},
		DetectorName:    d.name,
		DetectorVersion: d.version,
	}
}

// batchRiskLevel buckets risk by how many operations the batch contains.
func batchRiskLevel(count int) detection.RiskLevel {
	switch {
	case count <= 3:
		return detection.RiskLow
	case count <= 10:
		return detection.RiskMedium
	case count <= 20:
		return detection.RiskHigh
	default:
		return detection.RiskCritical
	}
}

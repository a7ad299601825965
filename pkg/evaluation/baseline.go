package evaluation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/darrentmorgan/singura-sub007/pkg/logger"
)

// driftThreshold holds the warning and critical degradation percentages
// for one metric.
type driftThreshold struct {
	warning  float64
	critical float64
}

// Per-metric drift thresholds. Alerts fire only on degradation.
var driftThresholds = map[string]driftThreshold{
	"precision": {warning: 5, critical: 7},
	"recall":    {warning: 3, critical: 5},
	"f1_score":  {warning: 4, critical: 6},
}

// BaselineManager persists one timestamped metrics record per detector
// version to an append-only, capped history of JSON files. Writes go
// through a temp file and rename so a concurrent reader never sees a
// partial baseline.
type BaselineManager struct {
	dir         string
	historySize int
	log         *logger.Logger
}

// NewBaselineManager creates a baseline manager rooted at dir.
func NewBaselineManager(dir string, historySize int, log *logger.Logger) (*BaselineManager, error) {
	if dir == "" {
		return nil, validationErr("baseline directory must not be empty")
	}
	if historySize <= 0 {
		historySize = 50
	}
	if log == nil {
		log = logger.NewDefaultLogger("baseline-manager", "")
	}
	return &BaselineManager{dir: dir, historySize: historySize, log: log}, nil
}

// Record persists a baseline record and evicts the oldest files beyond
// the history cap. Eviction failures are reported but non-fatal.
func (m *BaselineManager) Record(baseline BaselineMetrics) error {
	if baseline.DetectorName == "" {
		return validationErr("baseline detector name must not be empty")
	}
	if baseline.DetectorVersion == "" {
		return validationErr("baseline detector version must not be empty")
	}
	if baseline.Timestamp.IsZero() {
		baseline.Timestamp = time.Now().UTC()
	}

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return storageErr("failed to create baseline directory %s: %v", m.dir, err)
	}

	data, err := json.MarshalIndent(baseline, "", "  ")
	if err != nil {
		return storageErr("failed to marshal baseline: %v", err)
	}

	path := filepath.Join(m.dir, baselineFileName(baseline))
	if err := atomicWrite(path, data); err != nil {
		return storageErr("failed to write baseline %s: %v", path, err)
	}

	m.evictOld(baseline.DetectorName)
	return nil
}

// History returns the detector's baselines ordered oldest to newest.
// Unreadable files are skipped with a warning; an empty history is not
// an error.
func (m *BaselineManager) History(detectorName string) ([]BaselineMetrics, error) {
	paths, err := m.detectorFiles(detectorName)
	if err != nil {
		return nil, err
	}

	history := make([]BaselineMetrics, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			m.log.Warn("skipping unreadable baseline %s: %v", path, err)
			continue
		}
		var baseline BaselineMetrics
		if err := json.Unmarshal(data, &baseline); err != nil {
			m.log.Warn("skipping corrupt baseline %s: %v", path, err)
			continue
		}
		history = append(history, baseline)
	}

	sort.Slice(history, func(i, j int) bool {
		return history[i].Timestamp.Before(history[j].Timestamp)
	})
	return history, nil
}

// Latest returns the most recent baseline, or nil when none exists.
func (m *BaselineManager) Latest(detectorName string) (*BaselineMetrics, error) {
	history, err := m.History(detectorName)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, nil
	}
	return &history[len(history)-1], nil
}

// DetectDrift compares current metrics against the detector's most recent
// baseline and returns an alert for every metric that degraded past its
// threshold. A missing baseline is a hard error: drift is meaningless
// without a reference.
func (m *BaselineManager) DetectDrift(detectorName string, current Metrics) ([]DriftAlert, error) {
	latest, err := m.Latest(detectorName)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, notFoundErr("no baseline found for detector %s", detectorName)
	}

	comparisons := []struct {
		metric   string
		baseline float64
		current  float64
	}{
		{"precision", latest.Metrics.Precision, current.Precision},
		{"recall", latest.Metrics.Recall, current.Recall},
		{"f1_score", latest.Metrics.F1Score, current.F1Score},
	}

	var alerts []DriftAlert
	for _, comparison := range comparisons {
		change := percentChange(comparison.baseline, comparison.current)
		if change >= 0 {
			continue // improvement or no change never alerts
		}

		threshold := driftThresholds[comparison.metric]
		degradation := -change
		var severity DriftSeverity
		switch {
		case degradation >= threshold.critical:
			severity = DriftCritical
		case degradation >= threshold.warning:
			severity = DriftWarning
		default:
			continue
		}

		alerts = append(alerts, DriftAlert{
			DetectorName:  detectorName,
			Metric:        comparison.metric,
			BaselineValue: comparison.baseline,
			CurrentValue:  comparison.current,
			ChangePercent: change,
			Severity:      severity,
		})
	}
	return alerts, nil
}

// percentChange returns the relative change from baseline to current in
// percent. A zero baseline with a nonzero current reads as 100% change.
func percentChange(baseline, current float64) float64 {
	if baseline == 0 {
		if current == 0 {
			return 0
		}
		return 100
	}
	return (current - baseline) / baseline * 100
}

// baselineFileName builds baseline-{detector}-v{version}-{timestamp}.json
// with ':' and '.' in the RFC3339 timestamp replaced by '-'.
func baselineFileName(baseline BaselineMetrics) string {
	timestamp := strings.NewReplacer(":", "-", ".", "-").
		Replace(baseline.Timestamp.UTC().Format(time.RFC3339))
	return fmt.Sprintf("baseline-%s-v%s-%s.json",
		baseline.DetectorName, baseline.DetectorVersion, timestamp)
}

func (m *BaselineManager) detectorFiles(detectorName string) ([]string, error) {
	pattern := filepath.Join(m.dir, fmt.Sprintf("baseline-%s-v*.json", detectorName))
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, storageErr("failed to list baselines for %s: %v", detectorName, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// evictOld deletes the oldest baseline files beyond the history cap.
// Age comes from each record's embedded timestamp so eviction and History
// agree on ordering even when records arrive out of logical order;
// unparseable files sort oldest and go first.
func (m *BaselineManager) evictOld(detectorName string) {
	paths, err := m.detectorFiles(detectorName)
	if err != nil || len(paths) <= m.historySize {
		return
	}

	type datedFile struct {
		path string
		ts   time.Time
	}
	dated := make([]datedFile, 0, len(paths))
	for _, path := range paths {
		var ts time.Time
		if data, err := os.ReadFile(path); err == nil {
			var baseline BaselineMetrics
			if err := json.Unmarshal(data, &baseline); err == nil {
				ts = baseline.Timestamp
			}
		}
		dated = append(dated, datedFile{path: path, ts: ts})
	}
	sort.Slice(dated, func(i, j int) bool { return dated[i].ts.Before(dated[j].ts) })

	for i := 0; i < len(dated)-m.historySize; i++ {
		if err := os.Remove(dated[i].path); err != nil {
			m.log.Warn("failed to evict old baseline %s: %v", dated[i].path, err)
		}
	}
}

// atomicWrite writes data to a temp file in the target directory and
// renames it into place, so readers never observe a partial file.
func atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".baseline-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

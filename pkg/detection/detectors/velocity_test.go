package detectors

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darrentmorgan/singura-sub007/pkg/config"
	"github.com/darrentmorgan/singura-sub007/pkg/detection"
)

func makeVelocityEvents(eventType string, count int, interval time.Duration) []detection.Event {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	events := make([]detection.Event, 0, count)
	for i := 0; i < count; i++ {
		events = append(events, detection.Event{
			EventID:   fmt.Sprintf("evt-%d", i),
			Platform:  detection.PlatformGoogle,
			Timestamp: base.Add(time.Duration(i) * interval),
			UserID:    "user-1",
			EventType: eventType,
		})
	}
	return events
}

func TestVelocityDetector_Metadata(t *testing.T) {
	detector := NewVelocityDetector(config.DefaultVelocityThresholds())

	assert.Equal(t, "velocity_detector", detector.GetName())
	assert.Equal(t, "1.0.0", detector.GetVersion())
	assert.True(t, detector.IsEnabled())
	assert.Equal(t, []detection.PatternType{detection.PatternVelocity}, detector.GetSupportedPatterns())
}

func TestVelocityDetector_FlagsSustainedFileCreation(t *testing.T) {
	detector := NewVelocityDetector(config.DefaultVelocityThresholds())

	// 50 files in 9.8s is just over the 5/s automation rate.
	events := makeVelocityEvents("file_create", 50, 200*time.Millisecond)
	findings, err := detector.Detect(context.Background(), events)
	require.NoError(t, err)
	require.Len(t, findings, 1)

	finding := findings[0]
	assert.Equal(t, detection.PatternVelocity, finding.PatternType)
	assert.Equal(t, detection.RiskHigh, finding.RiskLevel)
	assert.InDelta(t, 61.22, finding.Confidence, 0.1)
	assert.InDelta(t, 5.102, finding.Evidence.DataPoints["velocity"], 0.01)
	assert.Len(t, finding.Evidence.SupportingEventIDs, 50)
	assert.Equal(t, "user-1", finding.UserID)
}

func TestVelocityDetector_CriticalBurst(t *testing.T) {
	detector := NewVelocityDetector(config.DefaultVelocityThresholds())

	// 12 files in 1.1s is past the critical 10/s rate.
	events := makeVelocityEvents("file_create", 12, 100*time.Millisecond)
	findings, err := detector.Detect(context.Background(), events)
	require.NoError(t, err)
	require.Len(t, findings, 1)

	assert.Equal(t, detection.RiskCritical, findings[0].RiskLevel)
	assert.Equal(t, 100.0, findings[0].Confidence)
}

func TestVelocityDetector_HumanPaceNotFlagged(t *testing.T) {
	detector := NewVelocityDetector(config.DefaultVelocityThresholds())

	events := makeVelocityEvents("file_create", 3, 10*time.Second)
	findings, err := detector.Detect(context.Background(), events)
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestVelocityDetector_SingleEventNotFlagged(t *testing.T) {
	detector := NewVelocityDetector(config.DefaultVelocityThresholds())

	findings, err := detector.Detect(context.Background(), makeVelocityEvents("file_create", 1, 0))
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestVelocityDetector_SimultaneousEventsNotFlagged(t *testing.T) {
	detector := NewVelocityDetector(config.DefaultVelocityThresholds())

	// Identical timestamps give a zero span, which can never be scored.
	findings, err := detector.Detect(context.Background(), makeVelocityEvents("file_create", 5, 0))
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestVelocityDetector_PermissionChangeWeighted(t *testing.T) {
	detector := NewVelocityDetector(config.DefaultVelocityThresholds())

	// 6 permission changes over 2s: 3/s clears the 2/s ceiling, and the
	// permission_change weight lifts the anomaly score.
	events := makeVelocityEvents("permission_change", 6, 400*time.Millisecond)
	findings, err := detector.Detect(context.Background(), events)
	require.NoError(t, err)
	require.Len(t, findings, 1)

	// (3/5)*50 = 30, weighted by 1.2 = 36, confidence 43.2.
	assert.InDelta(t, 43.2, findings[0].Confidence, 0.1)
	assert.Equal(t, detection.RiskMedium, findings[0].RiskLevel)
}

func TestVelocityDetector_GroupsByEventType(t *testing.T) {
	detector := NewVelocityDetector(config.DefaultVelocityThresholds())

	fast := makeVelocityEvents("file_create", 20, 100*time.Millisecond)
	slow := makeVelocityEvents("email_send", 3, time.Minute)
	findings, err := detector.Detect(context.Background(), append(fast, slow...))
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "file_create", findings[0].Metadata["event_type"])
}

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

func makeDownloadEvent(id int, at time.Time, name string) detection.Event {
	return detection.Event{
		EventID:      fmt.Sprintf("dl-%d", id),
		Platform:     detection.PlatformGoogle,
		Timestamp:    at,
		UserID:       "user-1",
		EventType:    "file_download",
		ResourceType: "file",
		ActionDetails: detection.ActionDetails{
			Action:       "download",
			ResourceName: name,
		},
	}
}

func TestBatchDetector_Metadata(t *testing.T) {
	detector := NewBatchOperationDetector(config.DefaultBatchThresholds())

	assert.Equal(t, "batch_operation_detector", detector.GetName())
	assert.True(t, detector.IsEnabled())
	assert.Equal(t, []detection.PatternType{detection.PatternBatchOperation}, detector.GetSupportedPatterns())
}

func TestBatchDetector_SequencedDownloads(t *testing.T) {
	detector := NewBatchOperationDetector(config.DefaultBatchThresholds())
	base := time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC)

	events := []detection.Event{
		makeDownloadEvent(1, base, "report_001.pdf"),
		makeDownloadEvent(2, base.Add(time.Second), "report_002.pdf"),
		makeDownloadEvent(3, base.Add(2*time.Second), "report_003.pdf"),
	}

	findings, err := detector.Detect(context.Background(), events)
	require.NoError(t, err)
	require.Len(t, findings, 1)

	finding := findings[0]
	assert.Equal(t, detection.PatternBatchOperation, finding.PatternType)
	assert.Equal(t, detection.RiskLow, finding.RiskLevel)
	assert.Len(t, finding.Evidence.SupportingEventIDs, 3)
	// Four of five similarity checks pass (no shared permissions), so the
	// likelihood sits just under 0.96.
	assert.InDelta(t, 0.959, finding.Evidence.DataPoints["likelihood"], 0.005)
	assert.InDelta(t, 0.8, finding.Evidence.DataPoints["avg_similarity"], 0.001)
}

func TestBatchDetector_SharedPermissionsRaiseLikelihood(t *testing.T) {
	detector := NewBatchOperationDetector(config.DefaultBatchThresholds())
	base := time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC)

	var events []detection.Event
	for i := 1; i <= 3; i++ {
		event := makeDownloadEvent(i, base.Add(time.Duration(i)*time.Second), fmt.Sprintf("export_%03d.csv", i))
		event.ActionDetails.Metadata.Permissions = []string{"drive.readonly"}
		events = append(events, event)
	}

	findings, err := detector.Detect(context.Background(), events)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, 1.0, findings[0].Evidence.DataPoints["likelihood"])
	assert.Equal(t, 100.0, findings[0].Confidence)
}

func TestBatchDetector_DissimilarEventsNotFlagged(t *testing.T) {
	detector := NewBatchOperationDetector(config.DefaultBatchThresholds())
	base := time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC)

	events := []detection.Event{
		{EventID: "a", Timestamp: base, EventType: "file_create", ResourceType: "document",
			ActionDetails: detection.ActionDetails{Action: "create", ResourceName: "notes.txt"}},
		{EventID: "b", Timestamp: base.Add(time.Second), EventType: "email_send", ResourceType: "message",
			ActionDetails: detection.ActionDetails{Action: "send", ResourceName: "budget summary"}},
		{EventID: "c", Timestamp: base.Add(2 * time.Second), EventType: "permission_change", ResourceType: "folder",
			ActionDetails: detection.ActionDetails{Action: "share", ResourceName: "photos"}},
	}

	findings, err := detector.Detect(context.Background(), events)
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestBatchDetector_LargeBatchEscalatesRisk(t *testing.T) {
	detector := NewBatchOperationDetector(config.DefaultBatchThresholds())
	base := time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC)

	var events []detection.Event
	for i := 1; i <= 12; i++ {
		events = append(events, makeDownloadEvent(i, base.Add(time.Duration(i)*300*time.Millisecond),
			fmt.Sprintf("file_%03d.pdf", i)))
	}

	findings, err := detector.Detect(context.Background(), events)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, detection.RiskHigh, findings[0].RiskLevel)
	assert.Equal(t, 12.0, findings[0].Evidence.DataPoints["batch_size"])
}

func TestBatchDetector_InterleavedBatches(t *testing.T) {
	detector := NewBatchOperationDetector(config.DefaultBatchThresholds())
	base := time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC)

	makeExportEvent := func(id int, at time.Time, name string) detection.Event {
		event := makeDownloadEvent(id, at, name)
		event.EventID = fmt.Sprintf("ex-%d", id)
		event.EventType = "file_export"
		event.ResourceType = "dataset"
		event.ActionDetails.Action = "export"
		return event
	}

	// Two independent batch operations alternating in time. Events the
	// first batch skips over must still anchor the second one.
	events := []detection.Event{
		makeDownloadEvent(1, base, "report_001.pdf"),
		makeExportEvent(1, base.Add(500*time.Millisecond), "data_001.csv"),
		makeDownloadEvent(2, base.Add(time.Second), "report_002.pdf"),
		makeExportEvent(2, base.Add(1500*time.Millisecond), "data_002.csv"),
		makeDownloadEvent(3, base.Add(2*time.Second), "report_003.pdf"),
		makeExportEvent(3, base.Add(2500*time.Millisecond), "data_003.csv"),
	}

	findings, err := detector.Detect(context.Background(), events)
	require.NoError(t, err)
	require.Len(t, findings, 2)

	assert.ElementsMatch(t, []string{"dl-1", "dl-2", "dl-3"}, findings[0].Evidence.SupportingEventIDs)
	assert.ElementsMatch(t, []string{"ex-1", "ex-2", "ex-3"}, findings[1].Evidence.SupportingEventIDs)
	for _, finding := range findings {
		assert.InDelta(t, 0.8, finding.Evidence.DataPoints["avg_similarity"], 0.001)
	}
}

func TestBatchDetector_BelowMinBatchSize(t *testing.T) {
	detector := NewBatchOperationDetector(config.DefaultBatchThresholds())
	base := time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC)

	events := []detection.Event{
		makeDownloadEvent(1, base, "report_001.pdf"),
		makeDownloadEvent(2, base.Add(time.Second), "report_002.pdf"),
	}

	findings, err := detector.Detect(context.Background(), events)
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestNamesSequential(t *testing.T) {
	assert.True(t, namesSequential("report_001.pdf", "report_002.pdf"))
	assert.True(t, namesSequential("report_002.pdf", "report_001.pdf"))
	assert.True(t, namesSequential("report_001.pdf", "report_003.pdf")) // one gap tolerated
	assert.False(t, namesSequential("report_001.pdf", "report_005.pdf"))
	assert.False(t, namesSequential("report_001.pdf", "invoice_002.pdf"))
	assert.False(t, namesSequential("report_001.pdf", "report_002.csv"))
	assert.False(t, namesSequential("notes.txt", "report_001.pdf"))
}

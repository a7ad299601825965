package detection

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Platform identifies the SaaS platform an event originated from
type Platform string

const (
	PlatformGoogle    Platform = "google"
	PlatformSlack     Platform = "slack"
	PlatformMicrosoft Platform = "microsoft"
	PlatformJira      Platform = "jira"
	PlatformNotion    Platform = "notion"
)

// RiskLevel represents the severity of a detected automation pattern
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Risk-level cutoffs on the 0-100 confidence scale. Detectors, the
// correlation engine, and chain risk assessment all bucket with these
// same boundaries.
const (
	RiskCutoffMedium   = 30.0
	RiskCutoffHigh     = 60.0
	RiskCutoffCritical = 90.0
)

// RiskLevelForScore buckets a 0-100 score into a risk level.
func RiskLevelForScore(score float64) RiskLevel {
	switch {
	case score >= RiskCutoffCritical:
		return RiskCritical
	case score >= RiskCutoffHigh:
		return RiskHigh
	case score >= RiskCutoffMedium:
		return RiskMedium
	default:
		return RiskLow
	}
}

// PatternType identifies the automation signature a detector looks for
type PatternType string

const (
	PatternVelocity             PatternType = "velocity"
	PatternBatchOperation       PatternType = "batch_operation"
	PatternPermissionEscalation PatternType = "permission_escalation"
	PatternAIIntegration        PatternType = "ai_integration"
	PatternOffHours             PatternType = "off_hours"
)

// Event is a normalized platform activity record. Events are produced by
// external platform connectors and are read-only to everything in this
// package.
type Event struct {
	EventID      string        `json:"event_id"`
	Platform     Platform      `json:"platform"`
	Timestamp    time.Time     `json:"timestamp"`
	UserID       string        `json:"user_id"`
	UserEmail    string        `json:"user_email"`
	EventType    string        `json:"event_type"`
	ResourceID   string        `json:"resource_id"`
	ResourceType string        `json:"resource_type"`
	ActionDetails ActionDetails `json:"action_details"`

	CorrelationMetadata CorrelationMetadata `json:"correlation_metadata"`
}

// ActionDetails carries the action-specific payload of an event.
type ActionDetails struct {
	Action       string         `json:"action"`
	ResourceName string         `json:"resource_name"`
	Metadata     ActionMetadata `json:"metadata"`
}

// ActionMetadata is the schema'd replacement for the free-form metadata
// bag the connectors emit. Known keys are typed fields; anything else
// lands in Extra for forward compatibility.
type ActionMetadata struct {
	Permissions []string `json:"permissions,omitempty"`
	Scopes      []string `json:"scopes,omitempty"`
	ClientID    string   `json:"client_id,omitempty"`
	AppName     string   `json:"app_name,omitempty"`
	IPAddress   string   `json:"ip_address,omitempty"`
	UserAgent   string   `json:"user_agent,omitempty"`

	Extra map[string]string `json:"extra,omitempty"`
}

// CorrelationMetadata carries hints used by the correlation engine.
type CorrelationMetadata struct {
	PotentialTrigger     bool     `json:"potential_trigger"`
	PotentialAction      bool     `json:"potential_action"`
	AutomationIndicators []string `json:"automation_indicators,omitempty"`
}

// Evidence backs a finding with the events and data points that produced it.
type Evidence struct {
	Description        string             `json:"description"`
	DataPoints         map[string]float64 `json:"data_points,omitempty"`
	SupportingEventIDs []string           `json:"supporting_event_ids"`
}

// Finding is a single detector's scored assertion that an event subset
// looks like automation rather than human activity. Findings are
// immutable once returned; persistence is the caller's concern.
type Finding struct {
	PatternID   uuid.UUID         `json:"pattern_id"`
	PatternType PatternType       `json:"pattern_type"`
	DetectedAt  time.Time         `json:"detected_at"`
	Confidence  float64           `json:"confidence"` // 0-100
	RiskLevel   RiskLevel         `json:"risk_level"`
	Platform    Platform          `json:"platform"`
	UserID      string            `json:"user_id,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Evidence    Evidence          `json:"evidence"`

	DetectorName    string `json:"detector_name"`
	DetectorVersion string `json:"detector_version"`
}

// Detector is the contract every automation detector implements.
// Implementations are stateless per call: the same event slice and
// configuration always produce the same findings.
type Detector interface {
	// GetName returns the detector's registry name
	GetName() string

	// GetVersion returns the detector's version
	GetVersion() string

	// GetSupportedPatterns returns the pattern types this detector emits
	GetSupportedPatterns() []PatternType

	// Detect analyzes the event slice and returns zero or more findings
	Detect(ctx context.Context, events []Event) ([]Finding, error)

	// IsEnabled reports whether the detector participates in analysis runs
	IsEnabled() bool
}

// AnalysisResult is what a full detection run over one event slice returns.
type AnalysisResult struct {
	RequestID       uuid.UUID                  `json:"request_id"`
	Findings        []Finding                  `json:"findings"`
	ProcessedAt     time.Time                  `json:"processed_at"`
	ProcessingTime  time.Duration              `json:"processing_time"`
	DetectorResults map[string]*DetectorResult `json:"detector_results"`
	EventCount      int                        `json:"event_count"`
}

// DetectorResult captures one detector's contribution to an analysis run.
type DetectorResult struct {
	DetectorName    string        `json:"detector_name"`
	DetectorVersion string        `json:"detector_version"`
	Findings        []Finding     `json:"findings"`
	ProcessingTime  time.Duration `json:"processing_time"`
	Error           string        `json:"error,omitempty"`
	Enabled         bool          `json:"enabled"`
}

// SortEventsByTime returns a copy of events ordered by ascending timestamp.
// Detectors that need time order work on the copy so the caller's slice
// stays untouched.
func SortEventsByTime(events []Event) []Event {
	sorted := make([]Event, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return sorted
}

package correlation

import (
	"time"

	"github.com/google/uuid"

	"github.com/darrentmorgan/singura-sub007/pkg/detection"
)

// AutomationChain is a correlated set of events spanning at least two
// platforms believed to represent one automated workflow. Its Platforms
// list is always the unique platform set of the trigger plus actions.
type AutomationChain struct {
	ChainID               uuid.UUID            `json:"chain_id"`
	Platforms             []detection.Platform `json:"platforms"`
	TriggerEvent          detection.Event      `json:"trigger_event"`
	ActionEvents          []detection.Event    `json:"action_events"`
	CorrelationConfidence float64              `json:"correlation_confidence"` // 0-100
	RiskLevel             detection.RiskLevel  `json:"risk_level"`
	Workflow              Workflow             `json:"workflow"`
	RiskAssessment        RiskAssessment       `json:"risk_assessment"`
	DetectedAt            time.Time            `json:"detected_at"`
}

// Workflow describes the reconstructed automation pipeline.
type Workflow struct {
	Stages   []WorkflowStage `json:"stages"`
	DataFlow string          `json:"data_flow"`
}

// WorkflowStage is one step of the reconstructed workflow.
type WorkflowStage struct {
	Sequence  int                `json:"sequence"`
	Platform  detection.Platform `json:"platform"`
	EventType string             `json:"event_type"`
	Role      string             `json:"role"` // trigger or action
	Timestamp time.Time          `json:"timestamp"`
}

// RiskAssessment breaks a chain's risk into its weighted factors, each
// on the 0-100 scale.
type RiskAssessment struct {
	DataExposure          float64 `json:"data_exposure"`
	PermissionEscalation  float64 `json:"permission_escalation"`
	ComplianceImpact      float64 `json:"compliance_impact"`
	OperationalDependency float64 `json:"operational_dependency"`
	OverallScore          float64 `json:"overall_score"`
}

// TemporalPair is the pairwise temporal-correlation result for two events.
type TemporalPair struct {
	FirstEventID         string        `json:"first_event_id"`
	SecondEventID        string        `json:"second_event_id"`
	Gap                  time.Duration `json:"gap"`
	Simultaneous         bool          `json:"simultaneous"` // gap < 1s
	AutomationLikelihood float64       `json:"automation_likelihood"` // 0-100
	HumanLikelihood      float64       `json:"human_likelihood"`      // 0-100, sums to 100 with automation
}

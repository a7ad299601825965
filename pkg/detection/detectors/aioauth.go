package detectors

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/darrentmorgan/singura-sub007/pkg/detection"
)

// AIOAuthDetector recognizes OAuth and login activity against known
// AI-platform client identities: a ChatGPT integration authorizing Drive
// scopes, a Claude connector granted mailbox access, and the like.
type AIOAuthDetector struct {
	name      string
	version   string
	enabled   bool
	platforms []AIPlatformSignature
}

// AuthEvent is a raw authentication event as platform audit logs deliver
// it, before normalization into the Event model.
type AuthEvent struct {
	Name       string          `json:"name"`
	Timestamp  time.Time       `json:"timestamp"`
	Platform   detection.Platform `json:"platform"`
	UserID     string          `json:"user_id"`
	UserEmail  string          `json:"user_email"`
	Parameters []AuthParameter `json:"parameters"`
}

// AuthParameter is one typed key/value from an audit event. Exactly one
// of the value fields is set, per the upstream audit schemas.
type AuthParameter struct {
	Name       string   `json:"name"`
	Value      string   `json:"value,omitempty"`
	MultiValue []string `json:"multi_value,omitempty"`
	IntValue   *int64   `json:"int_value,omitempty"`
	BoolValue  *bool    `json:"bool_value,omitempty"`
}

// AIPlatformSignature identifies an AI platform by substrings of its
// application name or OAuth client ID. The registry is data-driven so new
// platforms are additive.
type AIPlatformSignature struct {
	Platform         string
	NamePatterns     []string
	ClientIDPatterns []string
	BaselineRisk     detection.RiskLevel
}

// RiskIndicator is one scope-derived concern attached to a finding.
type RiskIndicator struct {
	Type           string   `json:"type"`
	Severity       string   `json:"severity"`
	Description    string   `json:"description"`
	ComplianceTags []string `json:"compliance_tags,omitempty"`
}

// ActivityType classifies what the auth event represents for the
// correlation engine.
type ActivityType string

const (
	ActivityIntegrationCreated ActivityType = "integration_created"
	ActivityLogin              ActivityType = "login"
	ActivityLogout             ActivityType = "logout"
	ActivityAPIKeyDeleted      ActivityType = "api_key_deleted"
)

// authEventVocabulary: an event participates in AI-OAuth analysis when its
// name contains one of these, case-insensitive.
var authEventVocabulary = []string{"oauth", "authorize", "login", "logout", "token", "revoke"}

// sensitiveScopePatterns mark scopes that reach user data or admin surface.
var sensitiveScopePatterns = []string{"drive", "gmail", "calendar", "contacts", "admin", "directory"}

// DefaultAIPlatformSignatures is the stock AI-platform registry.
func DefaultAIPlatformSignatures() []AIPlatformSignature {
	return []AIPlatformSignature{
		{
			Platform:         "chatgpt",
			NamePatterns:     []string{"chatgpt", "openai"},
			ClientIDPatterns: []string{"openai.com", "chatgpt"},
			BaselineRisk:     detection.RiskMedium,
		},
		{
			Platform:         "claude",
			NamePatterns:     []string{"claude", "anthropic"},
			ClientIDPatterns: []string{"anthropic.com", "claude"},
			BaselineRisk:     detection.RiskMedium,
		},
		{
			Platform:         "gemini",
			NamePatterns:     []string{"gemini", "bard"},
			ClientIDPatterns: []string{"generativelanguage", "gemini"},
			BaselineRisk:     detection.RiskLow,
		},
		{
			Platform:         "perplexity",
			NamePatterns:     []string{"perplexity"},
			ClientIDPatterns: []string{"perplexity.ai"},
			BaselineRisk:     detection.RiskLow,
		},
		{
			Platform:         "copilot",
			NamePatterns:     []string{"copilot", "github copilot"},
			ClientIDPatterns: []string{"githubcopilot", "copilot"},
			BaselineRisk:     detection.RiskLow,
		},
	}
}

// NewAIOAuthDetector creates an AI-OAuth login detector with the stock
// platform registry.
func NewAIOAuthDetector() *AIOAuthDetector {
	return NewAIOAuthDetectorWithRegistry(DefaultAIPlatformSignatures())
}

// NewAIOAuthDetectorWithRegistry creates a detector with a custom registry.
func NewAIOAuthDetectorWithRegistry(platforms []AIPlatformSignature) *AIOAuthDetector {
	return &AIOAuthDetector{
		name:      "ai_oauth_detector",
		version:   "1.0.0",
		enabled:   true,
		platforms: platforms,
	}
}

func (d *AIOAuthDetector) GetName() string    { return d.name }
func (d *AIOAuthDetector) GetVersion() string { return d.version }
func (d *AIOAuthDetector) IsEnabled() bool    { return d.enabled }

func (d *AIOAuthDetector) GetSupportedPatterns() []detection.PatternType {
	return []detection.PatternType{detection.PatternAIIntegration}
}

// Detect adapts the raw-event contract to the detector registry: every
// normalized event that looks like an auth event is evaluated individually.
func (d *AIOAuthDetector) Detect(ctx context.Context, events []detection.Event) ([]detection.Finding, error) {
	var findings []detection.Finding
	for _, event := range events {
		if !isAuthEventName(event.EventType) {
			continue
		}
		auth := AuthEvent{
			Name:      event.EventType,
			Timestamp: event.Timestamp,
			Platform:  event.Platform,
			UserID:    event.UserID,
			UserEmail: event.UserEmail,
			Parameters: []AuthParameter{
				{Name: "app_name", Value: event.ActionDetails.Metadata.AppName},
				{Name: "client_id", Value: event.ActionDetails.Metadata.ClientID},
				{Name: "oauth_scopes", MultiValue: event.ActionDetails.Metadata.Scopes},
			},
		}
		finding := d.DetectAuthEvent(auth)
		if finding != nil {
			finding.Evidence.SupportingEventIDs = []string{event.EventID}
			findings = append(findings, *finding)
		}
	}
	return findings, nil
}

// DetectAuthEvent evaluates a single raw auth event. It returns nil when
// the event is not an auth event or does not match any AI platform.
func (d *AIOAuthDetector) DetectAuthEvent(event AuthEvent) *detection.Finding {
	if !isAuthEventName(event.Name) {
		return nil
	}

	appName := extractParameter(event.Parameters, "app_name")
	clientID := extractParameter(event.Parameters, "client_id")
	scopes := extractMultiParameter(event.Parameters, "oauth_scopes")

	signature := d.matchPlatform(appName, clientID)
	if signature == nil {
		return nil
	}

	indicators := deriveRiskIndicators(scopes, signature)
	confidence, risk := scoreIndicators(indicators, signature)

	metadata := map[string]string{
		"ai_platform": signature.Platform,
		"activity":    string(classifyActivity(event.Name)),
	}
	if appName != "" {
		metadata["app_name"] = appName
	}
	if clientID != "" {
		metadata["client_id"] = clientID
	}
	for i, indicator := range indicators {
		metadata[fmt.Sprintf("indicator_%d", i)] = indicator.Type
	}

	return &detection.Finding{
		PatternID:   uuid.New(),
		PatternType: detection.PatternAIIntegration,
		DetectedAt:  time.Now().UTC(),
		Confidence:  confidence,
		RiskLevel:   risk,
		Platform:    event.Platform,
		UserID:      event.UserID,
		Metadata:    metadata,
		Evidence: detection.Evidence{
			Description: fmt.Sprintf("%s authentication by %s (%d scopes, %d risk indicators)",
				signature.Platform, event.UserEmail, len(scopes), len(indicators)),
			DataPoints: map[string]float64{
				"scope_count":     float64(len(scopes)),
				"indicator_count": float64(len(indicators)),
			},
		},
		DetectorName:    d.name,
		DetectorVersion: d.version,
	}
}

func isAuthEventName(name string) bool {
	lower := strings.ToLower(name)
	for _, word := range authEventVocabulary {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

// classifyActivity maps an auth event name onto the activity types the
// correlation engine understands.
func classifyActivity(name string) ActivityType {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "revoke"):
		return ActivityAPIKeyDeleted
	case strings.Contains(lower, "logout"):
		return ActivityLogout
	case strings.Contains(lower, "oauth"), strings.Contains(lower, "authorize"), strings.Contains(lower, "token"):
		return ActivityIntegrationCreated
	default:
		return ActivityLogin
	}
}

func (d *AIOAuthDetector) matchPlatform(appName, clientID string) *AIPlatformSignature {
	lowerName := strings.ToLower(appName)
	lowerClient := strings.ToLower(clientID)

	for i := range d.platforms {
		signature := &d.platforms[i]
		for _, pattern := range signature.NamePatterns {
			if lowerName != "" && strings.Contains(lowerName, pattern) {
				return signature
			}
		}
		for _, pattern := range signature.ClientIDPatterns {
			if lowerClient != "" && strings.Contains(lowerClient, pattern) {
				return signature
			}
		}
	}
	return nil
}

// deriveRiskIndicators inspects the requested OAuth scopes. More than
// five scopes is an excessive grant; any sensitive-data scope is an
// unauthorized-access concern; a medium-baseline platform with no other
// indicator still records a policy violation.
func deriveRiskIndicators(scopes []string, signature *AIPlatformSignature) []RiskIndicator {
	var indicators []RiskIndicator

	if len(scopes) > 5 {
		indicators = append(indicators, RiskIndicator{
			Type:        "excessive_scope",
			Severity:    "medium",
			Description: fmt.Sprintf("%d OAuth scopes requested", len(scopes)),
		})
	}

	var sensitive []string
	for _, scope := range scopes {
		lower := strings.ToLower(scope)
		for _, pattern := range sensitiveScopePatterns {
			if strings.Contains(lower, pattern) {
				sensitive = append(sensitive, scope)
				break
			}
		}
	}
	if len(sensitive) > 0 {
		indicators = append(indicators, RiskIndicator{
			Type:           "unauthorized_access",
			Severity:       "high",
			Description:    fmt.Sprintf("sensitive-data scopes granted: %s", strings.Join(sensitive, ", ")),
			ComplianceTags: []string{"GDPR", "SOC2"},
		})
	}

	if len(indicators) == 0 && signature.BaselineRisk == detection.RiskMedium {
		indicators = append(indicators, RiskIndicator{
			Type:        "policy_violation",
			Severity:    "medium",
			Description: fmt.Sprintf("unapproved AI platform integration: %s", signature.Platform),
		})
	}

	return indicators
}

// scoreIndicators turns indicators into a confidence score and risk level
// on the shared 0-100 scale.
func scoreIndicators(indicators []RiskIndicator, signature *AIPlatformSignature) (float64, detection.RiskLevel) {
	score := 40.0
	if signature.BaselineRisk == detection.RiskMedium {
		score = 55
	}

	for _, indicator := range indicators {
		switch indicator.Severity {
		case "high":
			score += 30
		case "medium":
			score += 15
		default:
			score += 5
		}
	}
	if score > 100 {
		score = 100
	}

	return score, detection.RiskLevelForScore(score)
}

func extractParameter(parameters []AuthParameter, name string) string {
	for _, parameter := range parameters {
		if parameter.Name != name {
			continue
		}
		if parameter.Value != "" {
			return parameter.Value
		}
		if parameter.IntValue != nil {
			return fmt.Sprintf("%d", *parameter.IntValue)
		}
		if parameter.BoolValue != nil {
			return fmt.Sprintf("%t", *parameter.BoolValue)
		}
	}
	return ""
}

func extractMultiParameter(parameters []AuthParameter, name string) []string {
	for _, parameter := range parameters {
		if parameter.Name == name {
			if len(parameter.MultiValue) > 0 {
				return parameter.MultiValue
			}
			if parameter.Value != "" {
				return strings.Split(parameter.Value, " ")
			}
		}
	}
	return nil
}

package detectors

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darrentmorgan/singura-sub007/pkg/detection"
)

func TestAIOAuthDetector_ChatGPTSensitiveScopes(t *testing.T) {
	detector := NewAIOAuthDetector()

	event := detection.Event{
		EventID:   "auth-1",
		Platform:  detection.PlatformGoogle,
		Timestamp: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		UserID:    "user-1",
		UserEmail: "user@example.com",
		EventType: "oauth_authorization",
		ActionDetails: detection.ActionDetails{
			Metadata: detection.ActionMetadata{
				AppName: "ChatGPT Connector",
				Scopes:  []string{"drive.readonly", "gmail.read", "calendar.events"},
			},
		},
	}

	findings, err := detector.Detect(context.Background(), []detection.Event{event})
	require.NoError(t, err)
	require.Len(t, findings, 1)

	finding := findings[0]
	assert.Equal(t, detection.PatternAIIntegration, finding.PatternType)
	assert.Equal(t, "chatgpt", finding.Metadata["ai_platform"])
	assert.Equal(t, string(ActivityIntegrationCreated), finding.Metadata["activity"])
	// Medium baseline (55) plus one high-severity indicator (30).
	assert.Equal(t, 85.0, finding.Confidence)
	assert.Equal(t, detection.RiskHigh, finding.RiskLevel)
	assert.Equal(t, []string{"auth-1"}, finding.Evidence.SupportingEventIDs)
}

func TestAIOAuthDetector_MatchByClientID(t *testing.T) {
	detector := NewAIOAuthDetector()

	finding := detector.DetectAuthEvent(AuthEvent{
		Name:      "token_issued",
		Timestamp: time.Now(),
		Platform:  detection.PlatformMicrosoft,
		UserID:    "user-2",
		Parameters: []AuthParameter{
			{Name: "client_id", Value: "app.anthropic.com/client-xyz"},
		},
	})
	require.NotNil(t, finding)
	assert.Equal(t, "claude", finding.Metadata["ai_platform"])
	// No scopes on a medium-baseline platform is still a policy violation.
	assert.Equal(t, 70.0, finding.Confidence)
	assert.Equal(t, detection.RiskHigh, finding.RiskLevel)
}

func TestAIOAuthDetector_LowBaselinePlatform(t *testing.T) {
	detector := NewAIOAuthDetector()

	finding := detector.DetectAuthEvent(AuthEvent{
		Name:     "user_login",
		Platform: detection.PlatformGoogle,
		UserID:   "user-3",
		Parameters: []AuthParameter{
			{Name: "app_name", Value: "Gemini for Workspace"},
		},
	})
	require.NotNil(t, finding)
	assert.Equal(t, "gemini", finding.Metadata["ai_platform"])
	assert.Equal(t, 40.0, finding.Confidence)
	assert.Equal(t, detection.RiskMedium, finding.RiskLevel)
	assert.Equal(t, string(ActivityLogin), finding.Metadata["activity"])
}

func TestAIOAuthDetector_ExcessiveScopes(t *testing.T) {
	detector := NewAIOAuthDetector()

	finding := detector.DetectAuthEvent(AuthEvent{
		Name:     "oauth_grant",
		Platform: detection.PlatformGoogle,
		UserID:   "user-4",
		Parameters: []AuthParameter{
			{Name: "app_name", Value: "Claude Integration"},
			{Name: "oauth_scopes", MultiValue: []string{"a", "b", "c", "d", "e", "f"}},
		},
	})
	require.NotNil(t, finding)
	// Medium baseline (55) plus one medium excessive-scope indicator (15).
	assert.Equal(t, 70.0, finding.Confidence)
	assert.Equal(t, "excessive_scope", finding.Metadata["indicator_0"])
}

func TestAIOAuthDetector_UnknownAppIgnored(t *testing.T) {
	detector := NewAIOAuthDetector()

	finding := detector.DetectAuthEvent(AuthEvent{
		Name:     "oauth_authorization",
		Platform: detection.PlatformGoogle,
		Parameters: []AuthParameter{
			{Name: "app_name", Value: "Internal Expense Tool"},
		},
	})
	assert.Nil(t, finding)
}

func TestAIOAuthDetector_NonAuthEventIgnored(t *testing.T) {
	detector := NewAIOAuthDetector()

	finding := detector.DetectAuthEvent(AuthEvent{
		Name:     "file_create",
		Platform: detection.PlatformGoogle,
		Parameters: []AuthParameter{
			{Name: "app_name", Value: "ChatGPT"},
		},
	})
	assert.Nil(t, finding)
}

func TestClassifyActivity(t *testing.T) {
	assert.Equal(t, ActivityAPIKeyDeleted, classifyActivity("api_token_revoke"))
	assert.Equal(t, ActivityLogout, classifyActivity("user_logout"))
	assert.Equal(t, ActivityIntegrationCreated, classifyActivity("oauth_authorization"))
	assert.Equal(t, ActivityIntegrationCreated, classifyActivity("token_issued"))
	assert.Equal(t, ActivityLogin, classifyActivity("user_login"))
}

func TestAIOAuthDetector_CustomRegistry(t *testing.T) {
	detector := NewAIOAuthDetectorWithRegistry([]AIPlatformSignature{
		{
			Platform:     "internal-llm",
			NamePatterns: []string{"acme-llm"},
			BaselineRisk: detection.RiskLow,
		},
	})

	finding := detector.DetectAuthEvent(AuthEvent{
		Name:     "login",
		Platform: detection.PlatformSlack,
		Parameters: []AuthParameter{
			{Name: "app_name", Value: "acme-llm assistant"},
		},
	})
	require.NotNil(t, finding)
	assert.Equal(t, "internal-llm", finding.Metadata["ai_platform"])

	// The stock platforms are gone from the custom registry.
	assert.Nil(t, detector.DetectAuthEvent(AuthEvent{
		Name:       "login",
		Parameters: []AuthParameter{{Name: "app_name", Value: "ChatGPT"}},
	}))
}

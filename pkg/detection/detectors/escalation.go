package detectors

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/darrentmorgan/singura-sub007/pkg/config"
	"github.com/darrentmorgan/singura-sub007/pkg/detection"
)

// PermissionEscalationDetector flags users whose privilege level climbs
// abnormally fast within the analysis window. Permission strings are
// mapped onto an ordinal scale and each user's chronological permission
// changes are walked against a running maximum.
type PermissionEscalationDetector struct {
	name       string
	version    string
	enabled    bool
	thresholds config.EscalationThresholds
}

// permissionLevel entry: synonyms map onto one ordinal level. Exact match
// first, substring fallback, unknown strings default to 0.
type permissionLevel struct {
	level    int
	synonyms []string
}

var permissionLevels = []permissionLevel{
	{level: 0, synonyms: []string{"read", "reader", "viewer", "view"}},
	{level: 1, synonyms: []string{"comment", "commenter"}},
	{level: 2, synonyms: []string{"write", "writer", "editor", "edit", "contributor"}},
	{level: 3, synonyms: []string{"admin", "administrator", "manage"}},
	{level: 4, synonyms: []string{"owner", "full_control", "superadmin"}},
}

// PermissionLevel maps a free-text permission string onto the ordinal
// scale. Synonyms are matched exactly first, then by substring.
func PermissionLevel(permission string) int {
	normalized := strings.ToLower(strings.TrimSpace(permission))
	for _, entry := range permissionLevels {
		for _, synonym := range entry.synonyms {
			if normalized == synonym {
				return entry.level
			}
		}
	}
	for _, entry := range permissionLevels {
		for _, synonym := range entry.synonyms {
			if strings.Contains(normalized, synonym) {
				return entry.level
			}
		}
	}
	return 0
}

// NewPermissionEscalationDetector creates a permission-escalation detector.
func NewPermissionEscalationDetector(thresholds config.EscalationThresholds) *PermissionEscalationDetector {
	return &PermissionEscalationDetector{
		name:       "permission_escalation_detector",
		version:    "1.0.0",
		enabled:    true,
		thresholds: thresholds,
	}
}

func (d *PermissionEscalationDetector) GetName() string    { return d.name }
func (d *PermissionEscalationDetector) GetVersion() string { return d.version }
func (d *PermissionEscalationDetector) IsEnabled() bool    { return d.enabled }

func (d *PermissionEscalationDetector) GetSupportedPatterns() []detection.PatternType {
	return []detection.PatternType{detection.PatternPermissionEscalation}
}

// escalationStats captures one user's walk through their permission events.
type escalationStats struct {
	events          []detection.Event
	escalationCount int
	maxLevelJump    int
	velocityPerDay  float64
	highestLevel    int
}

// Detect walks each user's permission-change events within the configured
// window and flags suspicious escalation patterns.
func (d *PermissionEscalationDetector) Detect(ctx context.Context, events []detection.Event) ([]detection.Finding, error) {
	window := time.Duration(d.thresholds.TimeWindowDays) * 24 * time.Hour

	byUser := make(map[string][]detection.Event)
	var latest time.Time
	for _, event := range events {
		if !isPermissionEvent(event) {
			continue
		}
		byUser[event.UserID] = append(byUser[event.UserID], event)
		if event.Timestamp.After(latest) {
			latest = event.Timestamp
		}
	}

	cutoff := latest.Add(-window)

	var findings []detection.Finding
	for userID, userEvents := range byUser {
		inWindow := make([]detection.Event, 0, len(userEvents))
		for _, event := range userEvents {
			if !event.Timestamp.Before(cutoff) {
				inWindow = append(inWindow, event)
			}
		}
		if len(inWindow) < 2 {
			continue
		}

		stats := d.analyzeUser(inWindow)

		// The critical-jump bypass lets a 2-event pattern through when a
		// single adjacent jump exceeds the configured maximum.
		criticalJump := stats.maxLevelJump > d.thresholds.MaxLevelJump
		if len(inWindow) < d.thresholds.MinEvents && !criticalJump {
			continue
		}
		if !d.isSuspicious(stats) {
			continue
		}

		findings = append(findings, d.buildFinding(userID, stats))
	}

	return findings, nil
}

func isPermissionEvent(event detection.Event) bool {
	eventType := strings.ToLower(event.EventType)
	return strings.Contains(eventType, "permission") || strings.Contains(eventType, "role") ||
		strings.Contains(eventType, "acl")
}

// analyzeUser walks the user's events chronologically tracking a running
// maximum level; any event above the running max is an escalation step.
func (d *PermissionEscalationDetector) analyzeUser(events []detection.Event) escalationStats {
	sorted := detection.SortEventsByTime(events)

	stats := escalationStats{events: sorted}
	runningMax := eventLevel(sorted[0])
	stats.highestLevel = runningMax
	previousLevel := runningMax

	for _, event := range sorted[1:] {
		level := eventLevel(event)
		if level > runningMax {
			stats.escalationCount++
			runningMax = level
		}
		if jump := level - previousLevel; jump > stats.maxLevelJump {
			stats.maxLevelJump = jump
		}
		previousLevel = level
		if level > stats.highestLevel {
			stats.highestLevel = level
		}
	}

	span := sorted[len(sorted)-1].Timestamp.Sub(sorted[0].Timestamp)
	days := span.Hours() / 24
	if days < 1 {
		days = 1
	}
	stats.velocityPerDay = float64(stats.escalationCount) / days

	return stats
}

func (d *PermissionEscalationDetector) isSuspicious(stats escalationStats) bool {
	return stats.escalationCount >= d.thresholds.MaxEscalationsPerMonth ||
		stats.maxLevelJump >= d.thresholds.MaxLevelJump ||
		stats.velocityPerDay >= d.thresholds.VelocityPerDay
}

// confidence is a weighted sum: escalation count 40%, level jump 40%
// (flat +10 when the jump clears 3 levels), velocity 20%, capped at 100.
func (d *PermissionEscalationDetector) confidence(stats escalationStats) float64 {
	countFactor := math.Min(float64(stats.escalationCount)/float64(2*d.thresholds.MaxEscalationsPerMonth), 1) * 40
	jumpFactor := math.Min(float64(stats.maxLevelJump)/4, 1) * 40
	if stats.maxLevelJump > 3 {
		jumpFactor += 10
	}
	velocityFactor := math.Min(stats.velocityPerDay/(2*d.thresholds.VelocityPerDay), 1) * 20

	return math.Min(countFactor+jumpFactor+velocityFactor, 100)
}

func (d *PermissionEscalationDetector) riskLevel(stats escalationStats) detection.RiskLevel {
	switch {
	case stats.maxLevelJump >= d.thresholds.MaxLevelJump:
		return detection.RiskCritical
	case stats.escalationCount >= 2*d.thresholds.MaxEscalationsPerMonth ||
		stats.velocityPerDay >= 2*d.thresholds.VelocityPerDay:
		return detection.RiskHigh
	case stats.escalationCount >= d.thresholds.MaxEscalationsPerMonth:
		return detection.RiskMedium
	default:
		return detection.RiskLow
	}
}

func (d *PermissionEscalationDetector) buildFinding(userID string, stats escalationStats) detection.Finding {
	eventIDs := make([]string, 0, len(stats.events))
	for _, event := range stats.events {
		eventIDs = append(eventIDs, event.EventID)
	}

	return detection.Finding{
		PatternID:   uuid.New(),
		PatternType: detection.PatternPermissionEscalation,
		DetectedAt:  time.Now().UTC(),
		Confidence:  d.confidence(stats),
		RiskLevel:   d.riskLevel(stats),
		Platform:    stats.events[0].Platform,
		UserID:      userID,
		Metadata: map[string]string{
			"highest_level": permissionLevelName(stats.highestLevel),
		},
		Evidence: detection.Evidence{
			Description: fmt.Sprintf("user %s escalated %d times (max jump %d levels, %.2f escalations/day)",
				userID, stats.escalationCount, stats.maxLevelJump, stats.velocityPerDay),
			DataPoints: map[string]float64{
				"escalation_count": float64(stats.escalationCount),
				"max_level_jump":   float64(stats.maxLevelJump),
				"velocity_per_day": stats.velocityPerDay,
				"highest_level":    float64(stats.highestLevel),
			},
			SupportingEventIDs: eventIDs,
		},
		DetectorName:    d.name,
		DetectorVersion: d.version,
	}
}

// eventLevel derives the permission level an event grants, taking the
// highest level among the permissions it carries.
func eventLevel(event detection.Event) int {
	level := 0
	for _, permission := range event.ActionDetails.Metadata.Permissions {
		if l := PermissionLevel(permission); l > level {
			level = l
		}
	}
	if len(event.ActionDetails.Metadata.Permissions) == 0 {
		level = PermissionLevel(event.ActionDetails.Action)
	}
	return level
}

func permissionLevelName(level int) string {
	switch level {
	case 4:
		return "owner"
	case 3:
		return "admin"
	case 2:
		return "write"
	case 1:
		return "comment"
	default:
		return "read"
	}
}

package correlation

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/darrentmorgan/singura-sub007/pkg/config"
	"github.com/darrentmorgan/singura-sub007/pkg/detection"
	"github.com/darrentmorgan/singura-sub007/pkg/logger"
)

// Candidate scoring weights. Platform diversity dominates: single-platform
// buckets never become chains at all.
const (
	weightPlatformDiversity = 0.30
	weightTemporalCluster   = 0.25
	weightUserConsistency   = 0.20
	weightIndicatorDensity  = 0.25
)

// strongIndicators is the canonical set of automation-indicator tags that
// count toward indicator density.
var strongIndicators = map[string]struct{}{
	"api_key":           {},
	"service_account":   {},
	"machine_generated": {},
	"webhook":           {},
	"bot":               {},
	"scripted":          {},
	"high_frequency":    {},
}

// Engine groups events from multiple platforms into automation chains
// using fixed time-window bucketing and multi-factor scoring. Calls are
// stateless apart from an LRU cache that suppresses re-emission of
// recently seen chains.
type Engine struct {
	config config.CorrelationConfig
	dedupe *lru.Cache[string, struct{}]
	log    *logger.Logger
	tracer trace.Tracer
}

// NewEngine creates a correlation engine.
func NewEngine(cfg config.CorrelationConfig, log *logger.Logger) (*Engine, error) {
	if cfg.Window <= 0 {
		return nil, fmt.Errorf("correlation window must be positive, got %v", cfg.Window)
	}
	if cfg.DedupeCacheSize <= 0 {
		cfg.DedupeCacheSize = 1024
	}
	if log == nil {
		log = logger.NewDefaultLogger("correlation", "")
	}

	dedupe, err := lru.New[string, struct{}](cfg.DedupeCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create dedupe cache: %w", err)
	}

	return &Engine{
		config: cfg,
		dedupe: dedupe,
		log:    log,
		tracer: otel.Tracer("correlation-engine"),
	}, nil
}

// Correlate partitions events into fixed time-window buckets and returns
// the automation chains whose correlation confidence clears the configured
// threshold. Filtering happens after chain construction so every candidate
// is fully scored.
func (e *Engine) Correlate(ctx context.Context, events []detection.Event) ([]AutomationChain, error) {
	_, span := e.tracer.Start(ctx, "correlation_engine.correlate")
	defer span.End()

	if len(events) == 0 {
		return nil, nil
	}

	buckets := e.bucketize(events)

	var chains []AutomationChain
	for _, bucket := range buckets {
		platforms := uniquePlatforms(bucket)
		if len(platforms) < 2 {
			continue
		}

		chain := e.buildChain(bucket, platforms)
		if chain.CorrelationConfidence < e.config.ConfidenceThreshold*100 {
			continue
		}

		key := chainKey(chain)
		if _, seen := e.dedupe.Get(key); seen {
			continue
		}
		e.dedupe.Add(key, struct{}{})

		chains = append(chains, chain)
	}

	span.SetAttributes(
		attribute.Int("event_count", len(events)),
		attribute.Int("chain_count", len(chains)),
	)
	return chains, nil
}

// bucketize partitions events by floor(timestamp / window), each bucket
// time-sorted.
func (e *Engine) bucketize(events []detection.Event) map[int64][]detection.Event {
	windowMs := e.config.Window.Milliseconds()
	buckets := make(map[int64][]detection.Event)
	for _, event := range events {
		bucket := event.Timestamp.UnixMilli() / windowMs
		buckets[bucket] = append(buckets[bucket], event)
	}
	for key := range buckets {
		buckets[key] = detection.SortEventsByTime(buckets[key])
	}
	return buckets
}

// buildChain assembles a chain from a time-sorted candidate bucket. The
// earliest event is the trigger; everything after it is an action.
func (e *Engine) buildChain(bucket []detection.Event, platforms []detection.Platform) AutomationChain {
	trigger := bucket[0]
	actions := bucket[1:]

	score := e.candidateScore(bucket, platforms)
	assessment := e.assessRisk(bucket)

	return AutomationChain{
		ChainID:               uuid.New(),
		Platforms:             platforms,
		TriggerEvent:          trigger,
		ActionEvents:          actions,
		CorrelationConfidence: score * 100,
		RiskLevel:             detection.RiskLevelForScore(assessment.OverallScore),
		Workflow:              buildWorkflow(bucket),
		RiskAssessment:        assessment,
		DetectedAt:            time.Now().UTC(),
	}
}

// candidateScore is the weighted sum of four normalized factors.
func (e *Engine) candidateScore(bucket []detection.Event, platforms []detection.Platform) float64 {
	diversity := math.Min(float64(len(platforms))/4, 1)

	span := bucket[len(bucket)-1].Timestamp.Sub(bucket[0].Timestamp)
	var temporal float64
	if span < time.Minute {
		temporal = 1
	} else {
		temporal = 1 - float64(span)/float64(e.config.Window)
		if temporal < 0 {
			temporal = 0
		}
	}

	users := make(map[string]struct{})
	for _, event := range bucket {
		users[event.UserID] = struct{}{}
	}
	consistency := 0.5
	if len(users) == 1 {
		consistency = 1
	}

	density := indicatorDensity(bucket)

	return weightPlatformDiversity*diversity +
		weightTemporalCluster*temporal +
		weightUserConsistency*consistency +
		weightIndicatorDensity*density
}

// indicatorDensity is the fraction of automation-indicator tags in the
// bucket that belong to the canonical strong set.
func indicatorDensity(bucket []detection.Event) float64 {
	total := 0
	strong := 0
	for _, event := range bucket {
		for _, indicator := range event.CorrelationMetadata.AutomationIndicators {
			total++
			if _, ok := strongIndicators[strings.ToLower(indicator)]; ok {
				strong++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(strong) / float64(total)
}

// TemporalCorrelation computes pairwise timing relationships for events
// within the given window. A gap under one second is simultaneity; the
// automation/human likelihood split always sums to 100.
func (e *Engine) TemporalCorrelation(events []detection.Event, window time.Duration) []TemporalPair {
	sorted := detection.SortEventsByTime(events)

	var pairs []TemporalPair
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			gap := sorted[j].Timestamp.Sub(sorted[i].Timestamp)
			if gap > window {
				break
			}

			automation := automationLikelihood(gap)
			pairs = append(pairs, TemporalPair{
				FirstEventID:         sorted[i].EventID,
				SecondEventID:        sorted[j].EventID,
				Gap:                  gap,
				Simultaneous:         gap < time.Second,
				AutomationLikelihood: automation,
				HumanLikelihood:      100 - automation,
			})
		}
	}
	return pairs
}

// automationLikelihood maps a pairwise gap to 0-100: sub-second gaps are
// near-certain automation, gaps beyond a minute read as human.
func automationLikelihood(gap time.Duration) float64 {
	switch {
	case gap < time.Second:
		return 95
	case gap < 5*time.Second:
		return 80
	case gap < 30*time.Second:
		return 60
	case gap < time.Minute:
		return 40
	default:
		return 15
	}
}

// UserCorrelation returns the user's events across platforms, time-sorted,
// when they span at least two platforms. A single-platform footprint
// yields nil.
func (e *Engine) UserCorrelation(events []detection.Event, userID string) []detection.Event {
	var userEvents []detection.Event
	for _, event := range events {
		if event.UserID == userID {
			userEvents = append(userEvents, event)
		}
	}
	if len(uniquePlatforms(userEvents)) < 2 {
		return nil
	}
	return detection.SortEventsByTime(userEvents)
}

// assessRisk scores the chain's risk factors and averages them with equal
// weight onto the shared 0-100 scale.
func (e *Engine) assessRisk(bucket []detection.Event) RiskAssessment {
	var fileEvents, permissionEvents, sensitiveEvents int
	for _, event := range bucket {
		eventType := strings.ToLower(event.EventType)
		if strings.Contains(eventType, "file") || strings.Contains(eventType, "share") ||
			strings.Contains(eventType, "download") || strings.Contains(eventType, "email") {
			fileEvents++
		}
		if strings.Contains(eventType, "permission") || strings.Contains(eventType, "role") {
			permissionEvents++
		}
		if len(event.ActionDetails.Metadata.Scopes) > 0 || eventTouchesSensitive(event) {
			sensitiveEvents++
		}
	}

	count := float64(len(bucket))
	assessment := RiskAssessment{
		DataExposure:          math.Min(float64(fileEvents)/count, 1) * 100,
		PermissionEscalation:  math.Min(float64(permissionEvents)/count*2, 1) * 100,
		ComplianceImpact:      math.Min(float64(sensitiveEvents)/count, 1) * 100,
		OperationalDependency: math.Min(float64(len(uniquePlatforms(bucket)))/4, 1) * 100,
	}
	assessment.OverallScore = (assessment.DataExposure +
		assessment.PermissionEscalation +
		assessment.ComplianceImpact +
		assessment.OperationalDependency) / 4
	return assessment
}

func eventTouchesSensitive(event detection.Event) bool {
	for _, permission := range event.ActionDetails.Metadata.Permissions {
		lower := strings.ToLower(permission)
		if strings.Contains(lower, "admin") || strings.Contains(lower, "owner") {
			return true
		}
	}
	return false
}

func buildWorkflow(bucket []detection.Event) Workflow {
	stages := make([]WorkflowStage, 0, len(bucket))
	platforms := make([]string, 0, len(bucket))
	for i, event := range bucket {
		role := "action"
		if i == 0 {
			role = "trigger"
		}
		stages = append(stages, WorkflowStage{
			Sequence:  i + 1,
			Platform:  event.Platform,
			EventType: event.EventType,
			Role:      role,
			Timestamp: event.Timestamp,
		})
		platforms = append(platforms, string(event.Platform))
	}
	return Workflow{
		Stages:   stages,
		DataFlow: strings.Join(platforms, " -> "),
	}
}

func uniquePlatforms(events []detection.Event) []detection.Platform {
	seen := make(map[detection.Platform]struct{})
	var platforms []detection.Platform
	for _, event := range events {
		if _, ok := seen[event.Platform]; !ok {
			seen[event.Platform] = struct{}{}
			platforms = append(platforms, event.Platform)
		}
	}
	sort.Slice(platforms, func(i, j int) bool { return platforms[i] < platforms[j] })
	return platforms
}

// chainKey identifies a chain by its window and participants so the LRU
// can suppress duplicates across repeated Correlate calls.
func chainKey(chain AutomationChain) string {
	ids := make([]string, 0, len(chain.ActionEvents)+1)
	ids = append(ids, chain.TriggerEvent.EventID)
	for _, event := range chain.ActionEvents {
		ids = append(ids, event.EventID)
	}
	sort.Strings(ids)
	return strings.Join(ids, "|")
}

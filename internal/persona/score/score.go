// Package score computes the persona reputation score from the normalized
// verification set.
//
// The package splits into an Engine (the external model that actually judges
// the facts) and a Policy wrapping it. The policy owns everything the engine
// must not be trusted with: the baseline for empty personas, the fallback
// artifact when the engine is unreachable, clamping, and re-deriving the
// headline score from the category breakdown when the engine's arithmetic
// disagrees with its own sub-scores.
package score

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"persona-gateway/internal/persona/models"
	id "persona-gateway/pkg/domain"
)

// BaselineScore is the score of a persona with zero verifications. Non-zero
// so a brand-new persona is distinguishable from a failed computation.
const BaselineScore = 10

const (
	baselineExplanation = "Persona not yet established. Add some verifications to build your score!"
	fallbackExplanation = "Could not calculate score."
)

// Engine judges a non-empty verification set and returns a raw breakdown.
// Implementations may be remote and slow; they are never called for an empty
// set. A returned error means the engine could not produce a judgement at
// all; partial results are not a thing.
type Engine interface {
	Compute(ctx context.Context, verifications map[id.ProviderKey]models.VerificationRecord) (models.ScoreBreakdown, error)
}

// DisabledEngine is the engine used when no scoring credentials are
// configured. Every computation fails, so verifications still commit but
// always carry the staleness marker.
type DisabledEngine struct{}

func (DisabledEngine) Compute(context.Context, map[id.ProviderKey]models.VerificationRecord) (models.ScoreBreakdown, error) {
	return models.ScoreBreakdown{}, errors.New("scoring engine is not configured")
}

// Baseline is the artifact for a persona with no verifications. All four
// categories are present and zero, so it is distinguishable from the failure
// fallback (whose breakdown is empty).
func Baseline(now time.Time) models.ScoreBreakdown {
	breakdown := make(map[string]float64, len(models.Categories))
	for _, c := range models.Categories {
		breakdown[c] = 0
	}
	return models.ScoreBreakdown{
		Score:            BaselineScore,
		Breakdown:        breakdown,
		Explanation:      baselineExplanation,
		LastCalculatedAt: now,
	}
}

// Fallback is the artifact attached when the engine fails and the persona was
// never scored before. Score zero, empty breakdown.
func Fallback(now time.Time) models.ScoreBreakdown {
	return models.ScoreBreakdown{
		Score:            0,
		Breakdown:        map[string]float64{},
		Explanation:      fallbackExplanation,
		LastCalculatedAt: now,
	}
}

// Policy wraps an Engine with the local scoring rules. Compute never returns
// an unusable breakdown: on engine failure the fallback artifact comes back
// alongside the error, and the caller decides whether to mark the persona
// stale.
type Policy struct {
	engine Engine
	cache  *Cache
	log    *slog.Logger
}

// Option configures optional Policy collaborators.
type Option func(*Policy)

// WithLogger sets the policy logger.
func WithLogger(log *slog.Logger) Option {
	return func(p *Policy) { p.log = log }
}

// WithCache attaches a score cache. Cache failures are logged and ignored;
// the cache only ever saves an engine round trip.
func WithCache(cache *Cache) Option {
	return func(p *Policy) { p.cache = cache }
}

func NewPolicy(engine Engine, opts ...Option) *Policy {
	p := &Policy{engine: engine, log: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Compute produces the score artifact for the given verification set.
//
// Rules, in order:
//   - empty set: the baseline, without touching the engine or the cache;
//   - cache hit: the cached artifact restamped at now;
//   - engine failure: the fallback artifact plus the engine error. The
//     breakdown is always usable, the error only signals that it does not
//     reflect the verification set;
//   - engine success: clamped to 0-100, and when the engine returns all four
//     categories but a headline score more than a point away from their mean,
//     the score is re-derived locally as round(mean).
func (p *Policy) Compute(ctx context.Context, verifications map[id.ProviderKey]models.VerificationRecord, now time.Time) (models.ScoreBreakdown, error) {
	if len(verifications) == 0 {
		return Baseline(now), nil
	}

	if p.cache != nil {
		if cached, ok := p.cache.Get(ctx, verifications); ok {
			cached.LastCalculatedAt = now
			return cached, nil
		}
	}

	computed, err := p.engine.Compute(ctx, verifications)
	if err != nil {
		return Fallback(now), err
	}

	computed.Score = clamp(computed.Score)
	if computed.Breakdown == nil {
		computed.Breakdown = map[string]float64{}
	}
	if computed.Complete() {
		derived := clamp(int(math.Round(computed.Mean())))
		if diff := computed.Score - derived; diff > 1 || diff < -1 {
			p.log.WarnContext(ctx, "score disagrees with breakdown mean, re-deriving",
				slog.Int("engine_score", computed.Score),
				slog.Int("derived_score", derived))
			computed.Score = derived
		}
	}
	computed.LastCalculatedAt = now

	if p.cache != nil {
		p.cache.Put(ctx, verifications, computed)
	}
	return computed, nil
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

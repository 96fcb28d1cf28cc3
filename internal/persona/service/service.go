// Package service implements the persona aggregation pipeline: acquire a
// proof, normalize it, merge it into the persona, rescore, and commit the
// whole document in one write.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"persona-gateway/internal/audit"
	"persona-gateway/internal/docustore"
	"persona-gateway/internal/ledger"
	"persona-gateway/internal/persona/metrics"
	"persona-gateway/internal/persona/models"
	"persona-gateway/internal/persona/normalizer"
	"persona-gateway/internal/proof"
	id "persona-gateway/pkg/domain"
	dErrors "persona-gateway/pkg/domain-errors"
	"persona-gateway/pkg/platform/sentinel"
	"persona-gateway/pkg/requestcontext"
)

// Scorer produces the score artifact for a verification set. On failure the
// returned breakdown is still usable (the fallback) and the error signals
// that it does not reflect the set.
type Scorer interface {
	Compute(ctx context.Context, verifications map[id.ProviderKey]models.VerificationRecord, now time.Time) (models.ScoreBreakdown, error)
}

// AuditPublisher records domain events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// PersonaView is the read-model returned to clients: the persona document
// plus the account's spendable balance when the ledger answered in time.
type PersonaView struct {
	models.PersonaDocument
	// BalanceMicro is nil when the balance lookup failed; the persona itself
	// is still served.
	BalanceMicro *int64 `json:"balanceMicro,omitempty"`
}

// Aggregator orchestrates persona reads and the verification pipeline.
type Aggregator struct {
	docs     docustore.Store
	acquirer proof.Acquirer
	scorer   Scorer
	ledger   ledger.Ledger
	denom    string

	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
	reads          singleflight.Group
}

type Option func(a *Aggregator)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) { a.logger = logger }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(a *Aggregator) { a.auditPublisher = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

// WithLedger enables the balance lookup on persona reads.
func WithLedger(l ledger.Ledger, denom string) Option {
	return func(a *Aggregator) {
		a.ledger = l
		a.denom = denom
	}
}

// New constructs an Aggregator.
func New(docs docustore.Store, acquirer proof.Acquirer, scorer Scorer, opts ...Option) *Aggregator {
	a := &Aggregator{
		docs:     docs,
		acquirer: acquirer,
		scorer:   scorer,
		logger:   slog.Default(),
		tracer:   otel.Tracer("persona"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Providers returns the verification provider catalog.
func (a *Aggregator) Providers() []proof.ProviderInfo {
	return proof.Catalog()
}

// Get returns the persona view for an account. An account that never
// verified anything gets an empty persona, not an error. Concurrent reads
// for the same account collapse into one backend round trip.
func (a *Aggregator) Get(ctx context.Context, account id.AccountID) (PersonaView, error) {
	v, err, _ := a.reads.Do(account.String(), func() (any, error) {
		return a.load(ctx, account)
	})
	if err != nil {
		return PersonaView{}, err
	}
	return v.(PersonaView), nil
}

func (a *Aggregator) load(ctx context.Context, account id.AccountID) (PersonaView, error) {
	persona, err := a.loadPersona(ctx, account)
	if err != nil {
		return PersonaView{}, err
	}

	view := PersonaView{PersonaDocument: persona}
	if a.ledger != nil {
		balance, err := a.ledger.Balance(ctx, account, a.denom)
		if err != nil {
			// Balance is decoration on the persona read; serve without it.
			a.logger.WarnContext(ctx, "balance lookup failed, serving persona without it",
				slog.String("account", account.String()),
				slog.String("error", err.Error()))
		} else {
			view.BalanceMicro = &balance
		}
	}
	return view, nil
}

func (a *Aggregator) loadPersona(ctx context.Context, account id.AccountID) (models.PersonaDocument, error) {
	doc, err := a.docs.Read(ctx, docustore.CollectionPersonas, account.String())
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.NewPersona(account), nil
	}
	if err != nil {
		return models.PersonaDocument{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load persona")
	}

	var persona models.PersonaDocument
	if err := json.Unmarshal([]byte(doc.Data), &persona); err != nil {
		return models.PersonaDocument{}, dErrors.Wrap(err, dErrors.CodeInternal, "persona document is corrupt")
	}
	if persona.Verifications == nil {
		persona.Verifications = make(map[id.ProviderKey]models.VerificationRecord)
	}
	persona.Address = account
	return persona, nil
}

// CurrentScore returns the account's current persona score, zero for an
// account that was never scored. The reward eligibility check runs against
// this value.
func (a *Aggregator) CurrentScore(ctx context.Context, account id.AccountID) (int, error) {
	persona, err := a.loadPersona(ctx, account)
	if err != nil {
		return 0, err
	}
	return persona.Score(), nil
}

// RecordVerification runs the full pipeline for one provider: obtain a proof,
// normalize it, merge it into the persona (replace-by-key), recompute the
// score from the complete post-merge set, and commit the document atomically.
//
// Proofs arrive two ways. When supplied is non-empty the client already holds
// proofs (the mobile SDK path) and they are used directly; otherwise the
// gateway drives an external verification session through the acquirer.
//
// A scoring failure does not block the commit: the document goes out with
// the previous score (or the fallback) and the explicit staleness marker. A
// user-cancelled session surfaces as sentinel.ErrCancelled, wrapped.
func (a *Aggregator) RecordVerification(ctx context.Context, account id.AccountID, key id.ProviderKey, supplied []proof.Proof) (models.PersonaDocument, error) {
	start := time.Now()
	ctx, span := a.tracer.Start(ctx, "persona.record_verification",
		trace.WithAttributes(attribute.String("provider", string(key))))
	defer span.End()

	info, ok := proof.ByKey(key)
	if !ok {
		return models.PersonaDocument{}, dErrors.Newf(dErrors.CodeValidation, "unknown provider %q", key)
	}

	proofs := supplied
	if len(proofs) == 0 {
		var err error
		proofs, err = a.acquirer.StartVerification(ctx, info.ID)
		if err != nil {
			if errors.Is(err, sentinel.ErrCancelled) {
				a.logger.InfoContext(ctx, "verification cancelled by user",
					slog.String("account", account.String()),
					slog.String("provider", string(key)))
				return models.PersonaDocument{}, err
			}
			a.countFailure("acquire")
			return models.PersonaDocument{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "verification session failed")
		}
	}
	if len(proofs) == 0 {
		a.countFailure("acquire")
		return models.PersonaDocument{}, dErrors.New(dErrors.CodeUnavailable, "verification produced no proof")
	}

	now := requestcontext.Now(ctx)
	record, err := normalizer.Normalize(key, proofs[0], now)
	if err != nil {
		a.countFailure("normalize")
		return models.PersonaDocument{}, dErrors.Wrap(err, dErrors.CodeUnprocessable, "proof could not be normalized")
	}

	persona, err := a.loadPersona(ctx, account)
	if err != nil {
		a.countFailure("load")
		return models.PersonaDocument{}, err
	}

	merged := persona.WithVerification(key, record)

	// The score is always recomputed from the full post-merge set, never
	// incrementally from the new record alone.
	breakdown, scoreErr := a.scorer.Compute(ctx, merged.Verifications, now)
	if scoreErr != nil {
		merged = merged.WithStaleScore(breakdown, now)
		a.logger.WarnContext(ctx, "scoring unavailable, committing verification with stale score",
			slog.String("account", account.String()),
			slog.String("provider", string(key)),
			slog.String("error", scoreErr.Error()))
		a.emitAudit(ctx, audit.Event{
			Account: account,
			Action:  audit.ActionScoreMarkedStale,
			Subject: string(key),
			Outcome: audit.OutcomeFailure,
			Detail:  scoreErr.Error(),
		})
		if a.metrics != nil {
			a.metrics.StaleScoreCommits.Inc()
		}
	} else {
		merged = merged.WithScore(breakdown, now)
	}

	if err := a.commit(ctx, merged); err != nil {
		a.countFailure("commit")
		return models.PersonaDocument{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to persist persona")
	}

	a.emitAudit(ctx, audit.Event{
		Account: account,
		Action:  audit.ActionVerificationRecorded,
		Subject: string(key),
		Outcome: audit.OutcomeSuccess,
	})
	if a.metrics != nil {
		a.metrics.VerificationsRecorded.WithLabelValues(string(key)).Inc()
		a.metrics.ObserveAggregation(start)
	}
	a.logger.InfoContext(ctx, "verification recorded",
		slog.String("account", account.String()),
		slog.String("provider", string(key)),
		slog.Int("score", merged.Score()),
		slog.Bool("score_stale", merged.ScoreStale))

	return merged, nil
}

// commit serializes and writes the whole persona document in one Set. There
// is no partial-field update path; every write replaces the document.
func (a *Aggregator) commit(ctx context.Context, persona models.PersonaDocument) error {
	data, err := json.Marshal(persona)
	if err != nil {
		return err
	}
	return a.docs.Set(ctx, persona.Address, docustore.CollectionPersonas, persona.Address.String(), string(data))
}

func (a *Aggregator) emitAudit(ctx context.Context, event audit.Event) {
	if a.auditPublisher == nil {
		return
	}
	if err := a.auditPublisher.Emit(ctx, event); err != nil {
		a.logger.WarnContext(ctx, "audit emit failed", slog.String("error", err.Error()))
	}
}

func (a *Aggregator) countFailure(stage string) {
	if a.metrics != nil {
		a.metrics.VerificationFailures.WithLabelValues(stage).Inc()
	}
}

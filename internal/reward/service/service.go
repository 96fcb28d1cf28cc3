// Package service implements reward management and the two-phase unlock
// protocol (charge, then grant).
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"persona-gateway/internal/audit"
	"persona-gateway/internal/docustore"
	"persona-gateway/internal/ledger"
	"persona-gateway/internal/reward/metrics"
	"persona-gateway/internal/reward/models"
	id "persona-gateway/pkg/domain"
	dErrors "persona-gateway/pkg/domain-errors"
	"persona-gateway/pkg/platform/sentinel"
)

// PersonaScores resolves the current persona score of an account.
type PersonaScores interface {
	CurrentScore(ctx context.Context, account id.AccountID) (int, error)
}

// AuditPublisher records domain events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// RewardView is a reward as served to clients: the document plus its ID and
// the caller's access computed server-side.
type RewardView struct {
	ID id.RewardID `json:"id"`
	models.RewardDocument
	Accessible bool `json:"accessible"`
	Paid       bool `json:"paid"`
}

// Service orchestrates reward CRUD and purchases.
type Service struct {
	docs   docustore.Store
	ledger ledger.Ledger
	scores PersonaScores
	denom  string

	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.auditPublisher = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs a reward Service.
func New(docs docustore.Store, l ledger.Ledger, scores PersonaScores, denom string, opts ...Option) *Service {
	s := &Service{
		docs:   docs,
		ledger: l,
		scores: scores,
		denom:  denom,
		logger: slog.Default(),
		tracer: otel.Tracer("reward"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateParams carries the creator-supplied reward fields.
type CreateParams struct {
	Title         string
	Description   string
	ImageURL      string
	Value         string
	Price         string
	RequiredScore int
}

// Create validates and persists a new reward owned by creator.
func (s *Service) Create(ctx context.Context, creator id.AccountID, params CreateParams, now time.Time) (RewardView, error) {
	reward, err := models.NewReward(creator, params.Title, params.Description, params.ImageURL,
		params.Value, params.Price, params.RequiredScore, now)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return RewardView{}, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return RewardView{}, err
	}
	if reward.Price != "" {
		if _, err := ledger.ParseDisplayAmount(reward.Price); err != nil {
			return RewardView{}, dErrors.Wrap(err, dErrors.CodeValidation, "invalid price")
		}
	}

	rewardID := id.NewRewardID(now)
	data, err := json.Marshal(reward)
	if err != nil {
		return RewardView{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to serialize reward")
	}
	if err := s.docs.Set(ctx, creator, docustore.CollectionRewards, rewardID.String(), string(data)); err != nil {
		return RewardView{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to persist reward")
	}

	s.emitAudit(ctx, audit.Event{
		Account: creator,
		Action:  audit.ActionRewardCreated,
		Subject: rewardID.String(),
		Outcome: audit.OutcomeSuccess,
	})
	if s.metrics != nil {
		s.metrics.RewardsCreated.Inc()
	}
	s.logger.InfoContext(ctx, "reward created",
		slog.String("reward_id", rewardID.String()),
		slog.String("creator", creator.String()),
		slog.Int("required_score", reward.RequiredScore))

	return RewardView{ID: rewardID, RewardDocument: *reward, Accessible: true}, nil
}

// List returns the marketplace for account: every reward created by someone
// else, highest score requirement first, with the caller's access computed
// against their current persona score.
func (s *Service) List(ctx context.Context, account id.AccountID) ([]RewardView, error) {
	docs, err := s.docs.ListCollection(ctx, docustore.CollectionRewards)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to list rewards")
	}

	score := s.currentScore(ctx, account)

	views := make([]RewardView, 0, len(docs))
	for _, doc := range docs {
		view, ok := s.parseReward(ctx, doc)
		if !ok || view.IsCreator(account) {
			continue
		}
		view.Accessible = view.AccessibleBy(account, score)
		view.Paid = view.HasPaid(account)
		views = append(views, view)
	}
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].RequiredScore > views[j].RequiredScore
	})
	return views, nil
}

// ListMine returns the rewards created by account, newest first.
func (s *Service) ListMine(ctx context.Context, account id.AccountID) ([]RewardView, error) {
	docs, err := s.docs.ListByOwner(ctx, docustore.CollectionRewards, account)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to list rewards")
	}

	views := make([]RewardView, 0, len(docs))
	for _, doc := range docs {
		view, ok := s.parseReward(ctx, doc)
		if !ok {
			continue
		}
		view.Accessible = true
		views = append(views, view)
	}
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].CreatedAt.After(views[j].CreatedAt)
	})
	return views, nil
}

// Get returns one reward with the caller's access computed.
func (s *Service) Get(ctx context.Context, account id.AccountID, rewardID id.RewardID) (RewardView, error) {
	reward, err := s.loadReward(ctx, rewardID)
	if err != nil {
		return RewardView{}, err
	}
	view := RewardView{ID: rewardID, RewardDocument: *reward}
	view.Accessible = reward.AccessibleBy(account, s.currentScore(ctx, account))
	view.Paid = reward.HasPaid(account)
	return view, nil
}

// Delete removes a reward. The document store enforces that only the owner
// can delete; a non-creator attempt surfaces as forbidden.
func (s *Service) Delete(ctx context.Context, account id.AccountID, rewardID id.RewardID) error {
	err := s.docs.Delete(ctx, account, docustore.CollectionRewards, rewardID.String())
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "reward not found")
	}
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeForbidden) {
			return dErrors.New(dErrors.CodeForbidden, "only the creator can delete a reward")
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to delete reward")
	}

	s.emitAudit(ctx, audit.Event{
		Account: account,
		Action:  audit.ActionRewardDeleted,
		Subject: rewardID.String(),
		Outcome: audit.OutcomeSuccess,
	})
	if s.metrics != nil {
		s.metrics.RewardsDeleted.Inc()
	}
	return nil
}

func (s *Service) loadReward(ctx context.Context, rewardID id.RewardID) (*models.RewardDocument, error) {
	doc, err := s.docs.Read(ctx, docustore.CollectionRewards, rewardID.String())
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "reward not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load reward")
	}
	var reward models.RewardDocument
	if err := json.Unmarshal([]byte(doc.Data), &reward); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "reward document is corrupt")
	}
	return &reward, nil
}

// parseReward decodes a listed document, skipping corrupt entries so one bad
// document cannot take down the whole marketplace.
func (s *Service) parseReward(ctx context.Context, doc docustore.Document) (RewardView, bool) {
	rewardID, err := id.ParseRewardID(doc.ID)
	if err != nil {
		s.logger.WarnContext(ctx, "skipping reward with malformed id", slog.String("id", doc.ID))
		return RewardView{}, false
	}
	var reward models.RewardDocument
	if err := json.Unmarshal([]byte(doc.Data), &reward); err != nil {
		s.logger.WarnContext(ctx, "skipping corrupt reward document", slog.String("id", doc.ID))
		return RewardView{}, false
	}
	return RewardView{ID: rewardID, RewardDocument: reward}, true
}

// currentScore resolves the caller's score, treating an unavailable persona
// as score zero: listings degrade to locked rather than erroring out.
func (s *Service) currentScore(ctx context.Context, account id.AccountID) int {
	score, err := s.scores.CurrentScore(ctx, account)
	if err != nil {
		s.logger.WarnContext(ctx, "score lookup failed, treating as zero",
			slog.String("account", account.String()),
			slog.String("error", err.Error()))
		return 0
	}
	return score
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", slog.String("error", err.Error()))
	}
}

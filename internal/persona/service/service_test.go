package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"persona-gateway/internal/docustore"
	"persona-gateway/internal/persona/models"
	"persona-gateway/internal/proof"
	id "persona-gateway/pkg/domain"
	dErrors "persona-gateway/pkg/domain-errors"
	"persona-gateway/pkg/platform/sentinel"
	"persona-gateway/pkg/requestcontext"
)

const testAccount = id.AccountID("xion1qypqxpq9qcrsszg2pvxq6rs0zqg3yyc5lzv7xu")

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeAcquirer hands back canned proofs per provider ID, or a terminal error.
type fakeAcquirer struct {
	proofs map[string][]proof.Proof
	err    error
}

func (f *fakeAcquirer) StartVerification(_ context.Context, providerID string) ([]proof.Proof, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.proofs[providerID], nil
}

// capturingScorer records the verification set it was asked to judge.
type capturingScorer struct {
	result models.ScoreBreakdown
	err    error
	seen   map[id.ProviderKey]models.VerificationRecord
	calls  int
}

func (s *capturingScorer) Compute(_ context.Context, verifications map[id.ProviderKey]models.VerificationRecord, now time.Time) (models.ScoreBreakdown, error) {
	s.calls++
	s.seen = verifications
	result := s.result
	result.LastCalculatedAt = now
	return result, s.err
}

func githubProof(username string, followers int) proof.Proof {
	params := fmt.Sprintf(`{"extractedParameters":{"username":%q,"followers":%d,"contributions_last_year":300}}`, username, followers)
	raw, _ := json.Marshal(map[string]any{
		"claimData": map[string]any{"context": params},
	})
	return raw
}

func twitterProof(screenName string) proof.Proof {
	params := fmt.Sprintf(`{"extractedParameters":{"followers_count":"800","screen_name":%q,"created_at":"2019-01-01"}}`, screenName)
	raw, _ := json.Marshal(map[string]any{
		"claimData": map[string]any{"context": params},
	})
	return raw
}

type AggregatorSuite struct {
	suite.Suite
	ctx      context.Context
	docs     *docustore.InMemory
	acquirer *fakeAcquirer
	scorer   *capturingScorer
	service  *Aggregator
}

func (s *AggregatorSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), testNow)
	s.docs = docustore.NewInMemory()

	githubID, _ := proof.ByKey(id.ProviderGithub)
	twitterID, _ := proof.ByKey(id.ProviderTwitter)
	s.acquirer = &fakeAcquirer{proofs: map[string][]proof.Proof{
		githubID.ID:  {githubProof("octocat", 120)},
		twitterID.ID: {twitterProof("builder")},
	}}
	s.scorer = &capturingScorer{result: models.ScoreBreakdown{
		Score: 55,
		Breakdown: map[string]float64{
			models.CategoryDeveloperReputation: 80,
			models.CategorySocialInfluence:     60,
			models.CategoryFinancialTrust:      30,
			models.CategoryProfessionalism:     50,
		},
		Explanation: "decent profile",
	}}
	s.service = New(s.docs, s.acquirer, s.scorer)
}

func TestAggregatorSuite(t *testing.T) {
	suite.Run(t, new(AggregatorSuite))
}

func (s *AggregatorSuite) storedPersona() models.PersonaDocument {
	doc, err := s.docs.Read(s.ctx, docustore.CollectionPersonas, testAccount.String())
	s.Require().NoError(err)
	var persona models.PersonaDocument
	s.Require().NoError(json.Unmarshal([]byte(doc.Data), &persona))
	return persona
}

func (s *AggregatorSuite) TestRecordVerificationCommitsWholeDocument() {
	got, err := s.service.RecordVerification(s.ctx, testAccount, id.ProviderGithub, nil)
	s.Require().NoError(err)

	s.Equal(55, got.Score())
	s.False(got.ScoreStale)
	s.Equal(testNow, got.LastUpdatedAt)

	stored := s.storedPersona()
	s.Len(stored.Verifications, 1)
	s.Equal("octocat", stored.Verifications[id.ProviderGithub].Facts["username"])
	s.Require().NotNil(stored.PersonaScore)
	s.Equal(55, stored.PersonaScore.Score)
}

func (s *AggregatorSuite) TestScoreComputedFromFullPostMergeSet() {
	_, err := s.service.RecordVerification(s.ctx, testAccount, id.ProviderGithub, nil)
	s.Require().NoError(err)

	_, err = s.service.RecordVerification(s.ctx, testAccount, id.ProviderTwitter, nil)
	s.Require().NoError(err)

	// The second scoring call must see both providers, not just the new one.
	s.Len(s.scorer.seen, 2)
	s.Contains(s.scorer.seen, id.ProviderGithub)
	s.Contains(s.scorer.seen, id.ProviderTwitter)
}

func (s *AggregatorSuite) TestReverificationReplacesByKey() {
	_, err := s.service.RecordVerification(s.ctx, testAccount, id.ProviderGithub, nil)
	s.Require().NoError(err)

	githubID, _ := proof.ByKey(id.ProviderGithub)
	s.acquirer.proofs[githubID.ID] = []proof.Proof{githubProof("octocat", 999)}

	_, err = s.service.RecordVerification(s.ctx, testAccount, id.ProviderGithub, nil)
	s.Require().NoError(err)

	stored := s.storedPersona()
	s.Len(stored.Verifications, 1)
	s.Equal(float64(999), stored.Verifications[id.ProviderGithub].Facts["followers"])
}

func (s *AggregatorSuite) TestScoringFailureCommitsWithStaleMarker() {
	// First verification scores fine.
	_, err := s.service.RecordVerification(s.ctx, testAccount, id.ProviderGithub, nil)
	s.Require().NoError(err)

	// Second one hits an unavailable engine; fallback artifact comes back
	// with the error.
	s.scorer.err = errors.New("scoring engine down")
	s.scorer.result = models.ScoreBreakdown{Score: 0, Breakdown: map[string]float64{}, Explanation: "Could not calculate score."}

	got, err := s.service.RecordVerification(s.ctx, testAccount, id.ProviderTwitter, nil)
	s.Require().NoError(err)

	s.True(got.ScoreStale)
	// The previous score survives; it is just marked as not reflecting the set.
	s.Equal(55, got.Score())

	stored := s.storedPersona()
	s.True(stored.ScoreStale)
	s.Len(stored.Verifications, 2)
}

func (s *AggregatorSuite) TestScoringFailureOnFirstVerificationUsesFallback() {
	s.scorer.err = errors.New("scoring engine down")
	s.scorer.result = models.ScoreBreakdown{Score: 0, Breakdown: map[string]float64{}, Explanation: "Could not calculate score."}

	got, err := s.service.RecordVerification(s.ctx, testAccount, id.ProviderGithub, nil)
	s.Require().NoError(err)

	s.True(got.ScoreStale)
	s.Equal(0, got.Score())
	s.Require().NotNil(got.PersonaScore)
	s.Empty(got.PersonaScore.Breakdown)
}

func (s *AggregatorSuite) TestDirectProofSubmissionSkipsSession() {
	// The client already ran the verification SDK; no hosted session starts.
	s.acquirer.err = errors.New("bridge unreachable")

	got, err := s.service.RecordVerification(s.ctx, testAccount, id.ProviderGithub, []proof.Proof{githubProof("octocat", 500)})
	s.Require().NoError(err)

	s.Equal(float64(500), got.Verifications[id.ProviderGithub].Facts["followers"])
}

func (s *AggregatorSuite) TestCancelledSessionChangesNothing() {
	s.acquirer.err = fmt.Errorf("session: %w", sentinel.ErrCancelled)

	_, err := s.service.RecordVerification(s.ctx, testAccount, id.ProviderGithub, nil)
	s.Require().ErrorIs(err, sentinel.ErrCancelled)

	_, err = s.docs.Read(s.ctx, docustore.CollectionPersonas, testAccount.String())
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.Zero(s.scorer.calls)
}

func (s *AggregatorSuite) TestUnknownProviderRejected() {
	_, err := s.service.RecordVerification(s.ctx, testAccount, id.ProviderKey("myspace"), nil)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *AggregatorSuite) TestMalformedProofDoesNotCommit() {
	githubID, _ := proof.ByKey(id.ProviderGithub)
	s.acquirer.proofs[githubID.ID] = []proof.Proof{[]byte(`{"claimData":{"context":"{}"}}`)}

	_, err := s.service.RecordVerification(s.ctx, testAccount, id.ProviderGithub, nil)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnprocessable))

	_, err = s.docs.Read(s.ctx, docustore.CollectionPersonas, testAccount.String())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *AggregatorSuite) TestGetReturnsEmptyPersonaForNewAccount() {
	view, err := s.service.Get(s.ctx, testAccount)
	s.Require().NoError(err)

	s.Equal(testAccount, view.Address)
	s.Empty(view.Verifications)
	s.Nil(view.PersonaScore)
	s.Nil(view.BalanceMicro)
}

func (s *AggregatorSuite) TestCurrentScore() {
	score, err := s.service.CurrentScore(s.ctx, testAccount)
	s.Require().NoError(err)
	s.Zero(score)

	_, err = s.service.RecordVerification(s.ctx, testAccount, id.ProviderGithub, nil)
	s.Require().NoError(err)

	score, err = s.service.CurrentScore(s.ctx, testAccount)
	s.Require().NoError(err)
	s.Equal(55, score)
}

package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"persona-gateway/internal/persona/models"
	"persona-gateway/internal/persona/service"
	"persona-gateway/internal/proof"
	id "persona-gateway/pkg/domain"
	dErrors "persona-gateway/pkg/domain-errors"
	"persona-gateway/pkg/platform/sentinel"
	"persona-gateway/pkg/testutil"
)

const account = id.AccountID("xion1qypqxpq9qcrsszg2pvxq6rs0zqg3yyc5lzv7xu")

type fakeService struct {
	view      service.PersonaView
	persona   models.PersonaDocument
	getErr    error
	recordErr error
	recorded  id.ProviderKey
	supplied  []proof.Proof
}

func (f *fakeService) Get(context.Context, id.AccountID) (service.PersonaView, error) {
	return f.view, f.getErr
}

func (f *fakeService) RecordVerification(_ context.Context, _ id.AccountID, key id.ProviderKey, supplied []proof.Proof) (models.PersonaDocument, error) {
	f.recorded = key
	f.supplied = supplied
	return f.persona, f.recordErr
}

func (f *fakeService) Providers() []proof.ProviderInfo {
	return proof.Catalog()
}

func newRouter(svc *fakeService) http.Handler {
	h := New(svc, slog.Default())
	r := chi.NewRouter()
	h.Register(r)
	r.Get("/providers", h.HandleProviders)
	return r
}

func TestHandleGet(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	persona := models.NewPersona(account).WithScore(models.ScoreBreakdown{
		Score:     61,
		Breakdown: map[string]float64{},
	}, now)
	svc := &fakeService{view: service.PersonaView{PersonaDocument: persona}}
	router := newRouter(svc)

	t.Run("serves the persona view", func(t *testing.T) {
		req := testutil.WithAccount(testutil.NewRequest(t, http.MethodGet, "/persona"), account)
		rr := testutil.DoRequest(router, req)

		testutil.AssertStatus(t, rr, http.StatusOK)
		got := testutil.UnmarshalResponse[models.PersonaDocument](t, rr)
		assert.Equal(t, account, got.Address)
		assert.Equal(t, 61, got.Score())
	})

	t.Run("requires authentication", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/persona"))
		testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
	})

	t.Run("maps service failures", func(t *testing.T) {
		svc.getErr = dErrors.New(dErrors.CodeUnavailable, "failed to load persona")
		defer func() { svc.getErr = nil }()

		req := testutil.WithAccount(testutil.NewRequest(t, http.MethodGet, "/persona"), account)
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusServiceUnavailable, "unavailable")
	})
}

func TestHandleRecordVerification(t *testing.T) {
	svc := &fakeService{persona: models.NewPersona(account)}
	router := newRouter(svc)

	authed := func(body any) *http.Request {
		return testutil.WithAccount(testutil.NewJSONRequest(t, http.MethodPost, "/persona/verifications", body), account)
	}

	t.Run("records and returns the persona", func(t *testing.T) {
		rr := testutil.DoRequest(router, authed(map[string]string{"provider": "github"}))

		testutil.AssertStatus(t, rr, http.StatusOK)
		assert.Equal(t, id.ProviderGithub, svc.recorded)
		assert.Empty(t, svc.supplied)
	})

	t.Run("passes directly submitted proofs through", func(t *testing.T) {
		rr := testutil.DoRequest(router, authed(map[string]any{
			"provider": "github",
			"proofs":   []map[string]any{{"claimData": map[string]any{"context": "{}"}}},
		}))

		testutil.AssertStatus(t, rr, http.StatusOK)
		require.Len(t, svc.supplied, 1)
	})

	t.Run("a cancelled session is a 200 no-op", func(t *testing.T) {
		svc.recordErr = fmt.Errorf("verification session: %w", sentinel.ErrCancelled)
		defer func() { svc.recordErr = nil }()

		rr := testutil.DoRequest(router, authed(map[string]string{"provider": "github"}))

		testutil.AssertStatus(t, rr, http.StatusOK)
		body := testutil.UnmarshalErrorResponse(t, rr)
		assert.Equal(t, "cancelled", body["status"])
	})

	t.Run("rejects an unknown provider", func(t *testing.T) {
		rr := testutil.DoRequest(router, authed(map[string]string{"provider": "myspace"}))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("rejects a missing provider", func(t *testing.T) {
		rr := testutil.DoRequest(router, authed(map[string]string{}))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("requires authentication", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/persona/verifications", map[string]string{"provider": "github"})
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})
}

func TestHandleProviders(t *testing.T) {
	router := newRouter(&fakeService{})

	// Public catalog, no auth needed.
	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/providers"))

	testutil.AssertStatus(t, rr, http.StatusOK)
	got := testutil.UnmarshalResponse[struct {
		Providers []proof.ProviderInfo `json:"providers"`
	}](t, rr)
	require.Len(t, got.Providers, len(id.KnownProviders))
}

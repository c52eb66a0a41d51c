package server

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cyberwill/backend/internal/cache"
	"cyberwill/backend/internal/metrics"
	"cyberwill/backend/internal/provider"
	"cyberwill/backend/internal/store"
)

func completion(text string) provider.RawResponse {
	return provider.RawResponse{
		StatusCode: http.StatusOK,
		RequestID:  "r-1",
		Output:     &provider.Output{Text: &text},
	}
}

func analyzeBody() map[string]any {
	return map[string]any{
		"name":  "Lin",
		"stage": "dating",
		"traits": map[string]any{
			"investment": "invest",
		},
	}
}

func TestAnalyzeProfileReturnsParsedResult(t *testing.T) {
	p := &scriptedProvider{complete: completion("```json\n{\"archetype\":\"Ice Queen\",\"analysis\":\"x\"}\n```")}
	router := newTestRouter(t, newTestConfig(), Deps{Provider: p})

	rec := performJSONRequest(t, router, http.MethodPost, "/analyze-profile", analyzeBody())

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"archetype":"Ice Queen","analysis":"x"}`, rec.Body.String())

	sent := p.lastRequest(t)
	assert.Empty(t, sent.Prompt.System)
	assert.Contains(t, sent.Prompt.User, "- Name: Lin\n")
	assert.Contains(t, sent.Prompt.User, "- Investment: invest\n")
	assert.Contains(t, sent.Prompt.User, "- Rationality: unknown\n")
	assert.Nil(t, sent.SessionID)
}

func TestAnalyzeProfileDefaultsEveryMissingTrait(t *testing.T) {
	p := &scriptedProvider{complete: completion(`{"archetype":"Free Spirit","analysis":"y"}`)}
	router := newTestRouter(t, newTestConfig(), Deps{Provider: p})

	rec := performJSONRequest(t, router, http.MethodPost, "/analyze-profile", map[string]any{"name": "Lin", "stage": "", "traits": map[string]any{}})

	require.Equal(t, http.StatusOK, rec.Code)
	user := p.lastRequest(t).Prompt.User
	assert.Contains(t, user, "- Investment: unknown\n")
	assert.Contains(t, user, "- Rationality: unknown\n")
	assert.Contains(t, user, "- Openness: unknown\n")
}

func TestAnalyzeProfileAcceptsNonStringTraits(t *testing.T) {
	p := &scriptedProvider{complete: completion(`{"archetype":"Free Spirit","analysis":"y"}`)}
	router := newTestRouter(t, newTestConfig(), Deps{Provider: p})

	rec := performJSONRequest(t, router, http.MethodPost, "/analyze-profile", map[string]any{
		"name":   "Lin",
		"stage":  "dating",
		"traits": map[string]any{"Investment": 0.8, "conflict": "guarded", "rationality": []string{"x"}},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	user := p.lastRequest(t).Prompt.User
	assert.Contains(t, user, "- Investment: 0.8\n")
	assert.Contains(t, user, "- Rationality: unknown\n")
	assert.Contains(t, user, "- Openness: guarded\n")
}

func TestAnalyzeProfileValidatesName(t *testing.T) {
	p := &scriptedProvider{}
	router := newTestRouter(t, newTestConfig(), Deps{Provider: p})

	rec := performJSONRequest(t, router, http.MethodPost, "/analyze-profile", map[string]any{"name": " ", "stage": "dating"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "name is required", responseDetail(t, rec))

	rec = performJSONRequest(t, router, http.MethodPost, "/analyze-profile", `{"name": 5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Zero(t, p.calls())
}

func TestAnalyzeProfileRequiresStage(t *testing.T) {
	p := &scriptedProvider{}
	router := newTestRouter(t, newTestConfig(), Deps{Provider: p})

	rec := performJSONRequest(t, router, http.MethodPost, "/analyze-profile", map[string]any{"name": "Lin"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "stage is required", responseDetail(t, rec))

	rec = performJSONRequest(t, router, http.MethodPost, "/analyze-profile", `{"name":"Lin","stage":null}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Zero(t, p.calls())
}

func TestAnalyzeProfileFallsBackOnNonJSONOutput(t *testing.T) {
	p := &scriptedProvider{complete: completion("not json at all")}
	router := newTestRouter(t, newTestConfig(), Deps{Provider: p})

	rec := performJSONRequest(t, router, http.MethodPost, "/analyze-profile", analyzeBody())

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"archetype":"unknown type","analysis":"not json at all"}`, rec.Body.String())
}

func TestAnalyzeProfilePassesUnknownLabelsThrough(t *testing.T) {
	p := &scriptedProvider{complete: completion(`{"archetype":"Moon Child","analysis":"z"}`)}
	router := newTestRouter(t, newTestConfig(), Deps{Provider: p})

	before := testutil.ToFloat64(metrics.UnknownArchetypes)
	rec := performJSONRequest(t, router, http.MethodPost, "/analyze-profile", analyzeBody())

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"archetype":"Moon Child","analysis":"z"}`, rec.Body.String())
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.UnknownArchetypes))
}

func TestAnalyzeProfileSurfacesProviderError(t *testing.T) {
	code, message := "InvalidApiKey", "Invalid API-key provided."
	p := &scriptedProvider{complete: provider.RawResponse{StatusCode: http.StatusUnauthorized, Code: &code, Message: &message}}
	router := newTestRouter(t, newTestConfig(), Deps{Provider: p})

	rec := performJSONRequest(t, router, http.MethodPost, "/analyze-profile", analyzeBody())

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "Error InvalidApiKey: Invalid API-key provided.", responseDetail(t, rec))
}

func TestAnalyzeProfileMapsTransportErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		detail string
	}{
		{
			name:   "not configured",
			err:    fmt.Errorf("dashscope: APP_ID is missing: %w", provider.ErrNotConfigured),
			status: http.StatusServiceUnavailable,
			detail: "AI provider is not configured",
		},
		{
			name:   "deadline",
			err:    fmt.Errorf("dashscope: send request: %w", context.DeadlineExceeded),
			status: http.StatusGatewayTimeout,
			detail: "AI provider request timed out",
		},
		{
			name:   "other",
			err:    fmt.Errorf("dashscope: decode response: unexpected EOF"),
			status: http.StatusBadGateway,
			detail: "AI provider request failed",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(t, newTestConfig(), Deps{Provider: &scriptedProvider{err: tc.err}})

			rec := performJSONRequest(t, router, http.MethodPost, "/analyze-profile", analyzeBody())

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.detail, responseDetail(t, rec))
		})
	}
}

func TestAnalyzeProfileUsesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	analysisCache, err := cache.NewRedis(context.Background(), "redis://"+mr.Addr(), time.Hour)
	require.NoError(t, err)
	defer analysisCache.Close()

	p := &scriptedProvider{complete: completion(`{"archetype":"Cool Observer","analysis":"Independent."}`)}
	router := newTestRouter(t, newTestConfig(), Deps{Provider: p, Cache: analysisCache})

	first := performJSONRequest(t, router, http.MethodPost, "/analyze-profile", analyzeBody())
	second := performJSONRequest(t, router, http.MethodPost, "/analyze-profile", analyzeBody())

	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusOK, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, p.calls(), "second request is served from the cache")
	assert.Len(t, mr.Keys(), 1)
}

func TestAnalyzeProfileDoesNotCacheFallbacks(t *testing.T) {
	mr := miniredis.RunT(t)
	analysisCache, err := cache.NewRedis(context.Background(), "redis://"+mr.Addr(), time.Hour)
	require.NoError(t, err)
	defer analysisCache.Close()

	p := &scriptedProvider{complete: completion("model refused")}
	router := newTestRouter(t, newTestConfig(), Deps{Provider: p, Cache: analysisCache})

	performJSONRequest(t, router, http.MethodPost, "/analyze-profile", analyzeBody())
	performJSONRequest(t, router, http.MethodPost, "/analyze-profile", analyzeBody())

	assert.Equal(t, 2, p.calls())
	assert.Empty(t, mr.Keys())
}

func TestAnalyzeProfileCachesModelAnswerMatchingFallbackLabel(t *testing.T) {
	mr := miniredis.RunT(t)
	analysisCache, err := cache.NewRedis(context.Background(), "redis://"+mr.Addr(), time.Hour)
	require.NoError(t, err)
	defer analysisCache.Close()

	p := &scriptedProvider{complete: completion(`{"archetype":"unknown type","analysis":"Too little to go on."}`)}
	router := newTestRouter(t, newTestConfig(), Deps{Provider: p, Cache: analysisCache})

	first := performJSONRequest(t, router, http.MethodPost, "/analyze-profile", analyzeBody())
	second := performJSONRequest(t, router, http.MethodPost, "/analyze-profile", analyzeBody())

	require.Equal(t, http.StatusOK, first.Code)
	assert.JSONEq(t, `{"archetype":"unknown type","analysis":"Too little to go on."}`, second.Body.String())
	assert.Equal(t, 1, p.calls())
	assert.Len(t, mr.Keys(), 1)
}

func TestAnalyzeProfileSurvivesCacheOutage(t *testing.T) {
	mr := miniredis.RunT(t)
	analysisCache, err := cache.NewRedis(context.Background(), "redis://"+mr.Addr(), time.Hour)
	require.NoError(t, err)
	defer analysisCache.Close()
	mr.Close()

	p := &scriptedProvider{complete: completion(`{"archetype":"Ice Queen","analysis":"x"}`)}
	router := newTestRouter(t, newTestConfig(), Deps{Provider: p, Cache: analysisCache})

	rec := performJSONRequest(t, router, http.MethodPost, "/analyze-profile", analyzeBody())

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, p.calls())
}

func TestAnalyzeProfileRecordsAnalysis(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO profile_analyses").
		WithArgs(
			pgxmock.AnyArg(),
			"scripted",
			"Lin",
			"dating",
			[]byte(`{"investment":"invest"}`),
			"Ice Queen",
			"x",
			true,
			false,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	p := &scriptedProvider{complete: completion(`{"archetype":"Ice Queen","analysis":"x"}`)}
	router := newTestRouter(t, newTestConfig(), Deps{Provider: p, Store: store.New(mock)})

	rec := performJSONRequest(t, router, http.MethodPost, "/analyze-profile", analyzeBody())

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyzeProfileRecordsFallbackFlag(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO profile_analyses").
		WithArgs(
			pgxmock.AnyArg(),
			"scripted",
			"Lin",
			"dating",
			[]byte(`{"investment":"invest"}`),
			"unknown type",
			"model refused",
			false,
			true,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	p := &scriptedProvider{complete: completion("model refused")}
	router := newTestRouter(t, newTestConfig(), Deps{Provider: p, Store: store.New(mock)})

	rec := performJSONRequest(t, router, http.MethodPost, "/analyze-profile", analyzeBody())

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyzeProfileIgnoresStoreFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO profile_analyses").WillReturnError(fmt.Errorf("connection refused"))

	p := &scriptedProvider{complete: completion(`{"archetype":"Ice Queen","analysis":"x"}`)}
	router := newTestRouter(t, newTestConfig(), Deps{Provider: p, Store: store.New(mock)})

	rec := performJSONRequest(t, router, http.MethodPost, "/analyze-profile", analyzeBody())

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"archetype":"Ice Queen","analysis":"x"}`, rec.Body.String())
}

func TestAnalyzeProfileWithMockProvider(t *testing.T) {
	router := newTestRouter(t, newTestConfig(), Deps{Provider: provider.NewMock()})

	rec := performJSONRequest(t, router, http.MethodPost, "/analyze-profile", analyzeBody())

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Girl Next Door", decodeJSONMap(t, rec)["archetype"])
}

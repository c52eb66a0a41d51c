package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"cyberwill/backend/internal/archetype"
	"cyberwill/backend/internal/cache"
	"cyberwill/backend/internal/extract"
	"cyberwill/backend/internal/metrics"
	"cyberwill/backend/internal/prompt"
	"cyberwill/backend/internal/provider"
	"cyberwill/backend/internal/store"
)

const storeWriteTimeout = 5 * time.Second

func (a *App) analyzeProfile(c *gin.Context) {
	var req analyzeRequest
	if !mustJSON(c, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(c, http.StatusBadRequest, "name is required")
		return
	}
	if req.Stage == nil {
		writeError(c, http.StatusBadRequest, "stage is required")
		return
	}

	logger := requestLog(c)
	ctx := c.Request.Context()
	profile := prompt.Profile{Name: req.Name, Stage: *req.Stage, Traits: req.traitValues()}
	text := prompt.Analysis(profile)
	key := cache.Key(a.provider.Name(), text)

	if a.cache != nil {
		cached, found, err := a.cache.Get(ctx, key)
		switch {
		case err != nil:
			metrics.AnalysisCache.WithLabelValues("error").Inc()
			logger.Warn().Err(err).Msg("analysis cache lookup failed")
		case found:
			metrics.AnalysisCache.WithLabelValues("hit").Inc()
			c.JSON(http.StatusOK, analyzeResponse(cached))
			return
		default:
			metrics.AnalysisCache.WithLabelValues("miss").Inc()
		}
	}

	start := time.Now()
	resp, err := a.provider.Complete(ctx, provider.Request{Prompt: provider.Prompt{User: text}})
	metrics.ProviderLatency.WithLabelValues(a.provider.Name(), "complete").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ProviderCalls.WithLabelValues(a.provider.Name(), "complete", metrics.OutcomeTransportError).Inc()
		logger.Error().Err(err).Str("provider", a.provider.Name()).Msg("analysis call failed")
		writeProviderError(c, err)
		return
	}
	if !resp.OK() {
		metrics.ProviderCalls.WithLabelValues(a.provider.Name(), "complete", metrics.OutcomeProviderError).Inc()
		logger.Warn().
			Int("status", resp.StatusCode).
			Str("code", resp.ErrorCode()).
			Str("request_id", resp.RequestID).
			Msg("analysis call returned an error")
		writeError(c, http.StatusBadGateway, fmt.Sprintf("Error %s: %s", resp.ErrorCode(), resp.ErrorMessage()))
		return
	}
	metrics.ProviderCalls.WithLabelValues(a.provider.Name(), "complete", metrics.OutcomeOK).Inc()

	output, _ := resp.Text()
	result, parsed := extract.Parse(output)
	known := archetype.Known(result.Archetype)
	switch {
	case !parsed:
		logger.Warn().Str("request_id", resp.RequestID).Msg("analysis output was not valid JSON")
	case !known:
		metrics.UnknownArchetypes.Inc()
		logger.Warn().Str("archetype", result.Archetype).Msg("analysis returned an archetype outside the catalogue")
	}

	if a.cache != nil && parsed {
		if err := a.cache.Set(ctx, key, result); err != nil {
			logger.Warn().Err(err).Msg("analysis cache write failed")
		}
	}
	a.record(ctx, logger, profile, result, known, parsed)

	c.JSON(http.StatusOK, analyzeResponse(result))
}

// record stores the analysis. A failure is logged and does not affect the
// response.
func (a *App) record(ctx context.Context, logger *zerolog.Logger, profile prompt.Profile, result extract.Result, known, parsed bool) {
	if a.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeWriteTimeout)
	defer cancel()

	id, err := a.store.Insert(ctx, store.AnalysisRecord{
		Provider:  a.provider.Name(),
		Name:      profile.Name,
		Stage:     profile.Stage,
		Traits:    profile.Traits,
		Archetype: result.Archetype,
		Analysis:  result.Analysis,
		Known:     known,
		Fallback:  !parsed,
	})
	if err != nil {
		logger.Error().Err(err).Msg("store analysis failed")
		return
	}
	logger.Debug().Str("analysis_id", id).Msg("analysis stored")
}

func writeProviderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, provider.ErrNotConfigured):
		writeError(c, http.StatusServiceUnavailable, "AI provider is not configured")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(c, http.StatusGatewayTimeout, "AI provider request timed out")
	default:
		writeError(c, http.StatusBadGateway, "AI provider request failed")
	}
}

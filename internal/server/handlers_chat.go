package server

import (
	"encoding/json"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"cyberwill/backend/internal/metrics"
	"cyberwill/backend/internal/prompt"
	"cyberwill/backend/internal/provider"
	"cyberwill/backend/internal/stream"
)

func (a *App) chat(c *gin.Context) {
	var req chatRequest
	if !mustJSON(c, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(c, http.StatusBadRequest, "message is required")
		return
	}

	var instructions *string
	if text := a.cfg.ActiveChatInstructions(); text != "" {
		instructions = &text
	}
	assembled := a.assembler.Assemble(prompt.Input{
		User:           req.Message,
		ProfileContext: req.ProfileContext,
		Instructions:   instructions,
	})

	logger := requestLog(c)
	ctx := c.Request.Context()
	raw := a.provider.Stream(ctx, provider.Request{Prompt: assembled, SessionID: req.SessionID})
	events := stream.Normalize(observeStream(a.provider.Name(), raw, logger))

	c.Header("Content-Type", "application/x-ndjson")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	encoder := json.NewEncoder(c.Writer)
	encoder.SetEscapeHTML(false)
	written := 0
	for event := range events {
		if err := encoder.Encode(event); err != nil {
			logger.Debug().Err(err).Int("events", written).Msg("chat client disconnected")
			break
		}
		c.Writer.Flush()
		written++
		metrics.StreamEvents.WithLabelValues(event.Type).Inc()
	}
}

// observeStream records provider call metrics for a stream and logs
// transport failures. The sequence is passed through unchanged.
func observeStream(providerName string, seq iter.Seq2[provider.RawEvent, error], logger *zerolog.Logger) iter.Seq2[provider.RawEvent, error] {
	return func(yield func(provider.RawEvent, error) bool) {
		start := time.Now()
		outcome := metrics.OutcomeOK
		defer func() {
			metrics.ProviderCalls.WithLabelValues(providerName, "stream", outcome).Inc()
			metrics.ProviderLatency.WithLabelValues(providerName, "stream").Observe(time.Since(start).Seconds())
		}()

		for event, err := range seq {
			switch {
			case err != nil:
				outcome = metrics.OutcomeTransportError
				logger.Warn().Err(err).Str("provider", providerName).Msg("provider stream failed")
			case !event.OK():
				outcome = metrics.OutcomeProviderError
				logger.Warn().
					Str("provider", providerName).
					Int("status", event.StatusCode).
					Str("code", event.ErrorCode()).
					Str("request_id", event.RequestID).
					Msg("provider stream returned an error chunk")
			}
			if !yield(event, err) {
				return
			}
		}
	}
}

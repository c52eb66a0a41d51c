package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type DashScopeConfig struct {
	APIKey  string
	AppID   string
	BaseURL string
	// Timeout applies to single-shot calls only; streams are bounded by the
	// caller's context.
	Timeout    time.Duration
	HTTPClient *http.Client
}

// DashScope calls the Alibaba Cloud Model Studio application completion API.
type DashScope struct {
	apiKey     string
	appID      string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	logger     zerolog.Logger
}

type dashScopeRequest struct {
	Input      dashScopeInput      `json:"input"`
	Parameters dashScopeParameters `json:"parameters"`
}

type dashScopeInput struct {
	Prompt    string  `json:"prompt"`
	SessionID *string `json:"session_id,omitempty"`
}

type dashScopeParameters struct {
	IncrementalOutput bool `json:"incremental_output,omitempty"`
}

type dashScopePayload struct {
	RequestID string           `json:"request_id"`
	Code      *string          `json:"code"`
	Message   *string          `json:"message"`
	Output    *dashScopeOutput `json:"output"`
}

type dashScopeOutput struct {
	Text         *string `json:"text"`
	SessionID    *string `json:"session_id"`
	FinishReason *string `json:"finish_reason"`
}

func NewDashScope(cfg DashScopeConfig, logger zerolog.Logger) *DashScope {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &DashScope{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		appID:      strings.TrimSpace(cfg.AppID),
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		timeout:    timeout,
		httpClient: client,
		logger:     logger,
	}
}

func (d *DashScope) Name() string {
	return "dashscope"
}

func (d *DashScope) Stream(ctx context.Context, req Request) iter.Seq2[RawEvent, error] {
	return func(yield func(RawEvent, error) bool) {
		response, err := d.post(ctx, req, true)
		if err != nil {
			yield(RawEvent{}, err)
			return
		}
		defer closeBody(response.Body, d.logger)

		if response.StatusCode < 200 || response.StatusCode >= 300 {
			event, err := decodeErrorBody(response)
			if err != nil {
				yield(RawEvent{}, err)
				return
			}
			yield(event, nil)
			return
		}

		scanner := newSSEScanner(response.Body)
		for {
			frame, err := scanner.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(RawEvent{}, fmt.Errorf("dashscope: read stream: %w", err))
				return
			}

			event, err := frameToEvent(frame)
			if err != nil {
				yield(RawEvent{}, err)
				return
			}
			if !yield(event, nil) {
				return
			}
		}
	}
}

func (d *DashScope) Complete(ctx context.Context, req Request) (RawResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	response, err := d.post(ctx, req, false)
	if err != nil {
		return RawResponse{}, err
	}
	defer closeBody(response.Body, d.logger)

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return decodeErrorBody(response)
	}

	var payload dashScopePayload
	if err := json.NewDecoder(response.Body).Decode(&payload); err != nil {
		return RawResponse{}, fmt.Errorf("dashscope: decode response: %w", err)
	}
	return payload.toEvent(response.StatusCode), nil
}

func (d *DashScope) post(ctx context.Context, req Request, stream bool) (*http.Response, error) {
	if d.apiKey == "" {
		return nil, fmt.Errorf("dashscope: DASHSCOPE_API_KEY is missing: %w", ErrNotConfigured)
	}
	if d.appID == "" {
		return nil, fmt.Errorf("dashscope: APP_ID is missing: %w", ErrNotConfigured)
	}
	if d.baseURL == "" {
		return nil, fmt.Errorf("dashscope: base URL is missing: %w", ErrNotConfigured)
	}

	body := dashScopeRequest{
		Input: dashScopeInput{
			Prompt:    flatten(req.Prompt),
			SessionID: req.SessionID,
		},
		Parameters: dashScopeParameters{IncrementalOutput: stream},
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("dashscope: encode request: %w", err)
	}

	endpoint := d.baseURL + "/apps/" + url.PathEscape(d.appID) + "/completion"
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("dashscope: build request: %w", err)
	}
	request.Header.Set("Authorization", "Bearer "+d.apiKey)
	request.Header.Set("Content-Type", "application/json")
	if stream {
		request.Header.Set("Accept", "text/event-stream")
		request.Header.Set("X-DashScope-SSE", "enable")
	}

	d.logger.Debug().
		Bool("stream", stream).
		Bool("has_session", req.SessionID != nil).
		Int("prompt_chars", len(body.Input.Prompt)).
		Msg("dashscope request")

	response, err := d.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("dashscope: send request: %w", err)
	}
	return response, nil
}

func frameToEvent(frame sseFrame) (RawEvent, error) {
	var payload dashScopePayload
	if err := json.Unmarshal([]byte(frame.Data), &payload); err != nil {
		return RawEvent{}, fmt.Errorf("dashscope: decode stream chunk: %w", err)
	}

	status := frame.Status
	if status == 0 {
		status = http.StatusOK
		if strings.EqualFold(frame.Event, "error") {
			status = http.StatusInternalServerError
		}
	}
	return payload.toEvent(status), nil
}

func decodeErrorBody(response *http.Response) (RawEvent, error) {
	raw, err := io.ReadAll(io.LimitReader(response.Body, maxErrorBodySize))
	if err != nil {
		return RawEvent{}, fmt.Errorf("dashscope: read error body (status %d): %w", response.StatusCode, err)
	}

	var payload dashScopePayload
	if err := json.Unmarshal(raw, &payload); err != nil || (payload.Code == nil && payload.Message == nil) {
		text := strings.TrimSpace(string(raw))
		return RawEvent{
			StatusCode: response.StatusCode,
			Message:    optional(text),
		}, nil
	}
	return payload.toEvent(response.StatusCode), nil
}

func (p dashScopePayload) toEvent(status int) RawEvent {
	event := RawEvent{
		StatusCode: status,
		Code:       p.Code,
		Message:    p.Message,
		RequestID:  p.RequestID,
	}
	if p.Output != nil {
		event.Output = &Output{
			Text:         p.Output.Text,
			SessionID:    p.Output.SessionID,
			FinishReason: p.Output.FinishReason,
		}
	}
	return event
}

func closeBody(body io.Closer, logger zerolog.Logger) {
	if err := body.Close(); err != nil {
		logger.Warn().Err(err).Msg("close provider response body")
	}
}

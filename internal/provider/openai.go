package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

type OpenAIConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	MaxOutputTokens int
	Timeout         time.Duration
	HTTPClient      *http.Client
}

// OpenAICompatible talks to any chat-completions endpoint that follows the
// OpenAI wire format. Instructions travel as a system-role message. The
// protocol has no server-side session, so output never carries a session id.
type OpenAICompatible struct {
	client          *openai.Client
	configured      bool
	model           string
	maxOutputTokens int
	timeout         time.Duration
	logger          zerolog.Logger
}

func NewOpenAICompatible(cfg OpenAIConfig, logger zerolog.Logger) *OpenAICompatible {
	apiKey := strings.TrimSpace(cfg.APIKey)
	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	if cfg.HTTPClient != nil {
		clientConfig.HTTPClient = cfg.HTTPClient
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	model := strings.TrimSpace(cfg.Model)

	return &OpenAICompatible{
		client:          openai.NewClientWithConfig(clientConfig),
		configured:      apiKey != "" && model != "",
		model:           model,
		maxOutputTokens: cfg.MaxOutputTokens,
		timeout:         timeout,
		logger:          logger,
	}
}

func (o *OpenAICompatible) Name() string {
	return "openai"
}

func (o *OpenAICompatible) Stream(ctx context.Context, req Request) iter.Seq2[RawEvent, error] {
	return func(yield func(RawEvent, error) bool) {
		if !o.configured {
			yield(RawEvent{}, fmt.Errorf("openai: api key or model missing: %w", ErrNotConfigured))
			return
		}

		request := o.chatRequest(req)
		request.Stream = true
		stream, err := o.client.CreateChatCompletionStream(ctx, request)
		if err != nil {
			if event, ok := apiErrorEvent(err); ok {
				yield(event, nil)
				return
			}
			yield(RawEvent{}, fmt.Errorf("openai: open stream: %w", err))
			return
		}
		defer stream.Close()

		for {
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				if event, ok := apiErrorEvent(err); ok {
					yield(event, nil)
					return
				}
				yield(RawEvent{}, fmt.Errorf("openai: read stream: %w", err))
				return
			}

			var text strings.Builder
			var finish *string
			for _, choice := range chunk.Choices {
				text.WriteString(choice.Delta.Content)
				if choice.FinishReason != "" {
					finish = optional(string(choice.FinishReason))
				}
			}
			event := RawEvent{
				StatusCode: http.StatusOK,
				RequestID:  chunk.ID,
				Output: &Output{
					Text:         optional(text.String()),
					FinishReason: finish,
				},
			}
			if !yield(event, nil) {
				return
			}
		}
	}
}

func (o *OpenAICompatible) Complete(ctx context.Context, req Request) (RawResponse, error) {
	if !o.configured {
		return RawResponse{}, fmt.Errorf("openai: api key or model missing: %w", ErrNotConfigured)
	}
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	response, err := o.client.CreateChatCompletion(ctx, o.chatRequest(req))
	if err != nil {
		if event, ok := apiErrorEvent(err); ok {
			return event, nil
		}
		return RawResponse{}, fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(response.Choices) == 0 {
		return RawResponse{}, errors.New("openai: chat completion returned no choices")
	}

	choice := response.Choices[0]
	return RawResponse{
		StatusCode: http.StatusOK,
		RequestID:  response.ID,
		Output: &Output{
			Text:         optional(choice.Message.Content),
			FinishReason: optional(string(choice.FinishReason)),
		},
	}, nil
}

func (o *OpenAICompatible) chatRequest(req Request) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system := strings.TrimSpace(req.Prompt.System); system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.Prompt.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt.User,
	})

	o.logger.Debug().
		Str("model", o.model).
		Int("messages", len(messages)).
		Msg("openai request")

	return openai.ChatCompletionRequest{
		Model:     o.model,
		Messages:  messages,
		MaxTokens: o.maxOutputTokens,
	}
}

// apiErrorEvent converts an error response from the upstream into an in-band
// event. Connection-level failures are not converted.
func apiErrorEvent(err error) (RawEvent, bool) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		status := apiErr.HTTPStatusCode
		if status == 0 {
			status = http.StatusInternalServerError
		}
		code := apiErr.Type
		if apiErr.Code != nil {
			code = fmt.Sprint(apiErr.Code)
		}
		return RawEvent{
			StatusCode: status,
			Code:       optional(code),
			Message:    optional(apiErr.Message),
		}, true
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		message := http.StatusText(reqErr.HTTPStatusCode)
		if reqErr.Err != nil {
			message = reqErr.Err.Error()
		}
		return RawEvent{
			StatusCode: reqErr.HTTPStatusCode,
			Message:    optional(message),
		}, true
	}
	return RawEvent{}, false
}

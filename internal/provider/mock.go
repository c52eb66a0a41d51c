package provider

import (
	"context"
	"iter"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const mockAnalysis = "```json\n" +
	`{"archetype":"Girl Next Door","analysis":"Mock analysis: warm and loyal, opens up slowly. Keep plans simple and consistent."}` +
	"\n```"

// Mock is a local stand-in used when no upstream credentials are available.
// It streams the reply word by word and echoes or mints a session id.
type Mock struct{}

func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) Name() string {
	return "mock"
}

func (m *Mock) Stream(ctx context.Context, req Request) iter.Seq2[RawEvent, error] {
	return func(yield func(RawEvent, error) bool) {
		sessionID := "mock-" + uuid.NewString()
		if req.SessionID != nil && *req.SessionID != "" {
			sessionID = *req.SessionID
		}

		for _, chunk := range mockChunks(mockReply(req.Prompt)) {
			if err := ctx.Err(); err != nil {
				yield(RawEvent{}, err)
				return
			}
			event := RawEvent{
				StatusCode: http.StatusOK,
				Output:     &Output{Text: optional(chunk), SessionID: optional(sessionID)},
			}
			if !yield(event, nil) {
				return
			}
		}
	}
}

func (m *Mock) Complete(ctx context.Context, req Request) (RawResponse, error) {
	if err := ctx.Err(); err != nil {
		return RawResponse{}, err
	}
	text := mockReply(req.Prompt)
	if strings.Contains(flatten(req.Prompt), `"archetype"`) {
		text = mockAnalysis
	}
	return RawResponse{
		StatusCode: http.StatusOK,
		Output:     &Output{Text: optional(text)},
	}, nil
}

func mockReply(p Prompt) string {
	question := strings.TrimSpace(p.User)
	if idx := strings.LastIndex(question, "\n\n"); idx >= 0 {
		question = strings.TrimSpace(question[idx+2:])
	}
	if question == "" {
		question = "No question provided."
	}
	return "Mock response: " + question
}

// mockChunks splits text after each space so that concatenating the chunks
// restores the original text.
func mockChunks(text string) []string {
	chunks := strings.SplitAfter(text, " ")
	out := chunks[:0]
	for _, chunk := range chunks {
		if chunk != "" {
			out = append(out, chunk)
		}
	}
	return out
}

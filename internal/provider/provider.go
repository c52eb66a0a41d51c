// Package provider wraps upstream conversational-AI services behind a single
// call contract. Bindings translate their wire formats into RawEvent values;
// in-band provider failures are data, only transport failures are errors.
package provider

import (
	"context"
	"errors"
	"iter"
	"net/http"
	"strconv"
)

// ErrNotConfigured is returned when a binding lacks credentials or endpoint
// identifiers. Requests fail with it instead of the process refusing to start.
var ErrNotConfigured = errors.New("provider is not configured")

// Prompt is the assembled text handed to a binding. System is empty for
// bindings that take a single prompt string.
type Prompt struct {
	System string
	User   string
}

type Request struct {
	Prompt Prompt
	// SessionID is opaque; nil starts a new conversation.
	SessionID *string
}

// Output is the optional payload of a provider event. A nil field means the
// provider did not send it for this chunk.
type Output struct {
	Text         *string
	SessionID    *string
	FinishReason *string
}

// RawEvent is one chunk of a provider stream.
type RawEvent struct {
	StatusCode int
	Code       *string
	Message    *string
	Output     *Output
	RequestID  string
}

// RawResponse is the result of a single-shot call. It has the same shape as a
// stream chunk.
type RawResponse = RawEvent

type Provider interface {
	Name() string
	// Stream returns a lazy sequence of incremental chunks. Nothing is sent
	// upstream until the sequence is ranged over; stopping the range early
	// releases the connection.
	Stream(ctx context.Context, req Request) iter.Seq2[RawEvent, error]
	Complete(ctx context.Context, req Request) (RawResponse, error)
}

// OK reports whether the provider signalled success for this event.
func (e RawEvent) OK() bool {
	return e.StatusCode >= 200 && e.StatusCode < 300
}

// Text returns the chunk text and whether it was present and non-empty.
func (e RawEvent) Text() (string, bool) {
	if e.Output == nil || e.Output.Text == nil || *e.Output.Text == "" {
		return "", false
	}
	return *e.Output.Text, true
}

// SessionID returns the echoed session identifier, or nil.
func (e RawEvent) SessionID() *string {
	if e.Output == nil || e.Output.SessionID == nil {
		return nil
	}
	id := *e.Output.SessionID
	return &id
}

// ErrorCode returns the provider error code, falling back to the status code.
func (e RawEvent) ErrorCode() string {
	if e.Code != nil && *e.Code != "" {
		return *e.Code
	}
	return strconv.Itoa(e.StatusCode)
}

// ErrorMessage returns the provider error message, falling back to the
// status text.
func (e RawEvent) ErrorMessage() string {
	if e.Message != nil && *e.Message != "" {
		return *e.Message
	}
	if text := http.StatusText(e.StatusCode); text != "" {
		return text
	}
	return "unknown provider error"
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func flatten(p Prompt) string {
	if p.System == "" {
		return p.User
	}
	if p.User == "" {
		return p.System
	}
	return p.System + "\n\n" + p.User
}

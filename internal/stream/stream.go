// Package stream turns provider chunks into the event records written to chat
// clients.
package stream

import (
	"fmt"
	"iter"

	"cyberwill/backend/internal/provider"
)

const (
	TypeAnswer = "answer"
	TypeError  = "error"
)

// Event is one NDJSON record of a chat response.
type Event struct {
	Type      string  `json:"type"`
	Content   string  `json:"content"`
	SessionID *string `json:"session_id,omitempty"`
}

func Answer(content string, sessionID *string) Event {
	return Event{Type: TypeAnswer, Content: content, SessionID: sessionID}
}

func Error(content string) Event {
	return Event{Type: TypeError, Content: content}
}

// FromRaw maps a single provider chunk. It reports false for successful
// chunks without text.
func FromRaw(raw provider.RawEvent) (Event, bool) {
	if !raw.OK() {
		return Error(fmt.Sprintf("Error %s: %s", raw.ErrorCode(), raw.ErrorMessage())), true
	}
	if text, ok := raw.Text(); ok {
		return Answer(text, raw.SessionID()), true
	}
	return Event{}, false
}

// Normalize maps raw provider chunks to events in arrival order. In-band
// provider errors become error events and iteration continues. A transport
// error, or a panic raised by the upstream sequence, ends the sequence with a
// single error event. Stopping early stops the upstream sequence.
func Normalize(raw iter.Seq2[provider.RawEvent, error]) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		var inYield, stopped bool
		emit := func(event Event) bool {
			inYield = true
			ok := yield(event)
			inYield = false
			if !ok {
				stopped = true
			}
			return ok
		}

		defer func() {
			r := recover()
			if r == nil {
				return
			}
			// Panics from the consumer are not ours to handle.
			if inYield {
				panic(r)
			}
			if !stopped {
				emit(Error(fmt.Sprint(r)))
			}
		}()

		for event, err := range raw {
			if err != nil {
				emit(Error(err.Error()))
				return
			}
			if normalized, ok := FromRaw(event); ok {
				if !emit(normalized) {
					return
				}
			}
		}
	}
}

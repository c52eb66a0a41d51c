// Command chat-tail posts one message to a running CyberWill backend and
// prints the streamed reply as it arrives.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cyberwill/backend/internal/stream"
)

type chatPayload struct {
	Message        string  `json:"message"`
	SessionID      *string `json:"session_id,omitempty"`
	ProfileContext *string `json:"profile_context,omitempty"`
}

func main() {
	var (
		baseURL string
		message string
		session string
		profile string
		timeout time.Duration
		raw     bool
	)

	flag.StringVar(&baseURL, "url", "http://localhost:8000", "backend base URL")
	flag.StringVar(&message, "message", "", "message to send (defaults to the remaining arguments)")
	flag.StringVar(&session, "session", "", "session id to continue")
	flag.StringVar(&profile, "profile", "", "profile context to attach")
	flag.DurationVar(&timeout, "timeout", 2*time.Minute, "overall request timeout")
	flag.BoolVar(&raw, "raw", false, "print NDJSON lines unchanged")
	flag.Parse()

	if strings.TrimSpace(message) == "" {
		message = strings.Join(flag.Args(), " ")
	}
	if strings.TrimSpace(message) == "" {
		log.Fatalf("message is required (use -message or pass it as arguments)")
	}

	payload := chatPayload{Message: message}
	if s := strings.TrimSpace(session); s != "" {
		payload.SessionID = &s
	}
	if p := strings.TrimSpace(profile); p != "" {
		payload.ProfileContext = &p
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	sessionID, err := tail(ctx, strings.TrimRight(baseURL, "/")+"/chat", payload, raw, os.Stdout)
	if err != nil {
		log.Fatalf("chat: %v", err)
	}
	if sessionID != "" && !raw {
		fmt.Fprintf(os.Stderr, "session_id=%s\n", sessionID)
	}
}

// tail streams one chat exchange to out and returns the last session id seen.
func tail(ctx context.Context, endpoint string, payload chatPayload, raw bool, out io.Writer) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var sessionID string
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		if raw {
			fmt.Fprintf(out, "%s\n", line)
			continue
		}

		var event stream.Event
		if err := json.Unmarshal(line, &event); err != nil {
			return sessionID, fmt.Errorf("decode event: %w", err)
		}
		switch event.Type {
		case stream.TypeAnswer:
			fmt.Fprint(out, event.Content)
			if event.SessionID != nil {
				sessionID = *event.SessionID
			}
		case stream.TypeError:
			fmt.Fprintf(os.Stderr, "\n[error] %s\n", event.Content)
		}
	}
	if err := scanner.Err(); err != nil {
		return sessionID, fmt.Errorf("read stream: %w", err)
	}
	if !raw {
		fmt.Fprintln(out)
	}
	return sessionID, nil
}

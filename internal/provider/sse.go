package provider

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// maxSSELineSize bounds a single SSE line. Long completions can exceed the
// bufio.Scanner default of 64 KiB.
const maxSSELineSize = 1 * 1024 * 1024

// maxErrorBodySize bounds reads of non-2xx response bodies.
const maxErrorBodySize int64 = 1 * 1024 * 1024

type sseFrame struct {
	ID     string
	Event  string
	Data   string
	Status int
}

// sseScanner reads DashScope-flavoured server-sent events. Besides the usual
// id/event/data fields, DashScope sends the per-frame HTTP status as a comment
// line of the form ":HTTP_STATUS/200".
type sseScanner struct {
	scanner *bufio.Scanner
}

func newSSEScanner(reader io.Reader) *sseScanner {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSSELineSize)
	return &sseScanner{scanner: scanner}
}

// Next returns the next frame carrying data. It returns io.EOF when the body
// is exhausted or the "[DONE]" sentinel arrives.
func (s *sseScanner) Next() (sseFrame, error) {
	var (
		frame     sseFrame
		dataLines []string
	)

	for s.scanner.Scan() {
		line := strings.TrimRight(s.scanner.Text(), "\r")

		if line == "" {
			if len(dataLines) > 0 {
				frame.Data = strings.Join(dataLines, "\n")
				return frame, nil
			}
			frame = sseFrame{}
			continue
		}

		if strings.HasPrefix(line, ":") {
			if status, ok := parseStatusComment(line); ok {
				frame.Status = status
			}
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "data":
			if strings.TrimSpace(value) == "[DONE]" {
				return sseFrame{}, io.EOF
			}
			dataLines = append(dataLines, value)
		case "event":
			frame.Event = strings.TrimSpace(value)
		case "id":
			frame.ID = strings.TrimSpace(value)
		}
	}

	if err := s.scanner.Err(); err != nil {
		return sseFrame{}, fmt.Errorf("sse scanner: %w", err)
	}
	if len(dataLines) > 0 {
		frame.Data = strings.Join(dataLines, "\n")
		return frame, nil
	}
	return sseFrame{}, io.EOF
}

func parseStatusComment(line string) (int, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(strings.TrimPrefix(line, ":")), "HTTP_STATUS/")
	if !ok {
		return 0, false
	}
	status, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil {
		return 0, false
	}
	return status, true
}

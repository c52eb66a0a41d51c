package server

import (
	"strconv"
	"strings"
)

type chatRequest struct {
	Message        string  `json:"message"`
	SessionID      *string `json:"session_id"`
	ProfileContext *string `json:"profile_context"`
}

type analyzeRequest struct {
	Name   string         `json:"name"`
	Stage  *string        `json:"stage"`
	Traits map[string]any `json:"traits"`
}

type analyzeResponse struct {
	Archetype string `json:"archetype"`
	Analysis  string `json:"analysis"`
}

// traitValues keeps scalar trait values as strings. Other values are
// dropped and later render as the default.
func (r analyzeRequest) traitValues() map[string]string {
	result := make(map[string]string, len(r.Traits))
	for key, value := range r.Traits {
		if text := strings.TrimSpace(toString(value)); text != "" {
			result[strings.ToLower(strings.TrimSpace(key))] = text
		}
	}
	return result
}

func toString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

package parsers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	errx "github.com/Chative-core-poc-v1/dialogue/internal/core/error"
	logx "github.com/Chative-core-poc-v1/dialogue/pkg/logger"
)

// basic safety limits to avoid pathological inputs
const (
	maxContentLen = 128 * 1024 // 128KB
	maxErrSnippet = 200        // limit error snippet size
)

// ParseJSONObject extracts a JSON object from model output. It tolerates code
// fences and prose around the object, and trims string values.
func ParseJSONObject(content string) (out map[string]any, err error) {
	// panic safety
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "json_parser").Msgf("panic recovered: %v", r)
			err = errx.New(fmt.Errorf("json parser panic"), http.StatusInternalServerError, errx.SystemErrorMessage)
			out = nil
		}
	}()

	if len(content) > maxContentLen {
		logx.Warn().
			Str("component", "json_parser").
			Int("max_len", maxContentLen).
			Int("orig_len", len(content)).
			Msg("content truncated due to size limit")
		content = content[:maxContentLen]
	}
	if !utf8.ValidString(content) {
		return nil, fmt.Errorf("content invalid utf8")
	}

	body := stripFences(strings.TrimSpace(content))
	if body == "" {
		return nil, fmt.Errorf("empty content")
	}

	if err := json.Unmarshal([]byte(body), &out); err == nil && out != nil {
		return TrimStrings(out), nil
	}

	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no json object in: %s", safeSnippet(body))
	}
	out = nil
	if err := json.Unmarshal([]byte(body[start:end+1]), &out); err != nil {
		return nil, fmt.Errorf("invalid json object %q: %w", safeSnippet(body[start:end+1]), err)
	}
	if out == nil {
		return nil, fmt.Errorf("json null is not an object")
	}
	return TrimStrings(out), nil
}

// TrimStrings trims whitespace from top-level string values in place.
func TrimStrings(m map[string]any) map[string]any {
	for k, v := range m {
		if s, ok := v.(string); ok {
			m[k] = strings.TrimSpace(s)
		}
	}
	return m
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the language tag line (```json)
		s = s[nl+1:]
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

func safeSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet]
}

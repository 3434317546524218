// Package extract runs LLM calls that must yield a JSON object, degrading
// from JSON mode to a plain completion and finally to a caller default.
package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/Chative-core-poc-v1/dialogue/internal/agent/graph/parsers"
	"github.com/Chative-core-poc-v1/dialogue/internal/agent/llm"
	"github.com/Chative-core-poc-v1/dialogue/internal/agent/metrics"
	logx "github.com/Chative-core-poc-v1/dialogue/pkg/logger"
	"github.com/mitchellh/mapstructure"
)

type Tier string

const (
	TierJSON     Tier = "json"
	TierPlain    Tier = "plain"
	TierFallback Tier = "fallback"
)

// Request describes one structured call. Secondary defaults to Primary.
// Decode turns the parsed object into T; a decode error degrades like a parse error.
type Request[T any] struct {
	Purpose   string
	Prompt    string
	Primary   llm.Client
	Secondary llm.Client
	Decode    func(map[string]any) (T, error)
	Default   func() T
	Metrics   *metrics.Collector
}

type Result[T any] struct {
	Value    T
	Tier     Tier
	Fallback bool
	// Err is the last failure seen before the returned tier, if any.
	Err error
}

// Call tries JSON mode, then a plain completion of the same prompt, then the
// default. It never returns a parse error and never panics.
func Call[T any](ctx context.Context, req Request[T]) (res Result[T]) {
	purpose := req.Purpose
	if purpose == "" {
		purpose = "structured"
	}
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("purpose", purpose).Msgf("structured call panic: %v", r)
			res = fallback(req, fmt.Errorf("structured call panic: %v", r))
		}
		req.Metrics.ObserveStructuredCall(purpose, string(res.Tier))
	}()

	secondary := req.Secondary
	if secondary == nil {
		secondary = req.Primary
	}

	var lastErr error
	attempts := []struct {
		tier   Tier
		client llm.Client
		json   bool
	}{
		{TierJSON, req.Primary, true},
		{TierPlain, secondary, false},
	}
	for _, a := range attempts {
		if a.client == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		v, err := attempt(ctx, a.client, req, a.json)
		if err == nil {
			return Result[T]{Value: v, Tier: a.tier, Err: lastErr}
		}
		logx.Warn().Str("purpose", purpose).Str("tier", string(a.tier)).Err(err).Msg("structured call degraded")
		lastErr = err
	}
	return fallback(req, lastErr)
}

func attempt[T any](ctx context.Context, client llm.Client, req Request[T], json bool) (T, error) {
	var zero T
	text, err := client.Complete(ctx, llm.Request{Prompt: req.Prompt, JSON: json})
	if err != nil {
		return zero, err
	}
	obj, err := parsers.ParseJSONObject(text)
	if err != nil {
		return zero, err
	}
	if req.Decode == nil {
		return decodeInto[T](obj)
	}
	return req.Decode(obj)
}

func fallback[T any](req Request[T], err error) Result[T] {
	var v T
	if req.Default != nil {
		v = req.Default()
	}
	return Result[T]{Value: v, Tier: TierFallback, Fallback: true, Err: err}
}

func decodeInto[T any](obj map[string]any) (T, error) {
	var out T
	if m, ok := any(obj).(T); ok {
		return m, nil
	}
	if err := mapstructure.WeakDecode(obj, &out); err != nil {
		return out, fmt.Errorf("decode structured result: %w", err)
	}
	return out, nil
}

// ExtractFields returns the parsed object with trimmed string values, or an
// empty map once every tier has failed.
func ExtractFields(ctx context.Context, client llm.Client, prompt string, m *metrics.Collector) Result[map[string]any] {
	return Call(ctx, Request[map[string]any]{
		Purpose: "extraction",
		Prompt:  prompt,
		Primary: client,
		Decode: func(obj map[string]any) (map[string]any, error) {
			return parsers.TrimStrings(obj), nil
		},
		Default: func() map[string]any { return map[string]any{} },
		Metrics: m,
	})
}

// DefaultLanguage is used when detection fails.
const DefaultLanguage = "English"

// DetectLanguage asks for {"language": "..."}.
func DetectLanguage(ctx context.Context, client llm.Client, prompt string, m *metrics.Collector) Result[string] {
	return Call(ctx, Request[string]{
		Purpose: "language_detection",
		Prompt:  prompt,
		Primary: client,
		Decode: func(obj map[string]any) (string, error) {
			lang, _ := obj["language"].(string)
			lang = strings.TrimSpace(lang)
			if lang == "" {
				return "", fmt.Errorf("language missing")
			}
			return lang, nil
		},
		Default: func() string { return DefaultLanguage },
		Metrics: m,
	})
}

type Question struct {
	Question      string `json:"question" mapstructure:"question"`
	CorrectAnswer string `json:"correct_answer" mapstructure:"correct_answer"`
	QuestionType  string `json:"question_type" mapstructure:"question_type"`
}

// FallbackQuestions are the canned comprehension questions for language.
func FallbackQuestions(language string) []Question {
	return []Question{
		{
			Question:      fmt.Sprintf("What is the main topic of this article? (in %s)", language),
			CorrectAnswer: "Main topic based on article content",
			QuestionType:  "main_idea",
		},
		{
			Question:      fmt.Sprintf("What are the key details mentioned in this article? (in %s)", language),
			CorrectAnswer: "Key details from the article",
			QuestionType:  "detail",
		},
	}
}

// Questions asks for {"questions": [...]} and falls back to FallbackQuestions.
func Questions(ctx context.Context, client llm.Client, prompt, language string, m *metrics.Collector) Result[[]Question] {
	return Call(ctx, Request[[]Question]{
		Purpose: "questions",
		Prompt:  prompt,
		Primary: client,
		Decode: func(obj map[string]any) ([]Question, error) {
			var payload struct {
				Questions []Question `mapstructure:"questions"`
			}
			if err := mapstructure.WeakDecode(obj, &payload); err != nil {
				return nil, err
			}
			out := payload.Questions[:0]
			for _, q := range payload.Questions {
				if strings.TrimSpace(q.Question) != "" {
					out = append(out, q)
				}
			}
			if len(out) == 0 {
				return nil, fmt.Errorf("no questions")
			}
			return out, nil
		},
		Default: func() []Question { return FallbackQuestions(language) },
		Metrics: m,
	})
}

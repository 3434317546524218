package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/Chative-core-poc-v1/dialogue/internal/agent/metrics"
	"github.com/Chative-core-poc-v1/dialogue/internal/agent/model"
	errx "github.com/Chative-core-poc-v1/dialogue/internal/core/error"
	logx "github.com/Chative-core-poc-v1/dialogue/pkg/logger"
)

const jsonMIMEType = "application/json"

// Gemini serves plain completions through the eino chat model and JSON-mode
// completions through the genai client directly.
type Gemini struct {
	client   *genai.Client
	chat     *gemini.ChatModel
	settings model.ModelSettings
	timeout  time.Duration
	metrics  *metrics.Collector
}

// NewGenAIClient creates the shared Gemini API client.
func NewGenAIClient(ctx context.Context, apiKey, baseURL string) (*genai.Client, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		clientCfg.HTTPOptions.BaseURL = baseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}
	return client, nil
}

// NewGemini builds a Client for one model configuration.
func NewGemini(ctx context.Context, client *genai.Client, settings model.ModelSettings, timeout time.Duration, mc *metrics.Collector) (*Gemini, error) {
	temperature := settings.Temperature
	maxTokens := settings.MaxTokens
	chat, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       settings.Model,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Str("model", settings.Model).Msg("Error creating chat model")
		return nil, fmt.Errorf("error creating chat model %s: %w", settings.Model, err)
	}
	return &Gemini{client: client, chat: chat, settings: settings, timeout: timeout, metrics: mc}, nil
}

func (g *Gemini) Complete(ctx context.Context, req Request) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	temperature := g.settings.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	start := time.Now()
	var (
		text  string
		usage *model.TokenUsage
		err   error
	)
	if req.JSON {
		text, usage, err = g.completeJSON(ctx, req.Prompt, temperature)
	} else {
		text, usage, err = g.completePlain(ctx, req.Prompt, temperature)
	}

	mode := "plain"
	if req.JSON {
		mode = "json"
	}
	cost := g.logUsage(mode, usage)
	g.metrics.ObserveLLM(g.settings.Model, mode, err, time.Since(start), cost)
	if err != nil {
		return "", errx.WrapLLM(err)
	}
	return strings.TrimSpace(text), nil
}

func (g *Gemini) completePlain(ctx context.Context, prompt string, temperature float32) (string, *model.TokenUsage, error) {
	out, err := g.chat.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)}, einomodel.WithTemperature(temperature))
	if err != nil {
		return "", nil, err
	}
	if out == nil {
		return "", nil, fmt.Errorf("empty response")
	}
	var usage *model.TokenUsage
	if out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
		usage = &model.TokenUsage{
			PromptTokens:     out.ResponseMeta.Usage.PromptTokens,
			CompletionTokens: out.ResponseMeta.Usage.CompletionTokens,
			TotalTokens:      out.ResponseMeta.Usage.TotalTokens,
		}
	}
	return out.Content, usage, nil
}

func (g *Gemini) completeJSON(ctx context.Context, prompt string, temperature float32) (string, *model.TokenUsage, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: jsonMIMEType,
		Temperature:      genai.Ptr(temperature),
	}
	if g.settings.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(g.settings.MaxTokens)
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.settings.Model, genai.Text(prompt), cfg)
	if err != nil {
		return "", nil, err
	}
	var usage *model.TokenUsage
	if resp.UsageMetadata != nil {
		usage = &model.TokenUsage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return resp.Text(), usage, nil
}

func (g *Gemini) logUsage(mode string, usage *model.TokenUsage) float64 {
	if usage == nil {
		return 0
	}
	inC, outC, totalC := model.ComputeCost(usage, model.ResolvePricing(g.settings.Model))
	logx.Debug().
		Str("model", g.settings.Model).
		Str("mode", mode).
		Int("prompt_tokens", usage.PromptTokens).
		Int("completion_tokens", usage.CompletionTokens).
		Int("total_tokens", usage.TotalTokens).
		Float64("input_cost_usd", inC).
		Float64("output_cost_usd", outC).
		Float64("total_cost_usd", totalC).
		Msg("LLM usage")
	return totalC
}

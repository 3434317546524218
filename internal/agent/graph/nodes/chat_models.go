package nodes

import (
	"context"
	"fmt"
	"time"

	logx "github.com/Chative-core-poc-v1/dialogue/pkg/logger"

	"github.com/Chative-core-poc-v1/dialogue/internal/agent/llm"
	"github.com/Chative-core-poc-v1/dialogue/internal/agent/metrics"
	"github.com/Chative-core-poc-v1/dialogue/internal/agent/model"
)

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	APIKey   string
	BaseURL  string
	Decision *model.DecisionModelConfig
	Chat     *model.ChatModelConfig
	JSON     *model.JSONModelConfig
	// Timeout bounds each completion call.
	Timeout time.Duration
	Metrics *metrics.Collector
}

// ChatModels holds the decision, chat and JSON models
type ChatModels struct {
	Decision          llm.Client
	Chat              llm.Client
	JSON              llm.Client
	DecisionModelName string
	ChatModelName     string
	JSONModelName     string
}

// NewChatModels creates all three Gemini models over one shared client
func NewChatModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {
	if config.Decision == nil || config.Chat == nil || config.JSON == nil {
		return nil, fmt.Errorf("model configs are not properly initialized")
	}

	client, err := llm.NewGenAIClient(ctx, config.APIKey, config.BaseURL)
	if err != nil {
		return nil, err
	}

	decision, err := llm.NewGemini(ctx, client, config.Decision.Settings(), config.Timeout, config.Metrics)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating decision model")
		return nil, fmt.Errorf("error creating decision model: %w", err)
	}

	chat, err := llm.NewGemini(ctx, client, config.Chat.Settings(), config.Timeout, config.Metrics)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating chat model")
		return nil, fmt.Errorf("error creating chat model: %w", err)
	}

	jsonModel, err := llm.NewGemini(ctx, client, config.JSON.Settings(), config.Timeout, config.Metrics)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating JSON model")
		return nil, fmt.Errorf("error creating JSON model: %w", err)
	}

	logx.Debug().
		Str("decision_model", config.Decision.Model).
		Str("chat_model", config.Chat.Model).
		Str("json_model", config.JSON.Model).
		Msg("Chat models created")

	return &ChatModels{
		Decision:          decision,
		Chat:              chat,
		JSON:              jsonModel,
		DecisionModelName: config.Decision.Model,
		ChatModelName:     config.Chat.Model,
		JSONModelName:     config.JSON.Model,
	}, nil
}

package model

import "time"

// ================ Config ================
type ConversationConfig struct {
	TTL     time.Duration `envconfig:"CONVERSATION_TTL" default:"24h"`
	LockTTL time.Duration `envconfig:"CONVERSATION_LOCK_TTL" default:"2m"`
	// MaxRunSteps caps graph steps per turn.
	MaxRunSteps int `envconfig:"CONVERSATION_MAX_RUN_STEPS" default:"64"`
}

type DecisionModelConfig struct {
	Model       string  `envconfig:"DECISION_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"DECISION_MAX_TOKENS" default:"1024"`
	Temperature float32 `envconfig:"DECISION_TEMPERATURE" default:"0.1"`
}

type ChatModelConfig struct {
	Model       string  `envconfig:"CHAT_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"CHAT_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"CHAT_TEMPERATURE" default:"0.3"`
}

type JSONModelConfig struct {
	Model       string  `envconfig:"JSON_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"JSON_MAX_TOKENS" default:"1024"`
	Temperature float32 `envconfig:"JSON_TEMPERATURE" default:"0.1"`
}

// ModelSettings is the provider-neutral form of the three model configs.
type ModelSettings struct {
	Model       string
	MaxTokens   int
	Temperature float32
}

func (c DecisionModelConfig) Settings() ModelSettings {
	return ModelSettings{Model: c.Model, MaxTokens: c.MaxTokens, Temperature: c.Temperature}
}

func (c ChatModelConfig) Settings() ModelSettings {
	return ModelSettings{Model: c.Model, MaxTokens: c.MaxTokens, Temperature: c.Temperature}
}

func (c JSONModelConfig) Settings() ModelSettings {
	return ModelSettings{Model: c.Model, MaxTokens: c.MaxTokens, Temperature: c.Temperature}
}

type ToolsConfig struct {
	TavilyAPIKey  string        `envconfig:"TAVILY_API_KEY"`
	TavilyBaseURL string        `envconfig:"TAVILY_BASE_URL" default:"https://api.tavily.com"`
	StoreDSN      string        `envconfig:"STORE_DSN" default:"file:dialogue.db"`
	Timeout       time.Duration `envconfig:"TOOL_TIMEOUT" default:"20s"`
}

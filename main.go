package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/Chative-core-poc-v1/dialogue/internal/agent/graph"
	"github.com/Chative-core-poc-v1/dialogue/internal/agent/graph/conversations"
	"github.com/Chative-core-poc-v1/dialogue/internal/agent/metrics"
	"github.com/Chative-core-poc-v1/dialogue/internal/agent/model"
	"github.com/Chative-core-poc-v1/dialogue/internal/agent/repo"
	"github.com/Chative-core-poc-v1/dialogue/internal/agent/tools"
	"github.com/Chative-core-poc-v1/dialogue/internal/core"
	logx "github.com/Chative-core-poc-v1/dialogue/pkg/logger"
	pkgredis "github.com/Chative-core-poc-v1/dialogue/pkg/redis"
)

// AppConfig defines all configurable parameters of the agent, sourced from
// environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment core.Environment `envconfig:"ENVIRONMENT" default:"development"`

	// Infrastructure. Without REDIS_URL sessions live in process memory.
	Redis pkgredis.Config

	// LLM provider
	APIKey     string        `envconfig:"GEMINI_API_KEY"`
	BaseURL    string        `envconfig:"GEMINI_BASE_URL"`
	LLMTimeout time.Duration `envconfig:"LLM_TIMEOUT" default:"60s"`

	// Agent configs
	AgentConfigPath string `envconfig:"AGENT_CONFIG_PATH" default:"agent.yaml"`
	HTTPAddr        string `envconfig:"HTTP_ADDR" default:":8080"`
	Decision        model.DecisionModelConfig
	Chat            model.ChatModelConfig
	JSON            model.JSONModelConfig
	Conversation    model.ConversationConfig
	Tools           model.ToolsConfig
}

// app is the process-wide wiring shared by the commands.
type app struct {
	cfg      AppConfig
	rdb      *goredis.Client
	registry *prometheus.Registry
	metrics  *metrics.Collector
	sessions *conversations.SessionsManager

	checkpoints model.CheckpointStore
	transcripts model.TranscriptRepository
	locker      model.SessionLocker
}

func loadApp(quiet bool) (*app, error) {
	// Load .env file
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}
	logx.Init(logx.LoggerOpts{Environment: cfg.Environment, Quiet: quiet})

	a := &app{cfg: cfg, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.NewCollector("dialogue", a.registry)

	if cfg.Redis.URL != "" {
		rdb, err := cfg.Redis.New()
		if err != nil {
			return nil, fmt.Errorf("failed to initialise Redis client: %w", err)
		}
		a.rdb = rdb
		a.checkpoints = repo.NewRedisCheckpointStore(rdb, cfg.Redis.KeyPrefix, cfg.Conversation.TTL)
		a.transcripts = repo.NewRedisTranscriptRepository(rdb, cfg.Redis.KeyPrefix, cfg.Conversation.TTL)
		a.locker = repo.NewRedisLocker(rdb, cfg.Redis.KeyPrefix)
		logx.Debug().Msg("Connected to Redis successfully")
	} else {
		a.checkpoints = repo.NewMemoryCheckpointStore()
		a.transcripts = repo.NewMemoryTranscriptRepository()
		a.locker = repo.NewLocalLocker()
		logx.Warn().Msg("REDIS_URL not set, sessions are kept in memory")
	}
	a.sessions = conversations.NewSessionsManager(a.checkpoints, a.transcripts, a.locker, cfg.Conversation)
	return a, nil
}

func (a *app) Close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
}

// runner builds the tool backends and the conversation graph.
func (a *app) runner(ctx context.Context) (*graph.Runner, error) {
	if a.cfg.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	agent, err := model.LoadAgentConfig(a.cfg.AgentConfigPath)
	if err != nil {
		return nil, err
	}

	store, err := tools.OpenStore(a.cfg.Tools.StoreDSN)
	if err != nil {
		return nil, err
	}
	hc := &http.Client{Timeout: a.cfg.Tools.Timeout}
	registry := tools.NewDefaultRegistry(tools.Deps{
		Store:   store,
		Search:  tools.NewTavilyClient(a.cfg.Tools.TavilyAPIKey, a.cfg.Tools.TavilyBaseURL, hc),
		HTTP:    hc,
		Metrics: a.metrics,
		Timeout: a.cfg.Tools.Timeout,
	})
	for _, t := range agent.EnabledTools() {
		if !registry.Has(t.Implementation()) {
			logx.Warn().Str("tool", t.Name).Str("impl", t.Implementation()).Msg("No implementation registered, generic tool will be used")
		}
	}

	return graph.BuildRunner(ctx, graph.Config{
		APIKey:       a.cfg.APIKey,
		BaseURL:      a.cfg.BaseURL,
		Decision:     a.cfg.Decision,
		Chat:         a.cfg.Chat,
		JSON:         a.cfg.JSON,
		LLMTimeout:   a.cfg.LLMTimeout,
		Agent:        agent,
		Conversation: a.cfg.Conversation,
		Tools:        registry,
		Metrics:      a.metrics,
		Checkpoints:  a.checkpoints,
		Transcripts:  a.transcripts,
		Locker:       a.locker,
	})
}

var rootCmd = &cobra.Command{
	Use:           "dialogue",
	Short:         "Conversational agent state machine",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.AddCommand(chatCmd, serveCmd, sessionCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

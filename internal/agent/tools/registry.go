// Package tools maps tool implementations to executors that always return a
// result envelope.
package tools

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/Chative-core-poc-v1/dialogue/internal/agent/fields"
	"github.com/Chative-core-poc-v1/dialogue/internal/agent/metrics"
	"github.com/Chative-core-poc-v1/dialogue/internal/agent/model"
	logx "github.com/Chative-core-poc-v1/dialogue/pkg/logger"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/mitchellh/mapstructure"
)

const (
	ImplSheets       = "sheets"
	ImplWebSearch    = "web_search"
	ImplTavily       = "tavily"
	ImplAPIRetrieval = "api_retrieval"
	ImplEmail        = "email"
	ImplDualSearch   = "dual_search"
	ImplGeneric      = "generic"
)

// RuntimeConfig is the per-tool configuration resolved for one execution.
type RuntimeConfig struct {
	ToolName        string
	Impl            string
	Category        model.ToolCategory
	CredentialsPath string
	Fields          []fields.Field
	Settings        map[string]any
}

type Input struct {
	Data    map[string]any
	Runtime RuntimeConfig
	Verbose bool
}

// Func executes a tool. Implementations report failures in the envelope.
type Func func(ctx context.Context, in Input) model.ToolResult

type Registry struct {
	funcs   map[string]Func
	metrics *metrics.Collector
	timeout time.Duration
}

// NewRegistry returns a registry holding only the generic tool.
func NewRegistry(m *metrics.Collector, timeout time.Duration) *Registry {
	r := &Registry{funcs: map[string]Func{}, metrics: m, timeout: timeout}
	r.Register(ImplGeneric, Generic)
	return r
}

// Register binds impl to fn. Registration happens before the registry is shared.
func (r *Registry) Register(impl string, fn Func) {
	r.funcs[strings.ToLower(strings.TrimSpace(impl))] = fn
}

func (r *Registry) Has(impl string) bool {
	_, ok := r.funcs[strings.ToLower(strings.TrimSpace(impl))]
	return ok
}

func (r *Registry) Impls() []string {
	out := make([]string, 0, len(r.funcs))
	for k := range r.funcs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Execute runs toolType with data. Unknown types use the generic tool, and a
// panic becomes a failure envelope.
func (r *Registry) Execute(ctx context.Context, toolType string, data map[string]any, rt RuntimeConfig, verbose bool) (res model.ToolResult) {
	key := strings.ToLower(strings.TrimSpace(toolType))
	fn, ok := r.funcs[key]
	if !ok {
		logx.Verbose(verbose).Str("tool", toolType).Msg("unknown tool type, using generic")
		fn = r.funcs[ImplGeneric]
	}
	if data == nil {
		data = map[string]any{}
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			logx.Error().Str("tool", toolType).Msgf("tool panic: %v", p)
			res = model.FailedResult(toolType, fmt.Sprintf("Tool execution failed: %v", p), fmt.Sprint(p), data)
		}
		if res.Type == "" {
			res.Type = toolType
		}
		if !res.Success && res.Error == "" {
			res = model.FailedResult(res.Type, res.Message, "", res.Data)
		}
		r.metrics.ObserveTool(toolType, res.Success, time.Since(start))
		logx.Verbose(verbose).
			Str("tool", toolType).
			Bool("success", res.Success).
			Str("message", res.Message).
			Dur("took", time.Since(start)).
			Msg("tool executed")
	}()

	return fn(ctx, Input{Data: data, Runtime: rt, Verbose: verbose})
}

// BuildRuntimeConfig resolves toolName against the agent config, falling back
// to the first enabled tool.
func BuildRuntimeConfig(cfg *model.AgentConfig, toolName string) RuntimeConfig {
	if cfg == nil {
		return RuntimeConfig{ToolName: toolName, Impl: toolName, Settings: map[string]any{}}
	}
	tool, ok := cfg.FindTool(toolName)
	if !ok {
		enabled := cfg.EnabledTools()
		if len(enabled) == 0 {
			return RuntimeConfig{ToolName: toolName, Impl: toolName, CredentialsPath: cfg.CredentialsPath, Settings: map[string]any{}}
		}
		tool = enabled[0]
	}
	settings := map[string]any{}
	for k, v := range tool.Config {
		settings[k] = v
	}
	return RuntimeConfig{
		ToolName:        tool.Name,
		Impl:            tool.Implementation(),
		Category:        tool.Category(),
		CredentialsPath: cfg.CredentialsPath,
		Fields:          fields.Normalize(tool.InputSchema),
		Settings:        settings,
	}
}

// Deps are the backends used by the default tool set. Nil backends produce
// configuration failures at execution time.
type Deps struct {
	Store     *Store
	Retriever retriever.Retriever
	Search    *TavilyClient
	HTTP      *http.Client
	Mailer    Mailer
	Metrics   *metrics.Collector
	Timeout   time.Duration
}

// NewDefaultRegistry registers every built-in tool.
func NewDefaultRegistry(d Deps) *Registry {
	if d.HTTP == nil {
		d.HTTP = &http.Client{}
	}
	if d.Mailer == nil {
		d.Mailer = SMTPMailer{}
	}
	if d.Retriever == nil && d.Store != nil {
		d.Retriever = d.Store
	}
	r := NewRegistry(d.Metrics, d.Timeout)
	r.Register(ImplSheets, Sheets(d.Store))
	r.Register(ImplWebSearch, WebSearch(d.Search))
	r.Register(ImplTavily, WebSearch(d.Search))
	r.Register(ImplAPIRetrieval, APIRetrieval(d.HTTP))
	r.Register(ImplEmail, Email(d.Mailer))
	r.Register(ImplDualSearch, DualSearch(d.Retriever, d.Search))
	return r
}

// Generic echoes the data back as a success.
func Generic(_ context.Context, in Input) model.ToolResult {
	n := len(nonEmptyKeys(in.Data))
	summary := fmt.Sprintf("Processed %d field(s).", n)
	return model.ToolResult{
		Success: true,
		Type:    ImplGeneric,
		Message: "Generic tool executed",
		Data:    in.Data,
		Summary: summary,
	}
}

func decodeSettings(in map[string]any, out any) error {
	return mapstructure.WeakDecode(in, out)
}

func nonEmptyKeys(data map[string]any) []string {
	keys := make([]string, 0, len(data))
	for k, v := range data {
		if !model.IsEmptyValue(v) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// firstString returns the first non-blank string value among keys.
func firstString(data map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := data[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

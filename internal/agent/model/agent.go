package model

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Chative-core-poc-v1/dialogue/internal/agent/fields"
)

const DefaultAgentPrompt = "You are a helpful assistant."

// Node names that a tool may not shadow.
var reservedToolNames = map[string]bool{"chat": true, "end": true, "wait_user_input": true}

// AgentConfig is the declarative per-agent document.
type AgentConfig struct {
	Name                 string            `yaml:"name" json:"name"`
	AgentPrompt          string            `yaml:"agent_prompt" json:"agent_prompt"`
	Tools                []ToolConfig      `yaml:"tools" json:"tools"`
	Translation          TranslationConfig `yaml:"translation" json:"translation"`
	ExitConditions       []ExitCondition   `yaml:"exit_conditions" json:"exit_conditions"`
	ExitConditionMode    string            `yaml:"exit_condition_mode" json:"exit_condition_mode"`
	EvaluateExitEachTurn bool              `yaml:"evaluate_exit_each_turn" json:"evaluate_exit_each_turn"`
	CredentialsPath      string            `yaml:"credentials_path" json:"credentials_path"`
	Verbose              bool              `yaml:"verbose" json:"verbose"`
}

type ToolConfig struct {
	Name        string         `yaml:"name" json:"name"`
	Type        ToolCategory   `yaml:"type" json:"type"`
	Impl        string         `yaml:"impl" json:"impl"`
	Description string         `yaml:"description" json:"description"`
	Enabled     *bool          `yaml:"enabled" json:"enabled,omitempty"`
	Confirm     bool           `yaml:"confirm" json:"confirm"`
	InputSchema any            `yaml:"input_schema" json:"input_schema"`
	Config      map[string]any `yaml:"config" json:"config"`
}

type TranslationConfig struct {
	Enabled          bool   `yaml:"enabled" json:"enabled"`
	SourceLanguage   string `yaml:"source_language" json:"source_language"`
	TargetLanguage   string `yaml:"target_language" json:"target_language"`
	ResponseLanguage string `yaml:"response_language" json:"response_language"`
}

// ExitCondition is one termination predicate; Expression depends on Type.
type ExitCondition struct {
	Type       string `yaml:"type" json:"type"`
	Expression any    `yaml:"expression" json:"expression"`
}

// UnmarshalYAML records the declaration order of input_schema properties.
func (t *ToolConfig) UnmarshalYAML(node *yaml.Node) error {
	type plain ToolConfig
	if err := node.Decode((*plain)(t)); err != nil {
		return err
	}
	schema, ok := t.InputSchema.(map[string]any)
	if !ok {
		return nil
	}
	if _, set := schema[fields.PropertyOrderKey]; set {
		return nil
	}
	props := mappingValue(mappingValue(node, "input_schema"), "properties")
	if props == nil || props.Kind != yaml.MappingNode {
		return nil
	}
	order := make([]any, 0, len(props.Content)/2)
	for i := 0; i+1 < len(props.Content); i += 2 {
		order = append(order, props.Content[i].Value)
	}
	schema[fields.PropertyOrderKey] = order
	return nil
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func (t ToolConfig) IsEnabled() bool { return t.Enabled == nil || *t.Enabled }

// Implementation returns the registry id backing the tool.
func (t ToolConfig) Implementation() string {
	if t.Impl != "" {
		return t.Impl
	}
	return t.Name
}

// Category defaults to input.
func (t ToolConfig) Category() ToolCategory {
	if t.Type == "" {
		return CategoryInput
	}
	return t.Type
}

func (c *AgentConfig) Prompt() string {
	if strings.TrimSpace(c.AgentPrompt) == "" {
		return DefaultAgentPrompt
	}
	return c.AgentPrompt
}

// EnabledTools returns tools in declaration order.
func (c *AgentConfig) EnabledTools() []ToolConfig {
	out := make([]ToolConfig, 0, len(c.Tools))
	for _, t := range c.Tools {
		if t.IsEnabled() && t.Name != "" {
			out = append(out, t)
		}
	}
	return out
}

// FindTool resolves an enabled tool by case-insensitive name.
func (c *AgentConfig) FindTool(name string) (ToolConfig, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return ToolConfig{}, false
	}
	for _, t := range c.EnabledTools() {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return ToolConfig{}, false
}

// ExitMode is "or" unless configured as "and".
func (c *AgentConfig) ExitMode() string {
	if strings.EqualFold(strings.TrimSpace(c.ExitConditionMode), "and") {
		return "and"
	}
	return "or"
}

func (t TranslationConfig) Source() string   { return orDefault(t.SourceLanguage, "auto") }
func (t TranslationConfig) Target() string   { return orDefault(t.TargetLanguage, "English") }
func (t TranslationConfig) Response() string { return orDefault(t.ResponseLanguage, t.Source()) }

// Validate checks tool naming rules.
func (c *AgentConfig) Validate() error {
	seen := map[string]bool{}
	for i, t := range c.Tools {
		name := strings.ToLower(strings.TrimSpace(t.Name))
		if name == "" {
			return fmt.Errorf("tools[%d]: name is required", i)
		}
		if reservedToolNames[name] {
			return fmt.Errorf("tools[%d]: %q is a reserved name", i, t.Name)
		}
		if seen[name] {
			return fmt.Errorf("tools[%d]: duplicate tool name %q", i, t.Name)
		}
		seen[name] = true
		switch t.Category() {
		case CategoryInput, CategoryRetrieval:
		default:
			return fmt.Errorf("tools[%d]: unknown type %q", i, t.Type)
		}
	}
	return nil
}

// ParseAgentConfig decodes and validates a YAML agent document.
func ParseAgentConfig(data []byte) (*AgentConfig, error) {
	var cfg AgentConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse agent config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func LoadAgentConfig(path string) (*AgentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read agent config: %w", err)
	}
	return ParseAgentConfig(data)
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

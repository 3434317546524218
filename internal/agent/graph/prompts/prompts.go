// Package prompts renders the embedded prompt templates used by the graph nodes.
package prompts

import (
	"context"
	"embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed template/*.txt
var templateFS embed.FS

type Name string

const (
	Decision        Name = "decision"
	Chat            Name = "chat"
	Extract         Name = "extract"
	ToolAnswer      Name = "tool_answer"
	TranslateInput  Name = "translate_input"
	TranslateOutput Name = "translate_output"
	DetectLanguage  Name = "detect_language"
)

var names = []Name{Decision, Chat, Extract, ToolAnswer, TranslateInput, TranslateOutput, DetectLanguage}

// Bundle renders a named prompt with template variables.
type Bundle interface {
	Render(ctx context.Context, name Name, vars map[string]any) (string, error)
}

// Templates is the embedded prompt set. It is read-only after construction.
type Templates struct {
	sources map[Name]string
}

// Default loads every embedded template.
func Default() *Templates {
	t := &Templates{sources: make(map[Name]string, len(names))}
	for _, n := range names {
		b, err := templateFS.ReadFile("template/" + string(n) + ".txt")
		if err != nil {
			panic(fmt.Sprintf("missing embedded prompt %s: %v", n, err))
		}
		t.sources[n] = string(b)
	}
	return t
}

// WithOverride returns a copy with name replaced by src.
func (t *Templates) WithOverride(name Name, src string) *Templates {
	cp := &Templates{sources: make(map[Name]string, len(t.sources))}
	for k, v := range t.sources {
		cp.sources[k] = v
	}
	cp.sources[name] = src
	return cp
}

// Render formats the template through the eino prompt component, which also
// emits prompt callbacks.
func (t *Templates) Render(ctx context.Context, name Name, vars map[string]any) (string, error) {
	src, ok := t.sources[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt %q", name)
	}
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(src),
	)
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("%s prompt render: %w", name, err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("%s prompt render: empty result", name)
	}
	return strings.TrimSpace(msgs[0].Content), nil
}

var _ Bundle = (*Templates)(nil)

package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"

	"github.com/Chative-core-poc-v1/dialogue/internal/agent/extract"
	"github.com/Chative-core-poc-v1/dialogue/internal/agent/graph/prompts"
	"github.com/Chative-core-poc-v1/dialogue/internal/agent/llm"
	"github.com/Chative-core-poc-v1/dialogue/internal/agent/model"
	logx "github.com/Chative-core-poc-v1/dialogue/pkg/logger"
)

const autoLanguage = "auto"

// InputTranslation rewrites UserInput into the processing language. On failure
// the original input is kept and ErrorMessage is set.
func (d *Deps) InputTranslation(ctx context.Context, in *model.ConversationState) *model.ConversationState {
	return d.run(ctx, NodeInputTranslation, in, func(ctx context.Context, st *model.ConversationState) string {
		cfg := d.Agent.Translation
		input := st.UserInput
		target := cfg.Target()
		source := cfg.Source()
		if strings.EqualFold(source, autoLanguage) {
			source = d.detectLanguage(ctx, st.SessionID, input)
		}

		info := &model.TranslationInfo{
			Enabled:          true,
			OriginalLanguage: source,
			TargetLanguage:   target,
			OriginalInput:    input,
			TranslatedInput:  input,
		}
		st.Translation = info
		if strings.EqualFold(source, target) {
			return "input already in " + target
		}

		translated, err := d.translate(ctx, prompts.TranslateInput, source, target, input)
		if err != nil {
			logx.Error().Err(err).Str("session_id", st.SessionID).Msg("Error translating user input")
			info.Enabled = false
			st.ErrorMessage = fmt.Sprintf("Translation failed: %v", err)
			return "translation failed, kept original input"
		}
		info.TranslatedInput = translated
		st.UserInput = translated
		return fmt.Sprintf("translated input from %s to %s", source, target)
	})
}

func NewInputTranslationNode(d *Deps) *compose.Lambda { return lambda(d.InputTranslation) }

// OutputTranslation rewrites the assistant messages written since the last
// user message into the response language. Anything else as last message is
// left alone.
func (d *Deps) OutputTranslation(ctx context.Context, in *model.ConversationState) *model.ConversationState {
	return d.run(ctx, NodeOutputTranslation, in, func(ctx context.Context, st *model.ConversationState) string {
		last, ok := st.LastMessage()
		if !ok || last.Role != model.RoleAssistant {
			return "skipped: last message is not from the assistant"
		}

		cfg := d.Agent.Translation
		from := cfg.Target()
		to := d.responseLanguage(st)
		if strings.EqualFold(from, to) {
			return "reply already in " + to
		}

		translated := 0
		for i := replyStart(st.Messages); i < len(st.Messages); i++ {
			if st.Messages[i].Role != model.RoleAssistant {
				continue
			}
			out, err := d.translate(ctx, prompts.TranslateOutput, from, to, st.Messages[i].Content)
			if err != nil {
				logx.Error().Err(err).Str("session_id", st.SessionID).Msg("Error translating reply")
				st.ErrorMessage = fmt.Sprintf("Response translation failed: %v", err)
				return fmt.Sprintf("reply translation failed after %d message(s), kept original", translated)
			}
			st.Messages[i].Content = out
			translated++
		}
		return fmt.Sprintf("translated %d message(s) from %s to %s", translated, from, to)
	})
}

// replyStart is the index just past the last user message.
func replyStart(msgs []model.Message) int {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == model.RoleUser {
			return i + 1
		}
	}
	return 0
}

func NewOutputTranslationNode(d *Deps) *compose.Lambda { return lambda(d.OutputTranslation) }

// responseLanguage prefers the configured response language, then whatever was
// detected on the way in.
func (d *Deps) responseLanguage(st *model.ConversationState) string {
	cfg := d.Agent.Translation
	if lang := strings.TrimSpace(cfg.ResponseLanguage); lang != "" && !strings.EqualFold(lang, autoLanguage) {
		return lang
	}
	if st.Translation != nil && st.Translation.OriginalLanguage != "" {
		return st.Translation.OriginalLanguage
	}
	if src := cfg.Source(); !strings.EqualFold(src, autoLanguage) {
		return src
	}
	return cfg.Target()
}

func (d *Deps) detectLanguage(ctx context.Context, sessionID, text string) string {
	prompt, err := d.Prompts.Render(ctx, prompts.DetectLanguage, map[string]any{"Text": text})
	if err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("Error rendering language detection prompt")
		return extract.DefaultLanguage
	}
	res := extract.DetectLanguage(ctx, d.JSONLLM, prompt, d.Metrics)
	logx.Verbose(d.verbose()).
		Str("session_id", sessionID).
		Str("language", res.Value).
		Str("tier", string(res.Tier)).
		Msg("detected input language")
	return res.Value
}

func (d *Deps) translate(ctx context.Context, name prompts.Name, from, to, text string) (string, error) {
	prompt, err := d.Prompts.Render(ctx, name, map[string]any{"Source": from, "Target": to, "Text": text})
	if err != nil {
		return "", err
	}
	out, err := d.ChatLLM.Complete(ctx, llm.Request{Prompt: prompt})
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("empty translation")
	}
	return out, nil
}

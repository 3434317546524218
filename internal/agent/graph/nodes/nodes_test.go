package nodes

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/compose"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chative-core-poc-v1/dialogue/internal/agent/graph/prompts"
	"github.com/Chative-core-poc-v1/dialogue/internal/agent/llm"
	"github.com/Chative-core-poc-v1/dialogue/internal/agent/model"
	"github.com/Chative-core-poc-v1/dialogue/internal/agent/tools"
)

const testAgent = `
agent_prompt: You register leads and answer questions.
tools:
  - name: sheets
    type: input
    impl: sheets
    description: Save a lead
    input_schema:
      - name: name
        required: true
  - name: newsletter
    type: input
    impl: newsletter
    confirm: true
    input_schema:
      type: object
      properties:
        email:
          type: string
          format: email
      required: [email]
  - name: lookup
    type: retrieval
    impl: lookup
    description: Find a customer record
    input_schema:
      type: object
      properties:
        email:
          type: string
          format: email
        limit:
          type: integer
      required: [email]
  - name: web_search
    type: retrieval
    impl: web_search
    description: Search the web
exit_conditions:
  - type: prompt
    expression: "bye|goodbye"
translation:
  enabled: true
  source_language: auto
  target_language: English
`

type fixture struct {
	deps     *Deps
	decision *llm.Scripted
	chat     *llm.Scripted
	json     *llm.Scripted
	executed []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg, err := model.ParseAgentConfig([]byte(testAgent))
	require.NoError(t, err)

	f := &fixture{decision: llm.NewScripted(), chat: llm.NewScripted(), json: llm.NewScripted()}
	reg := tools.NewRegistry(nil, 0)
	record := func(name string, res model.ToolResult) tools.Func {
		return func(_ context.Context, in tools.Input) model.ToolResult {
			f.executed = append(f.executed, name)
			res.Data = in.Data
			return res
		}
	}
	reg.Register("sheets", record("sheets", model.ToolResult{Success: true, Type: "sheets", Message: "Saved 1 field(s)"}))
	reg.Register("newsletter", record("newsletter", model.ToolResult{Success: true, Type: "newsletter", Message: "Subscribed"}))
	reg.Register("web_search", func(context.Context, tools.Input) model.ToolResult {
		f.executed = append(f.executed, "web_search")
		panic("dial tcp: network is unreachable")
	})

	f.deps = &Deps{
		Agent:       cfg,
		DecisionLLM: f.decision,
		ChatLLM:     f.chat,
		JSONLLM:     f.json,
		Prompts:     prompts.Default(),
		Tools:       reg,
	}
	require.NoError(t, f.deps.Validate())
	return f
}

func userState(text string) *model.ConversationState {
	st := model.NewConversationState("s1")
	st.AppendMessage(model.RoleUser, text)
	st.UserInput = text
	return st
}

func route(t *testing.T, cond func(context.Context, *model.ConversationState) (string, error), st *model.ConversationState) string {
	t.Helper()
	next, err := cond(context.Background(), st)
	require.NoError(t, err)
	return next
}

func TestDecisionRouterParsesEmbeddedDecision(t *testing.T) {
	f := newFixture(t)
	f.decision.Push(llm.Reply{Text: "I think DECISION: end - user said goodbye"})

	in := userState("bye")
	out := f.deps.DecisionRouter(context.Background(), in)

	assert.Equal(t, model.End(), out.NextAction)
	assert.Equal(t, "user said goodbye", out.DecisionJustification)
	assert.Equal(t, NodeEnd, route(t, NewDecisionCondition(), out))
	require.Len(t, out.ActionHistory, 1)
	assert.Equal(t, "decided 'end' - user said goodbye", out.ActionHistory[0].Outcome)
	assert.Empty(t, in.ActionHistory, "input state must not be mutated")
}

func TestDecisionRouterWithoutTokenDefaultsToChat(t *testing.T) {
	f := newFixture(t)
	f.decision.Push(llm.Reply{Text: "Let me think about that."})

	out := f.deps.DecisionRouter(context.Background(), userState("hmm"))

	assert.Equal(t, model.Chat(), out.NextAction)
	assert.Equal(t, "Let me think about that.", out.DecisionJustification)
	assert.Equal(t, NodeChat, route(t, NewDecisionCondition(), out))
}

func TestDecisionRouterResolvesToolCaseInsensitively(t *testing.T) {
	f := newFixture(t)
	f.decision.Push(llm.Reply{Text: "DECISION: SHEETS - we have the name"})

	out := f.deps.DecisionRouter(context.Background(), userState("My name is Alice"))

	assert.Equal(t, model.UseTool("sheets"), out.NextAction)
	assert.Equal(t, "sheets", out.ChosenTool)
	assert.Equal(t, model.CategoryInput, out.ToolCategory)
	require.NotNil(t, out.DecisionContext)
	assert.Equal(t, []string{"name"}, out.DecisionContext.ToolRequirements)
	assert.Equal(t, []string{"chat", "end", "sheets", "newsletter", "web_search"}, out.DecisionContext.AlternativesConsidered)
	assert.Equal(t, "My name is Alice", out.DecisionContext.UserIntent)
	assert.Equal(t, NodeStructuredExtractor, route(t, NewDecisionCondition(), out))

	calls := f.decision.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Prompt, "- sheets (input): Save a lead")
	assert.Contains(t, calls[0].Prompt, "REQUIRED INPUTS FOR sheets:")
}

func TestDecisionRouterUnknownTokenFallsThroughToChat(t *testing.T) {
	f := newFixture(t)
	f.decision.Push(llm.Reply{Text: "DECISION: wait_user_input - nothing to do"})

	out := f.deps.DecisionRouter(context.Background(), userState("ok"))
	assert.Equal(t, model.Chat(), out.NextAction)
}

func TestDecisionRouterModelFailure(t *testing.T) {
	f := newFixture(t)
	f.decision.Push(llm.Reply{Err: errors.New("quota exceeded")})

	out := f.deps.DecisionRouter(context.Background(), userState("hello"))

	assert.Equal(t, model.Chat(), out.NextAction)
	assert.Contains(t, out.DecisionJustification, "quota exceeded")
	assert.Contains(t, out.ErrorMessage, "Decision failed")
}

func TestLoopGuardOverridesThirdRepeat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	st := userState("find the weather")
	for i := 0; i < 3; i++ {
		f.decision.Push(llm.Reply{Text: "DECISION: web_search - look it up"})
	}

	st = f.deps.DecisionRouter(ctx, st)
	assert.Equal(t, model.UseTool("web_search"), st.NextAction)
	st = f.deps.DecisionRouter(ctx, st)
	assert.Equal(t, model.UseTool("web_search"), st.NextAction)

	st = f.deps.DecisionRouter(ctx, st)
	assert.Equal(t, model.Chat(), st.NextAction)
	assert.Empty(t, st.ChosenTool)
	assert.Empty(t, st.ToolCategory)
}

func TestLoopGuardAfterThreeWebSearchDecisions(t *testing.T) {
	f := newFixture(t)
	st := userState("search again")
	for i := 0; i < 3; i++ {
		st.RecordAction(NodeDecisionRouter, "decided 'web_search' - look it up")
	}
	f.decision.Push(llm.Reply{Text: "DECISION: web_search - once more"})

	out := f.deps.DecisionRouter(context.Background(), st)

	assert.Equal(t, model.Chat(), out.NextAction)
	assert.Equal(t, NodeChat, route(t, NewDecisionCondition(), out))
}

func TestRepeatedToolDecision(t *testing.T) {
	rec := func(node, outcome string) model.ActionRecord { return model.ActionRecord{Node: node, Outcome: outcome} }
	tests := []struct {
		name    string
		history []model.ActionRecord
		tool    string
		want    bool
	}{
		{"empty", nil, "web_search", false},
		{"single decision", []model.ActionRecord{rec(NodeDecisionRouter, "decided 'web_search'")}, "web_search", false},
		{"two matching", []model.ActionRecord{
			rec(NodeDecisionRouter, "decided 'web_search'"),
			rec(NodeDecisionRouter, "decided 'web_search'"),
		}, "web_search", true},
		{"different tool", []model.ActionRecord{
			rec(NodeDecisionRouter, "decided 'sheets'"),
			rec(NodeDecisionRouter, "decided 'web_search'"),
		}, "web_search", false},
		{"interleaved nodes", []model.ActionRecord{
			rec(NodeDecisionRouter, "decided 'web_search'"),
			rec(NodeDecisionRouter, "decided 'web_search'"),
			rec(NodeToolExecution, "tool executed"),
			rec(NodeToolAnswer, "answered"),
		}, "web_search", false},
		{"no tool", []model.ActionRecord{
			rec(NodeDecisionRouter, "decided 'chat'"),
			rec(NodeDecisionRouter, "decided 'chat'"),
		}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, repeatedToolDecision(tt.history, tt.tool))
		})
	}
}

func TestStructuredExtractorTrimsAndMerges(t *testing.T) {
	f := newFixture(t)
	f.json.Push(llm.Reply{Text: "```json\n{\"name\": \"  Alice \"}\n```"})
	st := userState("My name is Alice")
	st.ChosenTool = "sheets"

	out := f.deps.StructuredExtractor(context.Background(), st)

	assert.Equal(t, "Alice", out.ExtractedData["name"])
	assert.Equal(t, model.UseTool("sheets"), out.NextAction)
	assert.Equal(t, "extracted name", out.ActionHistory[len(out.ActionHistory)-1].Outcome)
	calls := f.json.Calls()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].JSON)
}

func TestStructuredExtractorSkipsWhenRequiredComplete(t *testing.T) {
	f := newFixture(t)
	st := userState("again")
	st.ChosenTool = "sheets"
	st.ExtractedData = map[string]any{"name": "Bob"}

	out := f.deps.StructuredExtractor(context.Background(), st)

	assert.Empty(t, f.json.Calls())
	assert.Equal(t, "Bob", out.ExtractedData["name"])
}

func TestStructuredExtractorNeverOverwritesFilledValues(t *testing.T) {
	f := newFixture(t)
	f.json.Push(llm.Reply{Text: `{"email": "a@b.co", "name": "Alice"}`})
	st := userState("use a@b.co")
	st.ChosenTool = "newsletter"
	st.ExtractedData = map[string]any{"name": "Bob", "email": ""}

	out := f.deps.StructuredExtractor(context.Background(), st)

	assert.Equal(t, "Bob", out.ExtractedData["name"])
	assert.Equal(t, "a@b.co", out.ExtractedData["email"])
}

func TestStructuredExtractorRetrievalDefaultsToQuery(t *testing.T) {
	f := newFixture(t)
	f.json.Push(llm.Reply{Text: `{"query": "weather in Paris"}`})
	st := userState("what's the weather in Paris")
	st.ChosenTool = "web_search"

	out := f.deps.StructuredExtractor(context.Background(), st)

	assert.Equal(t, model.CategoryRetrieval, out.ToolCategory)
	assert.Equal(t, "weather in Paris", out.ExtractedData["query"])
	assert.Empty(t, out.QuerySpec)

	out = f.deps.ValidateInputs(context.Background(), out)
	assert.Equal(t, map[string]any{"query": "weather in Paris"}, out.QuerySpec)
	assert.Contains(t, f.json.Calls()[0].Prompt, "- query (string): What should I search for?")
}

func TestUnparsableExtractionRoutesValidationToChat(t *testing.T) {
	f := newFixture(t)
	f.json.Fallback = llm.Reply{Text: "I could not find anything"}
	ctx := context.Background()
	st := userState("asdkj")
	st.ChosenTool = "newsletter"

	st = f.deps.StructuredExtractor(ctx, st)
	assert.Empty(t, st.ExtractedData)

	st = f.deps.ValidateInputs(ctx, st)
	assert.Equal(t, []string{"email is required"}, st.ValidationErrors)
	assert.Equal(t, NodeChat, route(t, NewValidateInputsCondition(), st))
	assert.Equal(t, "I need a bit more information or corrections: email is required", st.LastAssistantMessage())
}

func TestValidateInputsPasses(t *testing.T) {
	f := newFixture(t)
	st := userState("My name is Alice")
	st.ChosenTool = "sheets"
	st.ValidationErrors = []string{"name is required"}
	st.ExtractedData = map[string]any{"name": "  Alice  "}

	out := f.deps.ValidateInputs(context.Background(), st)

	assert.Empty(t, out.ValidationErrors)
	assert.Equal(t, "Alice", out.ExtractedData["name"])
	assert.Equal(t, NodeToolExecution, route(t, NewValidateInputsCondition(), out))
}

func TestQuerySpecHoldsOnlyValidatedValues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.json.Push(llm.Reply{Text: `{"email": "not-an-email", "limit": "lots"}`})
	st := userState("find not-an-email, lots of them")
	st.ChosenTool = "lookup"
	st.QuerySpec = map[string]any{"query": "stale"}

	st = f.deps.StructuredExtractor(ctx, st)
	st = f.deps.ValidateInputs(ctx, st)

	assert.Equal(t, []string{"email must be a valid email", "limit failed to coerce to int"}, st.ValidationErrors)
	assert.Empty(t, st.QuerySpec)

	st.ExtractedData = map[string]any{"email": " ann@example.com ", "limit": "3"}
	st = f.deps.ValidateInputs(ctx, st)

	assert.Empty(t, st.ValidationErrors)
	assert.Equal(t, map[string]any{"email": "ann@example.com", "limit": 3}, st.QuerySpec)
}

func TestQuerySpecResetForInputTools(t *testing.T) {
	f := newFixture(t)
	st := userState("My name is Alice")
	st.ChosenTool = "sheets"
	st.ExtractedData = map[string]any{"name": "Alice"}
	st.QuerySpec = map[string]any{"query": "weather in Paris"}

	out := f.deps.ValidateInputs(context.Background(), st)

	assert.Empty(t, out.ValidationErrors)
	assert.Empty(t, out.QuerySpec)
}

func TestDecisionPromptIncludesQuerySpec(t *testing.T) {
	f := newFixture(t)
	f.decision.Push(llm.Reply{Text: "DECISION: chat - answer from results"})
	st := userState("and tomorrow?")
	st.QuerySpec = map[string]any{"query": "weather in Paris"}

	f.deps.DecisionRouter(context.Background(), st)

	require.Len(t, f.decision.Calls(), 1)
	assert.Contains(t, f.decision.Calls()[0].Prompt, `QUERY SPEC: {"query":"weather in Paris"}`)
}

func TestToolFailureStillProducesAnswer(t *testing.T) {
	f := newFixture(t)
	f.chat.Push(llm.Reply{Err: errors.New("model unavailable")})
	ctx := context.Background()
	st := userState("weather in Paris")
	st.ChosenTool = "web_search"
	st.ToolCategory = model.CategoryRetrieval
	st.ExtractedData = map[string]any{"query": "weather in Paris"}

	st = f.deps.ToolExecution(ctx, st)
	require.NotNil(t, st.ToolResult)
	assert.False(t, st.ToolResult.Success)
	assert.Contains(t, st.ToolResult.Error, "network is unreachable")
	assert.Equal(t, NodeToolAnswer, route(t, NewToolExecutionCondition(), st))

	st = f.deps.ToolAnswer(ctx, st)
	reply := st.LastAssistantMessage()
	assert.NotEmpty(t, reply)
	assert.Contains(t, reply, "Tool execution failed")
	assert.Equal(t, model.WaitUserInput(), st.NextAction)
	assert.Empty(t, st.UserInput)
	require.NotNil(t, st.LastToolContext)
	assert.Equal(t, "failure", st.LastToolContext.Status)
}

func TestToolAnswerUsesModelReply(t *testing.T) {
	f := newFixture(t)
	f.chat.Push(llm.Reply{Text: "Thanks Alice, you're registered."})
	st := userState("My name is Alice")
	st.ChosenTool = "sheets"
	st.ToolCategory = model.CategoryInput
	st.ToolResult = &model.ToolResult{Success: true, Type: "sheets", Message: "Saved 1 field(s)"}

	out := f.deps.ToolAnswer(context.Background(), st)

	assert.Equal(t, "Thanks Alice, you're registered.", out.LastAssistantMessage())
	assert.Equal(t, "Data saved successfully: Saved 1 field(s)", out.LastToolSummary)
	assert.Contains(t, f.chat.Calls()[0].Prompt, "TOOL OUTCOME: success")
}

func TestToolExecutionWaitsForConfirmation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	st := userState("subscribe a@b.co")
	st.ChosenTool = "newsletter"
	st.ExtractedData = map[string]any{"email": "a@b.co"}

	paused := f.deps.ToolExecution(ctx, st)
	require.NotNil(t, paused.Pending)
	assert.Equal(t, NodeToolExecution, paused.Pending.Node)
	assert.Equal(t, "confirm:newsletter", paused.Pending.Key)
	assert.Equal(t, compose.END, route(t, NewToolExecutionCondition(), paused))
	assert.Empty(t, f.executed)

	declined := paused.Clone()
	declined.ResumeValues["confirm:newsletter"] = "no"
	declined = f.deps.ToolExecution(ctx, declined)
	assert.Nil(t, declined.Pending)
	require.NotNil(t, declined.ToolResult)
	assert.Equal(t, "cancelled", declined.ToolResult.Error)
	assert.Empty(t, f.executed)

	accepted := paused.Clone()
	accepted.ResumeValues["confirm:newsletter"] = "Yes"
	accepted = f.deps.ToolExecution(ctx, accepted)
	assert.True(t, accepted.ToolResult.Success)
	assert.Equal(t, []string{"newsletter"}, f.executed)
	assert.NotContains(t, accepted.ResumeValues, "confirm:newsletter")
}

func TestWaitUserInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	idle := model.NewConversationState("s1")
	idle.AppendMessage(model.RoleAssistant, "What's your name?")
	out := f.deps.WaitUserInput(ctx, idle)
	require.NotNil(t, out.Pending)
	assert.Equal(t, model.Interrupt{Node: NodeWaitUserInput, Key: UserInputKey, Prompt: "What's your name?"}, *out.Pending)
	assert.Equal(t, compose.END, route(t, NewWaitUserInputCondition(NodeDecisionRouter), out))
	assert.Empty(t, out.ActionHistory)

	idle.UserInput = " Alice "
	out = f.deps.WaitUserInput(ctx, idle)
	assert.Nil(t, out.Pending)
	assert.Equal(t, model.Message{Role: model.RoleUser, Content: "Alice"}, out.Messages[len(out.Messages)-1])
	assert.Equal(t, NodeDecisionRouter, route(t, NewWaitUserInputCondition(NodeDecisionRouter), out))

	again := f.deps.WaitUserInput(ctx, out)
	assert.Len(t, again.Messages, len(out.Messages), "already recorded input is not appended twice")
}

func TestTurnEntryDispatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	st := model.NewConversationState("s1")
	out := f.deps.TurnEntry(ctx, &model.TurnRequest{State: st, Entry: model.EntrySend, Input: "hi"})
	assert.Equal(t, NodeWaitUserInput, route(t, NewTurnEntryCondition(), out))
	assert.Equal(t, "hi", out.UserInput)
	assert.Equal(t, 1, out.Turn)

	st.Pending = &model.Interrupt{Node: NodeToolExecution, Key: "confirm:newsletter"}
	out = f.deps.TurnEntry(ctx, &model.TurnRequest{State: st, Entry: model.EntryResume, Input: "yes"})
	assert.Equal(t, NodeToolExecution, route(t, NewTurnEntryCondition(), out))
	assert.Equal(t, "yes", out.ResumeValues["confirm:newsletter"])
	assert.Empty(t, out.UserInput)

	out = f.deps.TurnEntry(ctx, &model.TurnRequest{State: st, Entry: model.EntryExit})
	assert.Equal(t, NodeExitEvaluator, route(t, NewTurnEntryCondition(), out))
	assert.Empty(t, out.Messages)

	out = f.deps.TurnEntry(ctx, &model.TurnRequest{State: st, Entry: model.EntryExit, Input: " bye "})
	assert.Equal(t, "bye", out.UserInput)
	assert.Equal(t, "bye", out.LastUserMessage())
	assert.Nil(t, out.Pending)
}

func TestEndIsTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	st := f.deps.End(ctx, userState("bye"))
	assert.False(t, st.ConversationActive)
	assert.Equal(t, model.End(), st.NextAction)

	for _, entry := range []model.Entry{model.EntrySend, model.EntryResume, model.EntryExit} {
		out := f.deps.TurnEntry(ctx, &model.TurnRequest{State: st, Entry: entry, Input: "hello again"})
		assert.Equal(t, NodeEnd, route(t, NewTurnEntryCondition(), out))
		out = f.deps.End(ctx, out)
		assert.Equal(t, model.End(), out.NextAction)
		assert.False(t, out.ConversationActive)
	}
}

func TestExitEvaluator(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cond := NewExitEvaluatorCondition()

	out := f.deps.ExitEvaluator(ctx, userState("ok, goodbye then"))
	assert.False(t, out.ConversationActive)
	assert.Equal(t, NodeEnd, route(t, cond, out))

	out = f.deps.ExitEvaluator(ctx, userState("tell me more"))
	assert.True(t, out.ConversationActive)
	assert.Equal(t, NodeDecisionRouter, route(t, cond, out))

	idle := userState("tell me more")
	idle.UserInput = ""
	out = f.deps.ExitEvaluator(ctx, idle)
	assert.Equal(t, NodeWaitUserInput, route(t, cond, out))
}

func TestInputTranslationDetectsAndTranslates(t *testing.T) {
	f := newFixture(t)
	f.json.Push(llm.Reply{Text: `{"language": "Hungarian"}`})
	f.chat.Push(llm.Reply{Text: "My name is Alice"})

	out := f.deps.InputTranslation(context.Background(), userState("A nevem Alice"))

	assert.Equal(t, "My name is Alice", out.UserInput)
	require.NotNil(t, out.Translation)
	assert.Equal(t, "Hungarian", out.Translation.OriginalLanguage)
	assert.Equal(t, "A nevem Alice", out.Translation.OriginalInput)
	assert.Contains(t, f.chat.Calls()[0].Prompt, "from Hungarian to English")
}

func TestInputTranslationFailureKeepsOriginal(t *testing.T) {
	f := newFixture(t)
	f.json.Push(llm.Reply{Text: `{"language": "Hungarian"}`})
	f.chat.Push(llm.Reply{Err: errors.New("timeout")})

	out := f.deps.InputTranslation(context.Background(), userState("A nevem Alice"))

	assert.Equal(t, "A nevem Alice", out.UserInput)
	assert.Contains(t, out.ErrorMessage, "Translation failed")
	assert.False(t, out.Translation.Enabled)
}

func TestOutputTranslation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.chat.Push(llm.Reply{Text: "Szia Alice"})

	st := userState("A nevem Alice")
	st.Translation = &model.TranslationInfo{Enabled: true, OriginalLanguage: "Hungarian", TargetLanguage: "English"}
	st.AppendMessage(model.RoleAssistant, "Hi Alice")
	out := f.deps.OutputTranslation(ctx, st)
	assert.Equal(t, "Szia Alice", out.LastAssistantMessage())
	assert.Equal(t, "Hi Alice", st.LastAssistantMessage())

	skipped := f.deps.OutputTranslation(ctx, userState("hello"))
	assert.Len(t, f.chat.Calls(), 1)
	assert.Equal(t, "hello", skipped.LastUserMessage())
}

func TestOutputTranslationCoversEveryReplyOfTheTurn(t *testing.T) {
	f := newFixture(t)
	f.chat.Push(llm.Reply{Text: "Hol az e-mail címed?"}, llm.Reply{Text: "Melyik e-mail címet használjam?"})

	st := model.NewConversationState("s1")
	st.AppendMessage(model.RoleUser, "iratkozz fel")
	st.AppendMessage(model.RoleAssistant, "Szívesen!")
	st.AppendMessage(model.RoleUser, "subscribe me")
	st.AppendMessage(model.RoleAssistant, "I need a bit more information or corrections: email is required")
	st.AppendMessage(model.RoleAssistant, "Which email should I use?")
	st.Translation = &model.TranslationInfo{Enabled: true, OriginalLanguage: "Hungarian", TargetLanguage: "English"}

	out := f.deps.OutputTranslation(context.Background(), st)

	require.Len(t, f.chat.Calls(), 2)
	assert.Equal(t, "Szívesen!", out.Messages[1].Content)
	assert.Equal(t, "Hol az e-mail címed?", out.Messages[3].Content)
	assert.Equal(t, "Melyik e-mail címet használjam?", out.Messages[4].Content)
	assert.Equal(t, "translated 2 message(s) from English to Hungarian", out.ActionHistory[len(out.ActionHistory)-1].Outcome)
}

func TestNodePanicBecomesErrorMessage(t *testing.T) {
	f := newFixture(t)
	f.deps.Prompts = nil

	in := userState("hi")
	out := f.deps.DecisionRouter(context.Background(), in)

	assert.Contains(t, out.ErrorMessage, "decision_router failed")
	assert.Equal(t, in.NextAction, out.NextAction)
	require.Len(t, out.ActionHistory, 1)
	assert.Contains(t, out.ActionHistory[0].Outcome, "error:")
}

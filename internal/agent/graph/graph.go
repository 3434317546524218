package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/compose"

	"github.com/Chative-core-poc-v1/dialogue/internal/agent/graph/conversations"
	"github.com/Chative-core-poc-v1/dialogue/internal/agent/graph/nodes"
	"github.com/Chative-core-poc-v1/dialogue/internal/agent/graph/prompts"
	"github.com/Chative-core-poc-v1/dialogue/internal/agent/metrics"
	"github.com/Chative-core-poc-v1/dialogue/internal/agent/model"
	"github.com/Chative-core-poc-v1/dialogue/internal/agent/tools"
	logx "github.com/Chative-core-poc-v1/dialogue/pkg/logger"
)

const defaultMaxRunSteps = 64

// Config holds everything needed to compose the conversation graph end-to-end.
// This is a convenience layer over GraphConfig that also constructs the models
// and the sessions manager.
type Config struct {
	APIKey     string
	BaseURL    string
	Decision   model.DecisionModelConfig
	Chat       model.ChatModelConfig
	JSON       model.JSONModelConfig
	LLMTimeout time.Duration

	Agent        *model.AgentConfig
	Conversation model.ConversationConfig
	Tools        *tools.Registry
	// Prompts defaults to the embedded templates.
	Prompts prompts.Bundle
	Metrics *metrics.Collector

	Checkpoints model.CheckpointStore
	Transcripts model.TranscriptRepository
	Locker      model.SessionLocker
}

// GraphConfig holds all configuration needed to build the graph
type GraphConfig struct {
	Deps        *nodes.Deps
	MaxRunSteps int
}

// GraphBuilder handles the construction of the conversation state machine
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[*model.TurnRequest, *model.ConversationState]
}

// BuildRunner composes the models, sessions manager and graph, and returns a Runner.
func BuildRunner(ctx context.Context, cfg Config) (*Runner, error) {
	if cfg.Agent == nil {
		return nil, fmt.Errorf("agent config is nil")
	}
	if cfg.Tools == nil {
		cfg.Tools = tools.NewRegistry(cfg.Metrics, 0)
	}
	if cfg.Prompts == nil {
		cfg.Prompts = prompts.Default()
	}

	cms, err := nodes.NewChatModels(ctx, nodes.ChatModelConfig{
		APIKey:   cfg.APIKey,
		BaseURL:  cfg.BaseURL,
		Decision: &cfg.Decision,
		Chat:     &cfg.Chat,
		JSON:     &cfg.JSON,
		Timeout:  cfg.LLMTimeout,
		Metrics:  cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}

	deps := &nodes.Deps{
		Agent:       cfg.Agent,
		DecisionLLM: cms.Decision,
		ChatLLM:     cms.Chat,
		JSONLLM:     cms.JSON,
		Prompts:     cfg.Prompts,
		Tools:       cfg.Tools,
		Metrics:     cfg.Metrics,
	}
	sessions := conversations.NewSessionsManager(cfg.Checkpoints, cfg.Transcripts, cfg.Locker, cfg.Conversation)

	runner, err := NewRunner(ctx, deps, sessions, cfg.Conversation)
	if err != nil {
		return nil, err
	}
	logx.Debug().Str("agent", cfg.Agent.Name).Msg("Conversation graph built successfully")
	return runner, nil
}

// BuildGraph constructs and returns the compiled conversation graph
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[*model.TurnRequest, *model.ConversationState], error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if err := config.Deps.Validate(); err != nil {
		return nil, err
	}

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[*model.TurnRequest, *model.ConversationState](
			compose.WithGenLocalState(func(ctx context.Context) *model.TurnTrace {
				return &model.TurnTrace{}
			}),
		),
	}

	if err := builder.addNodes(); err != nil {
		return nil, err
	}
	if err := builder.addEdges(); err != nil {
		return nil, err
	}
	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	return builder.compile(ctx)
}

func (b *GraphBuilder) translation() bool {
	return b.config.Deps.Agent.Translation.Enabled
}

// afterInput is the first stage once user input has been accepted.
func (b *GraphBuilder) afterInput() string {
	if b.translation() {
		return nodes.NodeInputTranslation
	}
	return b.afterTranslation()
}

func (b *GraphBuilder) afterTranslation() string {
	if b.config.Deps.Agent.EvaluateExitEachTurn {
		return nodes.NodeExitEvaluator
	}
	return nodes.NodeDecisionRouter
}

// afterReply is where chat and tool_answer hand their reply to.
func (b *GraphBuilder) afterReply() string {
	if b.translation() {
		return nodes.NodeOutputTranslation
	}
	return nodes.NodeWaitUserInput
}

type namedNode struct {
	name   string
	lambda *compose.Lambda
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() error {
	d := b.config.Deps

	if err := b.graph.AddLambdaNode(nodes.NodeTurnEntry,
		nodes.NewTurnEntryNode(d),
		compose.WithStatePreHandler(nodes.NewTurnEntryPreHandler()),
	); err != nil {
		return fmt.Errorf("error adding node %s: %w", nodes.NodeTurnEntry, err)
	}

	stateNodes := []namedNode{
		{nodes.NodeWaitUserInput, nodes.NewWaitUserInputNode(d)},
		{nodes.NodeDecisionRouter, nodes.NewDecisionRouterNode(d)},
		{nodes.NodeChat, nodes.NewChatNode(d)},
		{nodes.NodeStructuredExtractor, nodes.NewStructuredExtractorNode(d)},
		{nodes.NodeValidateInputs, nodes.NewValidateInputsNode(d)},
		{nodes.NodeToolExecution, nodes.NewToolExecutionNode(d)},
		{nodes.NodeToolAnswer, nodes.NewToolAnswerNode(d)},
		{nodes.NodeExitEvaluator, nodes.NewExitEvaluatorNode(d)},
		{nodes.NodeEnd, nodes.NewEndNode(d)},
	}
	if b.translation() {
		stateNodes = append(stateNodes,
			namedNode{nodes.NodeInputTranslation, nodes.NewInputTranslationNode(d)},
			namedNode{nodes.NodeOutputTranslation, nodes.NewOutputTranslationNode(d)},
		)
	}

	for _, n := range stateNodes {
		if err := b.graph.AddLambdaNode(n.name, n.lambda,
			compose.WithStatePostHandler(nodes.NewTracePostHandler(n.name)),
		); err != nil {
			logx.Error().Err(err).Str("node", n.name).Msg("Error adding node")
			return fmt.Errorf("error adding node %s: %w", n.name, err)
		}
	}
	return nil
}

// addEdges creates the unconditional connections between nodes
func (b *GraphBuilder) addEdges() error {
	edges := [][2]string{
		{compose.START, nodes.NodeTurnEntry},
		{nodes.NodeChat, b.afterReply()},
		{nodes.NodeStructuredExtractor, nodes.NodeValidateInputs},
		{nodes.NodeToolAnswer, b.afterReply()},
		{nodes.NodeEnd, compose.END},
	}
	if b.translation() {
		edges = append(edges,
			[2]string{nodes.NodeInputTranslation, b.afterTranslation()},
			[2]string{nodes.NodeOutputTranslation, nodes.NodeWaitUserInput},
		)
	}

	for _, edge := range edges {
		if err := b.graph.AddEdge(edge[0], edge[1]); err != nil {
			logx.Error().Err(err).Str("from", edge[0]).Str("to", edge[1]).Msg("Error adding edge")
			return fmt.Errorf("error adding edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}

// addBranches creates conditional routing branches
func (b *GraphBuilder) addBranches() error {
	branches := []struct {
		from   string
		branch *compose.GraphBranch
	}{
		{nodes.NodeTurnEntry, compose.NewGraphBranch(
			nodes.NewTurnEntryCondition(),
			map[string]bool{
				nodes.NodeWaitUserInput: true,
				nodes.NodeToolExecution: true,
				nodes.NodeExitEvaluator: true,
				nodes.NodeEnd:           true,
			},
		)},
		{nodes.NodeWaitUserInput, compose.NewGraphBranch(
			nodes.NewWaitUserInputCondition(b.afterInput()),
			map[string]bool{
				b.afterInput(): true,
				compose.END:    true,
			},
		)},
		{nodes.NodeDecisionRouter, compose.NewGraphBranch(
			nodes.NewDecisionCondition(),
			map[string]bool{
				nodes.NodeStructuredExtractor: true,
				nodes.NodeChat:                true,
				nodes.NodeEnd:                 true,
			},
		)},
		{nodes.NodeValidateInputs, compose.NewGraphBranch(
			nodes.NewValidateInputsCondition(),
			map[string]bool{
				nodes.NodeChat:          true,
				nodes.NodeToolExecution: true,
			},
		)},
		{nodes.NodeToolExecution, compose.NewGraphBranch(
			nodes.NewToolExecutionCondition(),
			map[string]bool{
				nodes.NodeToolAnswer: true,
				compose.END:          true,
			},
		)},
		{nodes.NodeExitEvaluator, compose.NewGraphBranch(
			nodes.NewExitEvaluatorCondition(),
			map[string]bool{
				nodes.NodeEnd:            true,
				nodes.NodeDecisionRouter: true,
				nodes.NodeWaitUserInput:  true,
			},
		)},
	}

	for _, br := range branches {
		if err := b.graph.AddBranch(br.from, br.branch); err != nil {
			logx.Error().Err(err).Str("node", br.from).Msg("Error adding branch")
			return fmt.Errorf("error adding %s branch: %w", br.from, err)
		}
	}
	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[*model.TurnRequest, *model.ConversationState], error) {
	// A turn passes wait_user_input twice and runs every other node at most
	// once, so the cap only trips on a routing bug.
	maxSteps := b.config.MaxRunSteps
	if maxSteps <= 0 {
		maxSteps = defaultMaxRunSteps
	}

	runnable, err := b.graph.Compile(ctx,
		compose.WithGraphName("conversation"),
		compose.WithMaxRunSteps(maxSteps),
	)
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}

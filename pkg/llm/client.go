// Package llm runs the portfolio chat: an OpenAI-compatible model that can
// call finance and crypto tools.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// DefaultMaxToolIterations bounds the model/tool round trips of one request.
const DefaultMaxToolIterations = 10

// Message role constants.
const (
	RoleSystem    = openai.ChatMessageRoleSystem
	RoleUser      = openai.ChatMessageRoleUser
	RoleAssistant = openai.ChatMessageRoleAssistant
	RoleTool      = openai.ChatMessageRoleTool
)

// Message is one chat turn supplied by the caller.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolExecutor runs a named tool with JSON arguments and returns a JSON result.
type ToolExecutor interface {
	ExecuteTool(ctx context.Context, name string, arguments string) (string, error)
}

// ChatRequest is one tool-enabled completion.
type ChatRequest struct {
	SystemPrompt string
	Messages     []Message
	Tools        []ToolDefinition
	Temperature  float64
}

// ChatResult is the final reply and the tools called on the way.
type ChatResult struct {
	Content   string   `json:"content"`
	ToolCalls []string `json:"tool_calls,omitempty"`
}

// chatCompleter is the part of *openai.Client the chat loop uses.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config holds configuration for creating an LLM client.
type Config struct {
	Endpoint string // Base URL; empty means the OpenAI default
	Model    string
	APIKey   string
}

// Client talks to an OpenAI-compatible chat completion endpoint.
type Client struct {
	api               chatCompleter
	model             string
	maxToolIterations int
	breaker           *CircuitBreaker
	logger            *zap.Logger
}

// NewClient creates a new OpenAI-compatible LLM client.
func NewClient(cfg *Config, logger *zap.Logger) (*Client, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/")
	}

	return newClient(openai.NewClientWithConfig(clientConfig), cfg.Model, logger), nil
}

func newClient(api chatCompleter, model string, logger *zap.Logger) *Client {
	return &Client{
		api:               api,
		model:             model,
		maxToolIterations: DefaultMaxToolIterations,
		breaker:           NewCircuitBreaker(DefaultCircuitBreakerConfig()),
		logger:            logger.Named("llm"),
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// GenerateWithTools runs the completion loop: whenever the model asks for
// tools they are executed and their results fed back, until the model answers
// in plain text or the iteration limit is hit. Tool failures are reported to
// the model as text rather than aborting the loop.
func (c *Client) GenerateWithTools(ctx context.Context, req *ChatRequest, executor ToolExecutor) (*ChatResult, error) {
	messages := buildMessages(req.SystemPrompt, req.Messages)
	tools := buildTools(req.Tools)

	temperature := float32(req.Temperature)
	if temperature == 0 {
		temperature = 0.3
	}

	result := &ChatResult{}
	for iteration := 0; iteration < c.maxToolIterations; iteration++ {
		choice, err := c.complete(ctx, openai.ChatCompletionRequest{
			Model:       c.model,
			Messages:    messages,
			Tools:       tools,
			Temperature: temperature,
		})
		if err != nil {
			return nil, err
		}

		if len(choice.Message.ToolCalls) == 0 {
			result.Content = strings.TrimSpace(choice.Message.Content)
			return result, nil
		}

		messages = append(messages, openai.ChatCompletionMessage{
			Role:      openai.ChatMessageRoleAssistant,
			Content:   choice.Message.Content,
			ToolCalls: choice.Message.ToolCalls,
		})

		for _, tc := range choice.Message.ToolCalls {
			result.ToolCalls = append(result.ToolCalls, tc.Function.Name)

			output, execErr := executor.ExecuteTool(ctx, tc.Function.Name, tc.Function.Arguments)
			if execErr != nil {
				c.logger.Debug("Tool call failed",
					zap.String("tool", tc.Function.Name),
					zap.Error(execErr))
				output = fmt.Sprintf(`{"error": %q}`, execErr.Error())
			}

			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    output,
				ToolCallID: tc.ID,
			})
		}
	}

	return nil, fmt.Errorf("exceeded maximum tool iterations (%d)", c.maxToolIterations)
}

func (c *Client) complete(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionChoice, error) {
	if err := c.breaker.Allow(); err != nil {
		return nil, &Error{Type: ErrorTypeEndpoint, Message: err.Error(), Retryable: true}
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		c.breaker.RecordFailure()
		c.logger.Error("LLM request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, ClassifyError(err)
	}
	c.breaker.RecordSuccess()

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	c.logger.Debug("LLM request completed",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Int("tool_calls", len(resp.Choices[0].Message.ToolCalls)),
		zap.Duration("elapsed", time.Since(start)))

	return &resp.Choices[0], nil
}

func buildMessages(systemPrompt string, messages []Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if systemPrompt != "" {
		result = append(result, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	for _, m := range messages {
		// Callers may not inject system or tool turns.
		if m.Role != RoleUser && m.Role != RoleAssistant {
			continue
		}
		result = append(result, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return result
}

func buildTools(defs []ToolDefinition) []openai.Tool {
	if len(defs) == 0 {
		return nil
	}
	tools := make([]openai.Tool, len(defs))
	for i, def := range defs {
		params, _ := json.Marshal(def.Parameters)
		tools[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  json.RawMessage(params),
			},
		}
	}
	return tools
}

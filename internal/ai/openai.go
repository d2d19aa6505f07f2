// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/Finance-LLMs/deep-research/pkg/types"
)

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = time.Second

const defaultMaxRetries = 3

// OpenAIBackend implements Backend against an OpenAI-compatible chat
// completions API, using JSON-schema response formats so every call
// returns a parseable structured object.
type OpenAIBackend struct {
	client     *openai.Client
	model      string
	maxRetries int
}

// NewOpenAI creates a completion backend from the given configuration.
func NewOpenAI(cfg types.AIConfig) *OpenAIBackend {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &OpenAIBackend{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      cfg.Model,
		maxRetries: maxRetries,
	}
}

// --- response schemas ---

var queriesSchema = &jsonschema.Definition{
	Type: jsonschema.Object,
	Properties: map[string]jsonschema.Definition{
		"queries": {
			Type:        jsonschema.Array,
			Description: "List of search queries",
			Items: &jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"query": {
						Type:        jsonschema.String,
						Description: "The search query",
					},
					"research_goal": {
						Type:        jsonschema.String,
						Description: "The goal this query is meant to accomplish and how to advance the research once results are found, including additional research directions",
					},
				},
				Required: []string{"query", "research_goal"},
			},
		},
	},
	Required: []string{"queries"},
}

var learningsSchema = &jsonschema.Definition{
	Type: jsonschema.Object,
	Properties: map[string]jsonschema.Definition{
		"learnings": {
			Type:        jsonschema.Array,
			Description: "List of learnings extracted from the contents",
			Items:       &jsonschema.Definition{Type: jsonschema.String},
		},
		"follow_up_questions": {
			Type:        jsonschema.Array,
			Description: "List of follow-up questions to research the topic further",
			Items:       &jsonschema.Definition{Type: jsonschema.String},
		},
	},
	Required: []string{"learnings", "follow_up_questions"},
}

var reportSchema = &jsonschema.Definition{
	Type: jsonschema.Object,
	Properties: map[string]jsonschema.Definition{
		"report_markdown": {
			Type:        jsonschema.String,
			Description: "Final report on the topic in Markdown",
		},
	},
	Required: []string{"report_markdown"},
}

var answerSchema = &jsonschema.Definition{
	Type: jsonschema.Object,
	Properties: map[string]jsonschema.Definition{
		"exact_answer": {
			Type:        jsonschema.String,
			Description: "The final answer, short and concise, no other text",
		},
	},
	Required: []string{"exact_answer"},
}

// GenerateQueries implements Backend.
func (b *OpenAIBackend) GenerateQueries(ctx context.Context, prompt string, numQueries int, learnings []string) ([]types.Query, error) {
	userPrompt, err := renderTemplate(queryPromptTmpl, struct {
		Prompt     string
		NumQueries int
		Learnings  []string
	}{prompt, numQueries, learnings})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Queries []types.Query `json:"queries"`
	}
	if err := b.generate(ctx, "serp_queries", queriesSchema, userPrompt, &parsed); err != nil {
		return nil, fmt.Errorf("generating queries: %w", err)
	}

	queries := parsed.Queries
	if len(queries) > numQueries {
		queries = queries[:numQueries]
	}
	return queries, nil
}

// ExtractLearnings implements Backend.
func (b *OpenAIBackend) ExtractLearnings(ctx context.Context, query string, contents []string, numLearnings, numFollowUp int) (Extraction, error) {
	userPrompt, err := renderTemplate(learningPromptTmpl, struct {
		Query        string
		Contents     []string
		NumLearnings int
		NumFollowUp  int
	}{query, contents, numLearnings, numFollowUp})
	if err != nil {
		return Extraction{}, err
	}

	var parsed Extraction
	if err := b.generate(ctx, "learnings", learningsSchema, userPrompt, &parsed); err != nil {
		return Extraction{}, fmt.Errorf("extracting learnings: %w", err)
	}

	if len(parsed.Learnings) > numLearnings {
		parsed.Learnings = parsed.Learnings[:numLearnings]
	}
	if len(parsed.FollowUpQuestions) > numFollowUp {
		parsed.FollowUpQuestions = parsed.FollowUpQuestions[:numFollowUp]
	}
	return parsed, nil
}

// WriteReport implements Backend.
func (b *OpenAIBackend) WriteReport(ctx context.Context, prompt string, learnings []string) (string, error) {
	userPrompt, err := renderTemplate(reportPromptTmpl, struct {
		Prompt    string
		Learnings []string
	}{prompt, learnings})
	if err != nil {
		return "", err
	}

	var parsed struct {
		ReportMarkdown string `json:"report_markdown"`
	}
	if err := b.generate(ctx, "final_report", reportSchema, userPrompt, &parsed); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}
	return parsed.ReportMarkdown, nil
}

// WriteAnswer implements Backend.
func (b *OpenAIBackend) WriteAnswer(ctx context.Context, prompt string, learnings []string) (string, error) {
	userPrompt, err := renderTemplate(answerPromptTmpl, struct {
		Prompt    string
		Learnings []string
	}{prompt, learnings})
	if err != nil {
		return "", err
	}

	var parsed struct {
		ExactAnswer string `json:"exact_answer"`
	}
	if err := b.generate(ctx, "exact_answer", answerSchema, userPrompt, &parsed); err != nil {
		return "", fmt.Errorf("writing answer: %w", err)
	}
	return parsed.ExactAnswer, nil
}

// generate calls the chat completions API with a JSON-schema response
// format and unmarshals the structured reply into out, retrying failed
// calls with exponential backoff.
func (b *OpenAIBackend) generate(ctx context.Context, schemaName string, schema *jsonschema.Definition, userPrompt string, out any) error {
	req := openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   schemaName,
				Schema: schema,
				Strict: true,
			},
		},
	}

	resp, err := b.callWithRetry(ctx, req)
	if err != nil {
		return err
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("completion response has no choices")
	}

	content := resp.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("parsing structured response: %w", err)
	}
	return nil
}

// callWithRetry retries transient completion failures with exponential backoff.
func (b *OpenAIBackend) callWithRetry(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= b.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			select {
			case <-ctx.Done():
				return openai.ChatCompletionResponse{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, err := b.client.CreateChatCompletion(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	return openai.ChatCompletionResponse{}, fmt.Errorf("after %d retries: %w", b.maxRetries, lastErr)
}

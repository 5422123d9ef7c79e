package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

var ErrEmptyResponse = errors.New("no response candidates from Gemini")

const defaultModel = "gemini-2.0-flash"

// GeminiProvider implements RankingProvider using Google's Gemini models.
type GeminiProvider struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGeminiProvider initializes a new Gemini client. An empty modelName
// selects gemini-2.0-flash.
func NewGeminiProvider(ctx context.Context, apiKey, modelName string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if modelName == "" {
		modelName = defaultModel
	}
	model := client.GenerativeModel(modelName)

	// Force JSON response for structured parsing.
	model.ResponseMIMEType = "application/json"

	// Low temperature keeps rankings stable across identical inputs.
	model.SetTemperature(0.2)

	return &GeminiProvider{
		client: client,
		model:  model,
	}, nil
}

// Close cleans up the Gemini client resources.
func (p *GeminiProvider) Close() {
	p.client.Close()
}

// RankDrivers submits the ride and candidate profiles and parses the decision.
func (p *GeminiProvider) RankDrivers(ctx context.Context, req DriverRankingRequest) (*RankingDecision, error) {
	prompt, err := buildRankingPrompt(req)
	if err != nil {
		return nil, err
	}
	text, err := p.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return parseRankingDecision(text)
}

// AnalyzeMatching asks for qualitative insights over a window of rides.
func (p *GeminiProvider) AnalyzeMatching(ctx context.Context, stats MatchingStats) (*MatchingInsights, error) {
	prompt, err := buildAnalysisPrompt(stats)
	if err != nil {
		return nil, err
	}
	text, err := p.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	var out MatchingInsights
	if err := json.Unmarshal([]byte(cleanJSONString(text)), &out); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w", err)
	}
	return &out, nil
}

func (p *GeminiProvider) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := p.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generation error: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			responseText.WriteString(string(txt))
		}
	}
	return responseText.String(), nil
}

func parseRankingDecision(text string) (*RankingDecision, error) {
	cleaned := cleanJSONString(text)
	var d RankingDecision
	if err := json.Unmarshal([]byte(cleaned), &d); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w. Raw: %s", err, truncate(cleaned, 200))
	}
	if d.SelectedDriverID == "" {
		return nil, errors.New("response missing selected_driver_id")
	}
	return &d, nil
}

// cleanJSONString removes markdown code blocks if present (e.g. ```json ... ```)
func cleanJSONString(input string) string {
	input = strings.TrimSpace(input)
	input = strings.TrimPrefix(input, "```json")
	input = strings.TrimPrefix(input, "```")
	input = strings.TrimSuffix(input, "```")
	return strings.TrimSpace(input)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/yicheng0/tryveo4/internal/pkg/env"
)

const defaultModel = "gemini-1.5-flash"

// Service wraps the Gemini client for the text generation demo.
type Service struct {
	client *genai.Client
	model  string
}

// NewService initializes the Gemini client from GEMINI_API_KEY.
func NewService(ctx context.Context) (*Service, error) {
	apiKey := env.GetEnv("GEMINI_API_KEY", "")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is not set")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := env.GetEnv("GEMINI_MODEL", defaultModel)
	return &Service{client: client, model: model}, nil
}

// Close releases the underlying client.
func (s *Service) Close() error {
	return s.client.Close()
}

// Result is one completed generation with its token accounting.
type Result struct {
	Text        string `json:"text"`
	Model       string `json:"model"`
	TotalTokens int    `json:"total_tokens"`
}

// Generate runs a single prompt through the model and returns the text
// response plus the token count reported by the API.
func (s *Service) Generate(ctx context.Context, prompt string) (*Result, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, fmt.Errorf("prompt is empty")
	}

	model := s.client.GenerativeModel(s.model)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(
			"You are a helpful writing assistant. Answer concisely in the language of the prompt.",
		)},
	}

	res, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	totalTokens := 0
	if res.UsageMetadata != nil {
		totalTokens = int(res.UsageMetadata.TotalTokenCount)
	}

	if len(res.Candidates) == 0 || res.Candidates[0].Content == nil || len(res.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("model returned no candidates")
	}

	var sb strings.Builder
	for _, part := range res.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return nil, fmt.Errorf("model returned no text")
	}

	return &Result{
		Text:        sb.String(),
		Model:       s.model,
		TotalTokens: totalTokens,
	}, nil
}

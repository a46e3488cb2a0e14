package oracle

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/coax-games/coax-api/internal/domain"
)

// GeminiOracle plays the angry character with Gemini on Vertex AI.
type GeminiOracle struct {
	client    *genai.Client
	modelName string
}

// NewGeminiOracle creates a Vertex AI backed oracle.
func NewGeminiOracle(ctx context.Context, projectID, location, modelName string) (*GeminiOracle, error) {
	if projectID == "" || location == "" {
		return nil, fmt.Errorf("gcp project and location are required for the gemini oracle")
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Vertex AI client: %w", err)
	}

	return &GeminiOracle{
		client:    client,
		modelName: modelName,
	}, nil
}

// Generate implements domain.ReplyOracle.
func (g *GeminiOracle) Generate(ctx context.Context, in domain.GenerateInput) (*domain.GenerateOutput, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(buildUserPrompt(in), genai.RoleUser),
	}

	// Low temperature and a short token budget: the answer is one small
	// JSON object, not an essay.
	temp := float32(0.3)
	outputTokens := int32(256)

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       &temp,
		MaxOutputTokens:   outputTokens,
		ResponseMIMEType:  "application/json",
	}

	res, err := g.client.Models.GenerateContent(ctx, g.modelName, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}

	text := res.Text()
	if text == "" {
		return nil, fmt.Errorf("gemini returned empty text")
	}

	return parseReply(text)
}

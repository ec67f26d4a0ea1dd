package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/onevoice/ivr/backend/internal/config"
	"github.com/onevoice/ivr/backend/internal/logging"
	"github.com/onevoice/ivr/backend/internal/model/call"
)

// GeminiBackend generates replies with the Gemini API.
type GeminiBackend struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int32
	logger      zerolog.Logger
}

// NewGeminiBackend creates a Gemini API client.
func NewGeminiBackend(ctx context.Context, cfg config.AIConfig) (*GeminiBackend, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required for the gemini provider")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiBackend{
		client:      client,
		model:       cfg.GeminiModel,
		temperature: cfg.Temperature,
		maxTokens:   int32(cfg.MaxTokens),
		logger:      logging.Component("gemini"),
	}, nil
}

// Generate implements Backend.
func (g *GeminiBackend) Generate(ctx context.Context, req Request) (Reply, error) {
	contents, err := buildContents(req.History)
	if err != nil {
		return Reply{}, err
	}

	temperature := g.temperature
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemInstruction}},
		},
		Temperature:     &temperature,
		MaxOutputTokens: g.maxTokens,
	})
	if err != nil {
		return Reply{}, fmt.Errorf("gemini generate: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return Reply{}, ErrEmptyReply
	}

	g.logger.Debug().Str("model", g.model).Int("length", len(text)).Msg("generated reply")
	return Reply{Text: text}, nil
}

func buildContents(history []call.Turn) ([]*genai.Content, error) {
	turns := boundedHistory(history)
	if len(turns) == 0 || turns[len(turns)-1].Role != call.RoleUser {
		return nil, ErrNoQuery
	}

	contents := make([]*genai.Content, 0, len(turns))
	for _, turn := range turns {
		role := string(genai.RoleUser)
		if turn.Role == call.RoleAssistant {
			role = string(genai.RoleModel)
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: turn.Text}},
		})
	}
	return contents, nil
}

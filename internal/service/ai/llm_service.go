package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"github.com/onevoice/ivr/backend/internal/config"
	"github.com/onevoice/ivr/backend/internal/logging"
	"github.com/onevoice/ivr/backend/internal/model/call"
)

// HistoryLimit caps the turns sent to a backend.
const HistoryLimit = config.MaxHistoryLimit

var (
	// ErrEmptyReply is returned when the model produced no text.
	ErrEmptyReply = errors.New("ai: empty reply")
	// ErrNoQuery is returned when the request has no trailing user turn.
	ErrNoQuery = errors.New("ai: request does not end with a user turn")
)

// Request is one generation call.
type Request struct {
	SystemInstruction string
	// History is chronological and ends with the caller's latest utterance.
	History []call.Turn
}

// Reply is the generated assistant utterance.
type Reply struct {
	Text string
}

// Backend produces one assistant reply per request.
type Backend interface {
	Generate(ctx context.Context, req Request) (Reply, error)
}

// Service runs requests through an eino prompt chain on an ark chat model.
type Service struct {
	chatModel model.ChatModel
	chain     compose.Runnable[map[string]any, *schema.Message]
	logger    zerolog.Logger
}

// NewService creates the chain from the ark configuration.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(ctx, chatModel)
}

// NewServiceWithModel compiles the chain around an existing chat model.
func NewServiceWithModel(ctx context.Context, chatModel model.ChatModel) (*Service, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		chain:     runnable,
		logger:    logging.Component("ai"),
	}, nil
}

// Generate implements Backend.
func (s *Service) Generate(ctx context.Context, req Request) (Reply, error) {
	input, err := buildChainInput(req)
	if err != nil {
		return Reply{}, err
	}

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return Reply{}, fmt.Errorf("failed to run AI chain: %w", err)
	}

	text := strings.TrimSpace(response.Content)
	if text == "" {
		return Reply{}, ErrEmptyReply
	}

	s.logger.Debug().Int("history", len(req.History)).Int("length", len(text)).Msg("generated reply")
	return Reply{Text: text}, nil
}

// GetChatModel returns the underlying chat model.
func (s *Service) GetChatModel() model.ChatModel {
	return s.chatModel
}

// buildChainInput splits the request into prompt variables: the final user
// turn becomes the query and everything before it the history placeholder.
func buildChainInput(req Request) (map[string]any, error) {
	turns := boundedHistory(req.History)
	if len(turns) == 0 || turns[len(turns)-1].Role != call.RoleUser {
		return nil, ErrNoQuery
	}
	last := turns[len(turns)-1]

	return map[string]any{
		"system":  req.SystemInstruction,
		"history": buildHistoryMessages(turns[:len(turns)-1]),
		"query":   last.Text,
	}, nil
}

func buildHistoryMessages(turns []call.Turn) []*schema.Message {
	if len(turns) == 0 {
		return nil
	}

	history := make([]*schema.Message, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case call.RoleUser:
			history = append(history, schema.UserMessage(turn.Text))
		case call.RoleAssistant:
			history = append(history, schema.AssistantMessage(turn.Text, nil))
		}
	}
	return history
}

func boundedHistory(turns []call.Turn) []call.Turn {
	if len(turns) > HistoryLimit {
		return turns[len(turns)-HistoryLimit:]
	}
	return turns
}

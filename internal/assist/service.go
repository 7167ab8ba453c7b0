package assist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	pkgerrors "github.com/angelmondragon/homedoc-backend/pkg/errors"
	"github.com/angelmondragon/homedoc-backend/pkg/logger"
)

const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 1024
	maxTemperature     = 2.0
	maxTokensCeiling   = 4096
	maxMessages        = 50
	maxContentRunes    = 8000
)

// Service forwards validated symptom chat transcripts to the completions provider.
type Service interface {
	Chat(ctx context.Context, input ChatInput) (*ChatResult, error)
}

// ServiceParams wires the chat service.
type ServiceParams struct {
	Completer     Completer
	Logger        *logger.Logger
	Model         string
	RatePerSecond float64
	Burst         int
}

type service struct {
	completer Completer
	logg      *logger.Logger
	model     string
	limiter   *rate.Limiter
}

// NewService builds the chat service. A non-positive rate disables throttling.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Completer == nil:
		return nil, errors.New("assist completer required")
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case strings.TrimSpace(params.Model) == "":
		return nil, errors.New("assist model required")
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if params.RatePerSecond > 0 {
		burst := params.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(params.RatePerSecond), burst)
	}
	return &service{
		completer: params.Completer,
		logg:      params.Logger,
		model:     params.Model,
		limiter:   limiter,
	}, nil
}

func (s *service) Chat(ctx context.Context, input ChatInput) (*ChatResult, error) {
	req, err := s.buildRequest(input)
	if err != nil {
		return nil, err
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assistant is busy")
	}

	content, err := s.completer.Complete(ctx, req)
	if err != nil {
		s.logg.Error(s.logg.WithField(ctx, "messages", len(req.Messages)), "assistant completion failed", err)
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "assistant provider error")
		}
		return nil, err
	}
	return &ChatResult{Content: content}, nil
}

func (s *service) buildRequest(input ChatInput) (CompletionRequest, error) {
	if len(input.Messages) == 0 {
		return CompletionRequest{}, pkgerrors.New(pkgerrors.CodeValidation, "messages array is required")
	}
	if len(input.Messages) > maxMessages {
		return CompletionRequest{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("at most %d messages are allowed", maxMessages))
	}

	messages := make([]Message, 0, len(input.Messages))
	for i, msg := range input.Messages {
		role := strings.ToLower(strings.TrimSpace(msg.Role))
		content := strings.TrimSpace(msg.Content)
		switch {
		case role != RoleSystem && role != RoleUser && role != RoleAssistant:
			return CompletionRequest{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("messages[%d].role must be system, user or assistant", i))
		case content == "":
			return CompletionRequest{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("messages[%d].content is required", i))
		case len([]rune(content)) > maxContentRunes:
			return CompletionRequest{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("messages[%d].content is too long", i))
		}
		messages = append(messages, Message{Role: role, Content: content})
	}

	temperature := defaultTemperature
	if input.Temperature != nil {
		temperature = *input.Temperature
		if temperature < 0 || temperature > maxTemperature {
			return CompletionRequest{}, pkgerrors.New(pkgerrors.CodeValidation, "temperature must be between 0 and 2")
		}
	}
	maxTokens := defaultMaxTokens
	if input.MaxTokens != nil {
		maxTokens = *input.MaxTokens
		if maxTokens < 1 || maxTokens > maxTokensCeiling {
			return CompletionRequest{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("max_tokens must be between 1 and %d", maxTokensCeiling))
		}
	}

	return CompletionRequest{
		Model:       s.model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}, nil
}

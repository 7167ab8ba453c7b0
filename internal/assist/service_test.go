package assist

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/homedoc-backend/pkg/errors"
	"github.com/angelmondragon/homedoc-backend/pkg/logger"
)

type stubCompleter struct {
	req     CompletionRequest
	calls   int
	content string
	err     error
}

func (s *stubCompleter) Complete(_ context.Context, req CompletionRequest) (string, error) {
	s.calls++
	s.req = req
	return s.content, s.err
}

func newTestService(t *testing.T, completer Completer) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Completer: completer,
		Logger:    logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Model:     "test-model",
	})
	require.NoError(t, err)
	return svc
}

func TestChatAppliesDefaults(t *testing.T) {
	completer := &stubCompleter{content: "Drink water."}
	svc := newTestService(t, completer)

	res, err := svc.Chat(context.Background(), ChatInput{Messages: []Message{
		{Role: "System", Content: " You are a triage helper. "},
		{Role: "user", Content: "headache"},
	}})
	require.NoError(t, err)
	assert.Equal(t, "Drink water.", res.Content)
	assert.Equal(t, "test-model", completer.req.Model)
	assert.Equal(t, defaultTemperature, completer.req.Temperature)
	assert.Equal(t, defaultMaxTokens, completer.req.MaxTokens)
	assert.Equal(t, Message{Role: RoleSystem, Content: "You are a triage helper."}, completer.req.Messages[0])
}

func TestChatHonorsOverrides(t *testing.T) {
	completer := &stubCompleter{content: "ok"}
	svc := newTestService(t, completer)
	temp, tokens := 0.2, 256

	_, err := svc.Chat(context.Background(), ChatInput{
		Messages:    []Message{{Role: RoleUser, Content: "cough"}},
		Temperature: &temp,
		MaxTokens:   &tokens,
	})
	require.NoError(t, err)
	assert.Equal(t, 0.2, completer.req.Temperature)
	assert.Equal(t, 256, completer.req.MaxTokens)
}

func TestChatRejectsInvalidTranscripts(t *testing.T) {
	hot, zero := 3.0, 0
	tests := []struct {
		name  string
		input ChatInput
		msg   string
	}{
		{"no messages", ChatInput{}, "messages array is required"},
		{"bad role", ChatInput{Messages: []Message{{Role: "tool", Content: "x"}}}, "messages[0].role must be system, user or assistant"},
		{"blank content", ChatInput{Messages: []Message{{Role: RoleUser, Content: "  "}}}, "messages[0].content is required"},
		{"too long", ChatInput{Messages: []Message{{Role: RoleUser, Content: strings.Repeat("a", maxContentRunes+1)}}}, "messages[0].content is too long"},
		{"temperature", ChatInput{Messages: []Message{{Role: RoleUser, Content: "x"}}, Temperature: &hot}, "temperature must be between 0 and 2"},
		{"max tokens", ChatInput{Messages: []Message{{Role: RoleUser, Content: "x"}}, MaxTokens: &zero}, "max_tokens must be between 1 and 4096"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completer := &stubCompleter{}
			_, err := newTestService(t, completer).Chat(context.Background(), tt.input)
			require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), err)
			assert.Equal(t, tt.msg, pkgerrors.As(err).Message())
			assert.Zero(t, completer.calls)
		})
	}
}

func TestChatMapsUntypedFailuresToUpstream(t *testing.T) {
	svc := newTestService(t, &stubCompleter{err: errors.New("connection reset")})

	_, err := svc.Chat(context.Background(), ChatInput{Messages: []Message{{Role: RoleUser, Content: "rash"}}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUpstream))
}

func TestChatWaitsOnLimiter(t *testing.T) {
	svc, err := NewService(ServiceParams{
		Completer:     &stubCompleter{content: "ok"},
		Logger:        logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Model:         "m",
		RatePerSecond: 0.001,
		Burst:         1,
	})
	require.NoError(t, err)
	input := ChatInput{Messages: []Message{{Role: RoleUser, Content: "x"}}}

	_, err = svc.Chat(context.Background(), input)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.Chat(ctx, input)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}

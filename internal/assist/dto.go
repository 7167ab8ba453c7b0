package assist

// Roles accepted from chat clients.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of the symptom chat transcript.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatInput is a transcript plus optional sampling overrides.
type ChatInput struct {
	Messages    []Message
	Temperature *float64
	MaxTokens   *int
}

// ChatResult carries the assistant's reply.
type ChatResult struct {
	Content string `json:"content"`
}

// CompletionRequest is the body sent to the completions endpoint.
type CompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	Stream      bool      `json:"stream"`
}

type completionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

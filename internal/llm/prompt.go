package llm

import "strings"

// DefaultMaxTokens caps each completion.
const DefaultMaxTokens = 4096

// Role identifies who authored a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is the full input to a streaming completion call.
type Request struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens,omitempty"`
}

// QuoteInput wraps free-form user input as :"""input""" so the model can
// tell it apart from the instructions around it.
func QuoteInput(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 7)
	b.WriteString(`:"""`)
	b.WriteString(s)
	b.WriteString(`"""`)
	return b.String()
}

package session

import (
	"sync"

	"github.com/jgrana2/prompt-manager/internal/llm"
)

// Conversation is the in-memory message list sent to the endpoint. Nothing
// is persisted.
type Conversation struct {
	mu       sync.RWMutex
	messages []llm.Message
}

// Reset replaces the conversation with a single system message, or empties
// it when system is blank.
func (c *Conversation) Reset(system string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = c.messages[:0:0]
	if system != "" {
		c.messages = append(c.messages, llm.Message{Role: llm.RoleSystem, Content: system})
	}
}

// Append adds a message.
func (c *Conversation) Append(role llm.Role, content string) {
	c.mu.Lock()
	c.messages = append(c.messages, llm.Message{Role: role, Content: content})
	c.mu.Unlock()
}

// Messages returns a copy of the messages in order.
func (c *Conversation) Messages() []llm.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]llm.Message(nil), c.messages...)
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

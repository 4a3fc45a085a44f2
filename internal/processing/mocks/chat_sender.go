package mocks

import (
	"context"
	"sync"
)

// SentMessage is one delivered payload. PhotoURL is empty for text messages.
type SentMessage struct {
	ChatID   int64
	Text     string
	PhotoURL string
}

// MockChatSender records everything sent through it
type MockChatSender struct {
	mu sync.Mutex

	// Errors to return
	MessageError error
	PhotoError   error

	// Call tracking
	Messages   []SentMessage
	PhotoCalls int
}

// NewMockChatSender creates a new mock chat sender
func NewMockChatSender() *MockChatSender {
	return &MockChatSender{}
}

func (m *MockChatSender) SendMessage(ctx context.Context, chatID int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MessageError != nil {
		return m.MessageError
	}
	m.Messages = append(m.Messages, SentMessage{ChatID: chatID, Text: text})
	return nil
}

func (m *MockChatSender) SendPhoto(ctx context.Context, chatID int64, photoURL, caption string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PhotoCalls++
	if m.PhotoError != nil {
		return m.PhotoError
	}
	m.Messages = append(m.Messages, SentMessage{ChatID: chatID, Text: caption, PhotoURL: photoURL})
	return nil
}

// Sent returns a copy of the delivered payloads
func (m *MockChatSender) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.Messages))
	copy(out, m.Messages)
	return out
}

package testutils

import "sync"

// MockNotifier records every notification for assertions.
type MockNotifier struct {
	mu       sync.Mutex
	messages []string
	categories []string
}

func NewMockNotifier() *MockNotifier { return &MockNotifier{} }

func (n *MockNotifier) Send(message, category string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	n.categories = append(n.categories, category)
}

// Messages returns a copy of everything sent so far.
func (n *MockNotifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.messages))
	copy(out, n.messages)
	return out
}

package mocks

import (
	"context"
	"sync"
)

// MockLLMService is a mock implementation of LLMService for testing.
// It records every prompt it receives.
type MockLLMService struct {
	mu      sync.Mutex
	model   string
	prompts []string

	// GenerateFn overrides the canned response when set
	GenerateFn func(prompt string) (string, error)
	// Response is returned when GenerateFn is nil
	Response string
	PingFn   func() error
}

// NewMockLLMService creates a new MockLLMService returning response
func NewMockLLMService(response string) *MockLLMService {
	return &MockLLMService{
		model:    "mock-llm",
		Response: response,
	}
}

func (m *MockLLMService) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	fn := m.GenerateFn
	resp := m.Response
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if fn != nil {
		return fn(prompt)
	}
	return resp, nil
}

func (m *MockLLMService) Model() string {
	return m.model
}

func (m *MockLLMService) Ping(ctx context.Context) error {
	if m.PingFn != nil {
		return m.PingFn()
	}
	return nil
}

func (m *MockLLMService) Close() error {
	return nil
}

// Prompts returns a copy of every prompt received
func (m *MockLLMService) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}

// Calls returns the number of Generate invocations
func (m *MockLLMService) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

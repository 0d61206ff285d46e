package ai

import (
	"context"
	"sync"
)

// MockInvoker is a configurable Invoker for tests. It is safe for concurrent use.
type MockInvoker struct {
	// InvokeFunc answers each call. If nil, Invoke returns "{}".
	InvokeFunc func(ctx context.Context, prompt string, maxTokens int) (string, error)

	mu      sync.Mutex
	prompts []string
	caps    []int
}

// Invoke implements Invoker.
func (m *MockInvoker) Invoke(ctx context.Context, prompt string, maxTokens int) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.caps = append(m.caps, maxTokens)
	m.mu.Unlock()
	if m.InvokeFunc != nil {
		return m.InvokeFunc(ctx, prompt, maxTokens)
	}
	return "{}", nil
}

// Calls returns how many times Invoke ran.
func (m *MockInvoker) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// Prompts returns a copy of every prompt received, in call order.
func (m *MockInvoker) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// MaxTokens returns a copy of the output caps received, in call order.
func (m *MockInvoker) MaxTokens() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.caps...)
}

package adapter

import (
	"context"
	"fmt"
	"sync"

	"github.com/zen-systems/planwright/pkg/artifact"
)

// MockAdapter returns deterministic responses for local runs and tests.
type MockAdapter struct {
	mu              sync.Mutex
	responses       map[string]string
	defaultResponse string
	failures        map[int]error
	calls           []Request
	Usage           *Usage
}

// NewMockAdapter creates a mock adapter with a default response.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		responses:       make(map[string]string),
		defaultResponse: "mock response:",
		failures:        make(map[int]error),
	}
}

// NewMockAdapterWithResponses creates a mock adapter with predefined
// responses, keyed by system instruction or by prompt.
func NewMockAdapterWithResponses(responses map[string]string, defaultResponse string) *MockAdapter {
	m := NewMockAdapter()
	if defaultResponse != "" {
		m.defaultResponse = defaultResponse
	}
	for k, v := range responses {
		m.responses[k] = v
	}
	return m
}

// FailOn makes the n-th call (1-based) return err.
func (a *MockAdapter) FailOn(n int, err error) *MockAdapter {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures[n] = err
	return a
}

// Calls returns a copy of every request received so far.
func (a *MockAdapter) Calls() []Request {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Request, len(a.calls))
	copy(out, a.calls)
	return out
}

// Name returns the adapter identifier.
func (a *MockAdapter) Name() string {
	return "mock"
}

// Models returns the list of supported mock models.
func (a *MockAdapter) Models() []string {
	return []string{"mock-1"}
}

// Complete returns a deterministic artifact for the request.
func (a *MockAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	a.mu.Lock()
	a.calls = append(a.calls, req)
	n := len(a.calls)
	failure := a.failures[n]
	a.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if failure != nil {
		return nil, failure
	}

	model := req.Model
	if model == "" {
		model = "mock-1"
	}
	content, ok := a.responses[req.System]
	if !ok {
		content, ok = a.responses[req.Prompt]
	}
	if !ok {
		content = fmt.Sprintf("%s\n%s", a.defaultResponse, req.Prompt)
	}
	return &Response{
		Artifact: artifact.New(content, a.Name(), model, req.Prompt),
		Usage:    a.Usage,
	}, nil
}

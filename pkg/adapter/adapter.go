package adapter

import (
	"context"
)

// Adapter defines the interface for LLM completion providers.
type Adapter interface {
	// Complete sends one system+user exchange to the model and returns the reply.
	Complete(ctx context.Context, req Request) (*Response, error)

	// Name returns the adapter's identifier.
	Name() string

	// Models returns the list of supported models.
	Models() []string
}

// Request is a single completion call.
type Request struct {
	Model       string
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

func (r Request) maxTokens() int64 {
	if r.MaxTokens <= 0 {
		return 4096
	}
	return int64(r.MaxTokens)
}

// Names lists the adapters the CLI knows how to build.
func Names() []string {
	return []string{"anthropic", "deepseek", "google", "mock", "openai"}
}

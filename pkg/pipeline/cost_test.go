package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/zen-systems/planwright/pkg/adapter"
	"github.com/zen-systems/planwright/pkg/artifact"
	"github.com/zen-systems/planwright/pkg/config"
)

type transientAdapter struct {
	failures int
	status   int
	calls    int
}

func (a *transientAdapter) Complete(_ context.Context, req adapter.Request) (*adapter.Response, error) {
	a.calls++
	if a.calls <= a.failures {
		return nil, &adapter.AdapterError{Provider: "transient", Status: a.status, Temporary: a.status == 429 || a.status >= 500, Err: fmt.Errorf("status %d", a.status)}
	}
	art := artifact.New("ok", "transient", req.Model, req.Prompt)
	return &adapter.Response{Artifact: art, Usage: &adapter.Usage{PromptTokens: 10}}, nil
}

func (a *transientAdapter) Name() string { return "transient" }

func (a *transientAdapter) Models() []string { return []string{"mock-1"} }

func testPolicy(maxRetries int, tracker *costTracker) (*callPolicy, *[]time.Duration) {
	var slept []time.Duration
	return &callPolicy{
		retry:   config.RetryConfig{MaxRetries: maxRetries, BaseBackoffMs: 1, MaxBackoffMs: 2},
		tracker: tracker,
		sleep: func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
		logger: zap.NewNop(),
	}, &slept
}

func TestEstimateCost(t *testing.T) {
	pricing := config.PricingConfig{
		"openai": {
			"gpt-1": {
				PromptPer1K:     0.15,
				CompletionPer1K: 0.60,
			},
		},
	}

	usage := adapter.Usage{PromptTokens: 1000, CompletionTokens: 500}
	cost, ok := estimateCost(pricing, "openai", "gpt-1", usage)
	if !ok {
		t.Fatalf("expected pricing match")
	}
	want := 0.15 + 0.30
	if math.Abs(cost.Amount-want) > 1e-6 {
		t.Fatalf("cost amount mismatch: got %.4f want %.4f", cost.Amount, want)
	}
	if !cost.IsEstimate || cost.PricingModel != "per_1k_tokens" {
		t.Fatalf("unexpected cost metadata: %+v", cost)
	}

	if _, ok := estimateCost(pricing, "anthropic", "claude", usage); ok {
		t.Fatalf("expected no pricing for unknown adapter")
	}
}

func TestBudgetEnforcementStopsSecondCall(t *testing.T) {
	pricing := config.PricingConfig{
		"transient": {
			"mock-1": {PromptPer1K: 100.0},
		},
	}
	tracker := newCostTracker(pricing, 0.5)
	policy, _ := testPolicy(0, tracker)
	impl := &transientAdapter{}

	if _, _, err := policy.call(context.Background(), impl, adapter.Request{Model: "mock-1"}); err != nil {
		t.Fatalf("first call: %v", err)
	}
	_, report, err := policy.call(context.Background(), impl, adapter.Request{Model: "mock-1"})
	if !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("expected budget error, got %v", err)
	}
	if report.Error == "" {
		t.Fatalf("expected error in call report")
	}
	if impl.calls != 1 {
		t.Fatalf("expected 1 adapter call, got %d", impl.calls)
	}
}

func TestRetryWithTransientErrors(t *testing.T) {
	policy, slept := testPolicy(2, nil)
	impl := &transientAdapter{failures: 2, status: 429}

	resp, report, err := policy.call(context.Background(), impl, adapter.Request{Model: "mock-1"})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if resp == nil || resp.Artifact == nil {
		t.Fatalf("expected response artifact")
	}
	if report.Retries != 2 {
		t.Fatalf("expected 2 retries, got %d", report.Retries)
	}
	if report.Usage.TotalTokens != 10 {
		t.Fatalf("expected normalized usage, got %+v", report.Usage)
	}
	if len(*slept) != 2 || (*slept)[0] != time.Millisecond || (*slept)[1] != 2*time.Millisecond {
		t.Fatalf("unexpected backoff sequence: %v", *slept)
	}
}

func TestNoRetryOnPermanentError(t *testing.T) {
	policy, slept := testPolicy(3, nil)
	impl := &transientAdapter{failures: 5, status: 401}

	_, report, err := policy.call(context.Background(), impl, adapter.Request{Model: "mock-1"})
	if err == nil {
		t.Fatalf("expected failure")
	}
	if !adapter.IsAuth(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if impl.calls != 1 || len(*slept) != 0 {
		t.Fatalf("expected a single attempt, got %d calls and %d sleeps", impl.calls, len(*slept))
	}
	if report.Retries != 0 {
		t.Fatalf("expected 0 retries, got %d", report.Retries)
	}
}

func TestRetriesExhausted(t *testing.T) {
	policy, _ := testPolicy(1, nil)
	impl := &transientAdapter{failures: 5, status: 503}

	_, _, err := policy.call(context.Background(), impl, adapter.Request{Model: "mock-1"})
	if !adapter.IsTransient(err) {
		t.Fatalf("expected last transient error, got %v", err)
	}
	if impl.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", impl.calls)
	}
}

func TestComputeBackoff(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 200 * time.Millisecond},
		{1, 400 * time.Millisecond},
		{2, 800 * time.Millisecond},
		{3, 1600 * time.Millisecond},
		{4, 2000 * time.Millisecond},
		{10, 2000 * time.Millisecond},
	}
	for _, tc := range cases {
		if got := computeBackoff(200, 2000, tc.attempt); got != tc.want {
			t.Fatalf("attempt %d: got %v want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestSleepWithContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepWithContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

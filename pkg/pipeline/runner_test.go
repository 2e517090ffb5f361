package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zen-systems/planwright/pkg/adapter"
	"github.com/zen-systems/planwright/pkg/config"
)

const testTopic = "AI-powered interview platforms"

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Provider = "mock"
	cfg.Model = "mock-1"
	cfg.Retry = config.RetryConfig{MaxRetries: 2, BaseBackoffMs: 1, MaxBackoffMs: 2}
	return cfg
}

func marker(stage string) string {
	return "<<" + stage + " output>>"
}

// scriptedMock answers each stage with a recognizable marker, keyed by the
// stage's rendered role.
func scriptedMock(t *testing.T, stages []StageSpec, overrides map[string]string) *adapter.MockAdapter {
	t.Helper()
	responses := make(map[string]string, len(stages))
	for _, s := range stages {
		role, err := renderTemplate(s.Name, s.Role, promptData{Topic: testTopic, Stages: map[string]string{}})
		require.NoError(t, err)
		responses[role] = marker(s.Name)
		if text, ok := overrides[s.Name]; ok {
			responses[role] = text
		}
	}
	return adapter.NewMockAdapterWithResponses(responses, "")
}

func noSleep(context.Context, time.Duration) error { return nil }

func newTestRunner(t *testing.T, cfg *config.Config, mock *adapter.MockAdapter, opts ...Option) *Runner {
	t.Helper()
	opts = append([]Option{WithSleep(noSleep)}, opts...)
	r, err := NewRunner(cfg, mock, opts...)
	require.NoError(t, err)
	return r
}

func TestRunProducesAllStageOutputs(t *testing.T) {
	cfg := testConfig()
	stages, err := DefaultStages(ProfileDetailed)
	require.NoError(t, err)
	mock := scriptedMock(t, stages, nil)

	r := newTestRunner(t, cfg, mock, WithRunID(func() string { return "run-1" }))
	outputs, err := r.Run(context.Background(), testTopic)
	require.NoError(t, err)

	assert.Equal(t, "run-1", outputs.RunID)
	assert.Equal(t, testTopic, outputs.Topic)
	assert.Equal(t, "mock", outputs.Adapter)
	assert.Equal(t, "mock-1", outputs.Model)
	assert.Equal(t, []string{StageResearch, StageAnalysis, StageBlueprint, StageReview}, outputs.Names())
	require.NoError(t, outputs.CompleteFor(stages))

	for i, res := range outputs.Results() {
		assert.Equal(t, i+1, res.Ordinal)
		assert.Equal(t, marker(res.Name), res.Text())
		assert.Equal(t, res.Name, res.Artifact.Stage)
		assert.NotEmpty(t, res.Artifact.Hash)
	}
	assert.Len(t, mock.Calls(), 4)
	assert.False(t, outputs.FinishedAt.Before(outputs.StartedAt))
}

func TestPromptsSeeOnlyDeclaredDependencies(t *testing.T) {
	for _, profile := range Profiles() {
		t.Run(profile, func(t *testing.T) {
			cfg := testConfig()
			cfg.Profile = profile
			stages, err := DefaultStages(profile)
			require.NoError(t, err)
			mock := scriptedMock(t, stages, nil)

			r := newTestRunner(t, cfg, mock)
			_, err = r.Run(context.Background(), testTopic)
			require.NoError(t, err)

			calls := mock.Calls()
			require.Len(t, calls, len(stages))
			for i, s := range stages {
				prompt := calls[i].Prompt
				deps := make(map[string]bool, len(s.DependsOn))
				for _, d := range s.DependsOn {
					deps[d] = true
				}
				for j, other := range stages {
					contains := strings.Contains(prompt, marker(other.Name))
					switch {
					case j >= i:
						assert.False(t, contains, "%s prompt must not contain %s", s.Name, other.Name)
					case deps[other.Name]:
						assert.True(t, contains, "%s prompt must contain %s", s.Name, other.Name)
					default:
						assert.False(t, contains, "%s prompt must not contain undeclared %s", s.Name, other.Name)
					}
				}
			}
			assert.Contains(t, calls[0].Prompt, testTopic)
			assert.Contains(t, calls[0].System, testTopic)
		})
	}
}

func TestRequestsCarryConfiguredParameters(t *testing.T) {
	cfg := testConfig()
	cfg.Temperature = 0.3
	cfg.MaxTokens = 1234
	stages, err := DefaultStages(ProfileDetailed)
	require.NoError(t, err)
	cool := 0.1
	stages[3].Temperature = &cool
	mock := scriptedMock(t, stages, nil)

	r := newTestRunner(t, cfg, mock, WithStages(stages))
	_, err = r.Run(context.Background(), testTopic)
	require.NoError(t, err)

	calls := mock.Calls()
	require.Len(t, calls, 4)
	for _, c := range calls[:3] {
		assert.Equal(t, 0.3, c.Temperature)
		assert.Equal(t, 1234, c.MaxTokens)
		assert.Equal(t, "mock-1", c.Model)
	}
	assert.Equal(t, 0.1, calls[3].Temperature)
}

func TestFailureAtStageKeepsEarlierOutputs(t *testing.T) {
	stages, err := DefaultStages(ProfileDetailed)
	require.NoError(t, err)

	for k := 1; k <= len(stages); k++ {
		t.Run(stages[k-1].Name, func(t *testing.T) {
			mock := scriptedMock(t, stages, nil)
			mock.FailOn(k, &adapter.AdapterError{Provider: "mock", Status: 400, Err: fmt.Errorf("bad request")})

			r := newTestRunner(t, testConfig(), mock)
			outputs, err := r.Run(context.Background(), testTopic)
			require.Error(t, err)

			var stageErr *StageError
			require.True(t, errors.As(err, &stageErr))
			assert.Equal(t, k, stageErr.Ordinal)
			assert.Equal(t, stages[k-1].Name, stageErr.Stage)
			assert.Equal(t, k-1, outputs.Len())
			assert.Len(t, mock.Calls(), k)
			assert.Error(t, outputs.CompleteFor(stages))
		})
	}
}

func TestMissingCredentialMakesNoCalls(t *testing.T) {
	cfg := testConfig()
	cfg.Provider = "openai"
	cfg.OpenAIAPIKey = ""
	mock := adapter.NewMockAdapter()

	_, err := NewRunner(cfg, mock)
	require.ErrorIs(t, err, config.ErrMissingCredential)
	assert.Empty(t, mock.Calls())
}

func TestNewRunnerRejectsBadInput(t *testing.T) {
	_, err := NewRunner(testConfig(), nil)
	assert.Error(t, err)

	cfg := testConfig()
	cfg.Profile = "verbose"
	_, err = NewRunner(cfg, adapter.NewMockAdapter())
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	stages, _ := DefaultStages(ProfileDetailed)
	stages[1].DependsOn = []string{StageReview}
	_, err = NewRunner(testConfig(), adapter.NewMockAdapter(), WithStages(stages))
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestTruncatedContext(t *testing.T) {
	cfg := testConfig()
	cfg.Context = config.ContextConfig{Mode: config.ContextTruncated, Limit: 20}
	stages, err := DefaultStages(ProfileDetailed)
	require.NoError(t, err)

	long := marker(StageResearch) + strings.Repeat("市場", 40)
	mock := scriptedMock(t, stages, map[string]string{StageResearch: long})

	r := newTestRunner(t, cfg, mock)
	outputs, err := r.Run(context.Background(), testTopic)
	require.NoError(t, err)

	assert.Equal(t, long, outputs.Text(StageResearch), "stored text is never truncated")

	want := string([]rune(long)[:20]) + "..."
	analysisPrompt := mock.Calls()[1].Prompt
	assert.Contains(t, analysisPrompt, want)
	assert.NotContains(t, analysisPrompt, long)
}

func TestContextPolicyApply(t *testing.T) {
	cases := []struct {
		name   string
		policy ContextPolicy
		in     string
		want   string
	}{
		{"full", ContextPolicy{Mode: config.ContextFull}, "abcdef", "abcdef"},
		{"short", ContextPolicy{Mode: config.ContextTruncated, Limit: 10}, "abcdef", "abcdef"},
		{"exact", ContextPolicy{Mode: config.ContextTruncated, Limit: 6}, "abcdef", "abcdef"},
		{"cut", ContextPolicy{Mode: config.ContextTruncated, Limit: 3}, "abcdef", "abc..."},
		{"runes", ContextPolicy{Mode: config.ContextTruncated, Limit: 2}, "日本語", "日本..."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.policy.Apply(tc.in))
		})
	}
	assert.Equal(t, "truncated(300)", ContextPolicy{Mode: config.ContextTruncated, Limit: 300}.String())
	assert.Equal(t, "full", ContextPolicy{}.String())
}

func TestEmptyCompletionAborts(t *testing.T) {
	stages, err := DefaultStages(ProfileDetailed)
	require.NoError(t, err)
	mock := scriptedMock(t, stages, map[string]string{StageAnalysis: "  \n"})

	r := newTestRunner(t, testConfig(), mock)
	outputs, err := r.Run(context.Background(), testTopic)
	require.ErrorIs(t, err, ErrEmptyCompletion)
	assert.Equal(t, 1, outputs.Len())
	assert.Len(t, mock.Calls(), 2)
}

func TestTransientFailureIsRetried(t *testing.T) {
	stages, err := DefaultStages(ProfileDetailed)
	require.NoError(t, err)
	mock := scriptedMock(t, stages, nil)
	mock.FailOn(1, &adapter.AdapterError{Provider: "mock", Status: 503, Temporary: true, Err: fmt.Errorf("unavailable")})

	var slept []time.Duration
	r, err := NewRunner(testConfig(), mock, WithSleep(func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}))
	require.NoError(t, err)

	outputs, err := r.Run(context.Background(), testTopic)
	require.NoError(t, err)
	assert.Len(t, mock.Calls(), 5)
	assert.Equal(t, []time.Duration{time.Millisecond}, slept)

	research, ok := outputs.Get(StageResearch)
	require.True(t, ok)
	assert.Equal(t, 1, research.Report.Retries)
}

func TestCancelledContextStopsBeforeCalling(t *testing.T) {
	mock := adapter.NewMockAdapter()
	r := newTestRunner(t, testConfig(), mock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outputs, err := r.Run(ctx, testTopic)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, outputs.Len())
	assert.Empty(t, mock.Calls())
}

func TestRunDefaultsTopicAndCallsHook(t *testing.T) {
	cfg := testConfig()
	cfg.Topic = "bicycle repair marketplaces"
	mock := adapter.NewMockAdapter()
	mock.Usage = &adapter.Usage{PromptTokens: 10, CompletionTokens: 5}
	cfg.Pricing = config.PricingConfig{"mock": {"default": {PromptPer1K: 1, CompletionPer1K: 2}}}

	var seen []string
	r := newTestRunner(t, cfg, mock, WithStageHook(func(res *StageResult) {
		seen = append(seen, res.Name)
	}))

	outputs, err := r.Run(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "bicycle repair marketplaces", outputs.Topic)
	assert.Contains(t, mock.Calls()[0].Prompt, "bicycle repair marketplaces")
	assert.Equal(t, outputs.Names(), seen)

	assert.Equal(t, 60, outputs.TotalUsage.TotalTokens)
	assert.InDelta(t, 4*(0.010+0.010), outputs.TotalCost.Amount, 1e-9)
	assert.True(t, outputs.TotalCost.IsEstimate)
}

func TestRunOutputsAdd(t *testing.T) {
	o := NewRunOutputs("run", testTopic)
	assert.Error(t, o.Add(nil))
	assert.ErrorIs(t, o.Add(&StageResult{Name: StageResearch}), ErrEmptyCompletion)

	stages, _ := DefaultStages(ProfileDetailed)
	mock := scriptedMock(t, stages, nil)
	r := newTestRunner(t, testConfig(), mock)
	outputs, err := r.Run(context.Background(), testTopic)
	require.NoError(t, err)

	first, _ := outputs.Get(StageResearch)
	assert.Error(t, outputs.Add(first), "duplicate stage must be rejected")
	assert.Equal(t, 4, outputs.Len())
	assert.Equal(t, marker(StageReview), outputs.Texts()[StageReview])
	assert.Equal(t, "", outputs.Text("missing"))
}

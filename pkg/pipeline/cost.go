package pipeline

import (
	"errors"
	"fmt"

	"github.com/zen-systems/planwright/pkg/adapter"
	"github.com/zen-systems/planwright/pkg/config"
)

// ErrBudgetExceeded is returned before a call once the configured USD budget is spent.
var ErrBudgetExceeded = errors.New("budget exceeded")

type costTracker struct {
	pricing      config.PricingConfig
	totalAmount  float64
	maxBudgetUSD float64
}

func newCostTracker(pricing config.PricingConfig, maxBudgetUSD float64) *costTracker {
	return &costTracker{
		pricing:      pricing,
		maxBudgetUSD: maxBudgetUSD,
	}
}

func (t *costTracker) checkBudget(adapterName, model string) error {
	if t == nil || t.maxBudgetUSD <= 0 {
		return nil
	}
	if t.totalAmount >= t.maxBudgetUSD {
		return fmt.Errorf("%w: limit %.2f, spent %.4f before %s/%s", ErrBudgetExceeded, t.maxBudgetUSD, t.totalAmount, adapterName, model)
	}
	return nil
}

func (t *costTracker) estimate(adapterName, model string, usage adapter.Usage) (adapter.Cost, bool) {
	if t == nil {
		return adapter.Cost{Currency: "USD"}, false
	}
	return estimateCost(t.pricing, adapterName, model, usage)
}

func (t *costTracker) record(report adapter.CallReport) {
	if t == nil {
		return
	}
	if report.Error != "" {
		return
	}
	t.totalAmount += report.Cost.Amount
}

func normalizeUsage(u *adapter.Usage) adapter.Usage {
	if u == nil {
		return adapter.Usage{}
	}
	return u.Normalize()
}

func estimateCost(pricing config.PricingConfig, adapterName, model string, usage adapter.Usage) (adapter.Cost, bool) {
	entry, ok := pricing.Lookup(adapterName, model)
	if !ok {
		return adapter.Cost{Currency: "USD"}, false
	}

	promptCost := (float64(usage.PromptTokens) / 1000.0) * entry.PromptPer1K
	completionCost := (float64(usage.CompletionTokens) / 1000.0) * entry.CompletionPer1K
	return adapter.Cost{
		Currency:     "USD",
		Amount:       promptCost + completionCost,
		IsEstimate:   true,
		PricingModel: "per_1k_tokens",
	}, true
}

package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/zen-systems/planwright/pkg/adapter"
	"github.com/zen-systems/planwright/pkg/config"
)

type sleepFunc func(ctx context.Context, d time.Duration) error

// callPolicy wraps one completion call with per-attempt timeout, transient
// retry with exponential backoff and budget checks.
type callPolicy struct {
	retry   config.RetryConfig
	timeout time.Duration
	tracker *costTracker
	sleep   sleepFunc
	logger  *zap.Logger
}

func (p *callPolicy) call(ctx context.Context, completer adapter.Adapter, req adapter.Request) (*adapter.Response, adapter.CallReport, error) {
	report := adapter.CallReport{Adapter: completer.Name(), Model: req.Model}
	var lastErr error

	for attempt := 0; attempt <= p.retry.MaxRetries; attempt++ {
		if err := p.tracker.checkBudget(completer.Name(), req.Model); err != nil {
			report.Error = err.Error()
			return nil, report, err
		}

		resp, err := p.attempt(ctx, completer, req)
		if err == nil {
			report.Usage = normalizeUsage(resp.Usage)
			report.Cost, _ = p.tracker.estimate(completer.Name(), req.Model, report.Usage)
			report.Retries = attempt
			p.tracker.record(report)
			return resp, report, nil
		}

		lastErr = err
		report.Retries = attempt
		if ctx.Err() != nil || !adapter.IsTransient(err) || attempt == p.retry.MaxRetries {
			break
		}

		backoff := computeBackoff(p.retry.BaseBackoffMs, p.retry.MaxBackoffMs, attempt)
		p.logger.Warn("completion failed, retrying",
			zap.String("adapter", completer.Name()),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err))
		if err := p.sleep(ctx, backoff); err != nil {
			lastErr = err
			break
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("adapter call failed")
	}
	report.Error = lastErr.Error()
	p.tracker.record(report)
	return nil, report, lastErr
}

func (p *callPolicy) attempt(ctx context.Context, completer adapter.Adapter, req adapter.Request) (*adapter.Response, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	resp, err := completer.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp == nil || resp.Artifact == nil {
		return nil, fmt.Errorf("%s returned no content", completer.Name())
	}
	return resp, nil
}

func computeBackoff(baseMs, maxMs, attempt int) time.Duration {
	backoff := time.Duration(baseMs) * time.Millisecond
	for i := 0; i < attempt; i++ {
		backoff *= 2
		if backoff >= time.Duration(maxMs)*time.Millisecond {
			return time.Duration(maxMs) * time.Millisecond
		}
	}
	if backoff > time.Duration(maxMs)*time.Millisecond {
		return time.Duration(maxMs) * time.Millisecond
	}
	return backoff
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package client

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"k8s.io/klog/v2"
)

// WaitOptions configures WaitForTask.
type WaitOptions struct {
	// Interval is the delay before the second poll. Default is 2s.
	Interval time.Duration
	// MaxInterval caps the backoff. Default is 30s.
	MaxInterval time.Duration
	// OnPoll, if set, is called with every intermediate response.
	OnPoll func(Response)
}

// poller schedules task polls with exponential backoff.
// It is safe for concurrent use by multiple goroutines.
type poller struct {
	waitMin time.Duration
	waitMax time.Duration
}

func newPoller(opts WaitOptions) *poller {
	p := &poller{
		waitMin: opts.Interval,
		waitMax: opts.MaxInterval,
	}
	if p.waitMin <= 0 {
		p.waitMin = 2 * time.Second
	}
	if p.waitMax <= 0 {
		p.waitMax = 30 * time.Second
	}
	if p.waitMax < p.waitMin {
		p.waitMax = p.waitMin
	}
	return p
}

func (p *poller) backoff(attempt int) time.Duration {
	// Cap attempt to prevent overflow
	if attempt > 10 {
		attempt = 10
	}

	mult := math.Pow(2, float64(attempt-1))
	wait := time.Duration(mult) * p.waitMin

	// Jitter of up to half the base interval spreads concurrent waiters.
	if half := int64(p.waitMin / 2); half > 0 {
		wait += time.Duration(rand.Int64N(half))
	}

	if wait > p.waitMax {
		wait = p.waitMax
	}
	return wait
}

// WaitForTask polls TaskResult until the task reaches a final state or ctx
// ends. A failed task returns its last response together with an error
// wrapping ErrTaskFailed. Request errors end the wait immediately.
func (c *Client) WaitForTask(ctx context.Context, taskID string, opts WaitOptions) (Response, error) {
	p := newPoller(opts)

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(p.backoff(attempt))
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			}
		}

		resp, err := c.TaskResult(ctx, taskID)
		if err != nil {
			return nil, err
		}

		klog.V(3).InfoS("Polled task", "task", taskID, "status", resp.Status(), "attempt", attempt+1)

		if !resp.Terminal() {
			if opts.OnPoll != nil {
				opts.OnPoll(resp)
			}
			continue
		}
		if resp.Failed() {
			msg := resp.Message()
			if msg == "" {
				msg = resp.Status()
			}
			return resp, fmt.Errorf("%w: task %s: %s", ErrTaskFailed, taskID, msg)
		}
		return resp, nil
	}
}

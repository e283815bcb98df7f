// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package chain

import (
	"context"
	"errors"
	"time"

	"github.com/flowchartsman/retry"

	gerrors "github.com/tochemey/sharedchain/errors"
)

// RetryPolicy bounds the conflict retries of Append.
//
// A zero MaxAttempts retries until the append commits or ctx is done,
// waiting InitialDelay between attempts. A positive MaxAttempts retries with a
// jittered exponential backoff from InitialDelay up to MaxDelay and fails with
// ErrAppendRetriesExhausted once every attempt lost the race.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

func (p *RetryPolicy) sanitize() {
	if p.MaxAttempts > 0 && p.InitialDelay <= 0 {
		p.InitialDelay = defaultRetryDelay
	}

	if p.MaxDelay <= 0 {
		p.MaxDelay = max(defaultMaxDelay, p.InitialDelay)
	}
}

// errConflict marks an attempt that lost the race
var errConflict = errors.New("append conflict")

// runAppend drives attempt until it commits.
//
// attempt returns true on commit, false on conflict and an error on a fault.
// After every conflict, probe tells whether retrying is still worth it.
func runAppend(ctx context.Context, policy RetryPolicy, attempt func(context.Context) (bool, error), probe func(context.Context) error) error {
	if policy.MaxAttempts <= 0 {
		return runUnbounded(ctx, policy.InitialDelay, attempt, probe)
	}

	var fault error
	retrier := retry.NewRetrier(policy.MaxAttempts, policy.InitialDelay, policy.MaxDelay)
	err := retrier.RunContext(ctx, func(ctx context.Context) error {
		committed, err := attempt(ctx)
		if err != nil {
			fault = err
			return retry.Stop(err)
		}

		if committed {
			return nil
		}

		if err := probe(ctx); err != nil {
			fault = err
			return retry.Stop(err)
		}
		return errConflict
	})

	switch {
	case fault != nil:
		return fault
	case errors.Is(err, errConflict):
		return gerrors.ErrAppendRetriesExhausted
	default:
		return err
	}
}

func runUnbounded(ctx context.Context, delay time.Duration, attempt func(context.Context) (bool, error), probe func(context.Context) error) error {
	for {
		committed, err := attempt(ctx)
		if err != nil {
			return err
		}

		if committed {
			return nil
		}

		if err := probe(ctx); err != nil {
			return err
		}

		if delay <= 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			continue
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

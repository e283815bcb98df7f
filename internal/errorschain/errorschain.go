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

// Package errorschain collects the errors of a sequence of steps, either
// stopping at the first one or gathering all of them.
package errorschain

import (
	"context"
	"io"

	"go.uber.org/multierr"
)

// Chain defines an error chain
type Chain struct {
	returnFirst bool
	errs        []error
}

// ChainOption configures a chain at creation time.
type ChainOption func(*Chain)

// ReturnFirst stops the chain at the first error: later steps are not run.
func ReturnFirst() ChainOption {
	return func(c *Chain) { c.returnFirst = true }
}

// ReturnAll runs every step and combines their errors.
func ReturnAll() ChainOption {
	return func(c *Chain) { c.returnFirst = false }
}

// New creates a new error chain. Errors are reported in insertion order.
func New(opts ...ChainOption) *Chain {
	chain := &Chain{errs: make([]error, 0)}
	for _, opt := range opts {
		opt(chain)
	}
	return chain
}

// AddError adds an error to the chain. Nil errors are ignored.
func (c *Chain) AddError(err error) *Chain {
	if err != nil {
		c.errs = append(c.errs, err)
	}
	return c
}

// AddErrors adds errors in order
func (c *Chain) AddErrors(errs ...error) *Chain {
	for _, err := range errs {
		c.AddError(err)
	}
	return c
}

// AddErrorFn runs fn unless the chain already stopped
func (c *Chain) AddErrorFn(fn func() error) *Chain {
	if c.stopped() {
		return c
	}
	return c.AddError(fn())
}

// AddErrorFns runs every fn in order unless the chain stops
func (c *Chain) AddErrorFns(fns ...func() error) *Chain {
	for _, fn := range fns {
		c.AddErrorFn(fn)
	}
	return c
}

// AddErrorFnIf runs fn only when cond holds
func (c *Chain) AddErrorFnIf(ctx context.Context, cond bool, fn func(context.Context) error) *Chain {
	if !cond {
		return c
	}
	return c.AddErrorFn(func() error { return fn(ctx) })
}

// AddCloser closes closer unless it is nil. Closers always run, even after
// an error, so that no resource leaks.
func (c *Chain) AddCloser(closer io.Closer) *Chain {
	if closer == nil {
		return c
	}
	return c.AddError(closer.Close())
}

// Error returns the first error or all of them combined
func (c *Chain) Error() error {
	if len(c.errs) == 0 {
		return nil
	}

	if c.returnFirst {
		return c.errs[0]
	}
	return multierr.Combine(c.errs...)
}

func (c *Chain) stopped() bool {
	return c.returnFirst && len(c.errs) > 0
}

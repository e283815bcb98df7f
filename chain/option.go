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
	"go.opentelemetry.io/otel/metric"

	"github.com/tochemey/sharedchain/cache"
	"github.com/tochemey/sharedchain/log"
	"github.com/tochemey/sharedchain/notify"
)

type options struct {
	logger        log.Logger
	cache         cache.Cache
	publisher     notify.Publisher
	meterProvider metric.MeterProvider
	codec         any
}

// Option configures a chain handle
type Option interface {
	// Apply sets the Option value of a config.
	Apply(*options)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(*options)

// Apply applies the options
func (f OptionFunc) Apply(o *options) {
	f(o)
}

// WithLogger sets the logger. Defaults to log.DiscardLogger.
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(o *options) {
		o.logger = logger
	})
}

// WithCache sets the duplication layer. The handle owns it and closes it on
// Close. Whether it is read or written follows Config.Cache.
func WithCache(c cache.Cache) Option {
	return OptionFunc(func(o *options) {
		o.cache = c
	})
}

// WithPublisher sets where committed appends are announced. The handle owns
// it and closes it on Close.
func WithPublisher(publisher notify.Publisher) Option {
	return OptionFunc(func(o *options) {
		o.publisher = publisher
	})
}

// WithMeterProvider sets the OpenTelemetry meter provider. Defaults to the
// global one.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return OptionFunc(func(o *options) {
		o.meterProvider = provider
	})
}

// WithCodec sets the payload codec. Defaults to CBOR.
func WithCodec[T any](c Codec[T]) Option {
	return OptionFunc(func(o *options) {
		o.codec = c
	})
}

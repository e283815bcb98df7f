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

package metric

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ChainMetric defines the chain instrumentation
type ChainMetric struct {
	// Specifies the total number of CAS attempts
	appendAttempts metric.Int64Counter
	// Specifies the total number of CAS attempts that lost the race
	appendConflicts metric.Int64Counter
	// Specifies the total number of committed appends
	appends metric.Int64Counter
	// Specifies the total number of cache hits
	cacheHits metric.Int64Counter
	// Specifies the total number of cache misses
	cacheMisses metric.Int64Counter
	// Specifies the duration of a committed Append, retries included.
	// This is expressed in milliseconds
	appendDuration metric.Float64Histogram
	// attributes stamped on every measurement
	attributes metric.MeasurementOption
}

// NewChainMetric creates an instance of ChainMetric. Every measurement
// carries the chain prefix as the chain attribute.
func NewChainMetric(meter metric.Meter, chainPrefix string) (*ChainMetric, error) {
	chainMetric := &ChainMetric{
		attributes: metric.WithAttributes(attribute.String("chain", chainPrefix)),
	}

	var err error
	if chainMetric.appendAttempts, err = meter.Int64Counter(
		"sharedchain_append_attempts",
		metric.WithDescription("Total number of append transactions attempted"),
	); err != nil {
		return nil, fmt.Errorf("failed to create appendAttempts instrument, %w", err)
	}

	if chainMetric.appendConflicts, err = meter.Int64Counter(
		"sharedchain_append_conflicts",
		metric.WithDescription("Total number of append transactions that lost the race"),
	); err != nil {
		return nil, fmt.Errorf("failed to create appendConflicts instrument, %w", err)
	}

	if chainMetric.appends, err = meter.Int64Counter(
		"sharedchain_appends",
		metric.WithDescription("Total number of nodes appended"),
	); err != nil {
		return nil, fmt.Errorf("failed to create appends instrument, %w", err)
	}

	if chainMetric.cacheHits, err = meter.Int64Counter(
		"sharedchain_cache_hits",
		metric.WithDescription("Total number of nodes served by the cache"),
	); err != nil {
		return nil, fmt.Errorf("failed to create cacheHits instrument, %w", err)
	}

	if chainMetric.cacheMisses, err = meter.Int64Counter(
		"sharedchain_cache_misses",
		metric.WithDescription("Total number of cache lookups that fell back to the backend"),
	); err != nil {
		return nil, fmt.Errorf("failed to create cacheMisses instrument, %w", err)
	}

	if chainMetric.appendDuration, err = meter.Float64Histogram(
		"sharedchain_append_duration",
		metric.WithDescription("The latency of a committed append in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, fmt.Errorf("failed to create appendDuration instrument, %w", err)
	}

	return chainMetric, nil
}

// RecordAttempt records one CAS attempt and whether it committed
func (x *ChainMetric) RecordAttempt(ctx context.Context, committed bool) {
	x.appendAttempts.Add(ctx, 1, x.attributes)
	if committed {
		x.appends.Add(ctx, 1, x.attributes)
		return
	}
	x.appendConflicts.Add(ctx, 1, x.attributes)
}

// RecordCacheLookup records a cache hit or miss
func (x *ChainMetric) RecordCacheLookup(ctx context.Context, hit bool) {
	if hit {
		x.cacheHits.Add(ctx, 1, x.attributes)
		return
	}
	x.cacheMisses.Add(ctx, 1, x.attributes)
}

// RecordAppendDuration records how long a committed Append took
func (x *ChainMetric) RecordAppendDuration(ctx context.Context, duration time.Duration) {
	x.appendDuration.Record(ctx, float64(duration)/float64(time.Millisecond), x.attributes)
}

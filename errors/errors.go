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

package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotStarted is returned when a cursor operation is attempted before Start
	// or a successful TryLoadUntil placed the cursor on a node.
	ErrNotStarted = errors.New("chain has not started")

	// ErrEmptyID is returned when a node id or an extra metadata key is empty.
	ErrEmptyID = errors.New("id is required")

	// ErrDecode is returned when a payload read from the store cannot be decoded.
	// Decode faults on cache entries are never surfaced; they are treated as misses.
	ErrDecode = errors.New("malformed payload")

	// ErrIDAlreadyOnChain is returned by Append when the requested id was written
	// by another writer, so retrying could never succeed.
	ErrIDAlreadyOnChain = errors.New("id is already on the chain")

	// ErrAppendRetriesExhausted is returned by Append when a bounded retry policy
	// ran out of attempts while every attempt lost the race for the tail.
	ErrAppendRetriesExhausted = errors.New("append retries exhausted")

	// ErrCacheNotSupported is returned when a cache is configured in front of a
	// backend whose pointer keys would collide with the cache keys.
	ErrCacheNotSupported = errors.New("cache duplication is not supported by this backend")

	// ErrUnknownBackend is returned when the configured backend kind is not recognized.
	ErrUnknownBackend = errors.New("unknown backend")

	// ErrClosed is returned when an operation is attempted on a closed handle.
	ErrClosed = errors.New("handle is closed")
)

// DecodeError reports the key whose stored value could not be decoded.
type DecodeError struct {
	key string
	err error
}

// enforce compilation error
var _ error = (*DecodeError)(nil)

// NewDecodeError returns an instance of DecodeError
func NewDecodeError(key string, err error) *DecodeError {
	return &DecodeError{key: key, err: err}
}

// Error implements the standard error interface
func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s at key %q: %v", ErrDecode.Error(), e.key, e.err)
}

// Key returns the store key holding the malformed value
func (e *DecodeError) Key() string {
	return e.key
}

// Unwrap returns the underlying codec error
func (e *DecodeError) Unwrap() error {
	return e.err
}

// Is makes errors.Is(err, ErrDecode) hold for every DecodeError
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

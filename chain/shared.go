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

import "context"

// Shared is a handle on a distributed shared chain.
//
// Conflicts and unknown ids are reported as false, connection and decode
// faults as errors.
type Shared[T any] interface {
	// Start makes sure the head exists and places the cursor on it. The head
	// node carries defaultData whatever is stored.
	Start(ctx context.Context, defaultData T) error
	// TryLoadUntil places the cursor on id. It returns false when id is unknown.
	TryLoadUntil(ctx context.Context, id string) (bool, error)
	// Next moves the cursor one node forward. It returns false at the tail.
	Next(ctx context.Context) (bool, error)
	// IDIsAlreadyOnChain reports whether id is stored.
	IDIsAlreadyOnChain(ctx context.Context, id string) (bool, error)
	// TryAppend moves to the tail and tries once to append id. It returns
	// false when another writer won the race or id is taken.
	TryAppend(ctx context.Context, id string, data T) (bool, error)
	// Append retries TryAppend until it commits.
	Append(ctx context.Context, id string, data T) error
	// SaveExtraData stores value under key in the extra metadata space.
	SaveExtraData(ctx context.Context, key string, value any) error
	// LoadExtraData decodes the value stored under key into target. It returns
	// false when key is unknown.
	LoadExtraData(ctx context.Context, key string, target any) (bool, error)
	// Current returns the node under the cursor.
	Current() Node[T]
	// Close releases the connections owned by the handle.
	Close() error
}

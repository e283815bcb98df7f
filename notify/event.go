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

// Package notify publishes and receives append notifications.
//
// A notification is a hint: subscribers use it to move their cursor sooner,
// the chain in the store stays the only source of truth.
package notify

import (
	"context"
	"time"

	"github.com/tochemey/sharedchain/internal/codec"
)

// Event describes one committed append
type Event struct {
	// Chain is the pointer key prefix of the chain
	Chain string `cbor:"chain"`
	// ID is the id of the appended node
	ID string `cbor:"id"`
	// PreviousID is the id of the node the new one was linked to
	PreviousID string `cbor:"previous_id"`
	// Revision is the revision of the committed append; zero on backends
	// without revisions
	Revision int64 `cbor:"revision"`
	// Data is the CBOR encoded payload of the appended node
	Data []byte `cbor:"data,omitempty"`
	// Timestamp is the time the append committed
	Timestamp time.Time `cbor:"timestamp"`
}

// Marshal encodes the event
func (e Event) Marshal() ([]byte, error) {
	return codec.Marshal(e)
}

// UnmarshalEvent decodes an event
func UnmarshalEvent(data []byte) (Event, error) {
	var event Event
	err := codec.Unmarshal(data, &event)
	return event, err
}

// Publisher sends append notifications
type Publisher interface {
	// Publish sends the event
	Publish(ctx context.Context, event Event) error
	// Close releases the resources of the publisher
	Close() error
}

// Subscriber receives append notifications
type Subscriber interface {
	// Subscribe returns a channel of events that is closed once ctx is done
	Subscribe(ctx context.Context) (<-chan Event, error)
}

// Notifier both publishes and receives append notifications
type Notifier interface {
	Publisher
	Subscriber
}

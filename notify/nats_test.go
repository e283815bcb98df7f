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

package notify

import (
	"context"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
	"github.com/travisjeffery/go-dynaport"
)

func startNatsServer(t *testing.T) *natsserver.Server {
	t.Helper()
	serv, err := natsserver.NewServer(&natsserver.Options{
		Host: "127.0.0.1",
		Port: dynaport.Get(1)[0],
	})
	require.NoError(t, err)

	ready := make(chan bool)
	go func() {
		ready <- true
		serv.Start()
	}()
	<-ready

	if !serv.ReadyForConnections(2 * time.Second) {
		t.Fatalf("nats-io server failed to start")
	}

	t.Cleanup(serv.Shutdown)
	return serv
}

func TestNATSConfig(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		_, err := NewNATS(nil, nil)
		require.Error(t, err)
	})

	t.Run("missing subject", func(t *testing.T) {
		_, err := NewNATS(&NATSConfig{URL: "nats://127.0.0.1:4222"}, nil)
		require.Error(t, err)
	})

	t.Run("subject with spaces", func(t *testing.T) {
		config := &NATSConfig{URL: "nats://127.0.0.1:4222", Subject: "a b"}
		config.Sanitize()
		require.Error(t, config.Validate())
	})

	t.Run("unreachable server", func(t *testing.T) {
		_, err := NewNATS(&NATSConfig{
			URL:            "nats://127.0.0.1:1",
			Subject:        "chain",
			ConnectTimeout: 200 * time.Millisecond,
		}, nil)
		require.Error(t, err)
	})
}

func TestNATS(t *testing.T) {
	srv := startNatsServer(t)

	t.Run("publish and subscribe", func(t *testing.T) {
		config := &NATSConfig{URL: srv.ClientURL(), Subject: "sharedchain.demo"}
		publisher, err := NewNATS(config, nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = publisher.Close() })

		subscriber, err := NewNATS(&NATSConfig{URL: srv.ClientURL(), Subject: "sharedchain.demo"}, nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = subscriber.Close() })

		// a context without deadline, like the one a long running watcher holds
		ctx, cancel := context.WithCancel(context.Background())
		t.Cleanup(cancel)

		events, err := subscriber.Subscribe(ctx)
		require.NoError(t, err)

		// garbage on the subject is dropped
		raw, err := nats.Connect(srv.ClientURL())
		require.NoError(t, err)
		t.Cleanup(raw.Close)
		require.NoError(t, raw.Publish("sharedchain.demo", []byte("garbage")))
		require.NoError(t, raw.Flush())

		expected := Event{Chain: "demo_chain", ID: "B", PreviousID: "A", Timestamp: time.Now().UTC()}
		require.NoError(t, publisher.Publish(t.Context(), expected))

		select {
		case event := <-events:
			require.Equal(t, expected.ID, event.ID)
			require.Equal(t, expected.PreviousID, event.PreviousID)
			require.Equal(t, expected.Chain, event.Chain)
		case <-time.After(5 * time.Second):
			t.Fatal("no event received")
		}

		cancel()
		select {
		case _, open := <-events:
			require.False(t, open)
		case <-time.After(5 * time.Second):
			t.Fatal("events still open after cancel")
		}

		require.NoError(t, publisher.Close())
		require.NoError(t, publisher.Close())
		require.Error(t, publisher.Publish(t.Context(), expected))
	})

	t.Run("close ends subscriptions", func(t *testing.T) {
		notifier, err := NewNATS(&NATSConfig{URL: srv.ClientURL(), Subject: "sharedchain.close"}, nil)
		require.NoError(t, err)

		events, err := notifier.Subscribe(context.Background())
		require.NoError(t, err)

		require.NoError(t, notifier.Close())
		select {
		case _, open := <-events:
			require.False(t, open)
		case <-time.After(5 * time.Second):
			t.Fatal("events still open after Close")
		}

		_, err = notifier.Subscribe(context.Background())
		require.Error(t, err)
	})
}

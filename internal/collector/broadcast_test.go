// Copyright (c) 2025 Binadox (https://binadox.com)
// This software is licensed under the zlib license. See LICENSE file for details.

package collector

import (
	"io"
	"log"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tab_monitor/internal/db"
)

// addBareClient registers a client with no connection or writer
func addBareClient(b *Broadcaster, buffer int) *client {
	c := &client{send: make(chan []byte, buffer)}
	b.mu.Lock()
	b.clients[c] = true
	b.mu.Unlock()
	return c
}

func TestPublish_DropsSlowClient(t *testing.T) {
	b := NewBroadcaster(log.New(io.Discard, "", 0))
	fast := addBareClient(b, 4)
	addBareClient(b, 0)

	b.Publish(db.Activity{ID: "a1"})

	assert.Equal(t, 1, b.ClientCount())
	require.Len(t, fast.send, 1)
	assert.Contains(t, string(<-fast.send), `"id":"a1"`)
}

func TestPublish_WhileClientsDisconnect(t *testing.T) {
	b := NewBroadcaster(log.New(io.Discard, "", 0))

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			b.RemoveClient(addBareClient(b, 1))
		}
	}()

	assert.NotPanics(t, func() {
		for i := 0; i < 5000; i++ {
			b.Publish(db.Activity{ID: "churn"})
		}
	})
	close(stop)
	wg.Wait()

	assert.Zero(t, b.ClientCount())
}

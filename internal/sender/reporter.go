// Copyright (c) 2025 Binadox (https://binadox.com)
// This software is licensed under the zlib license. See LICENSE file for details.

package sender

import (
	"context"
	"log"
	"sync"

	"tab_monitor/internal/dto"
)

// Reporter delivers records at most once without blocking the caller.
// Failures are logged and the record is dropped.
type Reporter struct {
	client *Client
	logger *log.Logger
	wg     sync.WaitGroup
}

// NewReporter wraps client for fire-and-forget delivery
func NewReporter(client *Client, logger *log.Logger) *Reporter {
	return &Reporter{
		client: client,
		logger: logger,
	}
}

// Report sends record in the background
func (r *Reporter) Report(record dto.ActivityRecord) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		// The client's own timeout bounds the request
		ack, err := r.client.Send(context.Background(), record)
		if err != nil {
			r.logger.Printf("Error: failed to send %s record to %s: %v", record.Action, r.client.Endpoint(), err)
			return
		}
		r.logger.Printf("Sent %s record: %v", record.Action, ack)
	}()
}

// Wait blocks until every in-flight record has been sent or dropped
func (r *Reporter) Wait() {
	r.wg.Wait()
}

// Copyright (c) 2025 Binadox (https://binadox.com)
// This software is licensed under the zlib license. See LICENSE file for details.

package sender

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tab_monitor/internal/dto"
)

var fixedTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// collectorStub records every decoded request body
type collectorStub struct {
	mu       sync.Mutex
	records  []dto.ActivityRecord
	headers  []http.Header
	rejectGz bool
	status   int
	body     string
}

func (c *collectorStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if r.URL.Path != LogActivityPath || r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var reader io.Reader = r.Body
	if r.Header.Get("Content-Encoding") == "gzip" {
		if c.rejectGz {
			w.WriteHeader(http.StatusUnsupportedMediaType)
			return
		}
		gz, err := gzip.NewReader(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		reader = gz
	}

	var rec dto.ActivityRecord
	if err := json.NewDecoder(reader).Decode(&rec); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	c.records = append(c.records, rec)
	c.headers = append(c.headers, r.Header.Clone())

	if c.status != 0 {
		w.WriteHeader(c.status)
	}
	if c.body != "" {
		w.Write([]byte(c.body))
		return
	}
	w.Write([]byte(`{"success": true}`))
}

func (c *collectorStub) received() []dto.ActivityRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]dto.ActivityRecord(nil), c.records...)
}

func TestClient_SendRaw(t *testing.T) {
	stub := &collectorStub{}
	srv := httptest.NewServer(stub)
	defer srv.Close()

	client := NewClient(srv.URL+"/", time.Second, false)
	assert.Equal(t, srv.URL+LogActivityPath, client.Endpoint())

	rec := dto.NewKeyPress("https://example.com", "Enter", fixedTime)
	ack, err := client.Send(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, true, ack["success"])

	got := stub.received()
	require.Len(t, got, 1)
	assert.Equal(t, rec, got[0])
	assert.Equal(t, "application/json", stub.headers[0].Get("Content-Type"))
	assert.Empty(t, stub.headers[0].Get("Content-Encoding"))
}

func TestClient_SendGzip(t *testing.T) {
	stub := &collectorStub{}
	srv := httptest.NewServer(stub)
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, true)
	_, err := client.Send(context.Background(), dto.NewLinkClick("https://a.test", "https://b.test", fixedTime))
	require.NoError(t, err)

	require.Len(t, stub.received(), 1)
	assert.Equal(t, "gzip", stub.headers[0].Get("Content-Encoding"))
}

func TestClient_GzipRejectedFallsBackToRaw(t *testing.T) {
	stub := &collectorStub{rejectGz: true}
	srv := httptest.NewServer(stub)
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, true)
	_, err := client.Send(context.Background(), dto.NewLinkClick("https://a.test", "", fixedTime))
	require.NoError(t, err)

	require.Len(t, stub.received(), 1)
	assert.Empty(t, stub.headers[0].Get("Content-Encoding"))
}

func TestClient_Non2xx(t *testing.T) {
	stub := &collectorStub{status: http.StatusInternalServerError, body: `{"success": false}`}
	srv := httptest.NewServer(stub)
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, false)
	_, err := client.Send(context.Background(), dto.NewKeyPress("https://a.test", "a", fixedTime))
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, StatusCode(err))
}

func TestClient_MalformedResponse(t *testing.T) {
	stub := &collectorStub{body: "OK"}
	srv := httptest.NewServer(stub)
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, false)
	_, err := client.Send(context.Background(), dto.NewKeyPress("https://a.test", "a", fixedTime))
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient(url, time.Second, false)
	_, err := client.Send(context.Background(), dto.NewKeyPress("https://a.test", "a", fixedTime))
	require.Error(t, err)
	assert.Zero(t, StatusCode(err))
}

func TestReporter_DeliversAndLogsFailures(t *testing.T) {
	stub := &collectorStub{}
	srv := httptest.NewServer(stub)
	defer srv.Close()

	var logs bytes.Buffer
	reporter := NewReporter(NewClient(srv.URL, time.Second, false), log.New(&logs, "", 0))

	for i := 0; i < 5; i++ {
		reporter.Report(dto.NewMouseClick("https://a.test", i, i, "DIV", fixedTime))
	}
	reporter.Wait()
	assert.Len(t, stub.received(), 5)

	dead := NewReporter(NewClient("http://127.0.0.1:1", 200*time.Millisecond, false), log.New(&logs, "", 0))
	dead.Report(dto.NewKeyPress("https://a.test", "x", fixedTime))
	dead.Wait()
	assert.Contains(t, logs.String(), "failed to send log_key_press record")
}

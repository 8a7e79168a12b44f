// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package httpx

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTransport_Timeouts(t *testing.T) {
	tr := newTransport(dialTimeout, 0)
	assert.Zero(t, tr.ResponseHeaderTimeout, "uploads wait for detection")
	assert.Equal(t, dialTimeout, tr.TLSHandshakeTimeout)
	assert.Equal(t, maxIdleConns, tr.MaxIdleConns)
	assert.Equal(t, maxIdleConnsPerHost, tr.MaxIdleConnsPerHost)
	assert.Equal(t, idleConnTimeout, tr.IdleConnTimeout)

	tr = newTransport(dialTimeout, downloadHeaderTimeout)
	assert.Equal(t, downloadHeaderTimeout, tr.ResponseHeaderTimeout)
}

func TestDialFor(t *testing.T) {
	assert.Equal(t, dialTimeout, dialFor(0))
	assert.Equal(t, time.Second, dialFor(time.Second))
	assert.Equal(t, dialTimeout, dialFor(time.Hour))
}

func TestNewUploadClient_Timeout(t *testing.T) {
	assert.Equal(t, time.Minute, NewUploadClient(time.Minute).Timeout)
	assert.Zero(t, NewUploadClient(0).Timeout)
	assert.Zero(t, NewUploadClient(-time.Second).Timeout)
	assert.Zero(t, NewDownloadClient().Timeout)
}

func TestClients_RoundTrip(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, r.Method+" "+r.URL.Path)
	}))
	defer ts.Close()

	for _, c := range []*http.Client{NewUploadClient(5 * time.Second), NewDownloadClient()} {
		resp, err := c.Get(ts.URL + "/outputs/a.mp4")
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, resp.Body.Close())
		require.NoError(t, err)
		assert.Equal(t, "GET /outputs/a.mp4", string(body))
	}
}

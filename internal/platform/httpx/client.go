// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package httpx builds the instrumented HTTP clients used for talking to the
// detection service. Nothing in the module uses http.DefaultClient.
package httpx

import (
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	dialTimeout           = 3 * time.Second
	downloadHeaderTimeout = 30 * time.Second
	idleConnTimeout       = 30 * time.Second
	expectContinueTimeout = 1 * time.Second
	maxIdleConns          = 8
	maxIdleConnsPerHost   = 2
)

// NewUploadClient returns the client for detection requests. Detection runs
// before the service answers, so no header timeout applies. timeout <= 0
// leaves each request bounded only by its context.
func NewUploadClient(timeout time.Duration) *http.Client {
	timeout = max(timeout, 0)
	return &http.Client{
		Timeout:   timeout,
		Transport: instrument(newTransport(dialFor(timeout), 0)),
	}
}

// NewDownloadClient returns the client for fetching processed videos. Results
// are static files, so the server must start answering promptly; the body
// itself may take as long as the context allows.
func NewDownloadClient() *http.Client {
	return &http.Client{
		Transport: instrument(newTransport(dialTimeout, downloadHeaderTimeout)),
	}
}

func dialFor(timeout time.Duration) time.Duration {
	if timeout > 0 && timeout < dialTimeout {
		return timeout
	}
	return dialTimeout
}

func newTransport(dial, header time.Duration) *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dial, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          maxIdleConns,
		MaxIdleConnsPerHost:   maxIdleConnsPerHost,
		IdleConnTimeout:       idleConnTimeout,
		TLSHandshakeTimeout:   dial,
		ResponseHeaderTimeout: header,
		ExpectContinueTimeout: expectContinueTimeout,
	}
}

func instrument(base http.RoundTripper) http.RoundTripper {
	return otelhttp.NewTransport(base,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "HTTP " + r.Method + " " + r.URL.Path
		}),
	)
}


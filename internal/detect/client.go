// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package detect is the client side of the detection service's HTTP boundary:
// one multipart upload in, one result locator out.
package detect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptrace"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	xglog "github.com/ManuGH/visiontrack/internal/log"
	"github.com/ManuGH/visiontrack/internal/metrics"
	"github.com/ManuGH/visiontrack/internal/platform/httpx"
	netx "github.com/ManuGH/visiontrack/internal/platform/net"
	"github.com/ManuGH/visiontrack/internal/selection"
	"github.com/ManuGH/visiontrack/internal/telemetry"
)

const (
	// DefaultUploadPath is the detection endpoint relative to the base URL.
	DefaultUploadPath = "/upload"
	// FormField is the multipart field carrying the video.
	FormField = "file"

	maxResponseBytes = 1 << 20
)

// Result is the detection service's success payload.
type Result struct {
	// Locator is the absolute URL of the annotated video.
	Locator string
}

type successBody struct {
	VideoURL string `json:"video_url"`
}

type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// Client submits videos to the detection service.
type Client struct {
	base       *url.URL
	uploadPath string
	http       *http.Client
	logger     zerolog.Logger
	tracer     trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default streaming client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l zerolog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// WithUploadPath overrides DefaultUploadPath.
func WithUploadPath(p string) Option {
	return func(cl *Client) {
		if p != "" {
			cl.uploadPath = p
		}
	}
}

// New creates a client for the service rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := netx.ParseHTTPURL(baseURL)
	if err != nil {
		return nil, fmt.Errorf("base url: %w", err)
	}

	c := &Client{
		base:       u,
		uploadPath: DefaultUploadPath,
		http:       httpx.NewUploadClient(0),
		logger:     xglog.WithComponent("detect"),
		tracer:     telemetry.Tracer("visiontrack/detect"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// UploadURL is the absolute endpoint Submit posts to.
func (c *Client) UploadURL() string {
	return c.resolve(c.uploadPath).String()
}

// Submit uploads file as a single multipart payload and waits for the service's
// answer. onDispatched, if set, is called at most once, after the whole request
// has been written and before the response arrives.
func (c *Client) Submit(ctx context.Context, file selection.File, onDispatched func()) (Result, error) {
	ctx, span := c.tracer.Start(ctx, "detect.submit",
		trace.WithAttributes(telemetry.UploadAttributes(file.Name, file.MimeType, file.SizeBytes)...))
	defer span.End()

	logger := xglog.WithContext(ctx, c.logger)
	start := time.Now()

	res, outcome, err := c.submit(ctx, file, onDispatched)
	metrics.ObserveUpload(outcome, time.Since(start), file.SizeBytes)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		logger.Warn().Err(err).
			Str(xglog.FieldFile, file.Name).
			Str("outcome", outcome).
			Dur("elapsed", time.Since(start)).
			Msg("detection request failed")
		return Result{}, err
	}

	span.SetAttributes(attribute.String(telemetry.UploadLocatorKey, res.Locator))
	logger.Info().
		Str(xglog.FieldFile, file.Name).
		Str(xglog.FieldLocator, netx.SanitizeURL(res.Locator)).
		Dur("elapsed", time.Since(start)).
		Msg("detection request succeeded")
	return res, nil
}

func (c *Client) submit(ctx context.Context, file selection.File, onDispatched func()) (Result, string, error) {
	content, err := file.Open()
	if err != nil {
		return Result{}, "transport_error", fmt.Errorf("%w: open %s: %w", ErrTransport, file.Name, err)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		defer func() { _ = content.Close() }()
		// The transport closes pr on failure, which unblocks this writer.
		_ = pw.CloseWithError(writeMultipart(mw, file, content))
	}()

	var once sync.Once
	traceCtx := httptrace.WithClientTrace(ctx, &httptrace.ClientTrace{
		WroteRequest: func(info httptrace.WroteRequestInfo) {
			if info.Err == nil && onDispatched != nil {
				once.Do(onDispatched)
			}
		},
	})

	req, err := http.NewRequestWithContext(traceCtx, http.MethodPost, c.UploadURL(), pr)
	if err != nil {
		_ = pr.Close()
		return Result{}, "transport_error", fmt.Errorf("%w: build request: %w", ErrTransport, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if sid := xglog.SessionIDFromContext(ctx); sid != "" {
		req.Header.Set("X-Request-ID", sid)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		outcome := "transport_error"
		if ctx.Err() != nil {
			outcome = "canceled"
		}
		return Result{}, outcome, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer func() { _ = resp.Body.Close() }()

	// A response implies dispatch, even if the server answered before
	// draining the body or the trace hook has not run yet.
	if onDispatched != nil {
		once.Do(onDispatched)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Result{}, "transport_error", fmt.Errorf("%w: read response: %w", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, "status_error", &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}

	var body successBody
	if err := json.Unmarshal(data, &body); err != nil {
		return Result{}, "protocol_error", fmt.Errorf("%w: decode response: %w", ErrProtocol, err)
	}
	locator := strings.TrimSpace(body.VideoURL)
	if locator == "" {
		return Result{}, "protocol_error", fmt.Errorf("%w: response has no video_url", ErrProtocol)
	}
	ref, err := url.Parse(locator)
	if err != nil {
		return Result{}, "protocol_error", fmt.Errorf("%w: video_url %q: %w", ErrProtocol, locator, err)
	}
	abs, err := netx.ParseHTTPURL(c.base.ResolveReference(ref).String())
	if err != nil {
		return Result{}, "protocol_error", fmt.Errorf("%w: video_url: %w", ErrProtocol, err)
	}
	return Result{Locator: abs.String()}, "ok", nil
}

func (c *Client) resolve(p string) *url.URL {
	u := *c.base
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(p, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return &u
}

func writeMultipart(mw *multipart.Writer, file selection.File, content io.Reader) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{
		"name":     FormField,
		"filename": file.Name,
	}))
	ct := file.MimeType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)

	part, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create form part: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return fmt.Errorf("copy %s: %w", file.Name, err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart writer: %w", err)
	}
	return nil
}

// errorMessage pulls the service's message out of an error body. FastAPI
// validation errors use "detail", which may be structured; only strings count.
func errorMessage(data []byte) string {
	var body errorBody
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Detail != "" {
			return body.Detail
		}
		return ""
	}
	var loose map[string]json.RawMessage
	if err := json.Unmarshal(data, &loose); err == nil {
		var s string
		if raw, ok := loose["error"]; ok && json.Unmarshal(raw, &s) == nil {
			return s
		}
	}
	return ""
}

// IsCanceled reports whether err stems from the request context being canceled.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package store

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bep/asynctiff"
	"github.com/valyala/fasthttp"
)

var _ asynctiff.RangeSource = (*HTTP)(nil)

// HTTPOptions configures an HTTP source.
type HTTPOptions struct {
	// Client used for requests.
	// Default is a client with 30 second read and write timeouts.
	Client *fasthttp.Client

	// BaseURL is prepended to paths that are not absolute URLs.
	BaseURL string

	// Timeout per request when the context has no deadline.
	// Default value is 30 seconds.
	Timeout time.Duration

	// Concurrency is the number of parallel requests in GetRanges.
	// Default value is DefaultConcurrency.
	Concurrency int
}

// HTTP is a RangeSource using HTTP range requests.
type HTTP struct {
	opts HTTPOptions
}

// NewHTTP returns a new HTTP source.
func NewHTTP(opts HTTPOptions) *HTTP {
	if opts.Client == nil {
		opts.Client = &fasthttp.Client{
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		}
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Concurrency == 0 {
		opts.Concurrency = DefaultConcurrency
	}
	return &HTTP{opts: opts}
}

func (h *HTTP) url(path string) string {
	if h.opts.BaseURL == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimSuffix(h.opts.BaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}

func (h *HTTP) GetRange(ctx context.Context, path string, r asynctiff.ByteRange) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.Len() == 0 {
		return []byte{}, nil
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(h.url(path))
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.SetByteRange(int(r.Start), int(r.End-1))

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(h.opts.Timeout)
	}
	if err := h.opts.Client.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("GET %s %s: %w", path, r, err)
	}

	switch status := resp.StatusCode(); status {
	case fasthttp.StatusPartialContent:
		return bytes.Clone(resp.Body()), nil
	case fasthttp.StatusOK:
		// The server ignored the range header.
		body := resp.Body()
		start, end := clamp(r, uint64(len(body)))
		return bytes.Clone(body[start:end]), nil
	case fasthttp.StatusRequestedRangeNotSatisfiable:
		// The range starts past the end of the resource.
		return []byte{}, nil
	case fasthttp.StatusNotFound, fasthttp.StatusGone:
		return nil, notFound(path)
	default:
		return nil, fmt.Errorf("GET %s %s: unexpected status %d", path, r, status)
	}
}

func (h *HTTP) GetRanges(ctx context.Context, path string, rs []asynctiff.ByteRange) ([][]byte, error) {
	return getRangesConcurrently(ctx, rs, h.opts.Concurrency, func(ctx context.Context, r asynctiff.ByteRange) ([]byte, error) {
		return h.GetRange(ctx, path, r)
	})
}

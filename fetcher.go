package swcache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

var _ Fetcher = &HTTPFetcher{}

// HTTPFetcher performs requests with http.Client.
type HTTPFetcher struct {
	// Client is used for requests, http.DefaultClient if nil.
	Client *http.Client

	// MaxBodyBytes limits response body size, 0 means no limit.
	MaxBodyBytes int64
}

// Fetch performs request and reads complete response body.
func (f *HTTPFetcher) Fetch(ctx context.Context, req *Request) (*Response, error) {
	hr, err := http.NewRequestWithContext(ctx, req.Method, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("prepare request: %w", err)
	}

	if req.Header != nil {
		hr.Header = req.Header.Clone()
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(hr)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	var body io.Reader = resp.Body
	if f.MaxBodyBytes > 0 {
		body = io.LimitReader(resp.Body, f.MaxBodyBytes+1)
	}

	b, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if f.MaxBodyBytes > 0 && int64(len(b)) > f.MaxBodyBytes {
		return nil, fmt.Errorf("response body of %s exceeds %d bytes", req.URL, f.MaxBodyBytes)
	}

	return &Response{
		Status:     resp.StatusCode,
		StatusText: strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode))),
		Header:     resp.Header,
		Body:       b,
	}, nil
}

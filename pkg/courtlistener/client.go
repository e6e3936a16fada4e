// SPDX-License-Identifier: Apache-2.0
// Package courtlistener talks to the CourtListener REST API and declares the
// tool operations the gateway exposes over it.
package courtlistener

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/openjurist/lexgate/pkg/cache"
	"github.com/openjurist/lexgate/pkg/errors"
)

// ClientConfig configures the upstream client.
type ClientConfig struct {
	// BaseURL is the API root, e.g. https://www.courtlistener.com/api/rest/v4.
	BaseURL string

	// APIKey is sent as an Authorization token. Optional: CourtListener
	// serves anonymous requests at a lower rate limit.
	APIKey string

	// Timeout bounds each HTTP request.
	Timeout time.Duration
}

// Client is a thin CourtListener REST client. Concurrent identical requests
// are coalesced into one upstream call via singleflight.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	sf      singleflight.Group
	log     *slog.Logger
}

// NewClient creates a Client from cfg.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
		log:     slog.Default(),
	}
}

// Get fetches endpoint with the given query parameters and decodes the JSON
// document. Errors carry the gateway taxonomy so the resilience layer can
// classify them without inspecting HTTP details.
func (c *Client) Get(ctx context.Context, endpoint string, params map[string]interface{}) (map[string]interface{}, error) {
	key := strconv.FormatUint(uint64(cache.NewFingerprint(endpoint, params)), 16)
	value, err, shared := c.sf.Do(key, func() (interface{}, error) {
		return c.get(ctx, endpoint, params)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.log.Debug("courtlistener.coalesced", slog.String("endpoint", endpoint))
	}
	return value.(map[string]interface{}), nil
}

func (c *Client) get(ctx context.Context, endpoint string, params map[string]interface{}) (map[string]interface{}, error) {
	u := c.baseURL + "/" + strings.Trim(endpoint, "/") + "/"
	if len(params) > 0 {
		q := url.Values{}
		for k, v := range params {
			q.Set(k, fmt.Sprintf("%v", v))
		}
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.New(errors.CategoryValidation, "invalid upstream request", err).
			WithEndpoint(endpoint)
	}
	return c.do(req, endpoint)
}

// Post sends a form-encoded POST, used by the citation lookup endpoint.
func (c *Client) Post(ctx context.Context, endpoint string, form map[string]interface{}) (map[string]interface{}, error) {
	values := url.Values{}
	for k, v := range form {
		values.Set(k, fmt.Sprintf("%v", v))
	}
	u := c.baseURL + "/" + strings.Trim(endpoint, "/") + "/"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, errors.New(errors.CategoryValidation, "invalid upstream request", err).
			WithEndpoint(endpoint)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, endpoint)
}

func (c *Client) do(req *http.Request, endpoint string) (map[string]interface{}, error) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Token "+c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if req.Context().Err() != nil || isTimeout(err) {
			return nil, errors.New(errors.CategoryTimeout, "upstream request timed out", err).
				WithEndpoint(endpoint)
		}
		return nil, errors.New(errors.CategoryNetwork, "upstream unreachable", err).
			WithEndpoint(endpoint)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, errors.New(errors.CategoryNetwork, "reading upstream response failed", err).
			WithEndpoint(endpoint)
	}

	c.log.Debug("courtlistener.request",
		slog.String("endpoint", endpoint),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.FromHTTPStatus(resp.StatusCode, endpoint,
			fmt.Errorf("%s", strings.TrimSpace(truncate(string(body), 200))))
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		// Citation lookup returns a top-level array; wrap it.
		var list []interface{}
		if listErr := json.Unmarshal(body, &list); listErr == nil {
			return map[string]interface{}{"results": list, "count": len(list)}, nil
		}
		return nil, errors.New(errors.CategoryExternalAPI, "upstream returned malformed JSON", err).
			WithEndpoint(endpoint).WithStatusCode(resp.StatusCode)
	}
	return doc, nil
}

func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	for e := err; e != nil; {
		if t, ok := e.(timeouter); ok && t.Timeout() {
			return true
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

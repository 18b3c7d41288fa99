// Package gateway is the single path from the panel to the trading backend.
// It attaches credentials, paces outbound calls, classifies every failure
// and hands callers a Result instead of a raw transport error.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/atmx/userpanel/internal/localstore"
	"github.com/atmx/userpanel/internal/metrics"
)

const (
	headerCSRF        = "X-CSRF-Token"
	headerRequestedBy = "X-Requested-With"
	headerRequestID   = "X-Request-ID"

	maxBodyBytes = 4 << 20
)

// Config configures a Client.
type Config struct {
	// BaseURL is the backend root, e.g. https://panel.example.com/api/.
	BaseURL string
	// Timeout bounds a single call including reading the body.
	Timeout time.Duration
	// RatePerSec and Burst pace outbound calls. Zero disables pacing.
	RatePerSec float64
	Burst      int
	Endpoints  Endpoints
}

// Client calls the backend. It is safe for concurrent use.
type Client struct {
	base      *url.URL
	http      *http.Client
	limiter   *rate.Limiter
	tokens    localstore.Store
	endpoints Endpoints
}

// New creates a Client. tokens holds the CSRF token between calls and may
// be nil.
func New(cfg Config, tokens localstore.Store) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("gateway: parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("gateway: base url %q must be absolute", cfg.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("gateway: cookie jar: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RatePerSec > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}

	endpoints := cfg.Endpoints
	endpoints.fillDefaults()

	return &Client{
		base:      base,
		http:      &http.Client{Jar: jar, Timeout: timeout},
		limiter:   limiter,
		tokens:    tokens,
		endpoints: endpoints,
	}, nil
}


// Form is a multipart/form-data body. Call sends it as multipart instead
// of JSON.
type Form map[string]string

// envelope is the backend's response wrapper. Either data or user carries
// the payload. When neither is present the whole body is the payload.
type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	User    json.RawMessage `json:"user"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

// Call performs one backend request. body may be nil, a Form, or any value
// that encodes to JSON. Call never returns a transport error directly.
func (c *Client) Call(ctx context.Context, method, endpoint string, query url.Values, body any) Result[json.RawMessage] {
	start := time.Now()
	res := c.call(ctx, method, endpoint, query, body)
	res.Endpoint = endpoint
	res.Duration = time.Since(start)

	metrics.ObserveGateway(endpoint, res.Outcome(), res.Duration)
	if res.OK {
		slog.Debug("backend call", "method", method, "endpoint", endpoint, "duration", res.Duration)
	} else {
		slog.Debug("backend call failed",
			"method", method, "endpoint", endpoint,
			"kind", res.Kind, "status", res.Status, "message", res.Message,
			"duration", res.Duration)
	}
	return res
}

func (c *Client) call(ctx context.Context, method, endpoint string, query url.Values, body any) Result[json.RawMessage] {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fail[json.RawMessage](endpoint, KindNetwork, 0, err.Error())
		}
	}

	req, err := c.newRequest(ctx, method, endpoint, query, body)
	if err != nil {
		return fail[json.RawMessage](endpoint, KindNetwork, 0, err.Error())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fail[json.RawMessage](endpoint, KindNetwork, 0, err.Error())
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fail[json.RawMessage](endpoint, KindNetwork, resp.StatusCode, err.Error())
	}

	if tok := resp.Header.Get(headerCSRF); tok != "" && c.tokens != nil {
		if err := c.tokens.Set(ctx, localstore.KeyCSRFToken, tok, 0); err != nil {
			slog.Warn("failed to store csrf token", "err", err)
		}
	}

	return interpret(endpoint, resp.StatusCode, resp.Header.Get("Content-Type"), data)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, query url.Values, body any) (*http.Request, error) {
	rel, err := url.Parse(strings.TrimPrefix(endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse endpoint %q: %w", endpoint, err)
	}
	u := c.base.ResolveReference(rel)
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	var (
		reader      io.Reader
		contentType string
	)
	switch b := body.(type) {
	case nil:
	case Form:
		buf, ct, err := encodeForm(b)
		if err != nil {
			return nil, err
		}
		reader, contentType = buf, ct
	default:
		buf, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		reader, contentType = bytes.NewReader(buf), "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(headerRequestedBy, "XMLHttpRequest")
	req.Header.Set(headerRequestID, uuid.NewString())

	if c.tokens != nil {
		tok, err := c.tokens.Get(ctx, localstore.KeyCSRFToken)
		switch {
		case err == nil && tok != "":
			req.Header.Set(headerCSRF, tok)
		case err != nil && !errors.Is(err, localstore.ErrNotFound):
			slog.Warn("failed to read csrf token", "err", err)
		}
	}
	return req, nil
}

func encodeForm(f Form) (*bytes.Buffer, string, error) {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for _, k := range keys {
		if err := w.WriteField(k, f[k]); err != nil {
			return nil, "", fmt.Errorf("encode form field %s: %w", k, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}

// interpret classifies a received response.
func interpret(endpoint string, status int, contentType string, body []byte) Result[json.RawMessage] {
	isJSON := false
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		isJSON = mt == "application/json" || strings.HasSuffix(mt, "+json")
	}
	trimmed := bytes.TrimSpace(body)

	if status < 200 || status > 299 {
		msg := fmt.Sprintf("HTTP error! status: %d", status)
		if isJSON {
			var env envelope
			if json.Unmarshal(trimmed, &env) == nil {
				switch {
				case env.Message != "":
					msg = env.Message
				case env.Error != "":
					msg = env.Error
				}
			}
		}
		kind := KindHTTP
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			kind = KindAuthRequired
		}
		return fail[json.RawMessage](endpoint, kind, status, msg)
	}

	if len(trimmed) == 0 {
		return Result[json.RawMessage]{OK: true}
	}
	if !isJSON {
		return fail[json.RawMessage](endpoint, KindParse, status,
			fmt.Sprintf("expected JSON response, got %q", contentType))
	}
	if !json.Valid(trimmed) {
		return fail[json.RawMessage](endpoint, KindParse, status, "malformed JSON response")
	}

	if trimmed[0] != '{' {
		return Result[json.RawMessage]{OK: true, Data: json.RawMessage(trimmed)}
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return fail[json.RawMessage](endpoint, KindParse, status, err.Error())
	}
	if env.Success != nil && !*env.Success {
		msg := env.Message
		if msg == "" {
			msg = env.Error
		}
		if msg == "" {
			msg = "request failed"
		}
		return fail[json.RawMessage](endpoint, KindApplication, status, msg)
	}

	switch {
	case len(env.Data) > 0:
		return Result[json.RawMessage]{OK: true, Data: env.Data}
	case len(env.User) > 0:
		return Result[json.RawMessage]{OK: true, Data: env.User}
	default:
		return Result[json.RawMessage]{OK: true, Data: json.RawMessage(trimmed)}
	}
}

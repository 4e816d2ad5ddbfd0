package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/penwyp/go-pensieve/internal/core/failure"
	"github.com/penwyp/go-pensieve/internal/util"
)

// maxErrorBody bounds how much of an error response is kept for diagnostics
const maxErrorBody = 4 << 10

// jsonRequest describes one JSON round trip to a provider endpoint
type jsonRequest struct {
	provider ProviderName
	op       string
	method   string
	url      string
	headers  map[string]string
	body     interface{}
}

// doJSON sends req and decodes a 2xx response into out. Every failure is
// returned as a classified *failure.Error.
func doJSON(ctx context.Context, client *http.Client, req jsonRequest, out interface{}) error {
	var reader io.Reader
	if req.body != nil {
		payload, err := sonic.Marshal(req.body)
		if err != nil {
			return &failure.Error{Kind: failure.TransportFailure, Op: req.op, Provider: string(req.provider), Err: fmt.Errorf("encode request: %w", err)}
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, req.url, reader)
	if err != nil {
		return &failure.Error{Kind: failure.TransportFailure, Op: req.op, Provider: string(req.provider), Err: err}
	}
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return &failure.Error{Kind: failure.Canceled, Op: req.op, Provider: string(req.provider), Err: err}
		}
		util.LogDebugf("%s %s request failed: %v", req.provider, req.op, err)
		return &failure.Error{Kind: failure.TransportFailure, Op: req.op, Provider: string(req.provider), Err: redactKey(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		util.LogDebugf("%s %s returned HTTP %d", req.provider, req.op, resp.StatusCode)
		return &failure.Error{
			Kind:     classifyStatus(resp.StatusCode),
			Op:       req.op,
			Provider: string(req.provider),
			Status:   resp.StatusCode,
			Err:      errors.New(strings.TrimSpace(string(slurp))),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &failure.Error{Kind: failure.TransportFailure, Op: req.op, Provider: string(req.provider), Err: fmt.Errorf("read response: %w", err)}
	}
	if err := sonic.Unmarshal(body, out); err != nil {
		return &failure.Error{Kind: failure.MalformedResponse, Op: req.op, Provider: string(req.provider), Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// classifyStatus maps an HTTP status onto a failure kind
func classifyStatus(status int) failure.Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return failure.AuthFailure
	case status == http.StatusTooManyRequests:
		return failure.RateLimited
	default:
		return failure.TransportFailure
	}
}

// redactKey strips query-string credentials that net/http echoes into URL errors
func redactKey(err error) error {
	msg := err.Error()
	idx := strings.Index(msg, "key=")
	if idx < 0 {
		return err
	}
	end := strings.IndexAny(msg[idx:], "&\" ")
	if end < 0 {
		return errors.New(msg[:idx] + "key=REDACTED")
	}
	return errors.New(msg[:idx] + "key=REDACTED" + msg[idx+end:])
}

func malformed(provider ProviderName, op string, format string, args ...interface{}) error {
	return &failure.Error{Kind: failure.MalformedResponse, Op: op, Provider: string(provider), Err: fmt.Errorf(format, args...)}
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

package builtin

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/juju/errors"
	"github.com/spf13/cast"
	"github.com/warriorguo/autoflow/types"
)

const maxResponseBytes = 4 << 20

// HTTPRequest config:
//   - method: GET by default
//   - url: required
//   - headers: object of strings
//   - body: string sent as is, or any other value sent as JSON
//
// Credentials: API_KEY becomes a bearer token, every HEADER_<NAME> becomes a header.
type HTTPRequest struct {
	client *http.Client
}

func NewHTTPRequest(client *http.Client) *HTTPRequest {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPRequest{client: client}
}

func (h *HTTPRequest) Invoke(ctx types.StepContext, config types.Data, credentials types.Credentials) (types.Data, error) {
	url, _ := config.GetString("url")
	if url == "" {
		return nil, types.NewFatalError(errors.BadRequestf("http-request needs a url"))
	}
	method, _ := config.GetString("method")
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	contentType := ""
	if raw, exists := config.Get("body"); exists && raw != nil {
		if s, ok := raw.(string); ok {
			body = strings.NewReader(s)
		} else {
			b, err := json.Marshal(raw)
			if err != nil {
				return nil, types.NewFatalError(errors.Annotate(err, "encode body"))
			}
			body = bytes.NewReader(b)
			contentType = "application/json"
		}
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), url, body)
	if err != nil {
		return nil, types.NewFatalError(errors.Annotate(err, "build request"))
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if headers, ok := config.GetData("headers"); ok {
		for k, v := range headers {
			req.Header.Set(k, cast.ToString(v))
		}
	}
	for k, v := range credentials {
		switch {
		case k == "API_KEY":
			req.Header.Set("Authorization", "Bearer "+v)
		case strings.HasPrefix(k, "HEADER_"):
			req.Header.Set(strings.ReplaceAll(strings.TrimPrefix(k, "HEADER_"), "_", "-"), v)
		}
	}
	req.Header.Set("Idempotency-Key", ctx.GetIdempotencyKey())

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, errors.Annotatef(err, "%s %s", req.Method, url)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.Annotate(err, "read response")
	}

	out := types.Data{"status": resp.StatusCode, "body": string(raw)}
	var decoded any
	if json.Unmarshal(raw, &decoded) == nil {
		out["json"] = decoded
	}
	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, errors.Errorf("%s %s: status %d", req.Method, url, resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, types.NewFatalErrorf("%s %s: status %d", req.Method, url, resp.StatusCode)
	}
	return out, nil
}

package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-contracts/core"
	goerrors "github.com/goliatone/go-errors"
)

// JSONClient sends JSON documents to one API root through a transport adapter.
type JSONClient struct {
	Adapter core.TransportAdapter
	BaseURL string
	Timeout time.Duration
	Headers map[string]string
}

func NewJSONClient(adapter core.TransportAdapter, baseURL string, timeout time.Duration) *JSONClient {
	if adapter == nil {
		adapter = NewRESTAdapter(nil)
	}
	return &JSONClient{
		Adapter: adapter,
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		Timeout: timeout,
		Headers: map[string]string{},
	}
}

// Call issues method against path. A non-nil in is sent as the JSON body and
// a 2xx answer is decoded into out when both are present. Non-2xx answers
// are returned as a status without an error so callers can decide which
// statuses they accept.
func (c *JSONClient) Call(ctx context.Context, method string, path string, query map[string]string, in any, out any) (core.Status, error) {
	if c == nil || c.Adapter == nil {
		return 0, transportError(
			"transport: json client requires an adapter",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			nil,
		)
	}
	headers := map[string]string{"Accept": "application/json"}
	for key, value := range c.Headers {
		headers[key] = value
	}
	var body []byte
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return 0, transportWrapError(
				err,
				goerrors.CategoryBadInput,
				"transport: encode request body",
				http.StatusBadRequest,
				map[string]any{"method": method, "path": path},
			)
		}
		body = encoded
		headers["Content-Type"] = "application/json"
	}

	res, err := c.Adapter.Do(ctx, core.TransportRequest{
		Method:  method,
		URL:     c.URL(path),
		Headers: headers,
		Query:   query,
		Body:    body,
		Timeout: c.Timeout,
	})
	if err != nil {
		return 0, err
	}
	status := core.Status(res.StatusCode)
	if out == nil || !status.Successful() || len(strings.TrimSpace(string(res.Body))) == 0 {
		return status, nil
	}
	if err := json.Unmarshal(res.Body, out); err != nil {
		return status, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: decode response body",
			http.StatusBadGateway,
			map[string]any{"method": method, "path": path, "status_code": res.StatusCode},
		)
	}
	return status, nil
}

// Get decodes a 2xx answer into out. 404 is reported as core.ErrNotFound and
// any other status as an external failure.
func (c *JSONClient) Get(ctx context.Context, path string, query map[string]string, out any) error {
	status, err := c.Call(ctx, http.MethodGet, path, query, nil, out)
	if err != nil {
		return err
	}
	return StatusError(http.MethodGet, path, status)
}

func (c *JSONClient) URL(path string) string {
	if c == nil {
		return path
	}
	path = strings.TrimSpace(path)
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if path == "" {
		return c.BaseURL
	}
	return c.BaseURL + "/" + strings.TrimLeft(path, "/")
}

// StatusError returns nil for 2xx statuses.
func StatusError(method string, path string, status core.Status) error {
	if status.Successful() {
		return nil
	}
	metadata := map[string]any{"method": method, "path": path, "status_code": int(status)}
	if int(status) == http.StatusNotFound {
		return transportWrapError(
			core.ErrNotFound,
			goerrors.CategoryNotFound,
			fmt.Sprintf("transport: %s %s not found", method, path),
			http.StatusNotFound,
			metadata,
		)
	}
	return transportError(
		fmt.Sprintf("transport: %s %s answered %s", method, path, status),
		goerrors.CategoryExternal,
		http.StatusBadGateway,
		metadata,
	)
}

func IsNotFound(err error) bool {
	return errors.Is(err, core.ErrNotFound)
}

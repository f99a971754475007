package devkit

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"strings"
	"sync"

	"github.com/goliatone/go-contracts/core"
)

type TransportScript struct {
	Response core.TransportResponse
	Err      error
}

// JSONScript answers with status and body encoded as JSON.
func JSONScript(status int, body any) TransportScript {
	encoded, err := json.Marshal(body)
	if err != nil {
		return TransportScript{Err: fmt.Errorf("devkit: encode scripted body: %w", err)}
	}
	return TransportScript{Response: core.TransportResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       encoded,
	}}
}

func StatusScript(status int) TransportScript {
	return TransportScript{Response: core.TransportResponse{StatusCode: status}}
}

// FakeTransportAdapter replays scripted answers. Routed scripts are matched by
// method and URL suffix; everything else falls back to the unrouted scripts in
// call order, repeating the last one.
type FakeTransportAdapter struct {
	mu       sync.Mutex
	kind     string
	scripts  []TransportScript
	routes   map[string][]TransportScript
	calls    map[string]int
	requests []core.TransportRequest
}

func NewFakeTransportAdapter(kind string, scripts ...TransportScript) *FakeTransportAdapter {
	return &FakeTransportAdapter{
		kind:    strings.TrimSpace(strings.ToLower(kind)),
		scripts: append([]TransportScript(nil), scripts...),
		routes:  map[string][]TransportScript{},
		calls:   map[string]int{},
	}
}

func routeKey(method string, suffix string) string {
	return strings.ToUpper(strings.TrimSpace(method)) + " " + strings.TrimSpace(suffix)
}

// Route scripts the answers for requests whose URL ends with suffix.
func (a *FakeTransportAdapter) Route(method string, suffix string, scripts ...TransportScript) *FakeTransportAdapter {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.routes[routeKey(method, suffix)] = append([]TransportScript(nil), scripts...)
	return a
}

func (a *FakeTransportAdapter) Kind() string {
	if a == nil {
		return ""
	}
	return a.kind
}

func (a *FakeTransportAdapter) Do(_ context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if a == nil {
		return core.TransportResponse{}, fmt.Errorf("devkit: fake transport adapter is nil")
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.requests = append(a.requests, cloneTransportRequest(req))
	method := req.Method
	if strings.TrimSpace(method) == "" {
		method = http.MethodGet
	}
	target := strings.SplitN(req.URL, "?", 2)[0]
	for key, scripts := range a.routes {
		routeMethod, suffix, _ := strings.Cut(key, " ")
		if routeMethod != strings.ToUpper(method) || !strings.HasSuffix(target, suffix) {
			continue
		}
		index := a.calls[key]
		a.calls[key]++
		return replay(scripts, index)
	}
	index := a.calls[""]
	a.calls[""]++
	if len(a.scripts) == 0 {
		return core.TransportResponse{
			StatusCode: http.StatusOK,
			Headers:    map[string]string{},
			Metadata:   map[string]any{"kind": a.kind},
		}, nil
	}
	return replay(a.scripts, index)
}

func replay(scripts []TransportScript, index int) (core.TransportResponse, error) {
	if len(scripts) == 0 {
		return core.TransportResponse{StatusCode: http.StatusNotFound}, nil
	}
	if index >= len(scripts) {
		index = len(scripts) - 1
	}
	script := scripts[index]
	return cloneTransportResponse(script.Response), script.Err
}

func (a *FakeTransportAdapter) Requests() []core.TransportRequest {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]core.TransportRequest, 0, len(a.requests))
	for _, item := range a.requests {
		out = append(out, cloneTransportRequest(item))
	}
	return out
}

func cloneTransportRequest(in core.TransportRequest) core.TransportRequest {
	out := in
	out.Headers = maps.Clone(in.Headers)
	out.Query = maps.Clone(in.Query)
	out.Metadata = maps.Clone(in.Metadata)
	out.Body = append([]byte(nil), in.Body...)
	return out
}

func cloneTransportResponse(in core.TransportResponse) core.TransportResponse {
	out := in
	out.Headers = maps.Clone(in.Headers)
	out.Metadata = maps.Clone(in.Metadata)
	out.Body = append([]byte(nil), in.Body...)
	return out
}

var _ core.TransportAdapter = (*FakeTransportAdapter)(nil)

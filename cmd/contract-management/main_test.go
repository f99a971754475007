package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-contracts/adapters/gologger"
	"go.uber.org/zap"
)

func TestRun_InvalidServiceConfigFailsBeforeServing(t *testing.T) {
	cfg := defaultAppConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.Core = map[string]any{"service_name": ""}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, gologger.Wrap(zap.NewNop())) }()

	select {
	case err := <-done:
		if err == nil || !strings.Contains(err.Error(), "build service") {
			t.Fatalf("expected build service error, got %v", err)
		}
	case <-ctx.Done():
		t.Fatalf("run did not return after the service failed to build")
	}
}

package contracts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	gocmd "github.com/goliatone/go-command"
	contractscommand "github.com/goliatone/go-contracts/command"
	"github.com/goliatone/go-contracts/core"
	"github.com/goliatone/go-contracts/inbound"
	"github.com/goliatone/go-contracts/providers/tmforum"
)

func TestNewFacade_WiresCommands(t *testing.T) {
	facade, err := NewFacade(&stubFacadeService{})
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	commands := facade.Commands()
	if commands.OfferingEvent == nil || commands.QuoteEvent == nil || commands.OrderEvent == nil {
		t.Fatalf("expected event commands to be wired")
	}
	if facade.Service() == nil {
		t.Fatalf("expected service to be exposed")
	}
}

func TestFacade_CommandDelegation(t *testing.T) {
	svc := &stubFacadeService{}
	facade, err := NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	collector := gocmd.NewResult[core.EventOutcome]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := facade.Commands().OrderEvent.Execute(ctx, contractscommand.OrderEventMessage{
		Kind:           core.EventKindCompleted,
		OrganizationID: "did:web:customer.example",
		Order:          core.Order{ID: "order-1"},
	}); err != nil {
		t.Fatalf("execute order command: %v", err)
	}
	if svc.lastOrderID != "order-1" || svc.lastOrganizationID != "did:web:customer.example" {
		t.Fatalf("unexpected order delegation: %q %q", svc.lastOrderID, svc.lastOrganizationID)
	}
	outcome, ok := collector.Load()
	if !ok || outcome.EntityID != "order-1" {
		t.Fatalf("expected outcome in collector, got %#v", outcome)
	}
}

func TestFacade_DispatcherDeduplicatesEventIDs(t *testing.T) {
	svc := &stubFacadeService{}
	facade, err := NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	dispatcher := facade.Dispatcher()

	n := quoteNotification("evt-1")
	if _, err := dispatcher.Dispatch(context.Background(), n); err != nil {
		t.Fatalf("first dispatch: %v", err)
	}
	outcome, err := dispatcher.Dispatch(context.Background(), n)
	if err != nil {
		t.Fatalf("second dispatch: %v", err)
	}
	if outcome.Status != core.OutcomeIgnored {
		t.Fatalf("expected duplicate to be ignored, got %#v", outcome)
	}
	if svc.quoteCalls != 1 {
		t.Fatalf("expected one quote call, got %d", svc.quoteCalls)
	}
}

func TestFacade_WithoutDeduplication(t *testing.T) {
	svc := &stubFacadeService{}
	facade, err := NewFacade(svc, WithoutDeduplication())
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	dispatcher := facade.Dispatcher()
	n := quoteNotification("evt-1")
	for range 2 {
		if _, err := dispatcher.Dispatch(context.Background(), n); err != nil {
			t.Fatalf("dispatch: %v", err)
		}
	}
	if svc.quoteCalls != 2 {
		t.Fatalf("expected both deliveries to run, got %d", svc.quoteCalls)
	}
}

func TestFacade_ListenerServesHealth(t *testing.T) {
	facade, err := NewFacade(&stubFacadeService{})
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	rec := httptest.NewRecorder()
	facade.Listener().Engine().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, inbound.HealthPath, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from health, got %d", rec.Code)
	}
}

func TestNewFacade_RequiresService(t *testing.T) {
	facade, err := NewFacade(nil)
	if err == nil {
		t.Fatalf("expected nil service error")
	}
	if facade != nil {
		t.Fatalf("expected nil facade on error")
	}
}

func quoteNotification(eventID string) inbound.Notification {
	n := inbound.Notification{EventID: eventID, EventType: inbound.EventQuoteCreate}
	n.Event.Quote = &tmforum.Quote{ID: "quote-1", State: "inProgress"}
	return n
}

type stubFacadeService struct {
	quoteCalls         int
	lastOrderID        string
	lastOrganizationID string
}

func (s *stubFacadeService) OnOfferingEvent(_ context.Context, kind core.EventKind, offering core.Offering) (core.EventOutcome, error) {
	return core.EventOutcome{Status: core.OutcomeApplied, Entity: "offering", EntityID: offering.ID, Kind: kind}, nil
}

func (s *stubFacadeService) OnQuoteEvent(_ context.Context, kind core.EventKind, quote core.Quote) (core.EventOutcome, error) {
	s.quoteCalls++
	return core.EventOutcome{Status: core.OutcomeApplied, Entity: "quote", EntityID: quote.ID, Kind: kind}, nil
}

func (s *stubFacadeService) OnOrderEvent(_ context.Context, kind core.EventKind, organizationID string, order core.Order) (core.EventOutcome, error) {
	s.lastOrderID = order.ID
	s.lastOrganizationID = organizationID
	return core.EventOutcome{Status: core.OutcomeApplied, Entity: "order", EntityID: order.ID, Kind: kind}, nil
}

var _ contractscommand.EventService = (*stubFacadeService)(nil)

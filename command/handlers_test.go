package command

import (
	"context"
	"errors"
	"testing"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-contracts/core"
	goerrors "github.com/goliatone/go-errors"
)

type stubEventService struct {
	offeringFn func(context.Context, core.EventKind, core.Offering) (core.EventOutcome, error)
	quoteFn    func(context.Context, core.EventKind, core.Quote) (core.EventOutcome, error)
	orderFn    func(context.Context, core.EventKind, string, core.Order) (core.EventOutcome, error)
}

func (s stubEventService) OnOfferingEvent(ctx context.Context, kind core.EventKind, offering core.Offering) (core.EventOutcome, error) {
	return s.offeringFn(ctx, kind, offering)
}

func (s stubEventService) OnQuoteEvent(ctx context.Context, kind core.EventKind, quote core.Quote) (core.EventOutcome, error) {
	return s.quoteFn(ctx, kind, quote)
}

func (s stubEventService) OnOrderEvent(ctx context.Context, kind core.EventKind, organizationID string, order core.Order) (core.EventOutcome, error) {
	return s.orderFn(ctx, kind, organizationID, order)
}

func TestOfferingEventCommand_DelegatesAndStoresOutcome(t *testing.T) {
	svc := stubEventService{
		offeringFn: func(_ context.Context, kind core.EventKind, offering core.Offering) (core.EventOutcome, error) {
			if kind != core.EventKindCreated || offering.ID != "offering-1" {
				t.Fatalf("unexpected offering event: %q %#v", kind, offering)
			}
			return core.EventOutcome{Status: core.OutcomeApplied, Entity: "productOffering", EntityID: offering.ID}, nil
		},
	}
	collector := gocmd.NewResult[core.EventOutcome]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	err := NewOfferingEventCommand(svc).Execute(ctx, OfferingEventMessage{
		Kind:     core.EventKindCreated,
		Offering: core.Offering{ID: "offering-1"},
	})
	if err != nil {
		t.Fatalf("execute offering event: %v", err)
	}
	outcome, ok := collector.Load()
	if !ok || !outcome.Applied() || outcome.EntityID != "offering-1" {
		t.Fatalf("unexpected stored outcome: %#v %v", outcome, ok)
	}
}

func TestQuoteAndOrderCommands_Delegate(t *testing.T) {
	t.Run("quote", func(t *testing.T) {
		called := false
		svc := stubEventService{
			quoteFn: func(_ context.Context, kind core.EventKind, quote core.Quote) (core.EventOutcome, error) {
				called = true
				if kind != core.EventKindStateChanged || quote.ID != "quote-1" {
					t.Fatalf("unexpected quote event: %q %#v", kind, quote)
				}
				return core.EventOutcome{Status: core.OutcomeIgnored}, nil
			},
		}
		err := NewQuoteEventCommand(svc).Execute(context.Background(), QuoteEventMessage{
			Kind:  core.EventKindStateChanged,
			Quote: core.Quote{ID: "quote-1"},
		})
		if err != nil {
			t.Fatalf("execute quote event: %v", err)
		}
		if !called {
			t.Fatalf("expected quote service invocation")
		}
	})

	t.Run("order", func(t *testing.T) {
		svc := stubEventService{
			orderFn: func(_ context.Context, kind core.EventKind, organizationID string, order core.Order) (core.EventOutcome, error) {
				if kind != core.EventKindCompleted || organizationID != "did:web:org.example" || order.ID != "order-1" {
					t.Fatalf("unexpected order event: %q %q %#v", kind, organizationID, order)
				}
				return core.EventOutcome{Status: core.OutcomeApplied, EntityID: order.ID}, nil
			},
		}
		collector := gocmd.NewResult[core.EventOutcome]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		err := NewOrderEventCommand(svc).Execute(ctx, OrderEventMessage{
			Kind:           core.EventKindCompleted,
			OrganizationID: "did:web:org.example",
			Order:          core.Order{ID: "order-1"},
		})
		if err != nil {
			t.Fatalf("execute order event: %v", err)
		}
		if outcome, ok := collector.Load(); !ok || outcome.EntityID != "order-1" {
			t.Fatalf("unexpected stored outcome: %#v %v", outcome, ok)
		}
	})
}

func TestCommands_PropagateServiceErrors(t *testing.T) {
	failure := core.NewNegotiationStateError(core.NegotiationStateAgreed, core.NegotiationStateOffered)
	svc := stubEventService{
		quoteFn: func(context.Context, core.EventKind, core.Quote) (core.EventOutcome, error) {
			return core.EventOutcome{}, failure
		},
	}
	collector := gocmd.NewResult[core.EventOutcome]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	err := NewQuoteEventCommand(svc).Execute(ctx, QuoteEventMessage{Kind: core.EventKindStateChanged, Quote: core.Quote{ID: "q"}})
	if !errors.Is(err, failure) || !core.IsNegotiationStateError(err) {
		t.Fatalf("expected negotiation state error, got %v", err)
	}
	if _, ok := collector.Load(); ok {
		t.Fatalf("expected no outcome stored on failure")
	}
}

func TestMessages_Validate(t *testing.T) {
	tests := []struct {
		name string
		msg  interface{ Validate() error }
	}{
		{name: "offering without kind", msg: OfferingEventMessage{Offering: core.Offering{ID: "o"}}},
		{name: "offering without id", msg: OfferingEventMessage{Kind: core.EventKindCreated}},
		{name: "quote without id", msg: QuoteEventMessage{Kind: core.EventKindCreated}},
		{name: "order without id", msg: OrderEventMessage{Kind: core.EventKindCompleted}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			var rich *goerrors.Error
			if !goerrors.As(err, &rich) {
				t.Fatalf("expected go-errors envelope, got %T", err)
			}
			if rich.Category != goerrors.CategoryValidation || rich.TextCode != core.ContractErrorValidation {
				t.Fatalf("unexpected envelope: %q %q", rich.Category, rich.TextCode)
			}
		})
	}

	valid := OrderEventMessage{Kind: core.EventKindStopped, Order: core.Order{ID: "order-1"}}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected order without organization to validate: %v", err)
	}
}

func TestCommand_NilServiceReturnsRichError(t *testing.T) {
	var cmd *OrderEventCommand
	err := cmd.Execute(context.Background(), OrderEventMessage{})

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal || rich.TextCode != core.ContractErrorInternal {
		t.Fatalf("unexpected envelope: %q %q", rich.Category, rich.TextCode)
	}
}

func TestMessageTypes(t *testing.T) {
	if (OfferingEventMessage{}).Type() != TypeOfferingEvent ||
		(QuoteEventMessage{}).Type() != TypeQuoteEvent ||
		(OrderEventMessage{}).Type() != TypeOrderEvent {
		t.Fatalf("unexpected message types")
	}
}

package inbound

import (
	"encoding/json"
	"testing"

	"github.com/goliatone/go-contracts/command"
	"github.com/goliatone/go-contracts/core"
	goerrors "github.com/goliatone/go-errors"
)

func decodeJSON(t *testing.T, raw string) Notification {
	t.Helper()
	var n Notification
	if err := json.Unmarshal([]byte(raw), &n); err != nil {
		t.Fatalf("decode notification: %v", err)
	}
	return n
}

func TestDecode_OfferingEvents(t *testing.T) {
	tests := []struct {
		name      string
		eventType string
		status    string
		want      core.EventKind
	}{
		{name: "create", eventType: EventProductOfferingCreate, status: "Launched", want: core.EventKindCreated},
		{name: "attribute change", eventType: EventProductOfferingAttributeValueChange, status: "Launched", want: core.EventKindStateChanged},
		{name: "state change", eventType: EventProductOfferingStateChange, status: "Launched", want: core.EventKindStateChanged},
		{name: "retired", eventType: EventProductOfferingStateChange, status: "Retired", want: core.EventKindDeleted},
		{name: "delete", eventType: EventProductOfferingDelete, status: "Launched", want: core.EventKindDeleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := Notification{EventType: tt.eventType}
			n.Event.ProductOffering = offeringPayload("offering-1", "spec-1", tt.status, "cat-a")
			msg, err := Decode(n)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			offering, ok := msg.(command.OfferingEventMessage)
			if !ok {
				t.Fatalf("expected offering message, got %T", msg)
			}
			if offering.Kind != tt.want || offering.Offering.ID != "offering-1" || offering.Offering.SpecificationID != "spec-1" {
				t.Fatalf("unexpected message: %#v", offering)
			}
		})
	}
}

func TestDecode_QuoteEvent(t *testing.T) {
	n := decodeJSON(t, `{
		"eventId": "e-1",
		"eventType": "QuoteStateChangeEvent",
		"event": {"quote": {"id": "quote-1", "state": "accepted", "externalId": "urn:uuid:p1",
			"relatedParty": [{"id": "did:web:consumer.example", "role": "Consumer"}]}}
	}`)
	msg, err := Decode(n)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	quote, ok := msg.(command.QuoteEventMessage)
	if !ok || quote.Kind != core.EventKindStateChanged {
		t.Fatalf("unexpected message: %#v", msg)
	}
	if !quote.Quote.State.Is(core.QuoteStateAccepted) || quote.Quote.ExternalID != "urn:uuid:p1" {
		t.Fatalf("unexpected quote: %#v", quote.Quote)
	}
}

func TestDecode_OrderStateChanges(t *testing.T) {
	tests := []struct {
		name      string
		eventType string
		state     string
		quotes    []string
		want      core.EventKind
	}{
		{name: "create", eventType: EventProductOrderCreate, state: "acknowledged", want: core.EventKindCreated},
		{name: "completed", eventType: EventProductOrderStateChange, state: "completed", want: core.EventKindCompleted},
		{name: "in progress with quote", eventType: EventProductOrderStateChange, state: "inProgress", quotes: []string{"q1"}, want: core.EventKindNegotiated},
		{name: "acknowledged with quote", eventType: EventProductOrderStateChange, state: "acknowledged", quotes: []string{"q1"}, want: core.EventKindNegotiated},
		{name: "in progress without quote", eventType: EventProductOrderStateChange, state: "inProgress", want: core.EventKindStateChanged},
		{name: "cancelled", eventType: EventProductOrderStateChange, state: "cancelled", want: core.EventKindStopped},
		{name: "failed", eventType: EventProductOrderStateChange, state: "failed", want: core.EventKindStopped},
		{name: "held", eventType: EventProductOrderStateChange, state: "held", want: core.EventKindStateChanged},
		{name: "delete", eventType: EventProductOrderDelete, state: "completed", want: core.EventKindDeleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := Notification{EventType: tt.eventType}
			n.Event.ProductOrder = orderPayload("order-1", tt.state, "did:web:customer.example", tt.quotes...)
			msg, err := Decode(n)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			order, ok := msg.(command.OrderEventMessage)
			if !ok {
				t.Fatalf("expected order message, got %T", msg)
			}
			if order.Kind != tt.want {
				t.Fatalf("expected kind %q, got %q", tt.want, order.Kind)
			}
			if order.OrganizationID != "did:web:customer.example" {
				t.Fatalf("expected customer organization, got %q", order.OrganizationID)
			}
		})
	}
}

func TestDecode_Rejections(t *testing.T) {
	_, err := Decode(Notification{EventType: "ProductSpecificationCreateEvent"})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.Code != 400 || rich.TextCode != core.ContractErrorUnsupportedValue {
		t.Fatalf("expected unsupported event type, got %v", err)
	}

	_, err = Decode(Notification{EventType: EventQuoteCreate})
	if !goerrors.As(err, &rich) || rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected missing payload validation error, got %v", err)
	}
}

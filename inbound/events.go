package inbound

import (
	"strings"

	"github.com/goliatone/go-contracts/command"
	"github.com/goliatone/go-contracts/core"
	"github.com/goliatone/go-contracts/providers/tmforum"
)

const (
	EventProductOfferingCreate               = "ProductOfferingCreateEvent"
	EventProductOfferingAttributeValueChange = "ProductOfferingAttributeValueChangeEvent"
	EventProductOfferingStateChange          = "ProductOfferingStateChangeEvent"
	EventProductOfferingDelete               = "ProductOfferingDeleteEvent"

	EventQuoteCreate               = "QuoteCreateEvent"
	EventQuoteStateChange          = "QuoteStateChangeEvent"
	EventQuoteAttributeValueChange = "QuoteAttributeValueChangeEvent"
	EventQuoteDelete               = "QuoteDeleteEvent"

	EventProductOrderCreate      = "ProductOrderCreateEvent"
	EventProductOrderStateChange = "ProductOrderStateChangeEvent"
	EventProductOrderDelete      = "ProductOrderDeleteEvent"
)

// Notification is the hub listener payload posted by the commerce system.
type Notification struct {
	EventID   string       `json:"eventId"`
	EventType string       `json:"eventType"`
	EventTime string       `json:"eventTime,omitempty"`
	Event     EventPayload `json:"event"`
}

type EventPayload struct {
	ProductOffering *tmforum.ProductOffering `json:"productOffering,omitempty"`
	Quote           *tmforum.Quote           `json:"quote,omitempty"`
	ProductOrder    *tmforum.ProductOrder    `json:"productOrder,omitempty"`
}

// Retired offerings leave every catalog, as if they were deleted.
var retiredLifecycleStatuses = map[string]struct{}{
	"retired":  {},
	"obsolete": {},
}

// Organization roles are tried in order on order events.
var organizationRoles = []string{"Customer", "Consumer"}

// Decode maps a notification onto the command message that handles it. The
// returned value is one of command.OfferingEventMessage,
// command.QuoteEventMessage or command.OrderEventMessage.
func Decode(n Notification) (any, error) {
	eventType := strings.TrimSpace(n.EventType)
	switch eventType {
	case EventProductOfferingCreate, EventProductOfferingAttributeValueChange,
		EventProductOfferingStateChange, EventProductOfferingDelete:
		if n.Event.ProductOffering == nil {
			return nil, inboundValidation("event.productOffering", "product offering payload is required")
		}
		offering := tmforum.ToOffering(*n.Event.ProductOffering)
		return command.OfferingEventMessage{Kind: offeringKind(eventType, offering), Offering: offering}, nil

	case EventQuoteCreate, EventQuoteStateChange, EventQuoteAttributeValueChange, EventQuoteDelete:
		if n.Event.Quote == nil {
			return nil, inboundValidation("event.quote", "quote payload is required")
		}
		return command.QuoteEventMessage{Kind: quoteKind(eventType), Quote: tmforum.ToQuote(*n.Event.Quote)}, nil

	case EventProductOrderCreate, EventProductOrderStateChange, EventProductOrderDelete:
		if n.Event.ProductOrder == nil {
			return nil, inboundValidation("event.productOrder", "product order payload is required")
		}
		order := tmforum.ToOrder(*n.Event.ProductOrder)
		msg := command.OrderEventMessage{
			Kind:  orderKind(eventType, n.Event.ProductOrder.State, order),
			Order: order,
		}
		if party, ok := core.FindRelatedParty(order.RelatedParties, organizationRoles...); ok {
			msg.OrganizationID = party.ID
		}
		return msg, nil

	default:
		return nil, inboundBadInput("inbound: unsupported event type", map[string]any{"event_type": eventType})
	}
}

func offeringKind(eventType string, offering core.Offering) core.EventKind {
	switch eventType {
	case EventProductOfferingCreate:
		return core.EventKindCreated
	case EventProductOfferingDelete:
		return core.EventKindDeleted
	}
	if _, retired := retiredLifecycleStatuses[strings.ToLower(strings.TrimSpace(offering.LifecycleStatus))]; retired {
		return core.EventKindDeleted
	}
	return core.EventKindStateChanged
}

func quoteKind(eventType string) core.EventKind {
	switch eventType {
	case EventQuoteCreate:
		return core.EventKindCreated
	case EventQuoteDelete:
		return core.EventKindDeleted
	default:
		return core.EventKindStateChanged
	}
}

func orderKind(eventType string, state string, order core.Order) core.EventKind {
	switch eventType {
	case EventProductOrderCreate:
		return core.EventKindCreated
	case EventProductOrderDelete:
		return core.EventKindDeleted
	}
	switch strings.ToLower(strings.TrimSpace(state)) {
	case "completed":
		return core.EventKindCompleted
	case "inprogress", "acknowledged":
		if len(order.QuoteIDs) > 0 {
			return core.EventKindNegotiated
		}
	case "cancelled", "failed":
		return core.EventKindStopped
	}
	return core.EventKindStateChanged
}

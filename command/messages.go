package command

import (
	"strings"

	"github.com/goliatone/go-contracts/core"
)

const (
	TypeOfferingEvent = "contracts.command.offering.event"
	TypeQuoteEvent    = "contracts.command.quote.event"
	TypeOrderEvent    = "contracts.command.order.event"
)

type OfferingEventMessage struct {
	Kind     core.EventKind
	Offering core.Offering
}

func (OfferingEventMessage) Type() string { return TypeOfferingEvent }

func (m OfferingEventMessage) Validate() error {
	if err := validateKind(m.Kind); err != nil {
		return err
	}
	if strings.TrimSpace(m.Offering.ID) == "" {
		return commandValidationError("productOffering.id", "offering id is required")
	}
	return nil
}

type QuoteEventMessage struct {
	Kind  core.EventKind
	Quote core.Quote
}

func (QuoteEventMessage) Type() string { return TypeQuoteEvent }

func (m QuoteEventMessage) Validate() error {
	if err := validateKind(m.Kind); err != nil {
		return err
	}
	if strings.TrimSpace(m.Quote.ID) == "" {
		return commandValidationError("quote.id", "quote id is required")
	}
	return nil
}

// OrderEventMessage carries the ordering organization next to the order;
// it is only required when the order completes without a negotiation.
type OrderEventMessage struct {
	Kind           core.EventKind
	OrganizationID string
	Order          core.Order
}

func (OrderEventMessage) Type() string { return TypeOrderEvent }

func (m OrderEventMessage) Validate() error {
	if err := validateKind(m.Kind); err != nil {
		return err
	}
	if strings.TrimSpace(m.Order.ID) == "" {
		return commandValidationError("productOrder.id", "order id is required")
	}
	return nil
}

func validateKind(kind core.EventKind) error {
	if strings.TrimSpace(string(kind)) == "" {
		return commandValidationError("eventType", "event kind is required")
	}
	return nil
}

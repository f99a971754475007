package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-contracts/core"
)

// EventService is the part of core.Service the commands drive.
type EventService interface {
	OnOfferingEvent(ctx context.Context, kind core.EventKind, offering core.Offering) (core.EventOutcome, error)
	OnQuoteEvent(ctx context.Context, kind core.EventKind, quote core.Quote) (core.EventOutcome, error)
	OnOrderEvent(ctx context.Context, kind core.EventKind, organizationID string, order core.Order) (core.EventOutcome, error)
}

type OfferingEventCommand struct {
	service EventService
}

func NewOfferingEventCommand(service EventService) *OfferingEventCommand {
	return &OfferingEventCommand{service: service}
}

func (c *OfferingEventCommand) Execute(ctx context.Context, msg OfferingEventMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: offering event service is required")
	}
	out, err := c.service.OnOfferingEvent(ctx, msg.Kind, msg.Offering)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type QuoteEventCommand struct {
	service EventService
}

func NewQuoteEventCommand(service EventService) *QuoteEventCommand {
	return &QuoteEventCommand{service: service}
}

func (c *QuoteEventCommand) Execute(ctx context.Context, msg QuoteEventMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: quote event service is required")
	}
	out, err := c.service.OnQuoteEvent(ctx, msg.Kind, msg.Quote)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type OrderEventCommand struct {
	service EventService
}

func NewOrderEventCommand(service EventService) *OrderEventCommand {
	return &OrderEventCommand{service: service}
}

func (c *OrderEventCommand) Execute(ctx context.Context, msg OrderEventMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: order event service is required")
	}
	out, err := c.service.OnOrderEvent(ctx, msg.Kind, msg.OrganizationID, msg.Order)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}

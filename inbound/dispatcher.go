package inbound

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-contracts/command"
	"github.com/goliatone/go-contracts/core"
	goerrors "github.com/goliatone/go-errors"
)

// Dispatcher runs decoded notifications through the contract commands.
type Dispatcher struct {
	Offerings gocmd.Commander[command.OfferingEventMessage]
	Quotes    gocmd.Commander[command.QuoteEventMessage]
	Orders    gocmd.Commander[command.OrderEventMessage]
	Store     ClaimStore
	KeyTTL    time.Duration
}

// NewDispatcher wires the three event commands to service. A nil store turns
// event id deduplication off.
func NewDispatcher(service command.EventService, store ClaimStore) *Dispatcher {
	return &Dispatcher{
		Offerings: command.NewOfferingEventCommand(service),
		Quotes:    command.NewQuoteEventCommand(service),
		Orders:    command.NewOrderEventCommand(service),
		Store:     store,
		KeyTTL:    defaultClaimTTL,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) (core.EventOutcome, error) {
	if d == nil {
		return core.EventOutcome{}, inboundInternal("inbound: dispatcher is nil", nil)
	}
	msg, err := Decode(n)
	if err != nil {
		return core.EventOutcome{}, err
	}

	eventID := strings.TrimSpace(n.EventID)
	claimID := ""
	if d.Store != nil && eventID != "" {
		var accepted bool
		claimID, accepted, err = d.Store.Claim(ctx, "event:"+eventID, d.keyTTL())
		if err != nil {
			return core.EventOutcome{}, inboundWrapError(
				err,
				goerrors.CategoryInternal,
				"inbound: event claim failed",
				http.StatusInternalServerError,
				core.ContractErrorInternal,
				map[string]any{"event_id": eventID},
			)
		}
		if !accepted {
			return core.EventOutcome{
				Status: core.OutcomeIgnored,
				Reason: "duplicate event",
			}, nil
		}
	}

	outcome, err := d.run(ctx, msg)
	if err != nil {
		if claimID != "" {
			if failErr := d.Store.Fail(ctx, claimID, err, time.Time{}); failErr != nil {
				return core.EventOutcome{}, errors.Join(err, inboundWrapError(
					failErr,
					goerrors.CategoryInternal,
					"inbound: release event claim",
					http.StatusInternalServerError,
					core.ContractErrorInternal,
					map[string]any{"event_id": eventID, "claim_id": claimID},
				))
			}
		}
		return core.EventOutcome{}, err
	}
	if claimID != "" {
		if err := d.Store.Complete(ctx, claimID); err != nil {
			return outcome, inboundWrapError(
				err,
				goerrors.CategoryInternal,
				"inbound: complete event claim",
				http.StatusInternalServerError,
				core.ContractErrorInternal,
				map[string]any{"event_id": eventID, "claim_id": claimID},
			)
		}
	}
	return outcome, nil
}

func (d *Dispatcher) run(ctx context.Context, msg any) (core.EventOutcome, error) {
	switch typed := msg.(type) {
	case command.OfferingEventMessage:
		return execute(ctx, d.Offerings, typed)
	case command.QuoteEventMessage:
		return execute(ctx, d.Quotes, typed)
	case command.OrderEventMessage:
		return execute(ctx, d.Orders, typed)
	default:
		return core.EventOutcome{}, inboundInternal(fmt.Sprintf("inbound: no command for %T", msg), nil)
	}
}

type validatable interface {
	Validate() error
}

func execute[T validatable](ctx context.Context, cmd gocmd.Commander[T], msg T) (core.EventOutcome, error) {
	if cmd == nil {
		return core.EventOutcome{}, inboundInternal(fmt.Sprintf("inbound: no command registered for %T", msg), nil)
	}
	if err := msg.Validate(); err != nil {
		return core.EventOutcome{}, err
	}
	collector := gocmd.NewResult[core.EventOutcome]()
	if err := cmd.Execute(gocmd.ContextWithResult(ctx, collector), msg); err != nil {
		return core.EventOutcome{}, err
	}
	outcome, _ := collector.Load()
	return outcome, nil
}

func (d *Dispatcher) keyTTL() time.Duration {
	if d != nil && d.KeyTTL > 0 {
		return d.KeyTTL
	}
	return defaultClaimTTL
}

package contracts

import (
	"fmt"

	contractscommand "github.com/goliatone/go-contracts/command"
	"github.com/goliatone/go-contracts/inbound"
)

type Commands struct {
	OfferingEvent *contractscommand.OfferingEventCommand
	QuoteEvent    *contractscommand.QuoteEventCommand
	OrderEvent    *contractscommand.OrderEventCommand
}

// Facade bundles the event commands of a service with the inbound listener
// that feeds them.
type Facade struct {
	service  contractscommand.EventService
	commands Commands
	store    inbound.ClaimStore
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	store        inbound.ClaimStore
	disableDedup bool
}

// WithClaimStore replaces the in-memory event id store used by Dispatcher.
func WithClaimStore(store inbound.ClaimStore) FacadeOption {
	return func(options *facadeOptions) {
		options.store = store
	}
}

// WithoutDeduplication dispatches every notification, repeated event ids
// included.
func WithoutDeduplication() FacadeOption {
	return func(options *facadeOptions) {
		options.disableDedup = true
	}
}

func NewFacade(service contractscommand.EventService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("contracts: event service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	store := cfg.store
	if store == nil && !cfg.disableDedup {
		store = inbound.NewInMemoryClaimStore()
	}
	if cfg.disableDedup {
		store = nil
	}

	return &Facade{
		service: service,
		commands: Commands{
			OfferingEvent: contractscommand.NewOfferingEventCommand(service),
			QuoteEvent:    contractscommand.NewQuoteEventCommand(service),
			OrderEvent:    contractscommand.NewOrderEventCommand(service),
		},
		store: store,
	}, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Service() contractscommand.EventService {
	if f == nil {
		return nil
	}
	return f.service
}

// Dispatcher routes decoded notifications to the facade commands.
func (f *Facade) Dispatcher() *inbound.Dispatcher {
	if f == nil {
		return nil
	}
	dispatcher := inbound.NewDispatcher(f.service, f.store)
	dispatcher.Offerings = f.commands.OfferingEvent
	dispatcher.Quotes = f.commands.QuoteEvent
	dispatcher.Orders = f.commands.OrderEvent
	return dispatcher
}

func (f *Facade) Listener(opts ...inbound.ListenerOption) *inbound.Listener {
	return inbound.NewListener(f.Dispatcher(), opts...)
}

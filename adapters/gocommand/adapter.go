package gocommand

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	contractscommand "github.com/goliatone/go-contracts/command"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
)

// ValidateMessageContract enforces Type() plus optional Validate() contract.
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

type RegistryAdapter struct {
	registry *command.Registry
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) Registry() *command.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

func (a *RegistryAdapter) RegisterCommand(cmd any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(cmd)
}

func (a *RegistryAdapter) AddResolver(key string, resolver command.Resolver) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.AddResolver(strings.TrimSpace(key), resolver)
}

// AddQueueResolver mirrors every registered command into a go-job queue
// registry so it can also run from queued jobs.
func (a *RegistryAdapter) AddQueueResolver(key string, queueRegistry *jobqueuecommand.Registry) error {
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	return a.AddResolver(key, jobqueuecommand.QueueResolver(queueRegistry))
}

func (a *RegistryAdapter) HasResolver(key string) bool {
	if a == nil || a.registry == nil {
		return false
	}
	return a.registry.HasResolver(strings.TrimSpace(key))
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.Initialize()
}

func SubscribeCommand[T any](cmd command.Commander[T], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	subscription := SubscribeCommand(cmd, runnerOpts...)
	if err := adapter.RegisterCommand(cmd); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

// EventSubscriptions holds the dispatcher subscriptions of the three contract
// event commands.
type EventSubscriptions struct {
	subscriptions []commanddispatcher.Subscription
}

func (s *EventSubscriptions) Unsubscribe() {
	if s == nil {
		return
	}
	for _, subscription := range s.subscriptions {
		if subscription != nil {
			subscription.Unsubscribe()
		}
	}
	s.subscriptions = nil
}

// RegisterEventCommands registers and subscribes the offering, quote and
// order event commands for service. On error nothing stays subscribed.
func RegisterEventCommands(
	adapter *RegistryAdapter,
	service contractscommand.EventService,
	runnerOpts ...runner.Option,
) (*EventSubscriptions, error) {
	if service == nil {
		return nil, fmt.Errorf("gocommand: event service is required")
	}
	subs := &EventSubscriptions{}
	register := func(subscription commanddispatcher.Subscription, err error) error {
		if err != nil {
			return err
		}
		subs.subscriptions = append(subs.subscriptions, subscription)
		return nil
	}
	err := errors.Join(
		register(RegisterAndSubscribe(adapter, contractscommand.NewOfferingEventCommand(service), runnerOpts...)),
		register(RegisterAndSubscribe(adapter, contractscommand.NewQuoteEventCommand(service), runnerOpts...)),
		register(RegisterAndSubscribe(adapter, contractscommand.NewOrderEventCommand(service), runnerOpts...)),
	)
	if err != nil {
		subs.Unsubscribe()
		return nil, err
	}
	return subs, nil
}

// BusCommander executes a message through the go-command dispatcher, so
// whatever is subscribed for T handles it. The caller's context, including
// any result collector, is passed through.
type BusCommander[T any] struct{}

func (BusCommander[T]) Execute(ctx context.Context, msg T) error {
	return Dispatch(ctx, msg)
}

var (
	_ command.Commander[contractscommand.OfferingEventMessage] = BusCommander[contractscommand.OfferingEventMessage]{}
	_ command.Commander[contractscommand.QuoteEventMessage]    = BusCommander[contractscommand.QuoteEventMessage]{}
	_ command.Commander[contractscommand.OrderEventMessage]    = BusCommander[contractscommand.OrderEventMessage]{}
)

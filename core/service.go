package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Service is the entry point the collaborator layer hands lifecycle events to.
type Service struct {
	config             Config
	logger             Logger
	loggerProvider     LoggerProvider
	metricsRecorder    MetricsRecorder
	errorMapper        ErrorMapper
	configProvider     ConfigProvider
	optionsResolver    OptionsResolver
	catalogGateway     CatalogGateway
	negotiationGateway NegotiationGateway
	commerceGateway    CommerceGateway
	cleanupScheduler   AgreementCleanupScheduler
	reconciler         *CatalogReconciler
	negotiation        *NegotiationStateMachine
}

type ServiceDependencies struct {
	Logger             Logger
	LoggerProvider     LoggerProvider
	MetricsRecorder    MetricsRecorder
	ErrorMapper        ErrorMapper
	ConfigProvider     ConfigProvider
	OptionsResolver    OptionsResolver
	CatalogGateway     CatalogGateway
	NegotiationGateway NegotiationGateway
	CommerceGateway    CommerceGateway
	CleanupScheduler   AgreementCleanupScheduler
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("contracts", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("contracts"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = MapError
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	svc := &Service{
		config:             finalConfig,
		logger:             logger,
		loggerProvider:     provider,
		metricsRecorder:    builder.metricsRecorder,
		errorMapper:        builder.errorMapper,
		configProvider:     builder.configProvider,
		optionsResolver:    builder.optionsResolver,
		catalogGateway:     builder.catalogGateway,
		negotiationGateway: builder.negotiationGateway,
		commerceGateway:    builder.commerceGateway,
		cleanupScheduler:   builder.cleanupScheduler,
	}
	if err := svc.buildComponents(provider, builder.idGenerator); err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	return svc, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func (s *Service) buildComponents(provider LoggerProvider, idGenerator func() string) error {
	features := s.config.Features
	parallelism := s.config.Parallelism.MaxInFlight

	if features.CatalogSync {
		reconciler, err := NewCatalogReconciler(s.catalogGateway, s.commerceGateway,
			WithReconcilerLogger(namedLogger(provider, "contracts.catalog")),
			WithReconcilerParallelism(parallelism),
		)
		if err != nil {
			return fmt.Errorf("core: catalog sync enabled: %w", err)
		}
		s.reconciler = reconciler
	}

	if features.Negotiation && strings.TrimSpace(s.config.Organization.DID) == "" {
		return fmt.Errorf("core: organization.did is required when negotiation is enabled")
	}
	if !features.Negotiation && s.negotiationGateway == nil {
		return nil
	}
	machine, err := NewNegotiationStateMachine(s.negotiationGateway, s.commerceGateway, s.config.Organization.DID,
		WithNegotiationLogger(namedLogger(provider, "contracts.negotiation")),
		WithAgreementCleanupScheduler(s.cleanupScheduler),
		WithIDGenerator(idGenerator),
		WithNegotiationParallelism(parallelism),
	)
	if err != nil {
		return fmt.Errorf("core: negotiation: %w", err)
	}
	s.negotiation = machine
	return nil
}

func namedLogger(provider LoggerProvider, name string) Logger {
	if provider == nil {
		return nil
	}
	return provider.GetLogger(name)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:             s.logger,
		LoggerProvider:     s.loggerProvider,
		MetricsRecorder:    s.metricsRecorder,
		ErrorMapper:        s.errorMapper,
		ConfigProvider:     s.configProvider,
		OptionsResolver:    s.optionsResolver,
		CatalogGateway:     s.catalogGateway,
		NegotiationGateway: s.negotiationGateway,
		CommerceGateway:    s.commerceGateway,
		CleanupScheduler:   s.cleanupScheduler,
	}
}

// OnOfferingEvent reconciles catalog membership for created and changed
// offerings and retracts deleted ones.
func (s *Service) OnOfferingEvent(ctx context.Context, kind EventKind, offering Offering) (outcome EventOutcome, err error) {
	startedAt := time.Now().UTC()
	kind = kind.Normalize()
	fields := map[string]any{
		"entity":     "offering",
		"entity_id":  offering.ID,
		"event_kind": string(kind),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "offering_event", outcome, err, fields)
	}()

	if !s.config.Features.CatalogSync || s.reconciler == nil {
		return ignoredOutcome("offering", offering.ID, kind, "catalog sync disabled"), nil
	}

	var result ReconcileResult
	switch kind {
	case EventKindCreated, EventKindStateChanged:
		result, err = s.reconciler.Reconcile(ctx, offering)
	case EventKindDeleted:
		result, err = s.reconciler.Retract(ctx, offering.ID)
	default:
		err = s.mapError(NewUnsupportedValueError("offering event kind", string(kind)))
		return EventOutcome{}, err
	}
	outcome = EventOutcome{
		Status:         OutcomeApplied,
		Entity:         "offering",
		EntityID:       offering.ID,
		Kind:           kind,
		Reconciliation: &result,
	}
	if result.Plan.Empty() {
		outcome.Reason = "catalog membership already consistent"
	}
	if err != nil {
		err = s.mapError(err)
		return outcome, err
	}
	return outcome, nil
}

// OnQuoteEvent drives the negotiation behind a quote.
func (s *Service) OnQuoteEvent(ctx context.Context, kind EventKind, quote Quote) (outcome EventOutcome, err error) {
	startedAt := time.Now().UTC()
	kind = kind.Normalize()
	fields := map[string]any{
		"entity":      "quote",
		"entity_id":   quote.ID,
		"event_kind":  string(kind),
		"quote_state": string(quote.State),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "quote_event", outcome, err, fields)
	}()

	if !s.config.Features.Negotiation || s.negotiation == nil {
		return ignoredOutcome("quote", quote.ID, kind, "negotiation disabled"), nil
	}

	var result TransitionResult
	switch kind {
	case EventKindCreated:
		result, err = s.negotiation.QuoteCreated(ctx, quote)
	case EventKindStateChanged:
		result, err = s.negotiation.QuoteStateChanged(ctx, quote)
	case EventKindDeleted:
		result, err = s.negotiation.QuoteDeleted(ctx, quote)
	default:
		err = s.mapError(NewUnsupportedValueError("quote event kind", string(kind)))
		return EventOutcome{}, err
	}
	if err != nil {
		err = s.mapError(err)
		return EventOutcome{}, err
	}
	return transitionOutcome("quote", quote.ID, kind, result), nil
}

// OnOrderEvent attaches, verifies or tears down the agreements behind an
// order. Plain created and state changed events carry nothing to act on.
func (s *Service) OnOrderEvent(ctx context.Context, kind EventKind, organizationID string, order Order) (outcome EventOutcome, err error) {
	startedAt := time.Now().UTC()
	kind = kind.Normalize()
	fields := map[string]any{
		"entity":          "order",
		"entity_id":       order.ID,
		"event_kind":      string(kind),
		"organization_id": organizationID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "order_event", outcome, err, fields)
	}()

	negotiationEnabled := s.config.Features.Negotiation
	var result TransitionResult
	switch kind {
	case EventKindCreated, EventKindStateChanged:
		return ignoredOutcome("order", order.ID, kind, "order event does not drive agreements"), nil
	case EventKindCompleted:
		if s.negotiation == nil {
			return ignoredOutcome("order", order.ID, kind, "agreement handling disabled"), nil
		}
		if negotiationEnabled {
			result, err = s.negotiation.OrderCompleted(ctx, organizationID, order)
		} else {
			result, err = s.negotiation.CompleteWithoutNegotiation(ctx, organizationID, order)
		}
	case EventKindNegotiated:
		if !negotiationEnabled || s.negotiation == nil {
			return ignoredOutcome("order", order.ID, kind, "negotiation disabled"), nil
		}
		result, err = s.negotiation.OrderNegotiated(ctx, order)
	case EventKindStopped, EventKindDeleted:
		if s.negotiation == nil {
			return ignoredOutcome("order", order.ID, kind, "agreement handling disabled"), nil
		}
		if !negotiationEnabled {
			order.QuoteIDs = nil
		}
		result, err = s.negotiation.OrderStopped(ctx, order)
	default:
		err = s.mapError(NewUnsupportedValueError("order event kind", string(kind)))
		return EventOutcome{}, err
	}
	if err != nil {
		err = s.mapError(err)
		return EventOutcome{}, err
	}
	if len(result.CleanupFailures) > 0 {
		fields["cleanup_failures"] = len(result.CleanupFailures)
	}
	return transitionOutcome("order", order.ID, kind, result), nil
}

func ignoredOutcome(entity string, entityID string, kind EventKind, reason string) EventOutcome {
	return EventOutcome{
		Status:   OutcomeIgnored,
		Entity:   entity,
		EntityID: entityID,
		Kind:     kind,
		Reason:   reason,
	}
}

func transitionOutcome(entity string, entityID string, kind EventKind, result TransitionResult) EventOutcome {
	outcome := EventOutcome{
		Status:      OutcomeApplied,
		Entity:      entity,
		EntityID:    entityID,
		Kind:        kind,
		Reason:      result.Reason,
		Negotiation: &result,
	}
	if result.Ignored {
		outcome.Status = OutcomeIgnored
	}
	return outcome
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

package core

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const processIDPrefix = "urn:uuid:"

// Consumer roles are tried in order when looking up the buying party of a
// quote or order.
var consumerPartyRoles = []string{"Consumer", "Customer", "Buyer"}

// TransitionResult describes what a negotiation event did. Ignored results
// acknowledge the event without any remote write.
type TransitionResult struct {
	ProcessID       string
	From            NegotiationState
	To              NegotiationState
	Ignored         bool
	Reason          string
	AgreementIDs    []string
	CleanupFailures []OperationFailure
}

func ignoredTransition(processID string, state NegotiationState, reason string) TransitionResult {
	return TransitionResult{
		ProcessID: processID,
		From:      state,
		To:        state,
		Ignored:   true,
		Reason:    reason,
	}
}

// NegotiationStateMachine drives the remote contract negotiation in step with
// the commercial quote and order lifecycle.
type NegotiationStateMachine struct {
	negotiation   NegotiationGateway
	commerce      CommerceGateway
	providerDID   string
	logger        Logger
	cleanup       AgreementCleanupScheduler
	newID         func() string
	aggregateOpts []AggregateOption
}

type NegotiationOption func(*NegotiationStateMachine)

func WithNegotiationLogger(logger Logger) NegotiationOption {
	return func(m *NegotiationStateMachine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithAgreementCleanupScheduler hands failed agreement deletions to an out of
// band retry mechanism.
func WithAgreementCleanupScheduler(scheduler AgreementCleanupScheduler) NegotiationOption {
	return func(m *NegotiationStateMachine) {
		m.cleanup = scheduler
	}
}

func WithIDGenerator(generator func() string) NegotiationOption {
	return func(m *NegotiationStateMachine) {
		if generator != nil {
			m.newID = generator
		}
	}
}

func WithNegotiationParallelism(limit int) NegotiationOption {
	return func(m *NegotiationStateMachine) {
		m.aggregateOpts = append(m.aggregateOpts, WithMaxParallelism(limit))
	}
}

func NewNegotiationStateMachine(
	negotiation NegotiationGateway,
	commerce CommerceGateway,
	providerDID string,
	opts ...NegotiationOption,
) (*NegotiationStateMachine, error) {
	if negotiation == nil {
		return nil, fmt.Errorf("core: negotiation gateway is required")
	}
	if commerce == nil {
		return nil, fmt.Errorf("core: commerce gateway is required")
	}
	machine := &NegotiationStateMachine{
		negotiation: negotiation,
		commerce:    commerce,
		providerDID: strings.TrimSpace(providerDID),
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(machine)
		}
	}
	if machine.logger == nil {
		machine.logger = defaultLogger("negotiation")
	}
	return machine, nil
}

// QuoteCreated opens a negotiation for a freshly created quote and records the
// remote process id on the quote. A quote that already carries a process id is
// left untouched.
func (m *NegotiationStateMachine) QuoteCreated(ctx context.Context, quote Quote) (TransitionResult, error) {
	quoteID := strings.TrimSpace(quote.ID)
	if quoteID == "" {
		return TransitionResult{}, NewValidationError("quote.id", "quote id is required")
	}
	if processID := strings.TrimSpace(quote.ExternalID); processID != "" {
		return ignoredTransition(processID, NegotiationStateNone, "negotiation already started for quote"), nil
	}
	item, ok := quote.FirstActiveItem()
	if !ok {
		return TransitionResult{}, NewValidationError("quote.quoteItem", "quote has no item that is not rejected")
	}
	offeringID := strings.TrimSpace(item.OfferingID)
	if offeringID == "" {
		return TransitionResult{}, NewValidationError("quoteItem.productOffering", "quote item does not reference an offering")
	}
	consumer, ok := FindRelatedParty(quote.RelatedParties, consumerPartyRoles...)
	if !ok {
		return TransitionResult{}, NewValidationError("quote.relatedParty", "quote has no consumer party")
	}
	if err := validateInlinePrices(item.Prices); err != nil {
		return TransitionResult{}, err
	}

	offering, err := m.commerce.GetOffering(ctx, offeringID)
	if err != nil {
		return TransitionResult{}, NewDownstreamError(err, "get offering", map[string]any{"offering_id": offeringID})
	}
	obligations, err := m.obligationsFor(ctx, item)
	if err != nil {
		return TransitionResult{}, err
	}
	target := strings.TrimSpace(offering.ID)
	if target == "" {
		target = offeringID
	}

	request := NegotiationRequest{
		ConsumerPID: processIDPrefix + m.newID(),
		ConsumerDID: strings.TrimSpace(consumer.ID),
		ProviderDID: m.providerDID,
		Offer: Offer{
			ID:          processIDPrefix + m.newID(),
			Target:      target,
			Assigner:    m.providerDID,
			Permissions: []Rule{{Action: ActionUse}},
			Obligations: obligations,
		},
	}
	processID, err := m.negotiation.CreateNegotiationRequest(ctx, request)
	if err != nil {
		return TransitionResult{}, NewDownstreamError(err, "create negotiation request", map[string]any{"quote_id": quoteID})
	}
	processID = strings.TrimSpace(processID)
	if processID == "" {
		return TransitionResult{}, NewDownstreamError(nil, "create negotiation request", map[string]any{
			"quote_id": quoteID,
			"reason":   "empty process id",
		})
	}

	status, err := m.commerce.UpdateQuoteExternalID(ctx, quoteID, processID)
	if err != nil {
		return TransitionResult{}, NewDownstreamError(err, "update quote external id", map[string]any{
			"quote_id":   quoteID,
			"process_id": processID,
		})
	}
	if !status.Successful() {
		return TransitionResult{}, NewUnexpectedStatusError("update quote external id", status, map[string]any{
			"quote_id":   quoteID,
			"process_id": processID,
		})
	}

	return TransitionResult{
		ProcessID: processID,
		From:      NegotiationStateNone,
		To:        NegotiationStateRequested,
	}, nil
}

// QuoteStateChanged advances the negotiation when the quote is approved or
// accepted. Every other quote state is acknowledged without effect.
func (m *NegotiationStateMachine) QuoteStateChanged(ctx context.Context, quote Quote) (TransitionResult, error) {
	processID := strings.TrimSpace(quote.ExternalID)
	switch {
	case quote.State.Is(QuoteStateApproved):
		return m.advance(ctx, processID, NegotiationStateRequested, NegotiationStateOffered, nil)
	case quote.State.Is(QuoteStateAccepted):
		consumer, ok := FindRelatedParty(quote.RelatedParties, consumerPartyRoles...)
		if !ok {
			return TransitionResult{}, NewValidationError("quote.relatedParty", "quote has no consumer party")
		}
		consumerDID := strings.TrimSpace(consumer.ID)
		return m.advance(ctx, processID, NegotiationStateOffered, NegotiationStateAgreed,
			func(ctx context.Context, result *TransitionResult) error {
				if err := m.ensureParticipant(ctx, consumerDID, ParticipantRoleConsumer); err != nil {
					return err
				}
				agreement, err := m.negotiation.CreateAgreementAfterNegotiation(ctx, processID, consumerDID, m.providerDID)
				if err != nil {
					return NewDownstreamError(err, "create agreement after negotiation", map[string]any{"process_id": processID})
				}
				if id := strings.TrimSpace(agreement.ID); id != "" {
					result.AgreementIDs = append(result.AgreementIDs, id)
				}
				return nil
			})
	default:
		return ignoredTransition(processID, NegotiationStateNone,
			fmt.Sprintf("quote state %q does not drive the negotiation", quote.State)), nil
	}
}

// QuoteDeleted terminates the negotiation attached to the quote, if any.
func (m *NegotiationStateMachine) QuoteDeleted(ctx context.Context, quote Quote) (TransitionResult, error) {
	processID := strings.TrimSpace(quote.ExternalID)
	if processID == "" {
		return ignoredTransition("", NegotiationStateNone, "quote has no negotiation"), nil
	}
	return m.terminate(ctx, processID, nil)
}

// OrderNegotiated marks the negotiation of the order's single accepted quote
// as verified.
func (m *NegotiationStateMachine) OrderNegotiated(ctx context.Context, order Order) (TransitionResult, error) {
	quoteID, err := singleQuoteID(order)
	if err != nil {
		return TransitionResult{}, err
	}
	if quoteID == "" {
		return TransitionResult{}, NewValidationError("order.quote", "order negotiation requires a quote")
	}
	quote, err := m.fetchQuote(ctx, quoteID)
	if err != nil {
		return TransitionResult{}, err
	}
	if !quote.State.Is(QuoteStateAccepted) {
		return TransitionResult{}, NewQuoteStateError(quote.ID, quote.State, QuoteStateAccepted)
	}
	return m.advance(ctx, strings.TrimSpace(quote.ExternalID), NegotiationStateAgreed, NegotiationStateVerified, nil)
}

// OrderCompleted attaches agreements to a completed order. Orders without a
// quote get one agreement per item; orders with a quote finalize its verified
// negotiation.
func (m *NegotiationStateMachine) OrderCompleted(ctx context.Context, organizationID string, order Order) (TransitionResult, error) {
	if strings.TrimSpace(order.ID) == "" {
		return TransitionResult{}, NewValidationError("order.id", "order id is required")
	}
	quoteID, err := singleQuoteID(order)
	if err != nil {
		return TransitionResult{}, err
	}
	if quoteID == "" {
		return m.CompleteWithoutNegotiation(ctx, organizationID, order)
	}

	quote, err := m.fetchQuote(ctx, quoteID)
	if err != nil {
		return TransitionResult{}, err
	}
	if quote.State.Is(QuoteStateRejected) || quote.State.Is(QuoteStateCancelled) {
		return TransitionResult{}, NewQuoteStateError(quote.ID, quote.State, QuoteStateAccepted)
	}
	processID := strings.TrimSpace(quote.ExternalID)
	if processID == "" {
		return TransitionResult{}, NewNegotiationStateError(NegotiationStateNone, NegotiationStateVerified, NegotiationStateFinalized)
	}
	current, err := m.currentState(ctx, processID)
	if err != nil {
		return TransitionResult{}, err
	}
	switch current {
	case NegotiationStateFinalized:
		return ignoredTransition(processID, current, "negotiation already finalized"), nil
	case NegotiationStateVerified:
	default:
		return TransitionResult{}, NewNegotiationStateError(current, NegotiationStateVerified, NegotiationStateFinalized)
	}

	agreements, err := m.negotiation.GetAgreementsForProcess(ctx, processID)
	if err != nil {
		return TransitionResult{}, NewDownstreamError(err, "get agreements for process", map[string]any{"process_id": processID})
	}
	if len(agreements) == 0 {
		agreement, createErr := m.negotiation.CreateAgreementAfterNegotiation(ctx, processID, strings.TrimSpace(organizationID), m.providerDID)
		if createErr != nil {
			return TransitionResult{}, NewDownstreamError(createErr, "create agreement after negotiation", map[string]any{"process_id": processID})
		}
		agreements = append(agreements, agreement)
	}
	agreementIDs := mergeAgreementIDs(order.AgreementIDs, agreements)
	if err := m.patchOrder(ctx, order.ID, agreementIDs); err != nil {
		return TransitionResult{}, err
	}
	if err := m.updateState(ctx, processID, NegotiationStateFinalized); err != nil {
		return TransitionResult{}, err
	}
	return TransitionResult{
		ProcessID:    processID,
		From:         current,
		To:           NegotiationStateFinalized,
		AgreementIDs: agreementIDs,
	}, nil
}

// CompleteWithoutNegotiation creates one agreement per added or modified order
// item for the ordering organization and attaches them to the order.
func (m *NegotiationStateMachine) CompleteWithoutNegotiation(ctx context.Context, organizationID string, order Order) (TransitionResult, error) {
	organizationID = strings.TrimSpace(organizationID)
	if organizationID == "" {
		return TransitionResult{}, NewValidationError("organizationId", "organization id is required")
	}
	offeringIDs := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		if strings.EqualFold(strings.TrimSpace(item.Action), ItemActionDelete) {
			continue
		}
		offeringID := strings.TrimSpace(item.OfferingID)
		if offeringID == "" {
			return TransitionResult{}, NewValidationError("orderItem.productOffering", "order item does not reference an offering")
		}
		offeringIDs = append(offeringIDs, offeringID)
	}
	if len(offeringIDs) == 0 {
		return ignoredTransition("", NegotiationStateNone, "order has no items requiring agreements"), nil
	}

	if err := m.ensureParticipant(ctx, organizationID, ParticipantRoleConsumer); err != nil {
		return TransitionResult{}, err
	}

	ops := make([]Operation[Agreement], 0, len(offeringIDs))
	for _, offeringID := range offeringIDs {
		ops = append(ops, func(ctx context.Context) (Agreement, error) {
			agreement, err := m.negotiation.CreateAgreement(ctx, organizationID, offeringID)
			if err != nil {
				return Agreement{}, NewDownstreamError(err, "create agreement", map[string]any{
					"organization_id": organizationID,
					"offering_id":     offeringID,
				})
			}
			return agreement, nil
		})
	}
	created := Aggregate(ctx, ops, append(m.aggregateOptions(), WithKeys(offeringIDs...))...)
	if err := created.ErrFor("create agreements"); err != nil {
		return TransitionResult{}, err
	}

	agreementIDs := mergeAgreementIDs(order.AgreementIDs, created.Values)
	if err := m.patchOrder(ctx, order.ID, agreementIDs); err != nil {
		return TransitionResult{}, err
	}
	return TransitionResult{
		From:         NegotiationStateNone,
		To:           NegotiationStateNone,
		AgreementIDs: agreementIDs,
	}, nil
}

// OrderStopped terminates the negotiation behind a cancelled or deleted order
// and removes the agreements it references.
func (m *NegotiationStateMachine) OrderStopped(ctx context.Context, order Order) (TransitionResult, error) {
	quoteID, err := singleQuoteID(order)
	if err != nil {
		return TransitionResult{}, err
	}
	processID := ""
	if quoteID != "" {
		quote, fetchErr := m.fetchQuote(ctx, quoteID)
		if fetchErr != nil {
			return TransitionResult{}, fetchErr
		}
		processID = strings.TrimSpace(quote.ExternalID)
	}
	if processID == "" && len(order.AgreementIDs) == 0 {
		return ignoredTransition("", NegotiationStateNone, "order has no negotiation or agreements"), nil
	}
	return m.terminate(ctx, processID, order.AgreementIDs)
}

// AdvanceStep runs between the state check and the remote state update.
type AdvanceStep func(ctx context.Context, result *TransitionResult) error

func (m *NegotiationStateMachine) advance(
	ctx context.Context,
	processID string,
	from NegotiationState,
	to NegotiationState,
	step AdvanceStep,
) (TransitionResult, error) {
	if processID == "" {
		return TransitionResult{}, NewNegotiationStateError(NegotiationStateNone, from)
	}
	current, err := m.currentState(ctx, processID)
	if err != nil {
		return TransitionResult{}, err
	}
	if current == to {
		return ignoredTransition(processID, current, "negotiation already in target state"), nil
	}
	if current > to && current != NegotiationStateTerminated {
		return ignoredTransition(processID, current, "negotiation already past target state"), nil
	}
	if current != from {
		return TransitionResult{}, NewNegotiationStateError(current, from)
	}
	if err := ValidateNegotiationTransition(current, to); err != nil {
		return TransitionResult{}, NewNegotiationStateError(current, from)
	}

	result := TransitionResult{ProcessID: processID, From: current, To: to}
	if step != nil {
		if err := step(ctx, &result); err != nil {
			return TransitionResult{}, err
		}
	}
	if err := m.updateState(ctx, processID, to); err != nil {
		return TransitionResult{}, err
	}
	return result, nil
}

// terminate moves the negotiation to TERMINATED and then deletes agreements
// on a best effort basis. Deletion failures are reported on the result and
// never fail the call.
func (m *NegotiationStateMachine) terminate(ctx context.Context, processID string, knownAgreementIDs []string) (TransitionResult, error) {
	result := TransitionResult{
		ProcessID: processID,
		From:      NegotiationStateNone,
		To:        NegotiationStateTerminated,
	}
	var processAgreements []Agreement
	if processID != "" {
		current, err := m.currentState(ctx, processID)
		if err != nil {
			return TransitionResult{}, err
		}
		result.From = current
		switch current {
		case NegotiationStateTerminated:
		case NegotiationStateFinalized:
			return TransitionResult{}, NewNegotiationStateError(current,
				NegotiationStateRequested, NegotiationStateOffered, NegotiationStateAgreed, NegotiationStateVerified)
		default:
			if err := m.updateState(ctx, processID, NegotiationStateTerminated); err != nil {
				return TransitionResult{}, err
			}
		}

		agreements, err := m.negotiation.GetAgreementsForProcess(ctx, processID)
		if err != nil {
			m.logger.Warn("agreement lookup failed during termination",
				"process_id", processID,
				"error", err.Error(),
			)
			result.CleanupFailures = append(result.CleanupFailures, OperationFailure{
				Index: -1,
				Key:   "get agreements for process",
				Err:   NewDownstreamError(err, "get agreements for process", map[string]any{"process_id": processID}),
			})
		}
		processAgreements = agreements
	}

	agreementIDs := mergeAgreementIDs(knownAgreementIDs, processAgreements)
	result.AgreementIDs = agreementIDs
	if len(agreementIDs) == 0 {
		return result, nil
	}

	ops := make([]Operation[bool], 0, len(agreementIDs))
	for _, agreementID := range agreementIDs {
		ops = append(ops, func(ctx context.Context) (bool, error) {
			deleted, err := m.negotiation.DeleteAgreement(ctx, agreementID)
			if err != nil {
				return false, NewDownstreamError(err, "delete agreement", map[string]any{"agreement_id": agreementID})
			}
			if !deleted {
				return false, NewDownstreamError(nil, "delete agreement", map[string]any{
					"agreement_id": agreementID,
					"reason":       "agreement was not deleted",
				})
			}
			return true, nil
		})
	}
	deleted := Aggregate(ctx, ops, append(m.aggregateOptions(), WithKeys(agreementIDs...))...)
	for _, failure := range deleted.Failures {
		result.CleanupFailures = append(result.CleanupFailures, OperationFailure{
			Index: failure.Index,
			Key:   failure.Key,
			Err:   failure.Err,
		})
		m.logger.Error("agreement cleanup failed",
			"process_id", processID,
			"agreement_id", failure.Key,
			"error", failure.Err.Error(),
		)
		m.scheduleCleanup(ctx, processID, failure)
	}
	return result, nil
}

func (m *NegotiationStateMachine) scheduleCleanup(ctx context.Context, processID string, failure Outcome[bool]) {
	if m.cleanup == nil {
		return
	}
	err := m.cleanup.ScheduleAgreementDeletion(ctx, AgreementCleanupRequest{
		AgreementID: failure.Key,
		ProcessID:   processID,
		Reason:      failure.Err.Error(),
	})
	if err != nil {
		m.logger.Error("agreement cleanup scheduling failed",
			"process_id", processID,
			"agreement_id", failure.Key,
			"error", err.Error(),
		)
	}
}

func (m *NegotiationStateMachine) ensureParticipant(ctx context.Context, did string, role ParticipantRole) error {
	if did == "" {
		return NewValidationError("participant.did", "participant did is required")
	}
	registered, err := m.negotiation.IsParticipant(ctx, did)
	if err != nil {
		return NewDownstreamError(err, "check participant", map[string]any{"did": did})
	}
	if registered {
		return nil
	}
	status, err := m.negotiation.CreateParticipant(ctx, did, role)
	if err != nil {
		return NewDownstreamError(err, "create participant", map[string]any{"did": did, "role": string(role)})
	}
	// A conflict means another event registered the participant first.
	if !status.Successful() && int(status) != http.StatusConflict {
		return NewUnexpectedStatusError("create participant", status, map[string]any{"did": did, "role": string(role)})
	}
	return nil
}

func (m *NegotiationStateMachine) currentState(ctx context.Context, processID string) (NegotiationState, error) {
	state, err := m.negotiation.GetNegotiationState(ctx, processID)
	if err != nil {
		return NegotiationStateNone, NewDownstreamError(err, "get negotiation state", map[string]any{"process_id": processID})
	}
	return state, nil
}

func (m *NegotiationStateMachine) updateState(ctx context.Context, processID string, state NegotiationState) error {
	fields := map[string]any{"process_id": processID, "state": state.String()}
	status, err := m.negotiation.UpdateNegotiationState(ctx, processID, state)
	if err != nil {
		return NewDownstreamError(err, "update negotiation state", fields)
	}
	if !status.Successful() {
		return NewUnexpectedStatusError("update negotiation state", status, fields)
	}
	return nil
}

func (m *NegotiationStateMachine) patchOrder(ctx context.Context, orderID string, agreementIDs []string) error {
	fields := map[string]any{"order_id": orderID, "agreement_ids": agreementIDs}
	status, err := m.commerce.PatchOrderAgreements(ctx, orderID, agreementIDs)
	if err != nil {
		return NewDownstreamError(err, "patch order agreements", fields)
	}
	if !status.Successful() {
		return NewUnexpectedStatusError("patch order agreements", status, fields)
	}
	return nil
}

func (m *NegotiationStateMachine) fetchQuote(ctx context.Context, quoteID string) (Quote, error) {
	quote, err := m.commerce.GetQuote(ctx, quoteID)
	if err != nil {
		return Quote{}, NewDownstreamError(err, "get quote", map[string]any{"quote_id": quoteID})
	}
	if strings.TrimSpace(quote.ID) == "" {
		quote.ID = quoteID
	}
	return quote, nil
}

func (m *NegotiationStateMachine) aggregateOptions() []AggregateOption {
	return append([]AggregateOption(nil), m.aggregateOpts...)
}

// singleQuoteID returns the only quote of an order, or "" when there is none.
func singleQuoteID(order Order) (string, error) {
	ids := make([]string, 0, len(order.QuoteIDs))
	for _, id := range order.QuoteIDs {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	switch len(ids) {
	case 0:
		return "", nil
	case 1:
		return ids[0], nil
	default:
		return "", NewValidationError("order.quote", ErrMultipleQuotesNotSupported.Error())
	}
}

func mergeAgreementIDs(existing []string, agreements []Agreement) []string {
	seen := map[string]struct{}{}
	merged := make([]string, 0, len(existing)+len(agreements))
	add := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		merged = append(merged, id)
	}
	for _, id := range existing {
		add(id)
	}
	for _, agreement := range agreements {
		add(agreement.ID)
	}
	return merged
}

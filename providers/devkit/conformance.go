package devkit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-contracts/core"
)

func ValidateTransportAdapterConformance(
	ctx context.Context,
	adapter core.TransportAdapter,
	request core.TransportRequest,
) error {
	if adapter == nil {
		return fmt.Errorf("devkit: transport adapter is required")
	}
	if strings.TrimSpace(adapter.Kind()) == "" {
		return fmt.Errorf("devkit: transport adapter kind is required")
	}
	_, err := adapter.Do(ctx, request)
	return err
}

// ValidateCatalogGatewayConformance walks a data service through create,
// update and delete in catalogID, which must already exist and must not list
// serviceID.
func ValidateCatalogGatewayConformance(
	ctx context.Context,
	gateway core.CatalogGateway,
	catalogID string,
	serviceID string,
) error {
	if gateway == nil {
		return fmt.Errorf("devkit: catalog gateway is required")
	}
	service := core.DataService{ID: serviceID, Title: "conformance", EndpointURL: "https://conformance.example"}
	status, err := gateway.CreateDataService(ctx, catalogID, service)
	if err != nil {
		return err
	}
	if !status.Created() {
		return fmt.Errorf("devkit: create data service answered %s, want 201", status)
	}

	summaries, err := gateway.ListCatalogs(ctx)
	if err != nil {
		return err
	}
	listed := false
	for _, summary := range summaries {
		if summary.ID != catalogID {
			continue
		}
		_, listed = summary.DataService(serviceID)
	}
	if !listed {
		return fmt.Errorf("devkit: catalog %q does not list created data service %q", catalogID, serviceID)
	}

	service.Title = "conformance updated"
	if status, err := gateway.UpdateDataService(ctx, catalogID, serviceID, service); err != nil {
		return err
	} else if !status.Successful() {
		return fmt.Errorf("devkit: update data service answered %s", status)
	}
	if status, err := gateway.DeleteDataService(ctx, catalogID, serviceID); err != nil {
		return err
	} else if !status.Successful() {
		return fmt.Errorf("devkit: delete data service answered %s", status)
	}

	if _, err := gateway.GetCatalog(ctx, catalogID+"-missing"); !errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("devkit: missing catalog should report not found, got %v", err)
	}
	return nil
}

// ValidateNegotiationGatewayConformance opens a process, offers it, attaches
// an agreement and deletes it again.
func ValidateNegotiationGatewayConformance(
	ctx context.Context,
	gateway core.NegotiationGateway,
	consumerDID string,
	providerDID string,
) error {
	if gateway == nil {
		return fmt.Errorf("devkit: negotiation gateway is required")
	}
	processID, err := gateway.CreateNegotiationRequest(ctx, core.NegotiationRequest{
		ConsumerPID: "urn:uuid:conformance",
		ConsumerDID: consumerDID,
		ProviderDID: providerDID,
		Offer: core.Offer{
			ID:          "urn:uuid:conformance-offer",
			Target:      "conformance-offering",
			Assigner:    providerDID,
			Permissions: []core.Rule{{Action: core.ActionUse}},
		},
	})
	if err != nil {
		return err
	}
	if strings.TrimSpace(processID) == "" {
		return fmt.Errorf("devkit: negotiation request returned an empty process id")
	}
	if state, err := gateway.GetNegotiationState(ctx, processID); err != nil {
		return err
	} else if state != core.NegotiationStateRequested {
		return fmt.Errorf("devkit: new process is %s, want %s", state, core.NegotiationStateRequested)
	}
	if status, err := gateway.UpdateNegotiationState(ctx, processID, core.NegotiationStateOffered); err != nil {
		return err
	} else if !status.Successful() {
		return fmt.Errorf("devkit: offer process answered %s", status)
	}
	if state, err := gateway.GetNegotiationState(ctx, processID); err != nil {
		return err
	} else if state != core.NegotiationStateOffered {
		return fmt.Errorf("devkit: offered process is %s", state)
	}

	if registered, err := gateway.IsParticipant(ctx, consumerDID); err != nil {
		return err
	} else if !registered {
		if _, err := gateway.CreateParticipant(ctx, consumerDID, core.ParticipantRoleConsumer); err != nil {
			return err
		}
	}
	if registered, err := gateway.IsParticipant(ctx, consumerDID); err != nil {
		return err
	} else if !registered {
		return fmt.Errorf("devkit: participant %q was not registered", consumerDID)
	}

	agreement, err := gateway.CreateAgreementAfterNegotiation(ctx, processID, consumerDID, providerDID)
	if err != nil {
		return err
	}
	agreements, err := gateway.GetAgreementsForProcess(ctx, processID)
	if err != nil {
		return err
	}
	found := false
	for _, item := range agreements {
		found = found || item.ID == agreement.ID
	}
	if !found {
		return fmt.Errorf("devkit: agreement %q is not listed for process %q", agreement.ID, processID)
	}
	if deleted, err := gateway.DeleteAgreement(ctx, agreement.ID); err != nil {
		return err
	} else if !deleted {
		return fmt.Errorf("devkit: agreement %q was not deleted", agreement.ID)
	}
	return nil
}

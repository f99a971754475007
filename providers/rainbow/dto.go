package rainbow

import (
	"strings"

	"github.com/goliatone/go-contracts/core"
)

// DataService is the DCAT data service record listed inside a catalog.
type DataService struct {
	ID                  string `json:"@id"`
	Type                string `json:"@type,omitempty"`
	Title               string `json:"dct:title,omitempty"`
	Creator             string `json:"dct:creator,omitempty"`
	EndpointURL         string `json:"dcat:endpointURL,omitempty"`
	EndpointDescription string `json:"dcat:endpointDescription,omitempty"`
}

type Catalog struct {
	ID       string        `json:"@id"`
	Type     string        `json:"@type,omitempty"`
	Title    string        `json:"dct:title,omitempty"`
	Themes   []string      `json:"dcat:theme,omitempty"`
	Services []DataService `json:"dcat:service,omitempty"`
}

type RightOperand struct {
	Value string `json:"@value"`
	Type  string `json:"@type,omitempty"`
}

type Constraint struct {
	LeftOperand  string       `json:"leftOperand"`
	Operator     string       `json:"operator"`
	RightOperand RightOperand `json:"rightOperand"`
	Unit         string       `json:"unit,omitempty"`
}

type Rule struct {
	Action     string       `json:"action"`
	Constraint []Constraint `json:"constraint,omitempty"`
}

type Offer struct {
	ID         string `json:"@id"`
	Type       string `json:"@type"`
	Target     string `json:"target"`
	Assigner   string `json:"assigner,omitempty"`
	Permission []Rule `json:"permission,omitempty"`
	Obligation []Rule `json:"obligation,omitempty"`
}

type NegotiationRequest struct {
	ConsumerParticipantID string `json:"consumer_participant_id"`
	ConsumerPID           string `json:"consumer_pid"`
	ProviderParticipantID string `json:"provider_participant_id"`
	Offer                 Offer  `json:"offer"`
}

type NegotiationProcess struct {
	ProviderPID string `json:"provider_pid"`
	ConsumerPID string `json:"consumer_pid,omitempty"`
	State       string `json:"state"`
}

type StateUpdate struct {
	State string `json:"state"`
}

type Agreement struct {
	ID            string `json:"agreement_id"`
	DataServiceID string `json:"data_service_id,omitempty"`
	Identity      string `json:"identity,omitempty"`
	ConsumerID    string `json:"consumer_participant_id,omitempty"`
	ProviderID    string `json:"provider_participant_id,omitempty"`
}

type Participant struct {
	ID   string `json:"participant_id"`
	Type string `json:"participant_type"`
}

func toCoreDataService(in DataService) core.DataService {
	return core.DataService{
		ID:                  strings.TrimSpace(in.ID),
		Title:               in.Title,
		Creator:             in.Creator,
		EndpointURL:         in.EndpointURL,
		EndpointDescription: in.EndpointDescription,
	}
}

func fromCoreDataService(in core.DataService) DataService {
	return DataService{
		ID:                  in.ID,
		Type:                "dcat:DataService",
		Title:               in.Title,
		Creator:             in.Creator,
		EndpointURL:         in.EndpointURL,
		EndpointDescription: in.EndpointDescription,
	}
}

func toCoreCatalog(in Catalog) core.Catalog {
	services := make([]core.DataService, 0, len(in.Services))
	for _, service := range in.Services {
		services = append(services, toCoreDataService(service))
	}
	return core.Catalog{
		ID:           strings.TrimSpace(in.ID),
		Title:        in.Title,
		Categories:   append([]string(nil), in.Themes...),
		DataServices: services,
	}
}

func toCoreAgreement(in Agreement) core.Agreement {
	organization := in.Identity
	if organization == "" {
		organization = in.ConsumerID
	}
	return core.Agreement{
		ID:             strings.TrimSpace(in.ID),
		DataServiceID:  in.DataServiceID,
		OrganizationID: organization,
	}
}

func fromCoreRules(rules []core.Rule) []Rule {
	if len(rules) == 0 {
		return nil
	}
	out := make([]Rule, 0, len(rules))
	for _, rule := range rules {
		constraints := make([]Constraint, 0, len(rule.Constraints))
		for _, constraint := range rule.Constraints {
			constraints = append(constraints, Constraint{
				LeftOperand: constraint.LeftOperand,
				Operator:    constraint.Operator,
				RightOperand: RightOperand{
					Value: constraint.RightOperand,
					Type:  constraint.RightOperandType,
				},
				Unit: constraint.Unit,
			})
		}
		out = append(out, Rule{Action: rule.Action, Constraint: constraints})
	}
	return out
}

func fromCoreNegotiationRequest(in core.NegotiationRequest) NegotiationRequest {
	return NegotiationRequest{
		ConsumerParticipantID: in.ConsumerDID,
		ConsumerPID:           in.ConsumerPID,
		ProviderParticipantID: in.ProviderDID,
		Offer: Offer{
			ID:         in.Offer.ID,
			Type:       "odrl:Offer",
			Target:     in.Offer.Target,
			Assigner:   in.Offer.Assigner,
			Permission: fromCoreRules(in.Offer.Permissions),
			Obligation: fromCoreRules(in.Offer.Obligations),
		},
	}
}

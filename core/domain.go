package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrNotFound                            = errors.New("core: remote record not found")
	ErrInvalidNegotiationStateTransition   = errors.New("core: invalid negotiation state transition")
	ErrUnknownNegotiationState             = errors.New("core: unknown negotiation state")
	ErrMultipleQuotesNotSupported          = errors.New("core: order references more than one quote")
	ErrOfferingSpecificationReferenceEmpty = errors.New("core: offering has no specification reference")
)

type EventKind string

const (
	EventKindCreated      EventKind = "created"
	EventKindStateChanged EventKind = "state_changed"
	EventKindDeleted      EventKind = "deleted"
	EventKindCompleted    EventKind = "completed"
	EventKindStopped      EventKind = "stopped"
	EventKindNegotiated   EventKind = "negotiated"
)

var eventKindAliases = map[string]EventKind{
	"created":      EventKindCreated,
	"create":       EventKindCreated,
	"statechanged": EventKindStateChanged,
	"statechange":  EventKindStateChanged,
	"deleted":      EventKindDeleted,
	"delete":       EventKindDeleted,
	"completed":    EventKindCompleted,
	"stopped":      EventKindStopped,
	"negotiated":   EventKindNegotiated,
}

// Normalize folds spelling variants such as "stateChanged" or
// "state-changed" onto the canonical kind. Unknown kinds are returned
// lower-cased.
func (k EventKind) Normalize() EventKind {
	raw := strings.ToLower(strings.TrimSpace(string(k)))
	folded := strings.NewReplacer("_", "", "-", "", " ", "").Replace(raw)
	if kind, ok := eventKindAliases[folded]; ok {
		return kind
	}
	return EventKind(raw)
}

type RelatedParty struct {
	ID   string
	Role string
}

// FindRelatedParty returns the first party whose role matches one of roles,
// compared case-insensitively and in the order the roles are given.
func FindRelatedParty(parties []RelatedParty, roles ...string) (RelatedParty, bool) {
	for _, role := range roles {
		role = strings.TrimSpace(role)
		for _, party := range parties {
			if strings.EqualFold(strings.TrimSpace(party.Role), role) && strings.TrimSpace(party.ID) != "" {
				return party, true
			}
		}
	}
	return RelatedParty{}, false
}

type Offering struct {
	ID              string
	Name            string
	LifecycleStatus string
	CategoryIDs     []string
	SpecificationID string
}

const (
	CharacteristicEndpointURL         = "endpointUrl"
	CharacteristicEndpointDescription = "endpointDescription"
	RelatedPartyRoleOwner             = "Owner"
)

type SpecificationCharacteristic struct {
	ID        string
	Name      string
	ValueType string
	Values    []string
}

type Specification struct {
	ID              string
	Name            string
	Characteristics []SpecificationCharacteristic
	RelatedParties  []RelatedParty
}

// CharacteristicValue returns the first value of the characteristic tagged
// with key, matching either its id or its name.
func (s Specification) CharacteristicValue(key string) (string, bool) {
	for _, characteristic := range s.Characteristics {
		if !strings.EqualFold(strings.TrimSpace(characteristic.ID), key) &&
			!strings.EqualFold(strings.TrimSpace(characteristic.Name), key) {
			continue
		}
		for _, value := range characteristic.Values {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed, true
			}
		}
	}
	return "", false
}

type DataService struct {
	ID                  string
	Title               string
	Creator             string
	EndpointURL         string
	EndpointDescription string
}

func (d DataService) Equal(other DataService) bool {
	return strings.TrimSpace(d.ID) == strings.TrimSpace(other.ID) &&
		strings.TrimSpace(d.Title) == strings.TrimSpace(other.Title) &&
		strings.TrimSpace(d.Creator) == strings.TrimSpace(other.Creator) &&
		strings.TrimSpace(d.EndpointURL) == strings.TrimSpace(other.EndpointURL) &&
		strings.TrimSpace(d.EndpointDescription) == strings.TrimSpace(other.EndpointDescription)
}

type CatalogSummary struct {
	ID           string
	DataServices []DataService
}

func (c CatalogSummary) DataService(id string) (DataService, bool) {
	for _, service := range c.DataServices {
		if strings.TrimSpace(service.ID) == strings.TrimSpace(id) {
			return service, true
		}
	}
	return DataService{}, false
}

type Catalog struct {
	ID           string
	Title        string
	Categories   []string
	DataServices []DataService
}

type CatalogMembership struct {
	CatalogID  string
	OfferingID string
}

type QuoteState string

const (
	QuoteStateInProgress QuoteState = "inProgress"
	QuoteStatePending    QuoteState = "pending"
	QuoteStateApproved   QuoteState = "approved"
	QuoteStateAccepted   QuoteState = "accepted"
	QuoteStateRejected   QuoteState = "rejected"
	QuoteStateCancelled  QuoteState = "cancelled"
)

func (s QuoteState) Is(other QuoteState) bool {
	return strings.EqualFold(strings.TrimSpace(string(s)), string(other))
}

const (
	ItemActionAdd    = "add"
	ItemActionModify = "modify"
	ItemActionDelete = "delete"
)

type PriceType string

const (
	PriceTypeOneTime   PriceType = "one time"
	PriceTypeRecurring PriceType = "recurring"
)

type Money struct {
	Value float64
	Unit  string
}

type Price struct {
	ID                          string
	Name                        string
	PriceType                   PriceType
	RecurringChargePeriodType   string
	RecurringChargePeriodLength int
	Amount                      Money
}

// QuoteItemPrice carries either an inline price or a reference to a product
// offering price that has to be fetched before it can be used.
type QuoteItemPrice struct {
	PriceRef string
	Price    *Price
}

type QuoteItem struct {
	ID         string
	OfferingID string
	State      string
	Action     string
	Prices     []QuoteItemPrice
}

type Quote struct {
	ID             string
	State          QuoteState
	ExternalID     string
	Items          []QuoteItem
	RelatedParties []RelatedParty
}

func (q Quote) FirstActiveItem() (QuoteItem, bool) {
	for _, item := range q.Items {
		if strings.EqualFold(strings.TrimSpace(item.State), string(QuoteStateRejected)) {
			continue
		}
		return item, true
	}
	return QuoteItem{}, false
}

type OrderItem struct {
	ID         string
	OfferingID string
	Action     string
}

type Order struct {
	ID             string
	Items          []OrderItem
	QuoteIDs       []string
	AgreementIDs   []string
	RelatedParties []RelatedParty
}

type Agreement struct {
	ID             string
	DataServiceID  string
	OrganizationID string
}

type NegotiationProcess struct {
	ID          string
	State       NegotiationState
	ProviderPID string
	ConsumerPID string
}

type ParticipantRole string

const (
	ParticipantRoleConsumer ParticipantRole = "Consumer"
	ParticipantRoleProvider ParticipantRole = "Provider"
)

// Status is the HTTP-style status a remote write reported.
type Status int

func (s Status) Successful() bool {
	return s >= http.StatusOK && s < http.StatusMultipleChoices
}

func (s Status) Created() bool {
	return s == http.StatusCreated
}

func (s Status) String() string {
	text := http.StatusText(int(s))
	if text == "" {
		return fmt.Sprintf("%d", int(s))
	}
	return fmt.Sprintf("%d %s", int(s), text)
}

type OutcomeStatus string

const (
	OutcomeApplied OutcomeStatus = "applied"
	OutcomeIgnored OutcomeStatus = "ignored"
)

// EventOutcome is the coarse result reported back to the collaborator layer.
type EventOutcome struct {
	Status         OutcomeStatus
	Entity         string
	EntityID       string
	Kind           EventKind
	Reason         string
	Reconciliation *ReconcileResult
	Negotiation    *TransitionResult
}

func (o EventOutcome) Applied() bool {
	return o.Status == OutcomeApplied
}

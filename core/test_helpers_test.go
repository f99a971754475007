package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
)

type fakeCatalogGateway struct {
	mu           sync.Mutex
	order        []string
	catalogs     map[string]*Catalog
	listErr      error
	getErr       map[string]error
	createStatus Status
	deleteStatus Status
	calls        []string
}

func newFakeCatalogGateway() *fakeCatalogGateway {
	return &fakeCatalogGateway{
		catalogs: map[string]*Catalog{},
		getErr:   map[string]error{},
	}
}

func (g *fakeCatalogGateway) addCatalog(id string, categories []string, services ...DataService) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.catalogs[id]; !ok {
		g.order = append(g.order, id)
	}
	g.catalogs[id] = &Catalog{
		ID:           id,
		Title:        "catalog " + id,
		Categories:   append([]string(nil), categories...),
		DataServices: append([]DataService(nil), services...),
	}
}

func (g *fakeCatalogGateway) ListCatalogs(context.Context) ([]CatalogSummary, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, "list")
	if g.listErr != nil {
		return nil, g.listErr
	}
	summaries := make([]CatalogSummary, 0, len(g.order))
	for _, id := range g.order {
		catalog := g.catalogs[id]
		summaries = append(summaries, CatalogSummary{
			ID:           catalog.ID,
			DataServices: append([]DataService(nil), catalog.DataServices...),
		})
	}
	return summaries, nil
}

func (g *fakeCatalogGateway) GetCatalog(_ context.Context, catalogID string) (Catalog, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, "get:"+catalogID)
	if err := g.getErr[catalogID]; err != nil {
		return Catalog{}, err
	}
	catalog, ok := g.catalogs[catalogID]
	if !ok {
		return Catalog{}, ErrNotFound
	}
	out := *catalog
	out.Categories = append([]string(nil), catalog.Categories...)
	out.DataServices = append([]DataService(nil), catalog.DataServices...)
	return out, nil
}

func (g *fakeCatalogGateway) CreateDataService(_ context.Context, catalogID string, service DataService) (Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, "create:"+catalogID)
	status := g.createStatus
	if status == 0 {
		status = http.StatusCreated
	}
	if catalog, ok := g.catalogs[catalogID]; ok && status.Successful() {
		catalog.DataServices = append(catalog.DataServices, service)
	}
	return status, nil
}

func (g *fakeCatalogGateway) UpdateDataService(_ context.Context, catalogID string, dataServiceID string, service DataService) (Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, "update:"+catalogID)
	catalog, ok := g.catalogs[catalogID]
	if !ok {
		return http.StatusNotFound, nil
	}
	for i, existing := range catalog.DataServices {
		if existing.ID == dataServiceID {
			catalog.DataServices[i] = service
		}
	}
	return http.StatusOK, nil
}

func (g *fakeCatalogGateway) DeleteDataService(_ context.Context, catalogID string, dataServiceID string) (Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, "delete:"+catalogID)
	catalog, ok := g.catalogs[catalogID]
	if !ok {
		return http.StatusNotFound, nil
	}
	kept := catalog.DataServices[:0]
	for _, existing := range catalog.DataServices {
		if existing.ID != dataServiceID {
			kept = append(kept, existing)
		}
	}
	catalog.DataServices = kept
	if g.deleteStatus != 0 {
		return g.deleteStatus, nil
	}
	return http.StatusAccepted, nil
}

// callsWithPrefix returns the sorted suffixes of recorded calls such as
// "create:1".
func (g *fakeCatalogGateway) callsWithPrefix(prefix string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := []string{}
	for _, call := range g.calls {
		if len(call) > len(prefix) && call[:len(prefix)] == prefix {
			out = append(out, call[len(prefix):])
		}
	}
	sort.Strings(out)
	return out
}

func (g *fakeCatalogGateway) resetCalls() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = nil
}

type fakeCommerceGateway struct {
	mu             sync.Mutex
	offerings      map[string]Offering
	specifications map[string]Specification
	quotes         map[string]Quote
	prices         map[string]Price
	priceErr       error
	specErr        error
	patchedOrders  map[string][]string
	writes         int
	calls          []string
}

func newFakeCommerceGateway() *fakeCommerceGateway {
	return &fakeCommerceGateway{
		offerings:      map[string]Offering{},
		specifications: map[string]Specification{},
		quotes:         map[string]Quote{},
		prices:         map[string]Price{},
		patchedOrders:  map[string][]string{},
	}
}

func (g *fakeCommerceGateway) GetOffering(_ context.Context, offeringID string) (Offering, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, "get_offering:"+offeringID)
	offering, ok := g.offerings[offeringID]
	if !ok {
		return Offering{}, ErrNotFound
	}
	return offering, nil
}

func (g *fakeCommerceGateway) GetSpecification(_ context.Context, specificationID string) (Specification, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, "get_specification:"+specificationID)
	if g.specErr != nil {
		return Specification{}, g.specErr
	}
	specification, ok := g.specifications[specificationID]
	if !ok {
		return Specification{}, ErrNotFound
	}
	return specification, nil
}

func (g *fakeCommerceGateway) GetQuote(_ context.Context, quoteID string) (Quote, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, "get_quote:"+quoteID)
	quote, ok := g.quotes[quoteID]
	if !ok {
		return Quote{}, ErrNotFound
	}
	return quote, nil
}

func (g *fakeCommerceGateway) GetPrice(_ context.Context, priceID string) (Price, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, "get_price:"+priceID)
	if g.priceErr != nil {
		return Price{}, g.priceErr
	}
	price, ok := g.prices[priceID]
	if !ok {
		return Price{}, ErrNotFound
	}
	return price, nil
}

func (g *fakeCommerceGateway) PatchOrderAgreements(_ context.Context, orderID string, agreementIDs []string) (Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.writes++
	g.calls = append(g.calls, "patch_order:"+orderID)
	g.patchedOrders[orderID] = append([]string(nil), agreementIDs...)
	return http.StatusOK, nil
}

func (g *fakeCommerceGateway) UpdateQuoteExternalID(_ context.Context, quoteID string, processID string) (Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.writes++
	g.calls = append(g.calls, "update_quote:"+quoteID)
	quote := g.quotes[quoteID]
	quote.ID = quoteID
	quote.ExternalID = processID
	g.quotes[quoteID] = quote
	return http.StatusOK, nil
}

func (g *fakeCommerceGateway) writeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.writes
}

type fakeNegotiationGateway struct {
	mu           sync.Mutex
	nextID       int
	states       map[string]NegotiationState
	history      map[string][]NegotiationState
	requests     []NegotiationRequest
	agreements   map[string][]Agreement
	direct       []Agreement
	participants map[string]ParticipantRole
	deleted      []string
	deleteErr    map[string]error
	writes       int
}

func newFakeNegotiationGateway() *fakeNegotiationGateway {
	return &fakeNegotiationGateway{
		states:       map[string]NegotiationState{},
		history:      map[string][]NegotiationState{},
		agreements:   map[string][]Agreement{},
		participants: map[string]ParticipantRole{},
		deleteErr:    map[string]error{},
	}
}

func (g *fakeNegotiationGateway) setState(processID string, state NegotiationState) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.states[processID] = state
}

func (g *fakeNegotiationGateway) CreateNegotiationRequest(_ context.Context, req NegotiationRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.writes++
	g.nextID++
	processID := fmt.Sprintf("urn:uuid:process-%d", g.nextID)
	g.requests = append(g.requests, req)
	g.states[processID] = NegotiationStateRequested
	g.history[processID] = append(g.history[processID], NegotiationStateRequested)
	return processID, nil
}

func (g *fakeNegotiationGateway) UpdateNegotiationState(_ context.Context, processID string, state NegotiationState) (Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.writes++
	if _, ok := g.states[processID]; !ok {
		return http.StatusNotFound, nil
	}
	g.states[processID] = state
	g.history[processID] = append(g.history[processID], state)
	return http.StatusOK, nil
}

func (g *fakeNegotiationGateway) GetNegotiationState(_ context.Context, processID string) (NegotiationState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	state, ok := g.states[processID]
	if !ok {
		return NegotiationStateNone, ErrNotFound
	}
	return state, nil
}

func (g *fakeNegotiationGateway) CreateAgreement(_ context.Context, organizationID string, offeringID string) (Agreement, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.writes++
	g.nextID++
	agreement := Agreement{
		ID:             fmt.Sprintf("agreement-%d", g.nextID),
		DataServiceID:  offeringID,
		OrganizationID: organizationID,
	}
	g.direct = append(g.direct, agreement)
	return agreement, nil
}

func (g *fakeNegotiationGateway) CreateAgreementAfterNegotiation(_ context.Context, processID string, consumerDID string, _ string) (Agreement, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.writes++
	g.nextID++
	agreement := Agreement{
		ID:             fmt.Sprintf("agreement-%d", g.nextID),
		OrganizationID: consumerDID,
	}
	g.agreements[processID] = append(g.agreements[processID], agreement)
	return agreement, nil
}

func (g *fakeNegotiationGateway) GetAgreementsForProcess(_ context.Context, processID string) ([]Agreement, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Agreement(nil), g.agreements[processID]...), nil
}

func (g *fakeNegotiationGateway) DeleteAgreement(_ context.Context, agreementID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.writes++
	if err := g.deleteErr[agreementID]; err != nil {
		return false, err
	}
	g.deleted = append(g.deleted, agreementID)
	return true, nil
}

func (g *fakeNegotiationGateway) CreateParticipant(_ context.Context, did string, role ParticipantRole) (Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.writes++
	g.participants[did] = role
	return http.StatusCreated, nil
}

func (g *fakeNegotiationGateway) IsParticipant(_ context.Context, did string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.participants[did]
	return ok, nil
}

func (g *fakeNegotiationGateway) writeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.writes
}

func (g *fakeNegotiationGateway) stateHistory(processID string) []NegotiationState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]NegotiationState(nil), g.history[processID]...)
}

type recordingCleanupScheduler struct {
	mu       sync.Mutex
	requests []AgreementCleanupRequest
}

func (s *recordingCleanupScheduler) ScheduleAgreementDeletion(_ context.Context, req AgreementCleanupRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	return nil
}

var errRemoteUnavailable = errors.New("remote unavailable")

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}

const testProviderDID = "did:web:provider.example"

func testOffering(id string, categories ...string) Offering {
	return Offering{
		ID:              id,
		Name:            "offering " + id,
		CategoryIDs:     categories,
		SpecificationID: "spec-" + id,
	}
}

func testSpecification(id string) Specification {
	return Specification{
		ID:   id,
		Name: "Weather data",
		Characteristics: []SpecificationCharacteristic{
			{Name: CharacteristicEndpointURL, Values: []string{"https://data.example/weather"}},
			{Name: CharacteristicEndpointDescription, Values: []string{"Hourly weather feed"}},
		},
		RelatedParties: []RelatedParty{{ID: "did:web:owner.example", Role: "Owner"}},
	}
}

func monthlyPrice(value float64) *Price {
	return &Price{
		PriceType:                   PriceTypeRecurring,
		RecurringChargePeriodType:   "monthly",
		RecurringChargePeriodLength: 1,
		Amount:                      Money{Value: value, Unit: "EUR"},
	}
}

func testQuote(id string) Quote {
	return Quote{
		ID:    id,
		State: QuoteStateInProgress,
		Items: []QuoteItem{{
			ID:         "item-1",
			OfferingID: "offering-1",
			State:      string(QuoteStateInProgress),
			Action:     ItemActionAdd,
			Prices:     []QuoteItemPrice{{Price: monthlyPrice(10)}},
		}},
		RelatedParties: []RelatedParty{{ID: "did:web:consumer.example", Role: "Consumer"}},
	}
}

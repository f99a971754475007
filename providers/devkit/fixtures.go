package devkit

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-contracts/core"
	"github.com/google/uuid"
)

// faults maps gateway method names to the error they should fail with.
type faults struct {
	lock   sync.Mutex
	byName map[string]error
}

func (f *faults) Fail(method string, err error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.byName == nil {
		f.byName = map[string]error{}
	}
	if err == nil {
		delete(f.byName, method)
		return
	}
	f.byName[method] = err
}

func (f *faults) check(method string) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.byName[method]
}

func notFound(kind string, id string) error {
	return fmt.Errorf("devkit: %s %q: %w", kind, id, core.ErrNotFound)
}

// CatalogGatewayFixture keeps catalogs and their data services in memory.
type CatalogGatewayFixture struct {
	faults
	mu       sync.Mutex
	catalogs map[string]*core.Catalog
}

func NewCatalogGatewayFixture() *CatalogGatewayFixture {
	return &CatalogGatewayFixture{catalogs: map[string]*core.Catalog{}}
}

func (g *CatalogGatewayFixture) PutCatalog(id string, categories ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id = strings.TrimSpace(id)
	catalog, ok := g.catalogs[id]
	if !ok {
		catalog = &core.Catalog{ID: id, Title: id}
		g.catalogs[id] = catalog
	}
	catalog.Categories = append([]string(nil), categories...)
}

// DataServices returns the data services currently listed in catalogID.
func (g *CatalogGatewayFixture) DataServices(catalogID string) []core.DataService {
	g.mu.Lock()
	defer g.mu.Unlock()
	catalog, ok := g.catalogs[strings.TrimSpace(catalogID)]
	if !ok {
		return nil
	}
	return append([]core.DataService(nil), catalog.DataServices...)
}

func (g *CatalogGatewayFixture) sortedIDs() []string {
	ids := make([]string, 0, len(g.catalogs))
	for id := range g.catalogs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (g *CatalogGatewayFixture) ListCatalogs(context.Context) ([]core.CatalogSummary, error) {
	if err := g.check("ListCatalogs"); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]core.CatalogSummary, 0, len(g.catalogs))
	for _, id := range g.sortedIDs() {
		out = append(out, core.CatalogSummary{
			ID:           id,
			DataServices: append([]core.DataService(nil), g.catalogs[id].DataServices...),
		})
	}
	return out, nil
}

func (g *CatalogGatewayFixture) GetCatalog(_ context.Context, catalogID string) (core.Catalog, error) {
	if err := g.check("GetCatalog"); err != nil {
		return core.Catalog{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	catalog, ok := g.catalogs[strings.TrimSpace(catalogID)]
	if !ok {
		return core.Catalog{}, notFound("catalog", catalogID)
	}
	out := *catalog
	out.Categories = append([]string(nil), catalog.Categories...)
	out.DataServices = append([]core.DataService(nil), catalog.DataServices...)
	return out, nil
}

func (g *CatalogGatewayFixture) CreateDataService(_ context.Context, catalogID string, service core.DataService) (core.Status, error) {
	if err := g.check("CreateDataService"); err != nil {
		return 0, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	catalog, ok := g.catalogs[strings.TrimSpace(catalogID)]
	if !ok {
		return http.StatusNotFound, nil
	}
	for _, existing := range catalog.DataServices {
		if existing.ID == service.ID {
			return http.StatusConflict, nil
		}
	}
	catalog.DataServices = append(catalog.DataServices, service)
	return http.StatusCreated, nil
}

func (g *CatalogGatewayFixture) UpdateDataService(_ context.Context, catalogID string, dataServiceID string, service core.DataService) (core.Status, error) {
	if err := g.check("UpdateDataService"); err != nil {
		return 0, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	catalog, ok := g.catalogs[strings.TrimSpace(catalogID)]
	if !ok {
		return http.StatusNotFound, nil
	}
	for i, existing := range catalog.DataServices {
		if existing.ID == dataServiceID {
			catalog.DataServices[i] = service
			return http.StatusOK, nil
		}
	}
	return http.StatusNotFound, nil
}

func (g *CatalogGatewayFixture) DeleteDataService(_ context.Context, catalogID string, dataServiceID string) (core.Status, error) {
	if err := g.check("DeleteDataService"); err != nil {
		return 0, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	catalog, ok := g.catalogs[strings.TrimSpace(catalogID)]
	if !ok {
		return http.StatusNotFound, nil
	}
	for i, existing := range catalog.DataServices {
		if existing.ID == dataServiceID {
			catalog.DataServices = append(catalog.DataServices[:i], catalog.DataServices[i+1:]...)
			return http.StatusNoContent, nil
		}
	}
	return http.StatusNotFound, nil
}

// NegotiationGatewayFixture is an in-memory negotiation provider that
// enforces the forward-only state graph on updates.
type NegotiationGatewayFixture struct {
	faults
	mu           sync.Mutex
	states       map[string]core.NegotiationState
	requests     map[string]core.NegotiationRequest
	agreements   map[string]core.Agreement
	byProcess    map[string][]string
	participants map[string]core.ParticipantRole
}

func NewNegotiationGatewayFixture() *NegotiationGatewayFixture {
	return &NegotiationGatewayFixture{
		states:       map[string]core.NegotiationState{},
		requests:     map[string]core.NegotiationRequest{},
		agreements:   map[string]core.Agreement{},
		byProcess:    map[string][]string{},
		participants: map[string]core.ParticipantRole{},
	}
}

func (g *NegotiationGatewayFixture) State(processID string) (core.NegotiationState, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	state, ok := g.states[processID]
	return state, ok
}

func (g *NegotiationGatewayFixture) Request(processID string) (core.NegotiationRequest, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	req, ok := g.requests[processID]
	return req, ok
}

func (g *NegotiationGatewayFixture) Agreements() []core.Agreement {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]core.Agreement, 0, len(g.agreements))
	for _, agreement := range g.agreements {
		out = append(out, agreement)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (g *NegotiationGatewayFixture) CreateNegotiationRequest(_ context.Context, req core.NegotiationRequest) (string, error) {
	if err := g.check("CreateNegotiationRequest"); err != nil {
		return "", err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	processID := "urn:uuid:" + uuid.NewString()
	g.states[processID] = core.NegotiationStateRequested
	g.requests[processID] = req
	return processID, nil
}

// UpdateNegotiationState answers 409 for transitions the graph forbids.
func (g *NegotiationGatewayFixture) UpdateNegotiationState(_ context.Context, processID string, state core.NegotiationState) (core.Status, error) {
	if err := g.check("UpdateNegotiationState"); err != nil {
		return 0, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	current, ok := g.states[processID]
	if !ok {
		return http.StatusNotFound, nil
	}
	if err := core.ValidateNegotiationTransition(current, state); err != nil {
		return http.StatusConflict, nil
	}
	g.states[processID] = state
	return http.StatusOK, nil
}

func (g *NegotiationGatewayFixture) GetNegotiationState(_ context.Context, processID string) (core.NegotiationState, error) {
	if err := g.check("GetNegotiationState"); err != nil {
		return core.NegotiationStateNone, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	state, ok := g.states[processID]
	if !ok {
		return core.NegotiationStateNone, notFound("negotiation process", processID)
	}
	return state, nil
}

func (g *NegotiationGatewayFixture) CreateAgreement(_ context.Context, organizationID string, offeringID string) (core.Agreement, error) {
	if err := g.check("CreateAgreement"); err != nil {
		return core.Agreement{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	agreement := core.Agreement{ID: "agreement-" + uuid.NewString(), DataServiceID: offeringID, OrganizationID: organizationID}
	g.agreements[agreement.ID] = agreement
	return agreement, nil
}

func (g *NegotiationGatewayFixture) CreateAgreementAfterNegotiation(_ context.Context, processID string, consumerDID string, _ string) (core.Agreement, error) {
	if err := g.check("CreateAgreementAfterNegotiation"); err != nil {
		return core.Agreement{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.states[processID]; !ok {
		return core.Agreement{}, notFound("negotiation process", processID)
	}
	agreement := core.Agreement{
		ID:             "agreement-" + uuid.NewString(),
		DataServiceID:  g.requests[processID].Offer.Target,
		OrganizationID: consumerDID,
	}
	g.agreements[agreement.ID] = agreement
	g.byProcess[processID] = append(g.byProcess[processID], agreement.ID)
	return agreement, nil
}

func (g *NegotiationGatewayFixture) GetAgreementsForProcess(_ context.Context, processID string) ([]core.Agreement, error) {
	if err := g.check("GetAgreementsForProcess"); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	out := []core.Agreement{}
	for _, id := range g.byProcess[processID] {
		if agreement, ok := g.agreements[id]; ok {
			out = append(out, agreement)
		}
	}
	return out, nil
}

func (g *NegotiationGatewayFixture) DeleteAgreement(_ context.Context, agreementID string) (bool, error) {
	if err := g.check("DeleteAgreement"); err != nil {
		return false, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.agreements[agreementID]; !ok {
		return false, nil
	}
	delete(g.agreements, agreementID)
	return true, nil
}

func (g *NegotiationGatewayFixture) CreateParticipant(_ context.Context, did string, role core.ParticipantRole) (core.Status, error) {
	if err := g.check("CreateParticipant"); err != nil {
		return 0, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.participants[did]; ok {
		return http.StatusConflict, nil
	}
	g.participants[did] = role
	return http.StatusCreated, nil
}

func (g *NegotiationGatewayFixture) IsParticipant(_ context.Context, did string) (bool, error) {
	if err := g.check("IsParticipant"); err != nil {
		return false, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.participants[did]
	return ok, nil
}

// CommerceGatewayFixture holds offerings, quotes and orders in memory and
// records the references written back by the core.
type CommerceGatewayFixture struct {
	faults
	mu             sync.Mutex
	offerings      map[string]core.Offering
	specifications map[string]core.Specification
	prices         map[string]core.Price
	quotes         map[string]core.Quote
	orders         map[string][]string
}

func NewCommerceGatewayFixture() *CommerceGatewayFixture {
	return &CommerceGatewayFixture{
		offerings:      map[string]core.Offering{},
		specifications: map[string]core.Specification{},
		prices:         map[string]core.Price{},
		quotes:         map[string]core.Quote{},
		orders:         map[string][]string{},
	}
}

func (g *CommerceGatewayFixture) PutOffering(offering core.Offering) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.offerings[offering.ID] = offering
}

func (g *CommerceGatewayFixture) PutSpecification(specification core.Specification) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.specifications[specification.ID] = specification
}

func (g *CommerceGatewayFixture) PutPrice(price core.Price) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prices[price.ID] = price
}

func (g *CommerceGatewayFixture) PutQuote(quote core.Quote) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.quotes[quote.ID] = quote
}

// OrderAgreements returns the agreement ids last patched onto orderID.
func (g *CommerceGatewayFixture) OrderAgreements(orderID string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.orders[orderID]...)
}

func (g *CommerceGatewayFixture) GetOffering(_ context.Context, offeringID string) (core.Offering, error) {
	if err := g.check("GetOffering"); err != nil {
		return core.Offering{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	offering, ok := g.offerings[offeringID]
	if !ok {
		return core.Offering{}, notFound("offering", offeringID)
	}
	return offering, nil
}

func (g *CommerceGatewayFixture) GetSpecification(_ context.Context, specificationID string) (core.Specification, error) {
	if err := g.check("GetSpecification"); err != nil {
		return core.Specification{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	specification, ok := g.specifications[specificationID]
	if !ok {
		return core.Specification{}, notFound("specification", specificationID)
	}
	return specification, nil
}

func (g *CommerceGatewayFixture) GetQuote(_ context.Context, quoteID string) (core.Quote, error) {
	if err := g.check("GetQuote"); err != nil {
		return core.Quote{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	quote, ok := g.quotes[quoteID]
	if !ok {
		return core.Quote{}, notFound("quote", quoteID)
	}
	return quote, nil
}

func (g *CommerceGatewayFixture) GetPrice(_ context.Context, priceID string) (core.Price, error) {
	if err := g.check("GetPrice"); err != nil {
		return core.Price{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	price, ok := g.prices[priceID]
	if !ok {
		return core.Price{}, notFound("price", priceID)
	}
	return price, nil
}

func (g *CommerceGatewayFixture) PatchOrderAgreements(_ context.Context, orderID string, agreementIDs []string) (core.Status, error) {
	if err := g.check("PatchOrderAgreements"); err != nil {
		return 0, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.orders[orderID] = append([]string(nil), agreementIDs...)
	return http.StatusOK, nil
}

func (g *CommerceGatewayFixture) UpdateQuoteExternalID(_ context.Context, quoteID string, processID string) (core.Status, error) {
	if err := g.check("UpdateQuoteExternalID"); err != nil {
		return 0, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	quote, ok := g.quotes[quoteID]
	if !ok {
		return http.StatusNotFound, nil
	}
	quote.ExternalID = processID
	g.quotes[quoteID] = quote
	return http.StatusOK, nil
}

var (
	_ core.CatalogGateway     = (*CatalogGatewayFixture)(nil)
	_ core.NegotiationGateway = (*NegotiationGatewayFixture)(nil)
	_ core.CommerceGateway    = (*CommerceGatewayFixture)(nil)
)

package rainbow

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/goliatone/go-contracts/core"
	"github.com/goliatone/go-contracts/providers/devkit"
	"github.com/goliatone/go-contracts/transport"
)

type connectorStub struct {
	mu           sync.Mutex
	catalogs     map[string]Catalog
	states       map[string]string
	agreements   map[string][]Agreement
	participants map[string]Participant
	requests     []NegotiationRequest
	deleted      []string
}

func newConnectorStub() *connectorStub {
	return &connectorStub{
		catalogs:     map[string]Catalog{},
		states:       map[string]string{},
		agreements:   map[string][]Agreement{},
		participants: map[string]Participant{},
	}
}

func (s *connectorStub) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, status int, body any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
	mux.HandleFunc("GET /api/v1/catalogs", func(w http.ResponseWriter, _ *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		out := []Catalog{}
		for _, catalog := range s.catalogs {
			out = append(out, catalog)
		}
		writeJSON(w, http.StatusOK, out)
	})
	mux.HandleFunc("GET /api/v1/catalogs/{id}", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		catalog, ok := s.catalogs[r.PathValue("id")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, catalog)
	})
	mux.HandleFunc("POST /api/v1/catalogs/{id}/data-services", func(w http.ResponseWriter, r *http.Request) {
		var service DataService
		if err := json.NewDecoder(r.Body).Decode(&service); err != nil {
			t.Errorf("decode data service: %v", err)
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		catalog := s.catalogs[r.PathValue("id")]
		catalog.Services = append(catalog.Services, service)
		s.catalogs[r.PathValue("id")] = catalog
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("PUT /api/v1/catalogs/{id}/data-services/{service}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("service") == "frozen" {
			w.WriteHeader(http.StatusLocked)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("DELETE /api/v1/catalogs/{id}/data-services/{service}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("POST /api/v1/negotiations/processes", func(w http.ResponseWriter, r *http.Request) {
		var req NegotiationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode negotiation request: %v", err)
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		s.requests = append(s.requests, req)
		s.states["urn:uuid:provider-1"] = "dspace:REQUESTED"
		writeJSON(w, http.StatusCreated, NegotiationProcess{ProviderPID: "urn:uuid:provider-1", ConsumerPID: req.ConsumerPID, State: "dspace:REQUESTED"})
	})
	mux.HandleFunc("GET /api/v1/negotiations/processes/{id}", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		state, ok := s.states[r.PathValue("id")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, NegotiationProcess{ProviderPID: r.PathValue("id"), State: state})
	})
	mux.HandleFunc("PUT /api/v1/negotiations/processes/{id}", func(w http.ResponseWriter, r *http.Request) {
		var update StateUpdate
		_ = json.NewDecoder(r.Body).Decode(&update)
		s.mu.Lock()
		defer s.mu.Unlock()
		s.states[r.PathValue("id")] = update.State
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /api/v1/negotiations/processes/{id}/agreements", func(w http.ResponseWriter, r *http.Request) {
		var in Agreement
		_ = json.NewDecoder(r.Body).Decode(&in)
		s.mu.Lock()
		defer s.mu.Unlock()
		agreement := Agreement{ID: "agreement-neg", ConsumerID: in.ConsumerID, ProviderID: in.ProviderID}
		s.agreements[r.PathValue("id")] = append(s.agreements[r.PathValue("id")], agreement)
		writeJSON(w, http.StatusCreated, agreement)
	})
	mux.HandleFunc("GET /api/v1/negotiations/processes/{id}/agreements", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		agreements, ok := s.agreements[r.PathValue("id")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, agreements)
	})
	mux.HandleFunc("POST /api/v1/agreements", func(w http.ResponseWriter, r *http.Request) {
		var in Agreement
		_ = json.NewDecoder(r.Body).Decode(&in)
		writeJSON(w, http.StatusCreated, Agreement{ID: "agreement-direct", DataServiceID: in.DataServiceID, Identity: in.Identity})
	})
	mux.HandleFunc("DELETE /api/v1/agreements/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "locked" {
			w.WriteHeader(http.StatusConflict)
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		s.deleted = append(s.deleted, r.PathValue("id"))
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /api/v1/participants", func(w http.ResponseWriter, r *http.Request) {
		var participant Participant
		_ = json.NewDecoder(r.Body).Decode(&participant)
		s.mu.Lock()
		defer s.mu.Unlock()
		s.participants[participant.ID] = participant
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("GET /api/v1/participants/{id}", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		participant, ok := s.participants[r.PathValue("id")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, participant)
	})
	return mux
}

func (s *connectorStub) snapshot(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

func newTestGateway(t *testing.T, stub *connectorStub) *Gateway {
	t.Helper()
	server := httptest.NewServer(stub.handler(t))
	t.Cleanup(server.Close)
	gateway, err := New(Config{BaseURL: server.URL}, transport.NewRESTAdapter(server.Client()))
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	return gateway
}

func TestGateway_CatalogOperations(t *testing.T) {
	stub := newConnectorStub()
	stub.catalogs["cat-1"] = Catalog{ID: "cat-1", Title: "Weather", Themes: []string{"A"}, Services: []DataService{{ID: "o1", Title: "Old"}}}
	gateway := newTestGateway(t, stub)
	ctx := context.Background()

	summaries, err := gateway.ListCatalogs(ctx)
	if err != nil {
		t.Fatalf("list catalogs: %v", err)
	}
	if len(summaries) != 1 || summaries[0].ID != "cat-1" {
		t.Fatalf("unexpected summaries: %#v", summaries)
	}
	if service, ok := summaries[0].DataService("o1"); !ok || service.Title != "Old" {
		t.Fatalf("expected listed data service, got %#v", summaries[0])
	}

	catalog, err := gateway.GetCatalog(ctx, "cat-1")
	if err != nil {
		t.Fatalf("get catalog: %v", err)
	}
	if len(catalog.Categories) != 1 || catalog.Categories[0] != "A" {
		t.Fatalf("expected themes as categories, got %#v", catalog.Categories)
	}

	if _, err := gateway.GetCatalog(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	status, err := gateway.CreateDataService(ctx, "cat-1", core.DataService{ID: "o2", Title: "New", EndpointURL: "https://x"})
	if err != nil || !status.Created() {
		t.Fatalf("create data service: %s, %v", status, err)
	}
	var stored DataService
	stub.snapshot(func() { stored = stub.catalogs["cat-1"].Services[1] })
	if stored.ID != "o2" || stored.EndpointURL != "https://x" || stored.Type != "dcat:DataService" {
		t.Fatalf("unexpected stored data service: %#v", stored)
	}

	status, err = gateway.DeleteDataService(ctx, "cat-1", "o1")
	if err != nil || !status.Successful() {
		t.Fatalf("delete data service: %s, %v", status, err)
	}

	status, err = gateway.UpdateDataService(ctx, "cat-1", "frozen", core.DataService{ID: "frozen"})
	if err != nil {
		t.Fatalf("update data service: %v", err)
	}
	if int(status) != http.StatusLocked {
		t.Fatalf("expected non-2xx answer returned as status, got %s", status)
	}
}

func TestGateway_Conformance(t *testing.T) {
	stub := newConnectorStub()
	stub.catalogs["cat-1"] = Catalog{ID: "cat-1"}
	gateway := newTestGateway(t, stub)
	ctx := context.Background()

	if err := devkit.ValidateCatalogGatewayConformance(ctx, gateway, "cat-1", "offering-9"); err != nil {
		t.Fatalf("catalog conformance: %v", err)
	}
	if err := devkit.ValidateNegotiationGatewayConformance(ctx, gateway, "did:web:consumer.example", "did:web:provider.example"); err != nil {
		t.Fatalf("negotiation conformance: %v", err)
	}
}

func TestGateway_NegotiationOperations(t *testing.T) {
	stub := newConnectorStub()
	gateway := newTestGateway(t, stub)
	ctx := context.Background()

	processID, err := gateway.CreateNegotiationRequest(ctx, core.NegotiationRequest{
		ConsumerPID: "urn:uuid:consumer-1",
		ConsumerDID: "did:web:consumer.example",
		ProviderDID: "did:web:provider.example",
		Offer: core.Offer{
			ID:          "urn:uuid:offer-1",
			Target:      "offering-1",
			Permissions: []core.Rule{{Action: core.ActionUse}},
			Obligations: []core.Rule{{Action: core.ActionCompensate, Constraints: []core.Constraint{{
				LeftOperand:      core.OperandPayAmount,
				Operator:         core.OperatorEq,
				RightOperand:     "10",
				RightOperandType: core.OperandTypeDecimal,
				Unit:             "EUR",
			}}}},
		},
	})
	if err != nil {
		t.Fatalf("create negotiation request: %v", err)
	}
	if processID != "urn:uuid:provider-1" {
		t.Fatalf("unexpected process id %q", processID)
	}
	var sent NegotiationRequest
	stub.snapshot(func() { sent = stub.requests[0] })
	if sent.Offer.Type != "odrl:Offer" || sent.Offer.Obligation[0].Constraint[0].RightOperand.Type != core.OperandTypeDecimal {
		t.Fatalf("unexpected offer on the wire: %#v", sent.Offer)
	}

	if status, err := gateway.UpdateNegotiationState(ctx, processID, core.NegotiationStateOffered); err != nil || !status.Successful() {
		t.Fatalf("update state: %s, %v", status, err)
	}
	state, err := gateway.GetNegotiationState(ctx, processID)
	if err != nil || state != core.NegotiationStateOffered {
		t.Fatalf("expected offered state, got %s, %v", state, err)
	}

	agreements, err := gateway.GetAgreementsForProcess(ctx, processID)
	if err != nil || len(agreements) != 0 {
		t.Fatalf("expected no agreements yet, got %#v, %v", agreements, err)
	}
	agreement, err := gateway.CreateAgreementAfterNegotiation(ctx, processID, "did:web:consumer.example", "did:web:provider.example")
	if err != nil || agreement.ID != "agreement-neg" || agreement.OrganizationID != "did:web:consumer.example" {
		t.Fatalf("unexpected negotiated agreement: %#v, %v", agreement, err)
	}
	agreements, err = gateway.GetAgreementsForProcess(ctx, processID)
	if err != nil || len(agreements) != 1 {
		t.Fatalf("expected one agreement for process, got %#v, %v", agreements, err)
	}

	direct, err := gateway.CreateAgreement(ctx, "did:web:org.example", "offering-2")
	if err != nil || direct.ID != "agreement-direct" || direct.DataServiceID != "offering-2" || direct.OrganizationID != "did:web:org.example" {
		t.Fatalf("unexpected direct agreement: %#v, %v", direct, err)
	}

	if deleted, err := gateway.DeleteAgreement(ctx, "agreement-neg"); err != nil || !deleted {
		t.Fatalf("expected agreement deleted, got %v, %v", deleted, err)
	}
	if deleted, err := gateway.DeleteAgreement(ctx, "locked"); err != nil || deleted {
		t.Fatalf("expected refused deletion, got %v, %v", deleted, err)
	}
}

func TestGateway_Participants(t *testing.T) {
	stub := newConnectorStub()
	gateway := newTestGateway(t, stub)
	ctx := context.Background()

	registered, err := gateway.IsParticipant(ctx, "did:web:consumer.example")
	if err != nil || registered {
		t.Fatalf("expected unknown participant, got %v, %v", registered, err)
	}
	status, err := gateway.CreateParticipant(ctx, "did:web:consumer.example", core.ParticipantRoleConsumer)
	if err != nil || !status.Created() {
		t.Fatalf("create participant: %s, %v", status, err)
	}
	var stored Participant
	stub.snapshot(func() { stored = stub.participants["did:web:consumer.example"] })
	if stored.Type != "Consumer" {
		t.Fatalf("expected consumer participant type, got %#v", stored)
	}
	registered, err = gateway.IsParticipant(ctx, "did:web:consumer.example")
	if err != nil || !registered {
		t.Fatalf("expected registered participant, got %v, %v", registered, err)
	}
}

func TestNew_ValidatesBaseURL(t *testing.T) {
	if _, err := New(Config{BaseURL: "::not a url"}, nil); err == nil {
		t.Fatalf("expected invalid base url error")
	}
	gateway, err := New(Config{}, nil)
	if err != nil {
		t.Fatalf("expected defaults to apply: %v", err)
	}
	if got := gateway.client.URL("catalogs"); got != DefaultBaseURL+"/api/v1/catalogs" {
		t.Fatalf("unexpected default url %q", got)
	}
}

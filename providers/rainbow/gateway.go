// Package rainbow talks to a Rainbow dataspace connector. It implements both
// the catalog and the negotiation gateway of the core.
package rainbow

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-contracts/core"
	"github.com/goliatone/go-contracts/transport"
)

const (
	ProviderID     = "rainbow"
	DefaultBaseURL = "http://localhost:1234"
	apiRoot        = "api/v1"
)

type Config struct {
	BaseURL string
	Timeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		BaseURL: DefaultBaseURL,
		Timeout: 10 * time.Second,
	}
}

type Gateway struct {
	client *transport.JSONClient
}

func New(cfg Config, adapter core.TransportAdapter) (*Gateway, error) {
	defaults := DefaultConfig()
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if _, err := url.ParseRequestURI(strings.TrimSpace(cfg.BaseURL)); err != nil {
		return nil, fmt.Errorf("rainbow: invalid base url %q: %w", cfg.BaseURL, err)
	}
	return &Gateway{
		client: transport.NewJSONClient(adapter, strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")+"/"+apiRoot, cfg.Timeout),
	}, nil
}

func path(segments ...string) string {
	escaped := make([]string, 0, len(segments))
	for _, segment := range segments {
		escaped = append(escaped, url.PathEscape(strings.TrimSpace(segment)))
	}
	return strings.Join(escaped, "/")
}

func (g *Gateway) ListCatalogs(ctx context.Context) ([]core.CatalogSummary, error) {
	var catalogs []Catalog
	if err := g.client.Get(ctx, "catalogs", nil, &catalogs); err != nil {
		return nil, err
	}
	summaries := make([]core.CatalogSummary, 0, len(catalogs))
	for _, catalog := range catalogs {
		mapped := toCoreCatalog(catalog)
		summaries = append(summaries, core.CatalogSummary{
			ID:           mapped.ID,
			DataServices: mapped.DataServices,
		})
	}
	return summaries, nil
}

func (g *Gateway) GetCatalog(ctx context.Context, catalogID string) (core.Catalog, error) {
	var catalog Catalog
	if err := g.client.Get(ctx, path("catalogs", catalogID), nil, &catalog); err != nil {
		return core.Catalog{}, err
	}
	mapped := toCoreCatalog(catalog)
	if mapped.ID == "" {
		mapped.ID = catalogID
	}
	return mapped, nil
}

func (g *Gateway) CreateDataService(ctx context.Context, catalogID string, service core.DataService) (core.Status, error) {
	return g.client.Call(ctx, http.MethodPost, path("catalogs", catalogID, "data-services"), nil, fromCoreDataService(service), nil)
}

func (g *Gateway) UpdateDataService(ctx context.Context, catalogID string, dataServiceID string, service core.DataService) (core.Status, error) {
	return g.client.Call(ctx, http.MethodPut, path("catalogs", catalogID, "data-services", dataServiceID), nil, fromCoreDataService(service), nil)
}

func (g *Gateway) DeleteDataService(ctx context.Context, catalogID string, dataServiceID string) (core.Status, error) {
	return g.client.Call(ctx, http.MethodDelete, path("catalogs", catalogID, "data-services", dataServiceID), nil, nil, nil)
}

// CreateNegotiationRequest opens a provider side negotiation process and
// returns its provider process id.
func (g *Gateway) CreateNegotiationRequest(ctx context.Context, req core.NegotiationRequest) (string, error) {
	var process NegotiationProcess
	status, err := g.client.Call(ctx, http.MethodPost, path("negotiations", "processes"), nil, fromCoreNegotiationRequest(req), &process)
	if err != nil {
		return "", err
	}
	if err := transport.StatusError(http.MethodPost, "negotiations/processes", status); err != nil {
		return "", err
	}
	return strings.TrimSpace(process.ProviderPID), nil
}

func (g *Gateway) UpdateNegotiationState(ctx context.Context, processID string, state core.NegotiationState) (core.Status, error) {
	return g.client.Call(ctx, http.MethodPut, path("negotiations", "processes", processID), nil, StateUpdate{State: state.String()}, nil)
}

func (g *Gateway) GetNegotiationState(ctx context.Context, processID string) (core.NegotiationState, error) {
	var process NegotiationProcess
	if err := g.client.Get(ctx, path("negotiations", "processes", processID), nil, &process); err != nil {
		return core.NegotiationStateNone, err
	}
	return core.ParseNegotiationState(process.State)
}

// CreateAgreement grants organizationID access to the offering without a
// preceding negotiation.
func (g *Gateway) CreateAgreement(ctx context.Context, organizationID string, offeringID string) (core.Agreement, error) {
	var agreement Agreement
	status, err := g.client.Call(ctx, http.MethodPost, "agreements", nil, Agreement{
		DataServiceID: offeringID,
		Identity:      organizationID,
	}, &agreement)
	if err != nil {
		return core.Agreement{}, err
	}
	if err := transport.StatusError(http.MethodPost, "agreements", status); err != nil {
		return core.Agreement{}, err
	}
	mapped := toCoreAgreement(agreement)
	if mapped.DataServiceID == "" {
		mapped.DataServiceID = offeringID
	}
	if mapped.OrganizationID == "" {
		mapped.OrganizationID = organizationID
	}
	return mapped, nil
}

func (g *Gateway) CreateAgreementAfterNegotiation(ctx context.Context, processID string, consumerDID string, providerDID string) (core.Agreement, error) {
	var agreement Agreement
	target := path("negotiations", "processes", processID, "agreements")
	status, err := g.client.Call(ctx, http.MethodPost, target, nil, Agreement{
		ConsumerID: consumerDID,
		ProviderID: providerDID,
	}, &agreement)
	if err != nil {
		return core.Agreement{}, err
	}
	if err := transport.StatusError(http.MethodPost, target, status); err != nil {
		return core.Agreement{}, err
	}
	return toCoreAgreement(agreement), nil
}

func (g *Gateway) GetAgreementsForProcess(ctx context.Context, processID string) ([]core.Agreement, error) {
	var agreements []Agreement
	err := g.client.Get(ctx, path("negotiations", "processes", processID, "agreements"), nil, &agreements)
	if transport.IsNotFound(err) {
		return []core.Agreement{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]core.Agreement, 0, len(agreements))
	for _, agreement := range agreements {
		out = append(out, toCoreAgreement(agreement))
	}
	return out, nil
}

// DeleteAgreement reports false when the connector answered outside 2xx.
func (g *Gateway) DeleteAgreement(ctx context.Context, agreementID string) (bool, error) {
	status, err := g.client.Call(ctx, http.MethodDelete, path("agreements", agreementID), nil, nil, nil)
	if err != nil {
		return false, err
	}
	return status.Successful(), nil
}

func (g *Gateway) CreateParticipant(ctx context.Context, did string, role core.ParticipantRole) (core.Status, error) {
	return g.client.Call(ctx, http.MethodPost, "participants", nil, Participant{ID: did, Type: string(role)}, nil)
}

func (g *Gateway) IsParticipant(ctx context.Context, did string) (bool, error) {
	var participant Participant
	err := g.client.Get(ctx, path("participants", did), nil, &participant)
	if transport.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

var (
	_ core.CatalogGateway     = (*Gateway)(nil)
	_ core.NegotiationGateway = (*Gateway)(nil)
)

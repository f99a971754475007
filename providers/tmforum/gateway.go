// Package tmforum reads offerings, quotes and orders from TMForum Open APIs
// and writes back the negotiation references the core produces.
package tmforum

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
	ProviderID     = "tmforum"
	DefaultBaseURL = "http://localhost:8632"

	catalogAPI  = "productCatalogManagement/v4"
	quoteAPI    = "quote/v4"
	orderingAPI = "productOrderingManagement/v4"
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
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("tmforum: invalid base url %q: %w", cfg.BaseURL, err)
	}
	return &Gateway{client: transport.NewJSONClient(adapter, cfg.BaseURL, cfg.Timeout)}, nil
}

func resource(api string, kind string, id string) string {
	return api + "/" + kind + "/" + url.PathEscape(strings.TrimSpace(id))
}

func (g *Gateway) GetOffering(ctx context.Context, offeringID string) (core.Offering, error) {
	var offering ProductOffering
	if err := g.client.Get(ctx, resource(catalogAPI, "productOffering", offeringID), nil, &offering); err != nil {
		return core.Offering{}, err
	}
	return ToOffering(offering), nil
}

func (g *Gateway) GetSpecification(ctx context.Context, specificationID string) (core.Specification, error) {
	var specification ProductSpecification
	if err := g.client.Get(ctx, resource(catalogAPI, "productSpecification", specificationID), nil, &specification); err != nil {
		return core.Specification{}, err
	}
	return ToSpecification(specification), nil
}

func (g *Gateway) GetPrice(ctx context.Context, priceID string) (core.Price, error) {
	var price ProductOfferingPrice
	if err := g.client.Get(ctx, resource(catalogAPI, "productOfferingPrice", priceID), nil, &price); err != nil {
		return core.Price{}, err
	}
	return ToPrice(price), nil
}

func (g *Gateway) GetQuote(ctx context.Context, quoteID string) (core.Quote, error) {
	var quote Quote
	if err := g.client.Get(ctx, resource(quoteAPI, "quote", quoteID), nil, &quote); err != nil {
		return core.Quote{}, err
	}
	return ToQuote(quote), nil
}

// UpdateQuoteExternalID records the negotiation process on the quote.
func (g *Gateway) UpdateQuoteExternalID(ctx context.Context, quoteID string, processID string) (core.Status, error) {
	return g.client.Call(ctx, http.MethodPatch, resource(quoteAPI, "quote", quoteID), nil, quoteExternalIDPatch{
		ExternalID: processID,
	}, nil)
}

// PatchOrderAgreements replaces the agreement list of the order.
func (g *Gateway) PatchOrderAgreements(ctx context.Context, orderID string, agreementIDs []string) (core.Status, error) {
	refs := make([]Ref, 0, len(agreementIDs))
	for _, id := range agreementIDs {
		if id = strings.TrimSpace(id); id != "" {
			refs = append(refs, Ref{ID: id})
		}
	}
	return g.client.Call(ctx, http.MethodPatch, resource(orderingAPI, "productOrder", orderID), nil, orderAgreementPatch{
		Agreement: refs,
	}, nil)
}

var _ core.CommerceGateway = (*Gateway)(nil)

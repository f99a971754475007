package contracts

import (
	"net/http"

	"github.com/goliatone/go-contracts/core"
	"github.com/goliatone/go-contracts/providers/rainbow"
	"github.com/goliatone/go-contracts/providers/tmforum"
	"github.com/goliatone/go-contracts/transport"
)

// RainbowGateway serves both the catalog and the negotiation gateway.
func RainbowGateway(cfg rainbow.Config, adapter core.TransportAdapter) (*rainbow.Gateway, error) {
	return rainbow.New(cfg, adapter)
}

func TMForumGateway(cfg tmforum.Config, adapter core.TransportAdapter) (*tmforum.Gateway, error) {
	return tmforum.New(cfg, adapter)
}

// RESTTransport is the HTTP adapter both gateways use in production. A nil
// client falls back to a zero http.Client.
func RESTTransport(client *http.Client, opts ...transport.RESTOption) *transport.RESTAdapter {
	if client == nil {
		client = &http.Client{}
	}
	return transport.NewRESTAdapter(client, opts...)
}

// GatewayOptions wires the downstream gateways into a service.
func GatewayOptions(connector *rainbow.Gateway, commerce *tmforum.Gateway) []Option {
	opts := make([]Option, 0, 3)
	if connector != nil {
		opts = append(opts, WithCatalogGateway(connector), WithNegotiationGateway(connector))
	}
	if commerce != nil {
		opts = append(opts, WithCommerceGateway(commerce))
	}
	return opts
}

// Package core contains the dataspace synchronization domain: the catalog
// membership reconciler, the contract negotiation state machine, and the
// parallel aggregator both of them use to fan out remote calls. Remote systems
// are reached only through the gateway contracts declared here; transport and
// provider specific code lives in lower-level packages that depend on core.
package core

package contracts

import "github.com/goliatone/go-contracts/core"

type Config = core.Config

type OrganizationConfig = core.OrganizationConfig
type FeatureConfig = core.FeatureConfig
type ParallelismConfig = core.ParallelismConfig

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type CatalogGateway = core.CatalogGateway
type NegotiationGateway = core.NegotiationGateway
type CommerceGateway = core.CommerceGateway
type AgreementCleanupScheduler = core.AgreementCleanupScheduler
type MetricsRecorder = core.MetricsRecorder

type EventKind = core.EventKind
type EventOutcome = core.EventOutcome
type TransitionResult = core.TransitionResult

var (
	WithLogger             = core.WithLogger
	WithLoggerProvider     = core.WithLoggerProvider
	WithMetricsRecorder    = core.WithMetricsRecorder
	WithErrorMapper        = core.WithErrorMapper
	WithConfigProvider     = core.WithConfigProvider
	WithOptionsResolver    = core.WithOptionsResolver
	WithCatalogGateway     = core.WithCatalogGateway
	WithNegotiationGateway = core.WithNegotiationGateway
	WithCommerceGateway    = core.WithCommerceGateway
	WithCleanupScheduler   = core.WithCleanupScheduler
	WithProcessIDGenerator = core.WithProcessIDGenerator
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}

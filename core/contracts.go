package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// CatalogGateway reaches the dataspace catalog that lists data services.
type CatalogGateway interface {
	ListCatalogs(ctx context.Context) ([]CatalogSummary, error)
	// GetCatalog returns ErrNotFound when the catalog does not exist.
	GetCatalog(ctx context.Context, catalogID string) (Catalog, error)
	CreateDataService(ctx context.Context, catalogID string, service DataService) (Status, error)
	UpdateDataService(ctx context.Context, catalogID string, dataServiceID string, service DataService) (Status, error)
	DeleteDataService(ctx context.Context, catalogID string, dataServiceID string) (Status, error)
}

// NegotiationGateway reaches the contract negotiation provider.
type NegotiationGateway interface {
	CreateNegotiationRequest(ctx context.Context, req NegotiationRequest) (string, error)
	UpdateNegotiationState(ctx context.Context, processID string, state NegotiationState) (Status, error)
	GetNegotiationState(ctx context.Context, processID string) (NegotiationState, error)
	CreateAgreement(ctx context.Context, organizationID string, offeringID string) (Agreement, error)
	CreateAgreementAfterNegotiation(ctx context.Context, processID string, consumerDID string, providerDID string) (Agreement, error)
	GetAgreementsForProcess(ctx context.Context, processID string) ([]Agreement, error)
	DeleteAgreement(ctx context.Context, agreementID string) (bool, error)
	CreateParticipant(ctx context.Context, did string, role ParticipantRole) (Status, error)
	IsParticipant(ctx context.Context, did string) (bool, error)
}

// CommerceGateway reaches the commerce system that owns offerings, quotes and
// orders.
type CommerceGateway interface {
	GetOffering(ctx context.Context, offeringID string) (Offering, error)
	GetSpecification(ctx context.Context, specificationID string) (Specification, error)
	GetQuote(ctx context.Context, quoteID string) (Quote, error)
	GetPrice(ctx context.Context, priceID string) (Price, error)
	PatchOrderAgreements(ctx context.Context, orderID string, agreementIDs []string) (Status, error)
	UpdateQuoteExternalID(ctx context.Context, quoteID string, processID string) (Status, error)
}

// AgreementCleanupScheduler receives agreement deletions that failed during
// negotiation termination so they can be retried out of band.
type AgreementCleanupScheduler interface {
	ScheduleAgreementDeletion(ctx context.Context, req AgreementCleanupRequest) error
}

type AgreementCleanupRequest struct {
	AgreementID string
	ProcessID   string
	Reason      string
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type TransportRequest struct {
	Method      string
	URL         string
	Headers     map[string]string
	Query       map[string]string
	Body        []byte
	Metadata    map[string]any
	Timeout     time.Duration
	Idempotency string

	MaxResponseBodyBytes int64
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

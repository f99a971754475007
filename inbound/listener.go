package inbound

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/goliatone/go-contracts/core"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const (
	EventPath  = "/listener/event"
	HealthPath = "/health"

	defaultServiceName = "contract-management"
)

type EventResponse struct {
	Status   core.OutcomeStatus `json:"status"`
	Entity   string             `json:"entity,omitempty"`
	EntityID string             `json:"entityId,omitempty"`
	Kind     core.EventKind     `json:"kind,omitempty"`
	Reason   string             `json:"reason,omitempty"`
}

type ErrorBody struct {
	Code     string         `json:"code"`
	Message  string         `json:"message"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Listener exposes the notification endpoint over gin.
type Listener struct {
	dispatcher  *Dispatcher
	logger      core.Logger
	errorMapper core.ErrorMapper
	serviceName string
}

type ListenerOption func(*Listener)

func WithListenerLogger(logger core.Logger) ListenerOption {
	return func(l *Listener) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func WithErrorMapper(mapper core.ErrorMapper) ListenerOption {
	return func(l *Listener) {
		if mapper != nil {
			l.errorMapper = mapper
		}
	}
}

// WithServiceName names the server spans recorded for each request.
func WithServiceName(name string) ListenerOption {
	return func(l *Listener) {
		if strings.TrimSpace(name) != "" {
			l.serviceName = strings.TrimSpace(name)
		}
	}
}

func NewListener(dispatcher *Dispatcher, opts ...ListenerOption) *Listener {
	listener := &Listener{
		dispatcher:  dispatcher,
		errorMapper: core.MapError,
		serviceName: defaultServiceName,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(listener)
		}
	}
	if listener.logger == nil {
		listener.logger = glog.Nop()
	}
	return listener
}

// Register mounts the listener routes on router.
func (l *Listener) Register(router gin.IRouter) {
	router.GET(HealthPath, l.Health)
	router.POST(EventPath, l.HandleEvent)
}

// Engine builds a standalone gin engine with recovery and tracing.
func (l *Listener) Engine() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), otelgin.Middleware(l.serviceName))
	l.Register(engine)
	return engine
}

func (l *Listener) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (l *Listener) HandleEvent(c *gin.Context) {
	var notification Notification
	if err := c.ShouldBindJSON(&notification); err != nil {
		l.respondError(c, notification, inboundWrapError(
			err,
			goerrors.CategoryBadInput,
			"inbound: malformed notification",
			http.StatusBadRequest,
			core.ContractErrorValidation,
			nil,
		))
		return
	}

	outcome, err := l.dispatcher.Dispatch(c.Request.Context(), notification)
	if err != nil {
		l.respondError(c, notification, err)
		return
	}
	l.logger.Info("notification handled",
		"event_id", notification.EventID,
		"event_type", notification.EventType,
		"status", string(outcome.Status),
		"entity_id", outcome.EntityID,
	)
	c.JSON(http.StatusOK, EventResponse{
		Status:   outcome.Status,
		Entity:   outcome.Entity,
		EntityID: outcome.EntityID,
		Kind:     outcome.Kind,
		Reason:   outcome.Reason,
	})
}

func (l *Listener) respondError(c *gin.Context, notification Notification, err error) {
	mapped := l.errorMapper(err)
	if mapped == nil {
		mapped = core.MapError(err)
	}
	status := mapped.Code
	if status < http.StatusBadRequest {
		status = http.StatusInternalServerError
	}
	log := l.logger.Warn
	if status >= http.StatusInternalServerError {
		log = l.logger.Error
	}
	log("notification failed",
		"event_id", notification.EventID,
		"event_type", notification.EventType,
		"status_code", status,
		"error", err.Error(),
	)
	c.JSON(status, ErrorResponse{Error: ErrorBody{
		Code:     mapped.TextCode,
		Message:  mapped.Message,
		Metadata: mapped.Metadata,
	}})
}

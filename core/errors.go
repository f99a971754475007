package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ContractErrorValidation       = "CONTRACT_VALIDATION_FAILED"
	ContractErrorUnsupportedValue = "CONTRACT_UNSUPPORTED_VALUE"
	ContractErrorDownstream       = "CONTRACT_DOWNSTREAM_FAILURE"
	ContractErrorNegotiationState = "CONTRACT_NEGOTIATION_STATE_CONFLICT"
	ContractErrorAggregate        = "CONTRACT_AGGREGATE_FAILURE"
	ContractErrorNotFound         = "CONTRACT_NOT_FOUND"
	ContractErrorInternal         = "CONTRACT_INTERNAL_ERROR"
)

func contractError(
	message string,
	category goerrors.Category,
	code int,
	textCode string,
	metadata map[string]any,
) *goerrors.Error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func contractWrapError(
	source error,
	category goerrors.Category,
	message string,
	code int,
	textCode string,
	metadata map[string]any,
) *goerrors.Error {
	if source == nil {
		return contractError(message, category, code, textCode, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// NewValidationError reports a malformed or incomplete event payload. It is
// raised before any remote call is issued.
func NewValidationError(field string, message string) error {
	return goerrors.NewValidation("core: validation failed: "+message, goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(ContractErrorValidation).
		WithSeverity(goerrors.SeverityError)
}

func NewUnsupportedValueError(field string, value string) error {
	return contractError(
		fmt.Sprintf("core: unsupported %s %q", field, value),
		goerrors.CategoryBadInput,
		http.StatusBadRequest,
		ContractErrorUnsupportedValue,
		map[string]any{"field": field, "value": value},
	)
}

// NewDownstreamError wraps a failed remote call. Side effects issued before
// the failure may already have been applied.
func NewDownstreamError(source error, operation string, metadata map[string]any) error {
	fields := cloneFields(metadata)
	fields["operation"] = operation
	return contractWrapError(
		source,
		goerrors.CategoryExternal,
		fmt.Sprintf("core: remote %s failed", operation),
		http.StatusBadGateway,
		ContractErrorDownstream,
		fields,
	)
}

// NewUnexpectedStatusError reports a remote write that answered with a status
// outside the success range for its operation kind.
func NewUnexpectedStatusError(operation string, status Status, metadata map[string]any) error {
	fields := cloneFields(metadata)
	fields["operation"] = operation
	fields["status_code"] = int(status)
	return contractError(
		fmt.Sprintf("core: remote %s answered %s", operation, status),
		goerrors.CategoryExternal,
		http.StatusBadGateway,
		ContractErrorDownstream,
		fields,
	)
}

func NewNegotiationStateError(current NegotiationState, expected ...NegotiationState) error {
	names := make([]string, 0, len(expected))
	for _, state := range expected {
		names = append(names, state.String())
	}
	return contractError(
		fmt.Sprintf("core: negotiation is in state %s, expected one of [%s]", current, strings.Join(names, ", ")),
		goerrors.CategoryConflict,
		http.StatusConflict,
		ContractErrorNegotiationState,
		map[string]any{"state": current.String(), "expected": names},
	)
}

// NewQuoteStateError is the negotiation conflict raised when the commercial
// quote itself is in a state that cannot take part in the transition.
func NewQuoteStateError(quoteID string, state QuoteState, expected ...QuoteState) error {
	names := make([]string, 0, len(expected))
	for _, candidate := range expected {
		names = append(names, string(candidate))
	}
	return contractError(
		fmt.Sprintf("core: quote %q is in state %q, expected one of [%s]", quoteID, state, strings.Join(names, ", ")),
		goerrors.CategoryConflict,
		http.StatusConflict,
		ContractErrorNegotiationState,
		map[string]any{"quote_id": quoteID, "state": string(state), "expected": names},
	)
}

func IsValidationError(err error) bool {
	return hasTextCode(err, ContractErrorValidation)
}

func IsUnsupportedValueError(err error) bool {
	return hasTextCode(err, ContractErrorUnsupportedValue)
}

func IsDownstreamError(err error) bool {
	return hasTextCode(err, ContractErrorDownstream)
}

func IsNegotiationStateError(err error) bool {
	return hasTextCode(err, ContractErrorNegotiationState)
}

func hasTextCode(err error, textCode string) bool {
	if err == nil {
		return false
	}
	if _, ok := AsAggregateError(err); ok {
		return textCode == ContractErrorAggregate
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == textCode
}

// MapError turns any error produced by the core into the envelope the
// collaborator layer renders. Aggregate failures are checked first so their
// wrapped per-operation errors do not leak out as the top-level category.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if aggregate, ok := AsAggregateError(err); ok {
		return aggregate.ToServiceError()
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureContractErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return contractWrapError(err, goerrors.CategoryNotFound, err.Error(), http.StatusNotFound, ContractErrorNotFound, nil)
	case errors.Is(err, ErrInvalidNegotiationStateTransition):
		return contractWrapError(err, goerrors.CategoryConflict, err.Error(), http.StatusConflict, ContractErrorNegotiationState, nil)
	case errors.Is(err, ErrMultipleQuotesNotSupported), errors.Is(err, ErrOfferingSpecificationReferenceEmpty):
		return contractWrapError(err, goerrors.CategoryValidation, err.Error(), http.StatusBadRequest, ContractErrorValidation, nil)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureContractErrorEnvelope(mapped)
}

func ensureContractErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = contractHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultContractTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultContractTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryValidation:
		return ContractErrorValidation
	case goerrors.CategoryBadInput:
		return ContractErrorUnsupportedValue
	case goerrors.CategoryExternal:
		return ContractErrorDownstream
	case goerrors.CategoryConflict:
		return ContractErrorNegotiationState
	case goerrors.CategoryNotFound:
		return ContractErrorNotFound
	default:
		return ContractErrorInternal
	}
}

func contractHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

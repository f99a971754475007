package core

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestMapError_AssignsStableCodes(t *testing.T) {
	aggregate := Aggregate(context.Background(), []Operation[int]{
		func(context.Context) (int, error) { return 0, stderrors.New("boom") },
	}).ErrFor("create agreements")

	cases := []struct {
		name     string
		err      error
		code     int
		textCode string
	}{
		{name: "validation", err: NewValidationError("quote.id", "quote id is required"), code: http.StatusBadRequest, textCode: ContractErrorValidation},
		{name: "unsupported", err: NewUnsupportedValueError("price type", "usage"), code: http.StatusBadRequest, textCode: ContractErrorUnsupportedValue},
		{name: "downstream", err: NewDownstreamError(errRemoteUnavailable, "get quote", nil), code: http.StatusBadGateway, textCode: ContractErrorDownstream},
		{name: "unexpected status", err: NewUnexpectedStatusError("patch order", http.StatusInternalServerError, nil), code: http.StatusBadGateway, textCode: ContractErrorDownstream},
		{name: "negotiation state", err: NewNegotiationStateError(NegotiationStateOffered, NegotiationStateVerified), code: http.StatusConflict, textCode: ContractErrorNegotiationState},
		{name: "quote state", err: NewQuoteStateError("q1", QuoteStateRejected, QuoteStateAccepted), code: http.StatusConflict, textCode: ContractErrorNegotiationState},
		{name: "aggregate", err: aggregate, code: http.StatusBadGateway, textCode: ContractErrorAggregate},
		{name: "not found", err: fmt.Errorf("lookup: %w", ErrNotFound), code: http.StatusNotFound, textCode: ContractErrorNotFound},
		{name: "transition", err: ValidateNegotiationTransition(NegotiationStateRequested, NegotiationStateFinalized), code: http.StatusConflict, textCode: ContractErrorNegotiationState},
		{name: "multiple quotes", err: ErrMultipleQuotesNotSupported, code: http.StatusBadRequest, textCode: ContractErrorValidation},
	}
	for _, tc := range cases {
		mapped := MapError(tc.err)
		if mapped == nil {
			t.Fatalf("%s: expected mapped error", tc.name)
		}
		if mapped.Code != tc.code {
			t.Fatalf("%s: expected code %d, got %d", tc.name, tc.code, mapped.Code)
		}
		if mapped.TextCode != tc.textCode {
			t.Fatalf("%s: expected text code %q, got %q", tc.name, tc.textCode, mapped.TextCode)
		}
	}
}

func TestMapError_UnknownErrorsBecomeInternal(t *testing.T) {
	mapped := MapError(stderrors.New("unexpected"))
	if mapped == nil {
		t.Fatalf("expected mapped error")
	}
	if mapped.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", mapped.Code)
	}
	if MapError(nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}

func TestErrorPredicates_SeeThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("handling quote: %w", NewNegotiationStateError(NegotiationStateAgreed, NegotiationStateOffered))
	if !IsNegotiationStateError(wrapped) {
		t.Fatalf("expected wrapped negotiation state error to be recognised")
	}
	if IsValidationError(wrapped) || IsDownstreamError(wrapped) {
		t.Fatalf("expected predicates to be exclusive")
	}
	if IsDownstreamError(stderrors.New("plain")) {
		t.Fatalf("expected plain errors not to match")
	}
}

func TestNewDownstreamError_KeepsSourceAndOperation(t *testing.T) {
	err := NewDownstreamError(errRemoteUnavailable, "delete agreement", map[string]any{"agreement_id": "a1"})
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected go-errors type, got %T", err)
	}
	if richErr.Category != goerrors.CategoryExternal {
		t.Fatalf("expected external category, got %q", richErr.Category)
	}
	if richErr.Metadata["operation"] != "delete agreement" || richErr.Metadata["agreement_id"] != "a1" {
		t.Fatalf("unexpected metadata: %#v", richErr.Metadata)
	}
	if !stderrors.Is(err, errRemoteUnavailable) {
		t.Fatalf("expected source error to stay reachable")
	}
}

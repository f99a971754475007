package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/sync/errgroup"
)

// Operation is one independently issued remote call.
type Operation[T any] func(ctx context.Context) (T, error)

type Outcome[T any] struct {
	Index int
	Key   string
	Value T
	Err   error
}

// AggregateResult holds every operation outcome. Values keeps input order and
// has one slot per operation; slots of failed operations hold the zero value.
type AggregateResult[T any] struct {
	Values    []T
	Successes []Outcome[T]
	Failures  []Outcome[T]
}

func (r AggregateResult[T]) AllSucceeded() bool {
	return len(r.Failures) == 0
}

func (r AggregateResult[T]) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	failures := make([]OperationFailure, 0, len(r.Failures))
	for _, failure := range r.Failures {
		failures = append(failures, OperationFailure{
			Index: failure.Index,
			Key:   failure.Key,
			Err:   failure.Err,
		})
	}
	return &AggregateError{
		Attempted: len(r.Values),
		Failures:  failures,
	}
}

// ErrFor is Err with the failed operation named for diagnostics.
func (r AggregateResult[T]) ErrFor(operation string) error {
	err := r.Err()
	if aggregate, ok := err.(*AggregateError); ok {
		aggregate.Operation = operation
	}
	return err
}

type AggregateOption func(*aggregateConfig)

type aggregateConfig struct {
	maxParallelism int
	keys           []string
}

// WithMaxParallelism bounds the number of in-flight operations. Every
// operation still runs; the bound only delays when it starts.
func WithMaxParallelism(limit int) AggregateOption {
	return func(c *aggregateConfig) {
		c.maxParallelism = limit
	}
}

// WithKeys labels operations by position for diagnostics.
func WithKeys(keys ...string) AggregateOption {
	return func(c *aggregateConfig) {
		c.keys = append([]string(nil), keys...)
	}
}

// Aggregate runs all operations concurrently and waits for every one of them.
// A failing operation never cancels its siblings and nothing that succeeded is
// rolled back.
func Aggregate[T any](ctx context.Context, ops []Operation[T], opts ...AggregateOption) AggregateResult[T] {
	cfg := aggregateConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	outcomes := make([]Outcome[T], len(ops))
	var group errgroup.Group
	if cfg.maxParallelism > 0 {
		group.SetLimit(cfg.maxParallelism)
	}
	for i, op := range ops {
		outcomes[i] = Outcome[T]{Index: i, Key: keyAt(cfg.keys, i)}
		group.Go(func() error {
			value, err := invokeOperation(ctx, op)
			outcomes[i].Value = value
			outcomes[i].Err = err
			return nil
		})
	}
	_ = group.Wait()

	result := AggregateResult[T]{
		Values:    make([]T, len(ops)),
		Successes: make([]Outcome[T], 0, len(ops)),
		Failures:  []Outcome[T]{},
	}
	for i, outcome := range outcomes {
		result.Values[i] = outcome.Value
		if outcome.Err != nil {
			result.Failures = append(result.Failures, outcome)
			continue
		}
		result.Successes = append(result.Successes, outcome)
	}
	return result
}

func invokeOperation[T any](ctx context.Context, op Operation[T]) (value T, err error) {
	if op == nil {
		return value, fmt.Errorf("core: operation is nil")
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			var zero T
			value = zero
			err = contractError(
				fmt.Sprintf("core: operation panicked: %v", recovered),
				goerrors.CategoryInternal,
				http.StatusInternalServerError,
				ContractErrorInternal,
				nil,
			)
		}
	}()
	return op(ctx)
}

// StatusAccept decides whether a remote status counts as success for the
// operation kind that produced it.
type StatusAccept func(Status) bool

func AcceptCreated(status Status) bool { return status.Created() }

func AcceptSuccessful(status Status) bool { return status.Successful() }

// AllStatusesSucceeded runs every status producing operation and reports
// whether each one answered with an accepted status. Operations answering with
// a rejected status are recorded as failures in the returned result.
func AllStatusesSucceeded(
	ctx context.Context,
	ops []Operation[Status],
	accept StatusAccept,
	opts ...AggregateOption,
) (bool, AggregateResult[Status]) {
	if accept == nil {
		accept = AcceptSuccessful
	}
	checked := make([]Operation[Status], len(ops))
	for i, op := range ops {
		checked[i] = RequireStatus(op, "status", accept)
	}
	result := Aggregate(ctx, checked, opts...)
	return result.AllSucceeded(), result
}

// RequireStatus converts a rejected status into a downstream error so it
// surfaces as a failure of that single operation.
func RequireStatus(op Operation[Status], operation string, accept StatusAccept) Operation[Status] {
	return func(ctx context.Context) (Status, error) {
		if op == nil {
			return 0, fmt.Errorf("core: operation is nil")
		}
		status, err := op(ctx)
		if err != nil {
			return status, err
		}
		if !accept(status) {
			return status, NewUnexpectedStatusError(operation, status, nil)
		}
		return status, nil
	}
}

type OperationFailure struct {
	Index int
	Key   string
	Err   error
}

// AggregateError reports that at least one fanned-out operation failed. Some
// sibling operations may have applied their side effects.
type AggregateError struct {
	Operation string
	Attempted int
	Failures  []OperationFailure
}

func (e *AggregateError) Error() string {
	if e == nil {
		return "core: aggregate operation failed"
	}
	parts := make([]string, 0, len(e.Failures))
	for _, failure := range e.Failures {
		label := failure.Key
		if label == "" {
			label = fmt.Sprintf("#%d", failure.Index)
		}
		parts = append(parts, fmt.Sprintf("%s: %v", label, failure.Err))
	}
	operation := strings.TrimSpace(e.Operation)
	if operation == "" {
		operation = "aggregate operation"
	}
	return fmt.Sprintf(
		"core: %s failed for %d of %d operations: %s",
		operation,
		len(e.Failures),
		e.Attempted,
		strings.Join(parts, "; "),
	)
}

func (e *AggregateError) Unwrap() []error {
	if e == nil {
		return nil
	}
	errs := make([]error, 0, len(e.Failures))
	for _, failure := range e.Failures {
		if failure.Err != nil {
			errs = append(errs, failure.Err)
		}
	}
	return errs
}

func (e *AggregateError) ToServiceError() *goerrors.Error {
	failures := make([]map[string]any, 0, len(e.Failures))
	for _, failure := range e.Failures {
		entry := map[string]any{"index": failure.Index}
		if failure.Key != "" {
			entry["key"] = failure.Key
		}
		if failure.Err != nil {
			entry["error"] = failure.Err.Error()
		}
		failures = append(failures, entry)
	}
	return contractWrapError(
		e,
		goerrors.CategoryExternal,
		e.Error(),
		http.StatusBadGateway,
		ContractErrorAggregate,
		map[string]any{
			"operation": e.Operation,
			"attempted": e.Attempted,
			"failed":    len(e.Failures),
			"failures":  failures,
		},
	)
}

func AsAggregateError(err error) (*AggregateError, bool) {
	var aggregate *AggregateError
	if errors.As(err, &aggregate) && aggregate != nil {
		return aggregate, true
	}
	return nil, false
}

func keyAt(keys []string, index int) string {
	if index < len(keys) {
		return keys[index]
	}
	return ""
}

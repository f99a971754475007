package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// MembershipPlan is the partition of catalog ids an offering has to be
// created in, updated in or removed from.
type MembershipPlan struct {
	Create []string
	Update []string
	Delete []string
}

func (p MembershipPlan) Empty() bool {
	return len(p.Create) == 0 && len(p.Update) == 0 && len(p.Delete) == 0
}

// PlanMembership partitions catalog ids into target minus current, target
// intersected with current and current minus target. Outputs are sorted and
// free of duplicates.
func PlanMembership(target []string, current []string) MembershipPlan {
	targetSet := idSet(target)
	currentSet := idSet(current)
	plan := MembershipPlan{
		Create: []string{},
		Update: []string{},
		Delete: []string{},
	}
	for id := range targetSet {
		if _, listed := currentSet[id]; listed {
			plan.Update = append(plan.Update, id)
			continue
		}
		plan.Create = append(plan.Create, id)
	}
	for id := range currentSet {
		if _, wanted := targetSet[id]; !wanted {
			plan.Delete = append(plan.Delete, id)
		}
	}
	sort.Strings(plan.Create)
	sort.Strings(plan.Update)
	sort.Strings(plan.Delete)
	return plan
}

// ReconcileResult reports the membership changes one reconciliation issued.
// Update only lists catalogs whose listed data service differed from the
// desired one; catalogs that already matched are in Unchanged.
type ReconcileResult struct {
	OfferingID string
	Plan       MembershipPlan
	Unchanged  []string
	// SoftMisses are catalogs whose detail could not be fetched. They are
	// treated as not targeted.
	SoftMisses []OperationFailure
}

// CatalogReconciler keeps the remote catalog membership of an offering in line
// with the offering's categories.
type CatalogReconciler struct {
	catalogs      CatalogGateway
	commerce      CommerceGateway
	logger        Logger
	aggregateOpts []AggregateOption
}

type ReconcilerOption func(*CatalogReconciler)

func WithReconcilerLogger(logger Logger) ReconcilerOption {
	return func(r *CatalogReconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithReconcilerParallelism(limit int) ReconcilerOption {
	return func(r *CatalogReconciler) {
		r.aggregateOpts = append(r.aggregateOpts, WithMaxParallelism(limit))
	}
}

func NewCatalogReconciler(catalogs CatalogGateway, commerce CommerceGateway, opts ...ReconcilerOption) (*CatalogReconciler, error) {
	if catalogs == nil {
		return nil, fmt.Errorf("core: catalog gateway is required")
	}
	if commerce == nil {
		return nil, fmt.Errorf("core: commerce gateway is required")
	}
	reconciler := &CatalogReconciler{
		catalogs: catalogs,
		commerce: commerce,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(reconciler)
		}
	}
	if reconciler.logger == nil {
		reconciler.logger = defaultLogger("catalog_reconciler")
	}
	return reconciler, nil
}

// Reconcile recomputes the catalogs the offering belongs in and applies the
// difference. Creates, updates and deletes run concurrently and are never
// rolled back; the returned result is populated even when err is not nil.
func (r *CatalogReconciler) Reconcile(ctx context.Context, offering Offering) (ReconcileResult, error) {
	offeringID := strings.TrimSpace(offering.ID)
	if offeringID == "" {
		return ReconcileResult{}, NewValidationError("productOffering.id", "offering id is required")
	}
	if strings.TrimSpace(offering.SpecificationID) == "" {
		return ReconcileResult{}, NewValidationError("productOffering.productSpecification", ErrOfferingSpecificationReferenceEmpty.Error())
	}

	result := ReconcileResult{OfferingID: offeringID}
	summaries, err := r.catalogs.ListCatalogs(ctx)
	if err != nil {
		return result, NewDownstreamError(err, "list catalogs", map[string]any{"offering_id": offeringID})
	}
	current, listed := currentMembership(summaries, offeringID)
	target, softMisses := r.targetCatalogs(ctx, summaries, offering.CategoryIDs)
	result.SoftMisses = softMisses

	plan := PlanMembership(target, current)
	var desired DataService
	if len(plan.Create) > 0 || len(plan.Update) > 0 {
		desired, err = r.buildDataService(ctx, offering)
		if err != nil {
			// Deletes do not need the specification and still go out.
			result.Plan = MembershipPlan{Create: []string{}, Update: []string{}, Delete: plan.Delete}
			return result, withFailure(r.apply(ctx, offeringID, result.Plan, DataService{}), "specification", err)
		}
		changed := make([]string, 0, len(plan.Update))
		for _, catalogID := range plan.Update {
			if listed[catalogID].Equal(desired) {
				result.Unchanged = append(result.Unchanged, catalogID)
				continue
			}
			changed = append(changed, catalogID)
		}
		plan.Update = changed
	}
	result.Plan = plan

	return result, r.apply(ctx, offeringID, plan, desired)
}

// Retract removes the offering's data service from every catalog currently
// listing it, regardless of categories.
func (r *CatalogReconciler) Retract(ctx context.Context, offeringID string) (ReconcileResult, error) {
	offeringID = strings.TrimSpace(offeringID)
	if offeringID == "" {
		return ReconcileResult{}, NewValidationError("productOffering.id", "offering id is required")
	}
	result := ReconcileResult{OfferingID: offeringID}
	summaries, err := r.catalogs.ListCatalogs(ctx)
	if err != nil {
		return result, NewDownstreamError(err, "list catalogs", map[string]any{"offering_id": offeringID})
	}
	current, _ := currentMembership(summaries, offeringID)
	result.Plan = PlanMembership(nil, current)
	return result, r.apply(ctx, offeringID, result.Plan, DataService{})
}

func (r *CatalogReconciler) targetCatalogs(ctx context.Context, summaries []CatalogSummary, categoryIDs []string) ([]string, []OperationFailure) {
	categories := idSet(categoryIDs)
	if len(categories) == 0 || len(summaries) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(summaries))
	ops := make([]Operation[Catalog], 0, len(summaries))
	for _, summary := range summaries {
		catalogID := strings.TrimSpace(summary.ID)
		keys = append(keys, catalogID)
		ops = append(ops, func(ctx context.Context) (Catalog, error) {
			catalog, err := r.catalogs.GetCatalog(ctx, catalogID)
			if err != nil {
				return Catalog{}, NewDownstreamError(err, "get catalog", map[string]any{"catalog_id": catalogID})
			}
			return catalog, nil
		})
	}
	fetched := Aggregate(ctx, ops, append(r.aggregateOptions(), WithKeys(keys...))...)

	misses := make([]OperationFailure, 0, len(fetched.Failures))
	for _, failure := range fetched.Failures {
		r.logger.Warn("catalog fetch failed, skipping as target",
			"catalog_id", failure.Key,
			"error", failure.Err.Error(),
		)
		misses = append(misses, OperationFailure{Index: failure.Index, Key: failure.Key, Err: failure.Err})
	}

	target := make([]string, 0, len(fetched.Successes))
	for _, success := range fetched.Successes {
		for _, category := range success.Value.Categories {
			if _, ok := categories[strings.TrimSpace(category)]; ok {
				target = append(target, success.Key)
				break
			}
		}
	}
	return target, misses
}

func (r *CatalogReconciler) apply(ctx context.Context, offeringID string, plan MembershipPlan, desired DataService) error {
	total := len(plan.Delete) + len(plan.Create) + len(plan.Update)
	if total == 0 {
		return nil
	}
	keys := make([]string, 0, total)
	ops := make([]Operation[Status], 0, total)
	for _, catalogID := range plan.Delete {
		keys = append(keys, "delete:"+catalogID)
		ops = append(ops, RequireStatus(func(ctx context.Context) (Status, error) {
			return r.catalogs.DeleteDataService(ctx, catalogID, offeringID)
		}, "delete data service", AcceptSuccessful))
	}
	for _, catalogID := range plan.Create {
		keys = append(keys, "create:"+catalogID)
		ops = append(ops, RequireStatus(func(ctx context.Context) (Status, error) {
			return r.catalogs.CreateDataService(ctx, catalogID, desired)
		}, "create data service", AcceptCreated))
	}
	for _, catalogID := range plan.Update {
		keys = append(keys, "update:"+catalogID)
		ops = append(ops, RequireStatus(func(ctx context.Context) (Status, error) {
			return r.catalogs.UpdateDataService(ctx, catalogID, offeringID, desired)
		}, "update data service", AcceptSuccessful))
	}

	applied := Aggregate(ctx, ops, append(r.aggregateOptions(), WithKeys(keys...))...)
	return applied.ErrFor("reconcile catalog membership")
}

// withFailure folds a failure that happened outside the fan-out into the
// aggregate error of the operations that did run.
func withFailure(applied error, key string, failure error) error {
	if applied == nil {
		return failure
	}
	aggregate, ok := AsAggregateError(applied)
	if !ok {
		return errors.Join(failure, applied)
	}
	aggregate.Failures = append(aggregate.Failures, OperationFailure{Index: aggregate.Attempted, Key: key, Err: failure})
	aggregate.Attempted++
	return aggregate
}

func (r *CatalogReconciler) buildDataService(ctx context.Context, offering Offering) (DataService, error) {
	specificationID := strings.TrimSpace(offering.SpecificationID)
	specification, err := r.commerce.GetSpecification(ctx, specificationID)
	if err != nil {
		return DataService{}, NewDownstreamError(err, "get specification", map[string]any{
			"offering_id":      offering.ID,
			"specification_id": specificationID,
		})
	}
	return BuildDataService(offering, specification), nil
}

func (r *CatalogReconciler) aggregateOptions() []AggregateOption {
	return append([]AggregateOption(nil), r.aggregateOpts...)
}

// BuildDataService derives the catalog listing of an offering from its
// specification.
func BuildDataService(offering Offering, specification Specification) DataService {
	service := DataService{
		ID:    strings.TrimSpace(offering.ID),
		Title: strings.TrimSpace(specification.Name),
	}
	if service.Title == "" {
		service.Title = strings.TrimSpace(offering.Name)
	}
	if owner, ok := FindRelatedParty(specification.RelatedParties, RelatedPartyRoleOwner); ok {
		service.Creator = strings.TrimSpace(owner.ID)
	}
	if endpoint, ok := specification.CharacteristicValue(CharacteristicEndpointURL); ok {
		service.EndpointURL = endpoint
	}
	if description, ok := specification.CharacteristicValue(CharacteristicEndpointDescription); ok {
		service.EndpointDescription = description
	}
	return service
}

func currentMembership(summaries []CatalogSummary, offeringID string) ([]string, map[string]DataService) {
	current := make([]string, 0, len(summaries))
	listed := make(map[string]DataService, len(summaries))
	for _, summary := range summaries {
		service, ok := summary.DataService(offeringID)
		if !ok {
			continue
		}
		catalogID := strings.TrimSpace(summary.ID)
		current = append(current, catalogID)
		listed[catalogID] = service
	}
	return current, listed
}

func idSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			set[trimmed] = struct{}{}
		}
	}
	return set
}

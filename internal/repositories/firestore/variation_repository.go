package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"

	pfirestore "github.com/hanko-field/variants/internal/platform/firestore"
	"github.com/hanko-field/variants/internal/variations"
)

const (
	defaultProductsCollection = "products"
	variationsSubcollection   = "variations"
)

// VariationRepositoryDeps bundles the collaborators of a VariationRepository.
type VariationRepositoryDeps struct {
	Provider           *pfirestore.Provider
	ProductsCollection string
	Clock              func() time.Time
	Logger             *zap.Logger
}

// VariationRepository stores a product document and its variations as a subcollection
// (products/{productId}/variations/{variationId}).
type VariationRepository struct {
	provider *pfirestore.Provider
	products *pfirestore.Collection[productDocument]
	now      func() time.Time
	logger   *zap.Logger
}

var (
	_ variations.PersistenceAdapter = (*VariationRepository)(nil)
	_ variations.VariationLoader    = (*VariationRepository)(nil)
)

// NewVariationRepository wires a Firestore backed variation store.
func NewVariationRepository(deps VariationRepositoryDeps) (*VariationRepository, error) {
	if deps.Provider == nil {
		return nil, errors.New("variation repository requires firestore provider")
	}
	collection := strings.Trim(strings.TrimSpace(deps.ProductsCollection), "/")
	if collection == "" {
		collection = defaultProductsCollection
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VariationRepository{
		provider: deps.Provider,
		products: pfirestore.NewCollection[productDocument](deps.Provider, collection),
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger.Named("variation_repository"),
	}, nil
}

func (r *VariationRepository) variationsOf(productID string) (*pfirestore.Collection[variationDocument], error) {
	path, err := pfirestore.ChildPath(r.products.Path(), productID, variationsSubcollection)
	if err != nil {
		return nil, err
	}
	return pfirestore.NewCollection[variationDocument](r.provider, path), nil
}

func validateProductID(productID string) error {
	if err := pfirestore.ValidateID(productID); err != nil {
		return fmt.Errorf("variation repository: %w", err)
	}
	return nil
}

// LoadVariations reads the product attributes and every variation from one consistent snapshot.
// Variations are returned in document id order, which follows generation order for ULID ids.
func (r *VariationRepository) LoadVariations(ctx context.Context, productID string) (variations.LoadedProduct, error) {
	if r == nil || r.provider == nil {
		return variations.LoadedProduct{}, errors.New("variation repository not initialised")
	}
	productID = strings.TrimSpace(productID)
	if err := validateProductID(productID); err != nil {
		return variations.LoadedProduct{}, err
	}

	productRef, err := r.products.Doc(ctx, productID)
	if err != nil {
		return variations.LoadedProduct{}, err
	}
	children, err := r.variationsOf(productID)
	if err != nil {
		return variations.LoadedProduct{}, err
	}
	childColl, err := children.Ref(ctx)
	if err != nil {
		return variations.LoadedProduct{}, err
	}

	var loaded variations.LoadedProduct
	err = r.provider.ReadSnapshot(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(productRef)
		if err != nil {
			return pfirestore.WrapError(r.products.Op("get"), err)
		}
		product, err := r.products.Decode(snap)
		if err != nil {
			return err
		}

		docs, err := children.Collect(tx.Documents(childColl.OrderBy(firestore.DocumentID, firestore.Asc)))
		if err != nil {
			return err
		}

		loaded = variations.LoadedProduct{
			ProductID:  productID,
			Attributes: product.Data.attributes(),
		}
		for _, doc := range docs {
			loaded.Variations = append(loaded.Variations, doc.Data.toDomain(doc.ID))
		}
		return nil
	})
	if err != nil {
		return variations.LoadedProduct{}, err
	}

	r.logger.Debug("variations loaded",
		zap.String("productId", productID),
		zap.Int("count", len(loaded.Variations)),
	)
	return loaded, nil
}

// SaveVariations stores a save request. Create requests that fit in one transaction are written
// atomically; everything else goes through a bulk writer that reports a result per variation.
func (r *VariationRepository) SaveVariations(ctx context.Context, req variations.SaveRequest) (variations.SaveResponse, error) {
	if r == nil || r.provider == nil {
		return variations.SaveResponse{}, errors.New("variation repository not initialised")
	}
	productID := strings.TrimSpace(req.ParentProductID)
	if err := validateProductID(productID); err != nil {
		return variations.SaveResponse{}, err
	}
	if req.Mode == variations.ModeEdit {
		exists, err := r.products.Exists(ctx, productID)
		if err != nil {
			return variations.SaveResponse{}, err
		}
		if !exists {
			return variations.SaveResponse{}, &pfirestore.Error{
				Op:   r.products.Op("get"),
				Kind: pfirestore.KindNotFound,
				Err:  fmt.Errorf("product %s does not exist", productID),
			}
		}
	}

	now := r.now()
	patch := productPatch(req, now)
	writes := 1 + len(req.ChangedVariations) + len(req.RemovedVariationIDs)
	if req.Mode == variations.ModeCreate && writes <= pfirestore.MaxTxWrites {
		return r.saveAtomically(ctx, productID, req, patch, now)
	}
	return r.saveInBulk(ctx, productID, req, patch, now)
}

func (r *VariationRepository) saveAtomically(ctx context.Context, productID string, req variations.SaveRequest, patch map[string]any, now time.Time) (variations.SaveResponse, error) {
	productRef, err := r.products.Doc(ctx, productID)
	if err != nil {
		return variations.SaveResponse{}, err
	}
	children, err := r.variationsOf(productID)
	if err != nil {
		return variations.SaveResponse{}, err
	}

	err = r.provider.Commit(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Set(productRef, patch, firestore.MergeAll); err != nil {
			return err
		}
		for _, v := range req.ChangedVariations {
			ref, err := children.Doc(ctx, v.ID)
			if err != nil {
				return err
			}
			if err := tx.Set(ref, newVariationDocument(v, now)); err != nil {
				return err
			}
		}
		for _, id := range req.RemovedVariationIDs {
			ref, err := children.Doc(ctx, id)
			if err != nil {
				return err
			}
			if err := tx.Delete(ref); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return variations.SaveResponse{}, err
	}
	if err != nil {
		r.logger.Warn("atomic variation save failed",
			zap.String("productId", productID),
			zap.Stringer("kind", pfirestore.KindOf(err)),
			zap.Error(err),
		)
		return variations.SaveResponse{Success: false, Error: failureMessage(err)}, nil
	}

	results := make([]variations.VariationResult, len(req.ChangedVariations))
	for i, v := range req.ChangedVariations {
		results[i] = variations.VariationResult{VariationID: v.ID, Success: true}
	}
	return variations.SaveResponse{Success: true, Results: results}, nil
}

func (r *VariationRepository) saveInBulk(ctx context.Context, productID string, req variations.SaveRequest, patch map[string]any, now time.Time) (variations.SaveResponse, error) {
	productRef, err := r.products.Doc(ctx, productID)
	if err != nil {
		return variations.SaveResponse{}, err
	}
	children, err := r.variationsOf(productID)
	if err != nil {
		return variations.SaveResponse{}, err
	}

	writer, err := r.provider.BulkWriter(ctx)
	if err != nil {
		return variations.SaveResponse{}, err
	}

	productJob, err := writer.Set(productRef, patch, firestore.MergeAll)
	if err != nil {
		writer.End()
		return variations.SaveResponse{}, pfirestore.WrapError(r.products.Op("set"), err)
	}

	type pendingJob struct {
		id  string
		job *firestore.BulkWriterJob
		err error
	}
	enqueue := func(id string, write func(*firestore.DocumentRef) (*firestore.BulkWriterJob, error)) pendingJob {
		ref, err := children.Doc(ctx, id)
		if err != nil {
			return pendingJob{id: id, err: err}
		}
		job, err := write(ref)
		return pendingJob{id: id, job: job, err: err}
	}

	sets := make([]pendingJob, 0, len(req.ChangedVariations))
	for _, v := range req.ChangedVariations {
		doc := newVariationDocument(v, now)
		sets = append(sets, enqueue(v.ID, func(ref *firestore.DocumentRef) (*firestore.BulkWriterJob, error) {
			return writer.Set(ref, doc)
		}))
	}
	deletes := make([]pendingJob, 0, len(req.RemovedVariationIDs))
	for _, id := range req.RemovedVariationIDs {
		deletes = append(deletes, enqueue(id, func(ref *firestore.DocumentRef) (*firestore.BulkWriterJob, error) {
			return writer.Delete(ref)
		}))
	}

	writer.End()

	wait := func(p pendingJob) error {
		if p.err != nil {
			return p.err
		}
		_, err := p.job.Results()
		return err
	}

	resp := variations.SaveResponse{Success: true, Results: make([]variations.VariationResult, 0, len(sets))}
	if _, err := productJob.Results(); err != nil {
		resp.Success = false
		resp.Error = fmt.Sprintf("update product %s: %s", productID, failureMessage(err))
	}
	for _, p := range sets {
		result := variations.VariationResult{VariationID: p.id, Success: true}
		if err := wait(p); err != nil {
			result.Success = false
			result.Error = failureMessage(err)
			r.logger.Warn("variation write failed", zap.String("productId", productID), zap.String("variationId", p.id), zap.Error(err))
		}
		resp.Results = append(resp.Results, result)
	}
	var failedDeletes []string
	for _, p := range deletes {
		if err := wait(p); err != nil {
			failedDeletes = append(failedDeletes, p.id)
			r.logger.Warn("variation delete failed", zap.String("productId", productID), zap.String("variationId", p.id), zap.Error(err))
		}
	}
	if len(failedDeletes) > 0 && resp.Success {
		resp.Success = false
		resp.Error = fmt.Sprintf("delete variations %s failed", strings.Join(failedDeletes, ", "))
	}
	if err := ctx.Err(); err != nil {
		return variations.SaveResponse{}, err
	}
	return resp, nil
}

// productPatch builds the merge payload for the parent product document.
func productPatch(req variations.SaveRequest, now time.Time) map[string]any {
	patch := map[string]any{"updatedAt": now}
	if req.Mode == variations.ModeCreate {
		patch["createdAt"] = now
	}
	if req.ParentProductPatch.Attributes != nil {
		patch["attributes"] = newAttributeDocuments(req.ParentProductPatch.Attributes)
	}
	if len(req.ParentProductPatch.Fields) > 0 {
		fields := make(map[string]any, len(req.ParentProductPatch.Fields))
		for key, value := range req.ParentProductPatch.Fields {
			fields[key] = value
		}
		patch["fields"] = fields
	}
	return patch
}

// failureMessage describes a write failure in terms of what the user can do next.
func failureMessage(err error) string {
	switch pfirestore.KindOf(err) {
	case pfirestore.KindContention:
		return "product was changed by another save, reload and try again: " + err.Error()
	case pfirestore.KindUnavailable:
		return "storage is temporarily unavailable, try again later: " + err.Error()
	default:
		return err.Error()
	}
}

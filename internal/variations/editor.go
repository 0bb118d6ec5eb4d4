package variations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/hanko-field/variants/internal/domain"
)

const instrumentationName = "github.com/hanko-field/variants/internal/variations"

// MediaSource resolves an uploaded file reference into an image. Resolution may be slow; the
// editor applies the result only if the variation still exists.
type MediaSource interface {
	ResolveImage(ctx context.Context, ref string) (domain.ImageRef, error)
}

// EditorDeps bundles the collaborators required to construct an Editor. ProductID is required in
// edit mode and whenever a Persistence adapter or Loader is wired; the caller assigns it up front.
type EditorDeps struct {
	Mode        Mode
	ProductID   string
	Generator   *Generator
	Persistence PersistenceAdapter
	Loader      VariationLoader
	Events      SaveEventPublisher
	ResetPolicy ResetPolicy
	Logger      *zap.Logger
	Tracer      trace.Tracer
	Meter       metric.Meter
	Clock       func() time.Time
}

// Snapshot is an immutable view of the editor state.
type Snapshot struct {
	Mode       Mode
	ProductID  string
	Attributes []domain.AttributeDefinition
	Variations []domain.Variation
	Selected   []string
	Dirty      []string
	Removed    []string
	Saving     bool
}

// Editor owns the variation matrix of one product together with its selection and change
// tracking. The same controller serves the create and edit flows; Mode decides what a save submits.
// All methods are safe for use from asynchronous callbacks.
type Editor struct {
	generator   *Generator
	persistence PersistenceAdapter
	loader      VariationLoader
	events      SaveEventPublisher
	policy      ResetPolicy
	logger      *zap.Logger
	tracer      trace.Tracer
	clock       func() time.Time

	generated      metric.Int64Counter
	saved          metric.Int64Counter
	saveFailures   metric.Int64Counter
	metricsEnabled bool

	mu                sync.Mutex
	mode              Mode
	productID         string
	attributes        []domain.AttributeDefinition
	attributesChanged bool
	productFields     map[string]any
	variations        []domain.Variation
	persisted         map[string]struct{}
	removed           map[string]struct{}
	selection         SelectionSet
	tracker           *ChangeTracker
	saving            bool

	// rev orders edits that the tracker does not cover: parent patch values and variations
	// that were never persisted.
	rev           uint64
	attributesRev uint64
	fieldRevs     map[string]uint64
	freshRevs     map[string]uint64
}

// saveCapture records what a save request was built from, so a successful response only
// settles state that was not edited again while the save was in flight.
type saveCapture struct {
	marks      Marks
	attributes uint64
	fields     map[string]uint64
	fresh      map[string]uint64
}

// NewEditor wires dependencies into an Editor.
func NewEditor(deps EditorDeps) (*Editor, error) {
	mode := deps.Mode
	if mode == "" {
		mode = ModeCreate
	}
	if mode != ModeCreate && mode != ModeEdit {
		return nil, fmt.Errorf("variations editor: unknown mode %q", mode)
	}
	productID := strings.TrimSpace(deps.ProductID)
	if productID == "" && (mode == ModeEdit || deps.Persistence != nil || deps.Loader != nil) {
		return nil, fmt.Errorf("%w: mode %s", ErrProductIDRequired, mode)
	}

	policy := deps.ResetPolicy
	if policy == "" {
		policy = ResetSubmitted
	}
	if policy != ResetSubmitted && policy != ResetAll {
		return nil, fmt.Errorf("variations editor: unknown reset policy %q", policy)
	}

	generator := deps.Generator
	if generator == nil {
		generator = defaultGenerator
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	tracer := deps.Tracer
	if tracer == nil {
		tracer = otel.Tracer(instrumentationName)
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	e := &Editor{
		generator:   generator,
		persistence: deps.Persistence,
		loader:      deps.Loader,
		events:      deps.Events,
		policy:      policy,
		logger:      logger.With(zap.String("productId", productID)),
		tracer:      tracer,
		clock: func() time.Time {
			return clock().UTC()
		},
		mode:      mode,
		productID: productID,
		persisted: make(map[string]struct{}),
		removed:   make(map[string]struct{}),
		tracker:   NewChangeTracker(),
		fieldRevs: make(map[string]uint64),
		freshRevs: make(map[string]uint64),
	}
	e.registerMetrics(deps.Meter)
	return e, nil
}

func (e *Editor) registerMetrics(meter metric.Meter) {
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(instrumentationName)
	}
	var errs []error
	var err error
	e.generated, err = meter.Int64Counter("variations.generated",
		metric.WithDescription("Variations produced by matrix generation"))
	errs = append(errs, err)
	e.saved, err = meter.Int64Counter("variations.saved",
		metric.WithDescription("Variations acknowledged by the persistence adapter"))
	errs = append(errs, err)
	e.saveFailures, err = meter.Int64Counter("variations.save.failures",
		metric.WithDescription("Save attempts that did not succeed"))
	errs = append(errs, err)
	if joined := errors.Join(errs...); joined != nil {
		e.logger.Warn("variations: unable to register metrics", zap.Error(joined))
		return
	}
	e.metricsEnabled = true
}

// Snapshot returns a deep copy of the current state.
func (e *Editor) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	removed := make([]string, 0, len(e.removed))
	for id := range e.removed {
		removed = append(removed, id)
	}
	return Snapshot{
		Mode:       e.mode,
		ProductID:  e.productID,
		Attributes: domain.CloneAttributes(e.attributes),
		Variations: domain.CloneVariations(e.variations),
		Selected:   e.selection.IDs(),
		Dirty:      e.tracker.IDs(),
		Removed:    NewSelectionSet(removed...).IDs(),
		Saving:     e.saving,
	}
}

// SetAttributes replaces the attribute definitions and regenerates the whole matrix. Regeneration
// is destructive: persisted variations are scheduled for removal on the next save. It returns the
// number of generated variations.
func (e *Editor) SetAttributes(ctx context.Context, defs []domain.AttributeDefinition) int {
	normalized := NormalizeAttributes(defs)
	generated := e.generator.Generate(VariationAttributes(normalized))

	e.mu.Lock()
	for _, v := range e.variations {
		e.dropLocked(v.ID)
	}
	e.attributes = normalized
	e.attributesChanged = true
	e.rev++
	e.attributesRev = e.rev
	e.variations = generated
	e.selection.Prune(e.variations)
	e.mu.Unlock()

	if e.metricsEnabled {
		e.generated.Add(ctx, int64(len(generated)))
	}
	e.logger.Debug("variations: matrix regenerated",
		zap.Int("attributes", len(normalized)),
		zap.Int("variations", len(generated)),
	)
	return len(generated)
}

// SetProductFields merges parent product fields into the pending patch.
func (e *Editor) SetProductFields(fields map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for key, value := range fields {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if e.productFields == nil {
			e.productFields = make(map[string]any)
		}
		e.productFields[key] = value
		e.rev++
		e.fieldRevs[key] = e.rev
	}
}

// UpdateVariation applies fn to a copy of the variation and stores the result. The variation's id
// and attribute combination cannot be changed through fn.
func (e *Editor) UpdateVariation(id string, fn func(*domain.Variation)) error {
	if fn == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	idx := e.indexLocked(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrVariationNotFound, id)
	}
	updated := e.variations[idx].Clone()
	fn(&updated)
	updated.ID = e.variations[idx].ID
	updated.Attributes = e.variations[idx].Clone().Attributes
	e.variations[idx] = updated
	e.markLocked(id)
	return nil
}

// RemoveVariation deletes a single variation and prunes it from selection and tracking.
func (e *Editor) RemoveVariation(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx := e.indexLocked(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrVariationNotFound, id)
	}
	e.variations = append(e.variations[:idx:idx], e.variations[idx+1:]...)
	e.dropLocked(id)
	e.selection.Prune(e.variations)
	return nil
}

// ToggleSelection flips the selection state of an existing variation.
func (e *Editor) ToggleSelection(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.indexLocked(id) < 0 {
		return fmt.Errorf("%w: %s", ErrVariationNotFound, id)
	}
	e.selection.Toggle(id)
	return nil
}

// ReplaceSelection selects exactly the given ids that exist and returns how many were selected.
func (e *Editor) ReplaceSelection(ids []string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selection.ReplaceAll(ids)
	e.selection.Prune(e.variations)
	return e.selection.Len()
}

// SelectAll selects every variation.
func (e *Editor) SelectAll() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, len(e.variations))
	for i, v := range e.variations {
		ids[i] = v.ID
	}
	e.selection.ReplaceAll(ids)
	return e.selection.Len()
}

// ClearSelection deselects everything.
func (e *Editor) ClearSelection() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selection.Clear()
}

// ApplyToSelected applies t to the selected variations only.
func (e *Editor) ApplyToSelected(t BulkTemplate) (BulkResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	result, err := ApplyToSelected(t, &e.selection, e.variations)
	if err != nil {
		return result, err
	}
	result = e.commitBulkLocked(result)
	e.logger.Info("variations: template applied to selection",
		zap.Int("targeted", result.Targeted),
		zap.Strings("groups", groupNames(result.Groups)),
	)
	return result, nil
}

// ApplyTemplateToAll applies t to every variation regardless of selection.
func (e *Editor) ApplyTemplateToAll(t BulkTemplate) (BulkResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	result, err := ApplyTemplateToAll(t, e.variations)
	if err != nil {
		return result, err
	}
	result = e.commitBulkLocked(result)
	e.logger.Info("variations: template applied to all variations",
		zap.Int("targeted", result.Targeted),
		zap.Strings("groups", groupNames(result.Groups)),
	)
	return result, nil
}

// commitBulkLocked stores the applied list and hands the caller its own copy.
func (e *Editor) commitBulkLocked(result BulkResult) BulkResult {
	e.variations = result.Variations
	for _, id := range result.TargetIDs {
		e.markLocked(id)
	}
	result.Variations = domain.CloneVariations(e.variations)
	return result
}

// AttachImage sets the image of a variation. It is the completion step of asynchronous uploads and
// returns ErrVariationGone when the variation was removed or regenerated in the meantime.
func (e *Editor) AttachImage(id string, img domain.ImageRef) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx := e.indexLocked(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrVariationGone, id)
	}
	if img.IsZero() {
		e.variations[idx].Media.Image = nil
	} else {
		e.variations[idx].Media.Image = &domain.ImageRef{Src: strings.TrimSpace(img.Src), Alt: img.Alt}
	}
	e.markLocked(id)
	return nil
}

// AttachDownload appends a downloadable file to a variation, with the same existence guard as AttachImage.
func (e *Editor) AttachDownload(id string, dl domain.Download) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx := e.indexLocked(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrVariationGone, id)
	}
	e.variations[idx].Downloads = append(e.variations[idx].Downloads, dl)
	e.variations[idx].Flags.Downloadable = true
	e.markLocked(id)
	return nil
}

// AttachImageAsync resolves ref through src on a separate goroutine and attaches the result.
// The returned channel receives exactly one value.
func (e *Editor) AttachImageAsync(ctx context.Context, id string, src MediaSource, ref string) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		if src == nil {
			done <- errors.New("variations editor: media source is required")
			return
		}
		img, err := src.ResolveImage(ctx, ref)
		if err != nil {
			done <- fmt.Errorf("resolve image %q: %w", ref, err)
			return
		}
		if err := e.AttachImage(id, img); err != nil {
			e.logger.Warn("variations: dropped image for missing variation",
				zap.String("variationId", id), zap.String("ref", ref))
			done <- err
			return
		}
		done <- nil
	}()
	return done
}

// Load replaces the editor state with the persisted product. The editor switches to edit mode.
func (e *Editor) Load(ctx context.Context) error {
	if e.loader == nil {
		return ErrLoaderMissing
	}
	e.mu.Lock()
	productID := e.productID
	saving := e.saving
	e.mu.Unlock()
	if productID == "" {
		return ErrProductIDRequired
	}
	if saving {
		return ErrSaveInProgress
	}

	ctx, span := e.tracer.Start(ctx, "variations.Load", trace.WithAttributes(attribute.String("product.id", productID)))
	defer span.End()

	loaded, err := e.loader.LoadVariations(ctx, productID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		return fmt.Errorf("load variations for %s: %w", productID, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.saving {
		return ErrSaveInProgress
	}
	e.mode = ModeEdit
	e.attributes = NormalizeAttributes(loaded.Attributes)
	e.attributesChanged = false
	e.productFields = nil
	e.fieldRevs = make(map[string]uint64)
	e.freshRevs = make(map[string]uint64)
	e.variations = domain.CloneVariations(loaded.Variations)
	e.persisted = make(map[string]struct{}, len(e.variations))
	for _, v := range e.variations {
		e.persisted[v.ID] = struct{}{}
	}
	e.removed = make(map[string]struct{})
	e.selection.Clear()
	e.tracker.Reset()
	e.logger.Info("variations: loaded", zap.Int("variations", len(e.variations)))
	return nil
}

// Save submits the pending changes. At most one save runs at a time; a concurrent call returns
// ErrSaveInProgress. With nothing pending the adapter is not called. Failures are not retried.
func (e *Editor) Save(ctx context.Context) (SaveSummary, error) {
	if e.persistence == nil {
		return SaveSummary{}, ErrPersistenceMissing
	}

	e.mu.Lock()
	if e.saving {
		e.mu.Unlock()
		return SaveSummary{}, ErrSaveInProgress
	}
	req, capture := e.buildRequestLocked()
	if !e.pendingLocked(req) {
		e.mu.Unlock()
		e.logger.Debug("variations: nothing to save")
		return NothingToSave(req.Mode), nil
	}
	e.saving = true
	e.mu.Unlock()

	ctx, span := e.tracer.Start(ctx, "variations.Save", trace.WithAttributes(
		attribute.String("product.id", req.ParentProductID),
		attribute.String("variations.mode", string(req.Mode)),
		attribute.Int("variations.submitted", len(req.ChangedVariations)),
		attribute.Int("variations.removed", len(req.RemovedVariationIDs)),
	))
	defer span.End()

	resp, err := e.persistence.SaveVariations(ctx, req)

	e.mu.Lock()
	e.saving = false
	if err != nil {
		e.mu.Unlock()
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence adapter error")
		e.recordFailure(ctx, req.Mode)
		e.logger.Error("variations: save failed", zap.Error(err))
		return SaveSummary{Mode: req.Mode, Submitted: len(req.ChangedVariations), Status: "Save failed: " + err.Error(), Err: err}, err
	}

	summary := Summarize(req.Mode, resp, len(req.ChangedVariations))
	summary.Removed = len(req.RemovedVariationIDs)
	if !resp.Success {
		e.mu.Unlock()
		span.SetStatus(codes.Error, "save rejected")
		e.recordFailure(ctx, req.Mode)
		e.logger.Warn("variations: save rejected", zap.String("error", resp.Error), zap.Int("succeeded", summary.Succeeded))
		return summary, summary.Err
	}

	storedIDs := e.commitSaveLocked(req, resp, capture)
	if summary.Submitted == 0 {
		summary.Status = "Product updated"
		if summary.Removed > 0 {
			summary.Status = fmt.Sprintf("Removed %d %s", summary.Removed, pluralVariations(summary.Removed))
		}
	}
	productID := e.productID
	e.mu.Unlock()

	if e.metricsEnabled {
		e.saved.Add(ctx, int64(summary.Succeeded), metric.WithAttributes(attribute.String("mode", string(req.Mode))))
	}
	e.logger.Info("variations: saved",
		zap.Int("submitted", summary.Submitted),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("removed", summary.Removed),
	)
	e.publishSaved(ctx, VariationsSavedEvent{
		ProductID:    productID,
		Mode:         req.Mode,
		VariationIDs: storedIDs,
		RemovedIDs:   append([]string(nil), req.RemovedVariationIDs...),
		SavedAt:      e.clock(),
	})
	return summary, nil
}

func (e *Editor) buildRequestLocked() (SaveRequest, saveCapture) {
	req := SaveRequest{
		ParentProductID: e.productID,
		Mode:            e.mode,
	}
	capture := saveCapture{
		attributes: e.attributesRev,
		fields:     make(map[string]uint64, len(e.productFields)),
		fresh:      make(map[string]uint64),
	}
	if e.mode == ModeCreate || e.attributesChanged {
		req.ParentProductPatch.Attributes = domain.CloneAttributes(e.attributes)
	}
	if len(e.productFields) > 0 {
		req.ParentProductPatch.Fields = make(map[string]any, len(e.productFields))
		for k, v := range e.productFields {
			req.ParentProductPatch.Fields[k] = v
			capture.fields[k] = e.fieldRevs[k]
		}
	}

	changed := make([]domain.Variation, 0, len(e.variations))
	dirtyIDs := make([]string, 0, e.tracker.Len())
	for _, v := range e.variations {
		if _, ok := e.persisted[v.ID]; !ok {
			changed = append(changed, v.Clone())
			capture.fresh[v.ID] = e.freshRevs[v.ID]
			continue
		}
		if e.tracker.IsDirty(v.ID) {
			changed = append(changed, v.Clone())
			dirtyIDs = append(dirtyIDs, v.ID)
		}
	}
	req.ChangedVariations = changed

	if e.mode == ModeEdit {
		req.RemovedVariationIDs = NewSelectionSet(mapKeys(e.removed)...).IDs()
	}
	capture.marks = e.tracker.Capture(dirtyIDs)
	return req, capture
}

// pendingLocked reports whether req carries anything to store. A create without variations has
// nothing to create; in edit mode a parent patch alone is worth a round trip.
func (e *Editor) pendingLocked(req SaveRequest) bool {
	if len(req.ChangedVariations) > 0 || len(req.RemovedVariationIDs) > 0 {
		return true
	}
	if req.Mode == ModeCreate {
		return false
	}
	return e.attributesChanged || len(e.productFields) > 0
}

// commitSaveLocked folds a successful response into the state and returns the stored variation ids.
// State edited after the request was built stays pending: a stored variation that has since left
// the matrix is queued for removal, and a fresh variation edited in flight becomes dirty.
func (e *Editor) commitSaveLocked(req SaveRequest, resp SaveResponse, capture saveCapture) []string {
	failed := make(map[string]struct{})
	for _, r := range resp.Results {
		if !r.Success && r.VariationID != "" {
			failed[r.VariationID] = struct{}{}
		}
	}

	marks := capture.marks
	stored := make([]string, 0, len(req.ChangedVariations))
	for _, v := range req.ChangedVariations {
		if _, bad := failed[v.ID]; bad {
			delete(marks, v.ID)
			continue
		}
		stored = append(stored, v.ID)
		if e.indexLocked(v.ID) < 0 {
			e.removed[v.ID] = struct{}{}
			continue
		}
		rev, fresh := capture.fresh[v.ID]
		if !fresh {
			continue
		}
		e.persisted[v.ID] = struct{}{}
		if e.freshRevs[v.ID] != rev {
			e.tracker.MarkDirty(v.ID)
		}
		delete(e.freshRevs, v.ID)
	}

	e.tracker.ResetFor(e.policy, marks)
	for _, id := range req.RemovedVariationIDs {
		delete(e.removed, id)
	}
	if req.ParentProductPatch.Attributes != nil && e.attributesRev == capture.attributes {
		e.attributesChanged = false
	}
	for key, rev := range capture.fields {
		if e.fieldRevs[key] == rev {
			delete(e.productFields, key)
			delete(e.fieldRevs, key)
		}
	}
	if e.mode == ModeCreate {
		e.mode = ModeEdit
	}
	return stored
}

func (e *Editor) publishSaved(ctx context.Context, event VariationsSavedEvent) {
	if e.events == nil {
		return
	}
	id, err := e.events.PublishVariationsSaved(ctx, event)
	if err != nil {
		e.logger.Warn("variations: publish saved event failed", zap.Error(err))
		return
	}
	e.logger.Debug("variations: saved event published", zap.String("messageId", id))
}

func (e *Editor) recordFailure(ctx context.Context, mode Mode) {
	if e.metricsEnabled {
		e.saveFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", string(mode))))
	}
}

func (e *Editor) indexLocked(id string) int {
	for i, v := range e.variations {
		if v.ID == id {
			return i
		}
	}
	return -1
}

// markLocked flags a persisted variation dirty. Variations not yet persisted are always submitted;
// their edits only bump a revision so a save in flight can tell it sent a stale copy.
func (e *Editor) markLocked(id string) {
	if _, ok := e.persisted[id]; ok {
		e.tracker.MarkDirty(id)
		return
	}
	e.rev++
	e.freshRevs[id] = e.rev
}

// dropLocked forgets a variation that leaves the matrix; persisted ones are scheduled for removal.
func (e *Editor) dropLocked(id string) {
	if _, ok := e.persisted[id]; ok {
		e.removed[id] = struct{}{}
		delete(e.persisted, id)
	}
	e.tracker.Forget(id)
	delete(e.freshRevs, id)
}

func mapKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func groupNames(groups []FieldGroup) []string {
	out := make([]string, len(groups))
	for i, g := range groups {
		out[i] = string(g)
	}
	return out
}

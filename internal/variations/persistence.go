package variations

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hanko-field/variants/internal/domain"
)

// Mode distinguishes editing a product that does not exist yet from editing a persisted one.
type Mode string

const (
	// ModeCreate submits the whole matrix atomically; nothing is dirty-tracked.
	ModeCreate Mode = "create"
	// ModeEdit submits only new variations and persisted variations marked dirty.
	ModeEdit Mode = "edit"
)

// ProductPatch carries parent product changes saved together with the variations.
type ProductPatch struct {
	Attributes []domain.AttributeDefinition
	Fields     map[string]any
}

// SaveRequest is the diff payload handed to a PersistenceAdapter.
type SaveRequest struct {
	ParentProductID     string
	ParentProductPatch  ProductPatch
	ChangedVariations   []domain.Variation
	RemovedVariationIDs []string
	Mode                Mode
}

// VariationResult reports the outcome for one submitted variation.
type VariationResult struct {
	VariationID string
	Success     bool
	Error       string
}

// SaveResponse is the structured result returned by a PersistenceAdapter.
type SaveResponse struct {
	Success bool
	Results []VariationResult
	Error   string
}

// PersistenceAdapter durably stores parent product and variation changes.
type PersistenceAdapter interface {
	SaveVariations(ctx context.Context, req SaveRequest) (SaveResponse, error)
}

// LoadedProduct is the persisted state of a variable product.
type LoadedProduct struct {
	ProductID  string
	Attributes []domain.AttributeDefinition
	Variations []domain.Variation
}

// VariationLoader reads the persisted variations of a product.
type VariationLoader interface {
	LoadVariations(ctx context.Context, productID string) (LoadedProduct, error)
}

// VariationsSavedEvent is published after a successful save.
type VariationsSavedEvent struct {
	ProductID    string
	Mode         Mode
	VariationIDs []string
	RemovedIDs   []string
	SavedAt      time.Time
}

// SaveEventPublisher announces successful saves to downstream consumers.
type SaveEventPublisher interface {
	PublishVariationsSaved(ctx context.Context, event VariationsSavedEvent) (string, error)
}

// SaveSummary folds a save outcome into counts and a single user-facing status line.
type SaveSummary struct {
	Mode          Mode
	Submitted     int
	Succeeded     int
	Removed       int
	NothingToSave bool
	Status        string
	Err           error
}

// Summarize derives the success count and status line from an adapter response. When a
// successful response carries no per-variation results every submitted variation counts.
func Summarize(mode Mode, resp SaveResponse, submitted int) SaveSummary {
	summary := SaveSummary{Mode: mode, Submitted: submitted}
	if len(resp.Results) > 0 {
		for _, r := range resp.Results {
			if r.Success {
				summary.Succeeded++
			}
		}
	} else if resp.Success {
		summary.Succeeded = submitted
	}

	if !resp.Success {
		msg := strings.TrimSpace(resp.Error)
		if msg == "" {
			msg = "unknown error"
		}
		summary.Err = fmt.Errorf("%w: %s", ErrSaveFailed, msg)
		summary.Status = "Save failed: " + msg
		if summary.Succeeded > 0 {
			summary.Status = fmt.Sprintf("Save failed: %s (%d/%d variations stored)", msg, summary.Succeeded, submitted)
		}
		return summary
	}

	if mode == ModeCreate {
		summary.Status = fmt.Sprintf("Created %d %s", summary.Succeeded, pluralVariations(summary.Succeeded))
		return summary
	}
	summary.Status = fmt.Sprintf("Updated %d/%d %s", summary.Succeeded, submitted, pluralVariations(submitted))
	return summary
}

// NothingToSave is the short-circuit summary for an empty save set.
func NothingToSave(mode Mode) SaveSummary {
	return SaveSummary{Mode: mode, NothingToSave: true, Status: "Nothing to save"}
}

func pluralVariations(n int) string {
	if n == 1 {
		return "variation"
	}
	return "variations"
}

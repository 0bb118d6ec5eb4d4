package variations

import (
	"fmt"
	"strings"

	"github.com/hanko-field/variants/internal/domain"
)

// BulkResult is the outcome of a bulk apply. Variations is always a fresh copy of the input list
// with the template applied to the targeted entries.
type BulkResult struct {
	Variations []domain.Variation
	TargetIDs  []string
	Targeted   int
	Groups     []FieldGroup
}

// Message renders grouped feedback such as "Applied pricing and inventory to 2 variations".
func (r BulkResult) Message() string {
	if r.Targeted == 0 {
		return "No variations selected"
	}
	noun := "variations"
	if r.Targeted == 1 {
		noun = "variation"
	}
	if len(r.Groups) == 0 {
		return fmt.Sprintf("Updated %d %s", r.Targeted, noun)
	}
	return fmt.Sprintf("Applied %s to %d %s", joinGroups(r.Groups), r.Targeted, noun)
}

// ApplyToSelected copies every present template field onto the variations whose id is in sel.
// Fields absent from the template are left untouched. An empty selection mutates nothing and
// returns ErrNoSelection alongside a zero-target result.
func ApplyToSelected(t BulkTemplate, sel *SelectionSet, variations []domain.Variation) (BulkResult, error) {
	result := BulkResult{Variations: domain.CloneVariations(variations), TargetIDs: []string{}}
	if sel.Len() == 0 {
		return result, ErrNoSelection
	}
	if err := checkTemplate(t); err != nil {
		return result, err
	}
	result.Groups = t.Groups()
	for i := range result.Variations {
		if !sel.Has(result.Variations[i].ID) {
			continue
		}
		t.ApplyTo(&result.Variations[i])
		result.TargetIDs = append(result.TargetIDs, result.Variations[i].ID)
	}
	result.Targeted = len(result.TargetIDs)
	return result, nil
}

// ApplyTemplateToAll copies every present template field onto every variation, ignoring any
// selection. It is intentionally separate from ApplyToSelected.
func ApplyTemplateToAll(t BulkTemplate, variations []domain.Variation) (BulkResult, error) {
	result := BulkResult{Variations: domain.CloneVariations(variations), TargetIDs: []string{}}
	if err := checkTemplate(t); err != nil {
		return result, err
	}
	result.Groups = t.Groups()
	for i := range result.Variations {
		t.ApplyTo(&result.Variations[i])
		result.TargetIDs = append(result.TargetIDs, result.Variations[i].ID)
	}
	result.Targeted = len(result.TargetIDs)
	return result, nil
}

func checkTemplate(t BulkTemplate) error {
	if t.IsEmpty() {
		return ErrEmptyTemplate
	}
	return t.Validate()
}

func joinGroups(groups []FieldGroup) string {
	names := make([]string, len(groups))
	for i, g := range groups {
		names[i] = string(g)
	}
	switch len(names) {
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	default:
		return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
	}
}

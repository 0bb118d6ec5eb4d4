package variations

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hanko-field/variants/internal/domain"
)

// ResetPolicy selects which dirty marks are cleared after a successful save.
type ResetPolicy string

const (
	// ResetSubmitted clears only the ids that were part of the saved payload. Edits made while the
	// save was in flight stay dirty.
	ResetSubmitted ResetPolicy = "submitted"
	// ResetAll clears the whole dirty set, including edits made while the save was in flight.
	ResetAll ResetPolicy = "all"
)

// ParseResetPolicy maps configuration text onto a policy; empty input selects ResetSubmitted.
func ParseResetPolicy(value string) (ResetPolicy, error) {
	switch ResetPolicy(strings.ToLower(strings.TrimSpace(value))) {
	case "", ResetSubmitted:
		return ResetSubmitted, nil
	case ResetAll:
		return ResetAll, nil
	default:
		return "", fmt.Errorf("variations: unknown reset policy %q", value)
	}
}

// ChangeTracker records which persisted variations were mutated since the last successful save.
// Variations of a batch that has never been persisted are not tracked; they are submitted in full.
// Every mark carries a revision so a save can tell whether a variation was edited again after
// its payload was built.
type ChangeTracker struct {
	dirty map[string]uint64
	rev   uint64
}

// Marks maps dirty ids to the revision they had when captured.
type Marks map[string]uint64

// IDs returns the captured ids in sorted order.
func (m Marks) IDs() []string {
	out := make([]string, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// NewChangeTracker returns an empty tracker.
func NewChangeTracker() *ChangeTracker {
	return &ChangeTracker{dirty: make(map[string]uint64)}
}

// MarkDirty flags id as modified.
func (c *ChangeTracker) MarkDirty(id string) {
	if id == "" {
		return
	}
	if c.dirty == nil {
		c.dirty = make(map[string]uint64)
	}
	c.rev++
	c.dirty[id] = c.rev
}

// IsDirty reports whether id is flagged.
func (c *ChangeTracker) IsDirty(id string) bool {
	_, ok := c.dirty[id]
	return ok
}

// Len returns the number of dirty ids.
func (c *ChangeTracker) Len() int {
	return len(c.dirty)
}

// IDs returns the dirty ids in sorted order.
func (c *ChangeTracker) IDs() []string {
	out := make([]string, 0, len(c.dirty))
	for id := range c.dirty {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Forget drops the mark for a variation that no longer exists.
func (c *ChangeTracker) Forget(id string) {
	delete(c.dirty, id)
}

// ComputeSaveSet returns copies of the variations currently flagged dirty, in input order.
func (c *ChangeTracker) ComputeSaveSet(variations []domain.Variation) []domain.Variation {
	out := make([]domain.Variation, 0, len(c.dirty))
	if len(c.dirty) == 0 {
		return out
	}
	for _, v := range variations {
		if c.IsDirty(v.ID) {
			out = append(out, v.Clone())
		}
	}
	return out
}

// Capture records the current revision of every dirty id among ids.
func (c *ChangeTracker) Capture(ids []string) Marks {
	marks := make(Marks, len(ids))
	for _, id := range ids {
		if rev, ok := c.dirty[id]; ok {
			marks[id] = rev
		}
	}
	return marks
}

// Reset clears the entire dirty set.
func (c *ChangeTracker) Reset() {
	c.dirty = make(map[string]uint64)
}

// ResetSubmitted clears the captured ids whose mark has not changed since capture. An id that was
// marked again after capture stays dirty because its latest edit was not part of the payload.
func (c *ChangeTracker) ResetSubmitted(marks Marks) {
	for id, rev := range marks {
		if current, ok := c.dirty[id]; ok && current == rev {
			delete(c.dirty, id)
		}
	}
}

// ResetFor applies policy after a successful save of the captured marks.
func (c *ChangeTracker) ResetFor(policy ResetPolicy, marks Marks) {
	if policy == ResetAll {
		c.Reset()
		return
	}
	c.ResetSubmitted(marks)
}

package variations

import (
	"math"
	"strconv"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/hanko-field/variants/internal/domain"
)

const (
	variationIDPrefix = "var_"
	maxIDAttempts     = 8
)

// GeneratorDeps bundles the optional collaborators of a Generator.
type GeneratorDeps struct {
	IDGenerator func() string
}

// Generator expands attribute definitions into the full cross-product of variations.
type Generator struct {
	newID func() string
}

// NewGenerator constructs a Generator. Without an IDGenerator, ids are ULIDs, which stay unique
// and ordered for calls made within the same millisecond.
func NewGenerator(deps GeneratorDeps) *Generator {
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return variationIDPrefix + ulid.Make().String()
		}
	}
	return &Generator{newID: idGen}
}

var defaultGenerator = NewGenerator(GeneratorDeps{})

// Generate expands attrs with the default generator.
func Generate(attrs []domain.AttributeDefinition) []domain.Variation {
	return defaultGenerator.Generate(attrs)
}

// Generate returns one variation per combination of options, first attribute varying slowest.
// Zero attributes, or any attribute without options, yields an empty result.
func (g *Generator) Generate(attrs []domain.AttributeDefinition) []domain.Variation {
	if len(attrs) == 0 {
		return []domain.Variation{}
	}

	names := make([]string, len(attrs))
	options := make([][]string, len(attrs))
	total := 1
	for i, attr := range attrs {
		names[i] = strings.TrimSpace(attr.Name)
		options[i] = normalizeOptions(attr.Options)
		n := len(options[i])
		if n == 0 {
			return []domain.Variation{}
		}
		if total > math.MaxInt32/n {
			return []domain.Variation{}
		}
		total *= n
	}

	out := make([]domain.Variation, 0, total)
	seen := make(map[string]struct{}, total)
	cursor := make([]int, len(attrs))
	for range total {
		selections := make([]domain.AttributeSelection, len(attrs))
		for i := range attrs {
			selections[i] = domain.AttributeSelection{Name: names[i], Option: options[i][cursor[i]]}
		}
		out = append(out, NewVariation(g.uniqueID(seen), selections))

		// odometer: the last attribute advances fastest
		for i := len(cursor) - 1; i >= 0; i-- {
			cursor[i]++
			if cursor[i] < len(options[i]) {
				break
			}
			cursor[i] = 0
		}
	}
	return out
}

func (g *Generator) uniqueID(seen map[string]struct{}) string {
	var id string
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id = strings.TrimSpace(g.newID())
		if id == "" {
			continue
		}
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			return id
		}
	}
	base := id
	if base == "" {
		base = variationIDPrefix + ulid.Make().String()
	}
	for n := len(seen); ; n++ {
		candidate := base + "-" + strconv.Itoa(n)
		if _, dup := seen[candidate]; !dup {
			seen[candidate] = struct{}{}
			return candidate
		}
	}
}

// NewVariation returns a variation with the default field values used for freshly generated records.
func NewVariation(id string, selections []domain.AttributeSelection) domain.Variation {
	return domain.Variation{
		ID:         id,
		Attributes: selections,
		Inventory: domain.Inventory{
			StockStatus: domain.StockStatusInStock,
			Backorders:  domain.BackordersNo,
		},
		Status: domain.VariationStatusPublished,
	}
}

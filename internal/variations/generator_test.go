package variations

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hanko-field/variants/internal/domain"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("var_%03d", n)
	}
}

func attr(name string, options ...string) domain.AttributeDefinition {
	return domain.AttributeDefinition{Name: name, Options: options, Visible: true, ForVariation: true}
}

func TestGenerateOrdersFirstAttributeSlowest(t *testing.T) {
	t.Parallel()

	gen := NewGenerator(GeneratorDeps{IDGenerator: sequentialIDs()})
	out := gen.Generate([]domain.AttributeDefinition{
		attr("Color", "Red", "Blue"),
		attr("Size", "S", "M", "L"),
	})

	require.Len(t, out, 6)
	keys := make([]string, len(out))
	for i, v := range out {
		keys[i] = v.Key()
	}
	require.Equal(t, []string{
		"Color=Red|Size=S",
		"Color=Red|Size=M",
		"Color=Red|Size=L",
		"Color=Blue|Size=S",
		"Color=Blue|Size=M",
		"Color=Blue|Size=L",
	}, keys)
	require.Equal(t, "var_001", out[0].ID)
	require.Equal(t, "var_006", out[5].ID)
}

func TestGenerateCountIsProductOfOptionCounts(t *testing.T) {
	t.Parallel()

	out := Generate([]domain.AttributeDefinition{
		attr("Color", "Red", "Blue", "Green"),
		attr("Size", "S", "M"),
		attr("Material", "Cotton", "Linen"),
	})
	require.Len(t, out, 12)

	ids := make(map[string]struct{}, len(out))
	combos := make(map[string]struct{}, len(out))
	for _, v := range out {
		require.Len(t, v.Attributes, 3)
		require.True(t, strings.HasPrefix(v.ID, "var_"))
		ids[v.ID] = struct{}{}
		combos[v.Key()] = struct{}{}
	}
	require.Len(t, ids, 12, "ids must be unique")
	require.Len(t, combos, 12, "combinations must be distinct")
}

func TestGenerateEmptyCases(t *testing.T) {
	t.Parallel()

	cases := map[string][]domain.AttributeDefinition{
		"no attributes":        nil,
		"attribute no options": {attr("Color", "Red", "Blue"), attr("Size")},
		"only blank options":   {attr("Color", "Red"), attr("Size", " ", "")},
	}
	for name, attrs := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			out := Generate(attrs)
			require.NotNil(t, out)
			require.Empty(t, out)
		})
	}
}

func TestGenerateSingleAttribute(t *testing.T) {
	t.Parallel()

	out := Generate([]domain.AttributeDefinition{attr("Size", "S", "M", "L")})
	require.Len(t, out, 3)
	for i, option := range []string{"S", "M", "L"} {
		got, ok := out[i].Option("Size")
		require.True(t, ok)
		require.Equal(t, option, got)
	}
}

func TestGenerateAppliesDefaults(t *testing.T) {
	t.Parallel()

	out := Generate([]domain.AttributeDefinition{attr("Size", "S")})
	require.Len(t, out, 1)
	v := out[0]
	require.Equal(t, domain.StockStatusInStock, v.Inventory.StockStatus)
	require.Equal(t, domain.BackordersNo, v.Inventory.Backorders)
	require.Equal(t, domain.VariationStatusPublished, v.Status)
	require.Empty(t, v.Pricing.RegularPrice)
	require.Nil(t, v.Media.Image)
}

func TestGenerateRecoversFromDuplicateIDs(t *testing.T) {
	t.Parallel()

	gen := NewGenerator(GeneratorDeps{IDGenerator: func() string { return "fixed" }})
	out := gen.Generate([]domain.AttributeDefinition{attr("Size", "S", "M", "L")})
	require.Len(t, out, 3)

	ids := map[string]struct{}{}
	for _, v := range out {
		ids[v.ID] = struct{}{}
	}
	require.Len(t, ids, 3)
	require.Equal(t, "fixed", out[0].ID)
}

func TestGenerateIsDeterministicGivenIDs(t *testing.T) {
	t.Parallel()

	attrs := []domain.AttributeDefinition{attr("Color", "Red", "Blue"), attr("Size", "S", "M")}
	first := NewGenerator(GeneratorDeps{IDGenerator: sequentialIDs()}).Generate(attrs)
	second := NewGenerator(GeneratorDeps{IDGenerator: sequentialIDs()}).Generate(attrs)
	require.Equal(t, first, second)
}

func TestRegenerateYieldsSameCombinationsWithFreshIDs(t *testing.T) {
	t.Parallel()

	attrs := []domain.AttributeDefinition{attr("Color", "Red", "Blue"), attr("Size", "S", "M")}
	first := Generate(attrs)
	second := Generate(attrs)
	require.Len(t, second, len(first))
	for i := range first {
		require.Equal(t, first[i].Attributes, second[i].Attributes)
		require.NotEqual(t, first[i].ID, second[i].ID)
	}
}

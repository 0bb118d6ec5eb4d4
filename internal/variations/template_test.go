package variations

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hanko-field/variants/internal/domain"
)

func TestFieldDistinguishesUnsetFromZero(t *testing.T) {
	t.Parallel()

	var unset Field[bool]
	require.False(t, unset.IsSet())
	require.True(t, unset.IsZero())

	explicit := Some(false)
	require.True(t, explicit.IsSet())
	value, ok := explicit.Get()
	require.True(t, ok)
	require.False(t, value)

	dst := true
	unset.applyTo(&dst)
	require.True(t, dst)
	explicit.applyTo(&dst)
	require.False(t, dst)

	explicit.Unset()
	require.False(t, explicit.IsSet())
}

func TestBulkTemplateJSONKeepsExplicitZeroValues(t *testing.T) {
	t.Parallel()

	var tmpl BulkTemplate
	err := json.Unmarshal([]byte(`{
		"inventory": {"manageStock": false, "stockQuantity": 0},
		"status": null,
		"shipping": {"dimensions": {"width": ""}}
	}`), &tmpl)
	require.NoError(t, err)

	require.True(t, tmpl.Inventory.ManageStock.IsSet())
	require.True(t, tmpl.Inventory.StockQuantity.IsSet())
	require.False(t, tmpl.Inventory.StockStatus.IsSet())
	require.False(t, tmpl.Status.IsSet())
	require.True(t, tmpl.Shipping.Dimensions.Width.IsSet())
	require.Equal(t, []FieldGroup{GroupInventory, GroupShipping}, tmpl.Groups())
}

func TestBulkTemplateJSONOmitsUnsetFields(t *testing.T) {
	t.Parallel()

	tmpl := BulkTemplate{Pricing: PricingTemplate{SalePrice: Some("9.99")}}
	data, err := json.Marshal(tmpl)
	require.NoError(t, err)
	require.JSONEq(t, `{"pricing":{"salePrice":"9.99"}}`, string(data))
}

func TestBulkTemplateGroups(t *testing.T) {
	t.Parallel()

	require.True(t, BulkTemplate{}.IsEmpty())

	tmpl := BulkTemplate{
		Content:   ContentTemplate{Description: Some("")},
		Virtual:   Some(true),
		Pricing:   PricingTemplate{RegularPrice: Some("10")},
		Inventory: InventoryTemplate{LowStockThreshold: Some(2)},
	}
	require.False(t, tmpl.IsEmpty())
	require.Equal(t, []FieldGroup{GroupPricing, GroupInventory, GroupStatus, GroupContent}, tmpl.Groups())
}

func TestBulkTemplateValidate(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		tmpl BulkTemplate
		ok   bool
	}{
		{name: "valid", tmpl: BulkTemplate{Inventory: InventoryTemplate{StockStatus: Some(domain.StockStatusOutOfStock)}}, ok: true},
		{name: "unknown stock status", tmpl: BulkTemplate{Inventory: InventoryTemplate{StockStatus: Some(domain.StockStatus("sold"))}}},
		{name: "unknown backorders", tmpl: BulkTemplate{Inventory: InventoryTemplate{Backorders: Some(domain.BackorderPolicy("maybe"))}}},
		{name: "negative quantity", tmpl: BulkTemplate{Inventory: InventoryTemplate{StockQuantity: Some(-1)}}},
		{name: "negative threshold", tmpl: BulkTemplate{Inventory: InventoryTemplate{LowStockThreshold: Some(-3)}}},
		{name: "unknown status", tmpl: BulkTemplate{Status: Some(domain.VariationStatus("draft"))}},
		{name: "sale ends before start", tmpl: BulkTemplate{Pricing: PricingTemplate{
			SaleStart: Some(start),
			SaleEnd:   Some(start.Add(-time.Hour)),
		}}},
		{name: "sale window", tmpl: BulkTemplate{Pricing: PricingTemplate{
			SaleStart: Some(start),
			SaleEnd:   Some(start.Add(time.Hour)),
		}}, ok: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.tmpl.Validate()
			if tc.ok {
				require.NoError(t, err)
				return
			}
			require.True(t, errors.Is(err, ErrInvalidTemplate), "got %v", err)
		})
	}
}

func TestContentTemplateImageAndDownloads(t *testing.T) {
	t.Parallel()

	v := domain.Variation{ID: "a", Media: domain.Media{Image: &domain.ImageRef{Src: "old.png"}}}

	BulkTemplate{Content: ContentTemplate{Image: Some(domain.ImageRef{Src: " new.png ", Alt: "New"})}}.ApplyTo(&v)
	require.Equal(t, &domain.ImageRef{Src: "new.png", Alt: "New"}, v.Media.Image)

	downloads := []domain.Download{{Name: "Manual", FileRef: "files/manual.pdf"}}
	tmpl := BulkTemplate{Content: ContentTemplate{Image: Some(domain.ImageRef{}), Downloads: Some(downloads)}}
	tmpl.ApplyTo(&v)
	require.Nil(t, v.Media.Image)
	require.Equal(t, downloads, v.Downloads)

	downloads[0].Name = "changed"
	require.Equal(t, "Manual", v.Downloads[0].Name)
}

package variations

import (
	"fmt"
	"strings"
	"time"

	"github.com/hanko-field/variants/internal/domain"
)

// FieldGroup names a semantic group of variation fields used for user feedback.
type FieldGroup string

const (
	GroupPricing   FieldGroup = "pricing"
	GroupInventory FieldGroup = "inventory"
	GroupShipping  FieldGroup = "shipping"
	GroupStatus    FieldGroup = "status"
	GroupContent   FieldGroup = "content"
)

// PricingTemplate overrides price fields.
type PricingTemplate struct {
	RegularPrice Field[string]    `json:"regularPrice,omitzero"`
	SalePrice    Field[string]    `json:"salePrice,omitzero"`
	SaleStart    Field[time.Time] `json:"saleStart,omitzero"`
	SaleEnd      Field[time.Time] `json:"saleEnd,omitzero"`
}

func (t PricingTemplate) present() bool {
	return t.RegularPrice.IsSet() || t.SalePrice.IsSet() || t.SaleStart.IsSet() || t.SaleEnd.IsSet()
}

func (t PricingTemplate) apply(dst *domain.Pricing) {
	t.RegularPrice.applyTo(&dst.RegularPrice)
	t.SalePrice.applyTo(&dst.SalePrice)
	t.SaleStart.applyTo(&dst.SaleStart)
	t.SaleEnd.applyTo(&dst.SaleEnd)
}

// InventoryTemplate overrides stock management fields.
type InventoryTemplate struct {
	StockStatus       Field[domain.StockStatus]     `json:"stockStatus,omitzero"`
	ManageStock       Field[bool]                   `json:"manageStock,omitzero"`
	StockQuantity     Field[int]                    `json:"stockQuantity,omitzero"`
	Backorders        Field[domain.BackorderPolicy] `json:"backorders,omitzero"`
	LowStockThreshold Field[int]                    `json:"lowStockThreshold,omitzero"`
}

func (t InventoryTemplate) present() bool {
	return t.StockStatus.IsSet() || t.ManageStock.IsSet() || t.StockQuantity.IsSet() ||
		t.Backorders.IsSet() || t.LowStockThreshold.IsSet()
}

func (t InventoryTemplate) apply(dst *domain.Inventory) {
	t.StockStatus.applyTo(&dst.StockStatus)
	t.ManageStock.applyTo(&dst.ManageStock)
	t.StockQuantity.applyTo(&dst.StockQuantity)
	t.Backorders.applyTo(&dst.Backorders)
	t.LowStockThreshold.applyTo(&dst.LowStockThreshold)
}

// DimensionsTemplate overrides individual package dimensions.
type DimensionsTemplate struct {
	Length Field[string] `json:"length,omitzero"`
	Width  Field[string] `json:"width,omitzero"`
	Height Field[string] `json:"height,omitzero"`
}

func (t DimensionsTemplate) present() bool {
	return t.Length.IsSet() || t.Width.IsSet() || t.Height.IsSet()
}

// ShippingTemplate overrides shipping fields, including nested dimensions.
type ShippingTemplate struct {
	Weight        Field[string]      `json:"weight,omitzero"`
	ShippingClass Field[string]      `json:"shippingClass,omitzero"`
	Dimensions    DimensionsTemplate `json:"dimensions,omitzero"`
}

func (t ShippingTemplate) present() bool {
	return t.Weight.IsSet() || t.ShippingClass.IsSet() || t.Dimensions.present()
}

func (t ShippingTemplate) apply(dst *domain.Shipping) {
	t.Weight.applyTo(&dst.Weight)
	t.ShippingClass.applyTo(&dst.ShippingClass)
	t.Dimensions.Length.applyTo(&dst.Dimensions.Length)
	t.Dimensions.Width.applyTo(&dst.Dimensions.Width)
	t.Dimensions.Height.applyTo(&dst.Dimensions.Height)
}

// ContentTemplate overrides description, image and downloads. A zero ImageRef clears the image.
type ContentTemplate struct {
	Description Field[string]            `json:"description,omitzero"`
	Image       Field[domain.ImageRef]   `json:"image,omitzero"`
	Downloads   Field[[]domain.Download] `json:"downloads,omitzero"`
}

func (t ContentTemplate) present() bool {
	return t.Description.IsSet() || t.Image.IsSet() || t.Downloads.IsSet()
}

func (t ContentTemplate) apply(dst *domain.Variation) {
	t.Description.applyTo(&dst.Content.Description)
	if img, ok := t.Image.Get(); ok {
		if img.IsZero() {
			dst.Media.Image = nil
		} else {
			img.Src = strings.TrimSpace(img.Src)
			dst.Media.Image = &img
		}
	}
	if downloads, ok := t.Downloads.Get(); ok {
		dst.Downloads = append([]domain.Download(nil), downloads...)
	}
}

// BulkTemplate is a sparse partial variation used as the source of override values.
// Flags are reported under the status group.
type BulkTemplate struct {
	Pricing      PricingTemplate               `json:"pricing,omitzero"`
	Inventory    InventoryTemplate             `json:"inventory,omitzero"`
	Shipping     ShippingTemplate              `json:"shipping,omitzero"`
	Status       Field[domain.VariationStatus] `json:"status,omitzero"`
	Virtual      Field[bool]                   `json:"virtual,omitzero"`
	Downloadable Field[bool]                   `json:"downloadable,omitzero"`
	Content      ContentTemplate               `json:"content,omitzero"`
}

// Groups lists, in a fixed order, the field groups with at least one present field.
func (t BulkTemplate) Groups() []FieldGroup {
	groups := make([]FieldGroup, 0, 5)
	if t.Pricing.present() {
		groups = append(groups, GroupPricing)
	}
	if t.Inventory.present() {
		groups = append(groups, GroupInventory)
	}
	if t.Shipping.present() {
		groups = append(groups, GroupShipping)
	}
	if t.Status.IsSet() || t.Virtual.IsSet() || t.Downloadable.IsSet() {
		groups = append(groups, GroupStatus)
	}
	if t.Content.present() {
		groups = append(groups, GroupContent)
	}
	return groups
}

// IsEmpty reports whether no field is present.
func (t BulkTemplate) IsEmpty() bool {
	return len(t.Groups()) == 0
}

// Validate rejects enum values and quantities a variation cannot hold.
func (t BulkTemplate) Validate() error {
	if status, ok := t.Inventory.StockStatus.Get(); ok {
		switch status {
		case domain.StockStatusInStock, domain.StockStatusOutOfStock, domain.StockStatusOnBackorder:
		default:
			return fmt.Errorf("%w: unknown stock status %q", ErrInvalidTemplate, status)
		}
	}
	if policy, ok := t.Inventory.Backorders.Get(); ok {
		switch policy {
		case domain.BackordersNo, domain.BackordersNotify, domain.BackordersYes:
		default:
			return fmt.Errorf("%w: unknown backorder policy %q", ErrInvalidTemplate, policy)
		}
	}
	if qty, ok := t.Inventory.StockQuantity.Get(); ok && qty < 0 {
		return fmt.Errorf("%w: stock quantity must not be negative", ErrInvalidTemplate)
	}
	if threshold, ok := t.Inventory.LowStockThreshold.Get(); ok && threshold < 0 {
		return fmt.Errorf("%w: low stock threshold must not be negative", ErrInvalidTemplate)
	}
	if status, ok := t.Status.Get(); ok {
		switch status {
		case domain.VariationStatusPublished, domain.VariationStatusPrivate:
		default:
			return fmt.Errorf("%w: unknown variation status %q", ErrInvalidTemplate, status)
		}
	}
	start, hasStart := t.Pricing.SaleStart.Get()
	end, hasEnd := t.Pricing.SaleEnd.Get()
	if hasStart && hasEnd && !start.IsZero() && !end.IsZero() && end.Before(start) {
		return fmt.Errorf("%w: sale end precedes sale start", ErrInvalidTemplate)
	}
	return nil
}

// ApplyTo copies every present field onto v.
func (t BulkTemplate) ApplyTo(v *domain.Variation) {
	t.Pricing.apply(&v.Pricing)
	t.Inventory.apply(&v.Inventory)
	t.Shipping.apply(&v.Shipping)
	t.Status.applyTo(&v.Status)
	t.Virtual.applyTo(&v.Flags.Virtual)
	t.Downloadable.applyTo(&v.Flags.Downloadable)
	t.Content.apply(v)
}

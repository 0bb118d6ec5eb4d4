package domain

import (
	"strings"
	"time"
)

// StockStatus reports the availability state advertised for a variation.
type StockStatus string

const (
	// StockStatusInStock indicates the variation can be purchased.
	StockStatusInStock StockStatus = "instock"
	// StockStatusOutOfStock indicates the variation is unavailable.
	StockStatusOutOfStock StockStatus = "outofstock"
	// StockStatusOnBackorder indicates orders are accepted while stock is replenished.
	StockStatusOnBackorder StockStatus = "onbackorder"
)

// BackorderPolicy controls whether orders are accepted once managed stock reaches zero.
type BackorderPolicy string

const (
	// BackordersNo rejects orders when stock is exhausted.
	BackordersNo BackorderPolicy = "no"
	// BackordersNotify accepts orders and notifies the customer.
	BackordersNotify BackorderPolicy = "notify"
	// BackordersYes silently accepts orders.
	BackordersYes BackorderPolicy = "yes"
)

// VariationStatus is the publication state of a variation.
type VariationStatus string

const (
	// VariationStatusPublished exposes the variation on the storefront.
	VariationStatusPublished VariationStatus = "published"
	// VariationStatusPrivate hides the variation from the storefront.
	VariationStatusPrivate VariationStatus = "private"
)

// AttributeDefinition is a named, ordered list of selectable option values (e.g. Color: Red/Blue).
type AttributeDefinition struct {
	Name         string   `json:"name"`
	Options      []string `json:"options"`
	Visible      bool     `json:"visible"`
	ForVariation bool     `json:"forVariation"`
}

// Clone returns a copy that does not share the option slice.
func (a AttributeDefinition) Clone() AttributeDefinition {
	a.Options = append([]string(nil), a.Options...)
	return a
}

// AttributeSelection records the option chosen for one attribute of a variation.
type AttributeSelection struct {
	Name   string `json:"name"`
	Option string `json:"option"`
}

// Pricing groups the price fields of a variation. Prices are decimal strings as entered by the merchant.
type Pricing struct {
	RegularPrice string    `json:"regularPrice"`
	SalePrice    string    `json:"salePrice"`
	SaleStart    time.Time `json:"saleStart,omitzero"`
	SaleEnd      time.Time `json:"saleEnd,omitzero"`
}

// Inventory groups stock management fields.
type Inventory struct {
	StockStatus       StockStatus     `json:"stockStatus"`
	ManageStock       bool            `json:"manageStock"`
	StockQuantity     int             `json:"stockQuantity"`
	Backorders        BackorderPolicy `json:"backorders"`
	LowStockThreshold int             `json:"lowStockThreshold"`
}

// Dimensions are decimal strings in the store's configured unit.
type Dimensions struct {
	Length string `json:"length"`
	Width  string `json:"width"`
	Height string `json:"height"`
}

// Shipping groups weight, class and package dimensions.
type Shipping struct {
	Weight        string     `json:"weight"`
	ShippingClass string     `json:"shippingClass"`
	Dimensions    Dimensions `json:"dimensions"`
}

// ImageRef points at an already uploaded image.
type ImageRef struct {
	Src string `json:"src"`
	Alt string `json:"alt,omitempty"`
}

// IsZero reports whether the reference carries no image.
func (i ImageRef) IsZero() bool {
	return strings.TrimSpace(i.Src) == ""
}

// Media holds the optional variation image.
type Media struct {
	Image *ImageRef `json:"image,omitempty"`
}

// Content holds descriptive text.
type Content struct {
	Description string `json:"description"`
}

// Flags marks virtual and downloadable variations.
type Flags struct {
	Virtual      bool `json:"virtual"`
	Downloadable bool `json:"downloadable"`
}

// Download is a file delivered to buyers of a downloadable variation.
type Download struct {
	Name    string `json:"name"`
	FileRef string `json:"fileRef"`
}

// Variation is one concrete product variant produced by choosing exactly one option per attribute.
type Variation struct {
	ID         string               `json:"id"`
	Attributes []AttributeSelection `json:"attributes"`
	Pricing    Pricing              `json:"pricing"`
	Inventory  Inventory            `json:"inventory"`
	Shipping   Shipping             `json:"shipping"`
	Media      Media                `json:"media"`
	Content    Content              `json:"content"`
	Status     VariationStatus      `json:"status"`
	Flags      Flags                `json:"flags"`
	Downloads  []Download           `json:"downloads,omitempty"`
}

// Clone deep-copies the variation so callers can mutate the result freely.
func (v Variation) Clone() Variation {
	v.Attributes = append([]AttributeSelection(nil), v.Attributes...)
	if v.Downloads != nil {
		v.Downloads = append([]Download(nil), v.Downloads...)
	}
	if v.Media.Image != nil {
		img := *v.Media.Image
		v.Media.Image = &img
	}
	return v
}

// Option returns the option selected for the named attribute.
func (v Variation) Option(name string) (string, bool) {
	for _, sel := range v.Attributes {
		if sel.Name == name {
			return sel.Option, true
		}
	}
	return "", false
}

// Key renders the attribute combination as a stable string, e.g. "Color=Red|Size=S".
func (v Variation) Key() string {
	parts := make([]string, 0, len(v.Attributes))
	for _, sel := range v.Attributes {
		parts = append(parts, sel.Name+"="+sel.Option)
	}
	return strings.Join(parts, "|")
}

// CloneVariations deep-copies a variation list.
func CloneVariations(variations []Variation) []Variation {
	if variations == nil {
		return nil
	}
	out := make([]Variation, len(variations))
	for i, v := range variations {
		out[i] = v.Clone()
	}
	return out
}

// CloneAttributes deep-copies an attribute definition list.
func CloneAttributes(attrs []AttributeDefinition) []AttributeDefinition {
	if attrs == nil {
		return nil
	}
	out := make([]AttributeDefinition, len(attrs))
	for i, a := range attrs {
		out[i] = a.Clone()
	}
	return out
}

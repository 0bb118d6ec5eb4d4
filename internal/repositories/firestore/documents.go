package firestore

import (
	"time"

	"github.com/hanko-field/variants/internal/domain"
)

type attributeDocument struct {
	Name         string   `firestore:"name"`
	Options      []string `firestore:"options"`
	Visible      bool     `firestore:"visible"`
	ForVariation bool     `firestore:"forVariation"`
}

type productDocument struct {
	Attributes []attributeDocument `firestore:"attributes"`
	Fields     map[string]any      `firestore:"fields,omitempty"`
	CreatedAt  time.Time           `firestore:"createdAt"`
	UpdatedAt  time.Time           `firestore:"updatedAt"`
}

type selectionDocument struct {
	Name   string `firestore:"name"`
	Option string `firestore:"option"`
}

type imageDocument struct {
	Src string `firestore:"src"`
	Alt string `firestore:"alt,omitempty"`
}

type downloadDocument struct {
	Name    string `firestore:"name"`
	FileRef string `firestore:"fileRef"`
}

type variationDocument struct {
	Attributes        []selectionDocument `firestore:"attributes"`
	RegularPrice      string              `firestore:"regularPrice"`
	SalePrice         string              `firestore:"salePrice"`
	SaleStart         *time.Time          `firestore:"saleStart,omitempty"`
	SaleEnd           *time.Time          `firestore:"saleEnd,omitempty"`
	StockStatus       string              `firestore:"stockStatus"`
	ManageStock       bool                `firestore:"manageStock"`
	StockQuantity     int64               `firestore:"stockQuantity"`
	Backorders        string              `firestore:"backorders"`
	LowStockThreshold int64               `firestore:"lowStockThreshold"`
	Weight            string              `firestore:"weight"`
	ShippingClass     string              `firestore:"shippingClass"`
	Length            string              `firestore:"length"`
	Width             string              `firestore:"width"`
	Height            string              `firestore:"height"`
	Image             *imageDocument      `firestore:"image,omitempty"`
	Description       string              `firestore:"description"`
	Status            string              `firestore:"status"`
	Virtual           bool                `firestore:"virtual"`
	Downloadable      bool                `firestore:"downloadable"`
	Downloads         []downloadDocument  `firestore:"downloads,omitempty"`
	UpdatedAt         time.Time           `firestore:"updatedAt"`
}

func newAttributeDocuments(defs []domain.AttributeDefinition) []attributeDocument {
	docs := make([]attributeDocument, len(defs))
	for i, def := range defs {
		docs[i] = attributeDocument{
			Name:         def.Name,
			Options:      append([]string{}, def.Options...),
			Visible:      def.Visible,
			ForVariation: def.ForVariation,
		}
	}
	return docs
}

func (d productDocument) attributes() []domain.AttributeDefinition {
	defs := make([]domain.AttributeDefinition, len(d.Attributes))
	for i, attr := range d.Attributes {
		defs[i] = domain.AttributeDefinition{
			Name:         attr.Name,
			Options:      append([]string(nil), attr.Options...),
			Visible:      attr.Visible,
			ForVariation: attr.ForVariation,
		}
	}
	return defs
}

func newVariationDocument(v domain.Variation, now time.Time) variationDocument {
	doc := variationDocument{
		Attributes:        make([]selectionDocument, len(v.Attributes)),
		RegularPrice:      v.Pricing.RegularPrice,
		SalePrice:         v.Pricing.SalePrice,
		SaleStart:         timePtr(v.Pricing.SaleStart),
		SaleEnd:           timePtr(v.Pricing.SaleEnd),
		StockStatus:       string(v.Inventory.StockStatus),
		ManageStock:       v.Inventory.ManageStock,
		StockQuantity:     int64(v.Inventory.StockQuantity),
		Backorders:        string(v.Inventory.Backorders),
		LowStockThreshold: int64(v.Inventory.LowStockThreshold),
		Weight:            v.Shipping.Weight,
		ShippingClass:     v.Shipping.ShippingClass,
		Length:            v.Shipping.Dimensions.Length,
		Width:             v.Shipping.Dimensions.Width,
		Height:            v.Shipping.Dimensions.Height,
		Description:       v.Content.Description,
		Status:            string(v.Status),
		Virtual:           v.Flags.Virtual,
		Downloadable:      v.Flags.Downloadable,
		UpdatedAt:         now,
	}
	for i, sel := range v.Attributes {
		doc.Attributes[i] = selectionDocument{Name: sel.Name, Option: sel.Option}
	}
	if v.Media.Image != nil && !v.Media.Image.IsZero() {
		doc.Image = &imageDocument{Src: v.Media.Image.Src, Alt: v.Media.Image.Alt}
	}
	for _, dl := range v.Downloads {
		doc.Downloads = append(doc.Downloads, downloadDocument{Name: dl.Name, FileRef: dl.FileRef})
	}
	return doc
}

func (d variationDocument) toDomain(id string) domain.Variation {
	v := domain.Variation{
		ID:         id,
		Attributes: make([]domain.AttributeSelection, len(d.Attributes)),
		Pricing: domain.Pricing{
			RegularPrice: d.RegularPrice,
			SalePrice:    d.SalePrice,
		},
		Inventory: domain.Inventory{
			StockStatus:       domain.StockStatus(d.StockStatus),
			ManageStock:       d.ManageStock,
			StockQuantity:     int(d.StockQuantity),
			Backorders:        domain.BackorderPolicy(d.Backorders),
			LowStockThreshold: int(d.LowStockThreshold),
		},
		Shipping: domain.Shipping{
			Weight:        d.Weight,
			ShippingClass: d.ShippingClass,
			Dimensions: domain.Dimensions{
				Length: d.Length,
				Width:  d.Width,
				Height: d.Height,
			},
		},
		Content: domain.Content{Description: d.Description},
		Status:  domain.VariationStatus(d.Status),
		Flags: domain.Flags{
			Virtual:      d.Virtual,
			Downloadable: d.Downloadable,
		},
	}
	for i, sel := range d.Attributes {
		v.Attributes[i] = domain.AttributeSelection{Name: sel.Name, Option: sel.Option}
	}
	if d.SaleStart != nil {
		v.Pricing.SaleStart = d.SaleStart.UTC()
	}
	if d.SaleEnd != nil {
		v.Pricing.SaleEnd = d.SaleEnd.UTC()
	}
	if d.Image != nil && d.Image.Src != "" {
		v.Media.Image = &domain.ImageRef{Src: d.Image.Src, Alt: d.Image.Alt}
	}
	for _, dl := range d.Downloads {
		v.Downloads = append(v.Downloads, domain.Download{Name: dl.Name, FileRef: dl.FileRef})
	}
	if v.Inventory.StockStatus == "" {
		v.Inventory.StockStatus = domain.StockStatusInStock
	}
	if v.Inventory.Backorders == "" {
		v.Inventory.Backorders = domain.BackordersNo
	}
	if v.Status == "" {
		v.Status = domain.VariationStatusPublished
	}
	return v
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	utc := t.UTC()
	return &utc
}

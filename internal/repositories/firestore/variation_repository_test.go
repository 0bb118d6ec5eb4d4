package firestore

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hanko-field/variants/internal/domain"
	pconfig "github.com/hanko-field/variants/internal/platform/config"
	pfirestore "github.com/hanko-field/variants/internal/platform/firestore"
	"github.com/hanko-field/variants/internal/variations"
)

func sampleVariation() domain.Variation {
	return domain.Variation{
		ID: "var_01",
		Attributes: []domain.AttributeSelection{
			{Name: "Color", Option: "Red"},
			{Name: "Size", Option: "M"},
		},
		Pricing: domain.Pricing{
			RegularPrice: "19.99",
			SalePrice:    "14.99",
			SaleStart:    time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC),
		},
		Inventory: domain.Inventory{
			StockStatus:       domain.StockStatusOnBackorder,
			ManageStock:       true,
			StockQuantity:     0,
			Backorders:        domain.BackordersNotify,
			LowStockThreshold: 2,
		},
		Shipping: domain.Shipping{
			Weight:        "0.4",
			ShippingClass: "parcel",
			Dimensions:    domain.Dimensions{Length: "30", Width: "20", Height: "2"},
		},
		Media:     domain.Media{Image: &domain.ImageRef{Src: "https://cdn.example.com/red.png", Alt: "Red"}},
		Content:   domain.Content{Description: "Red, medium"},
		Status:    domain.VariationStatusPrivate,
		Flags:     domain.Flags{Downloadable: true},
		Downloads: []domain.Download{{Name: "Manual", FileRef: "gs://media/manual.pdf"}},
	}
}

func TestVariationDocumentRoundTrip(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	want := sampleVariation()

	doc := newVariationDocument(want, now)
	if doc.SaleEnd != nil {
		t.Fatalf("expected unset sale end to be omitted, got %v", doc.SaleEnd)
	}
	if doc.SaleStart == nil || !doc.SaleStart.Equal(want.Pricing.SaleStart) {
		t.Fatalf("unexpected sale start %v", doc.SaleStart)
	}
	if !doc.UpdatedAt.Equal(now) {
		t.Fatalf("unexpected updatedAt %v", doc.UpdatedAt)
	}

	got := doc.toDomain("var_01")
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch\n got: %#v\nwant: %#v", got, want)
	}
}

func TestVariationDocumentDropsEmptyImage(t *testing.T) {
	v := sampleVariation()
	v.Media.Image = &domain.ImageRef{Src: "  "}
	v.Downloads = nil

	doc := newVariationDocument(v, time.Now())
	if doc.Image != nil {
		t.Fatalf("expected empty image to be dropped, got %+v", doc.Image)
	}
	if doc.Downloads != nil {
		t.Fatalf("expected no downloads, got %+v", doc.Downloads)
	}
	if got := doc.toDomain(v.ID); got.Media.Image != nil {
		t.Fatalf("expected nil image, got %+v", got.Media.Image)
	}
}

func TestVariationDocumentDefaultsMissingEnums(t *testing.T) {
	got := variationDocument{}.toDomain("var_legacy")
	if got.Inventory.StockStatus != domain.StockStatusInStock {
		t.Errorf("unexpected stock status %q", got.Inventory.StockStatus)
	}
	if got.Inventory.Backorders != domain.BackordersNo {
		t.Errorf("unexpected backorders %q", got.Inventory.Backorders)
	}
	if got.Status != domain.VariationStatusPublished {
		t.Errorf("unexpected status %q", got.Status)
	}
	if got.Attributes == nil || len(got.Attributes) != 0 {
		t.Errorf("expected empty attribute list, got %#v", got.Attributes)
	}
}

func TestProductDocumentAttributes(t *testing.T) {
	defs := []domain.AttributeDefinition{
		{Name: "Color", Options: []string{"Red", "Blue"}, Visible: true, ForVariation: true},
		{Name: "Material", Options: []string{"Cotton"}, Visible: true},
	}
	doc := productDocument{Attributes: newAttributeDocuments(defs)}
	defs[0].Options[0] = "Green"

	got := doc.attributes()
	if got[0].Options[0] != "Red" {
		t.Fatalf("attribute documents share option slices with input")
	}
	if !got[0].ForVariation || got[1].ForVariation || !got[1].Visible {
		t.Fatalf("unexpected flags %+v", got)
	}
}

func TestProductPatch(t *testing.T) {
	now := time.Date(2026, 10, 2, 8, 30, 0, 0, time.UTC)

	create := productPatch(variations.SaveRequest{
		Mode: variations.ModeCreate,
		ParentProductPatch: variations.ProductPatch{
			Attributes: []domain.AttributeDefinition{{Name: "Color", Options: []string{"Red"}, ForVariation: true}},
			Fields:     map[string]any{"name": "Tee"},
		},
	}, now)
	for _, key := range []string{"updatedAt", "createdAt", "attributes", "fields"} {
		if _, ok := create[key]; !ok {
			t.Errorf("create patch missing %q: %#v", key, create)
		}
	}

	edit := productPatch(variations.SaveRequest{Mode: variations.ModeEdit}, now)
	if len(edit) != 1 {
		t.Fatalf("expected edit patch with updatedAt only, got %#v", edit)
	}
	if got, ok := edit["updatedAt"].(time.Time); !ok || !got.Equal(now) {
		t.Fatalf("unexpected updatedAt %#v", edit["updatedAt"])
	}

	cleared := productPatch(variations.SaveRequest{
		Mode:               variations.ModeEdit,
		ParentProductPatch: variations.ProductPatch{Attributes: []domain.AttributeDefinition{}},
	}, now)
	if attrs, ok := cleared["attributes"].([]attributeDocument); !ok || len(attrs) != 0 {
		t.Fatalf("expected empty attribute list to be written, got %#v", cleared["attributes"])
	}
}

func TestVariationRepositoryValidation(t *testing.T) {
	if _, err := NewVariationRepository(VariationRepositoryDeps{}); err == nil {
		t.Fatal("expected error without provider")
	}

	provider := pfirestore.NewProvider(pconfig.FirestoreConfig{ProjectID: "variants-test"})
	repo, err := NewVariationRepository(VariationRepositoryDeps{Provider: provider, ProductsCollection: " /catalog/ "})
	if err != nil {
		t.Fatalf("NewVariationRepository: %v", err)
	}
	if got := repo.products.Path(); got != "catalog" {
		t.Fatalf("unexpected collection %q", got)
	}
	children, err := repo.variationsOf("prod_1")
	if err != nil {
		t.Fatalf("variationsOf: %v", err)
	}
	if got := children.Path(); got != "catalog/prod_1/variations" {
		t.Fatalf("unexpected subcollection path %q", got)
	}

	ctx := context.Background()
	for _, id := range []string{"", "  ", "a/b"} {
		if _, err := repo.LoadVariations(ctx, id); err == nil {
			t.Errorf("expected load error for product id %q", id)
		}
		if _, err := repo.SaveVariations(ctx, variations.SaveRequest{ParentProductID: id, Mode: variations.ModeCreate}); err == nil {
			t.Errorf("expected save error for product id %q", id)
		}
	}
}

func TestFailureMessageNamesRecovery(t *testing.T) {
	cases := []struct {
		err    error
		prefix string
	}{
		{err: pfirestore.WrapError("transaction.commit", status.Error(codes.Aborted, "too much contention")), prefix: "product was changed by another save"},
		{err: status.Error(codes.Unavailable, "backend down"), prefix: "storage is temporarily unavailable"},
		{err: errors.New("boom"), prefix: "boom"},
	}
	for _, tc := range cases {
		if got := failureMessage(tc.err); !strings.HasPrefix(got, tc.prefix) {
			t.Errorf("failureMessage(%v) = %q, want prefix %q", tc.err, got, tc.prefix)
		}
	}
}

package storage

import (
	"context"
	"errors"
	"testing"

	gcs "cloud.google.com/go/storage"

	"github.com/hanko-field/variants/internal/platform/config"
)

type fakeObject struct {
	contentType string
	alt         string
}

func fakeAttrs(objects map[string]fakeObject) attrsFunc {
	return func(_ context.Context, bucket, object string) (*gcs.ObjectAttrs, error) {
		obj, ok := objects[bucket+"/"+object]
		if !ok {
			return nil, gcs.ErrObjectNotExist
		}
		attrs := &gcs.ObjectAttrs{Bucket: bucket, Name: object, ContentType: obj.contentType}
		if obj.alt != "" {
			attrs.Metadata = map[string]string{"alt": obj.alt}
		}
		return attrs, nil
	}
}

func TestMediaResolverResolvesImages(t *testing.T) {
	resolver := newMediaResolver(config.StorageConfig{MediaBucket: "catalog-media", PublicBaseURL: "https://cdn.example.com/"}, fakeAttrs(map[string]fakeObject{
		"catalog-media/variations/red shirt.png": {contentType: "image/png", alt: "Red shirt"},
		"other-bucket/a.jpg":                     {contentType: "IMAGE/JPEG"},
		"catalog-media/manual.pdf":               {contentType: "application/pdf"},
	}))

	img, err := resolver.ResolveImage(context.Background(), "variations/red shirt.png")
	if err != nil {
		t.Fatalf("ResolveImage returned error: %v", err)
	}
	if img.Src != "https://cdn.example.com/variations/red%20shirt.png" {
		t.Errorf("unexpected src %q", img.Src)
	}
	if img.Alt != "Red shirt" {
		t.Errorf("unexpected alt %q", img.Alt)
	}

	img, err = resolver.ResolveImage(context.Background(), "gs://other-bucket/a.jpg")
	if err != nil {
		t.Fatalf("ResolveImage returned error: %v", err)
	}
	if img.Src != "https://storage.googleapis.com/other-bucket/a.jpg" {
		t.Errorf("unexpected src %q", img.Src)
	}

	if _, err := resolver.ResolveImage(context.Background(), "manual.pdf"); !errors.Is(err, ErrNotImage) {
		t.Errorf("expected ErrNotImage, got %v", err)
	}
	if _, err := resolver.ResolveImage(context.Background(), "missing.png"); !errors.Is(err, ErrMediaNotFound) {
		t.Errorf("expected ErrMediaNotFound, got %v", err)
	}
}

func TestMediaResolverRejectsInvalidRefs(t *testing.T) {
	resolver := newMediaResolver(config.StorageConfig{}, fakeAttrs(nil))
	for _, ref := range []string{"", "gs://", "gs://bucket", "gs://bucket/", "relative.png"} {
		if _, err := resolver.ResolveImage(context.Background(), ref); err == nil {
			t.Errorf("expected error for ref %q", ref)
		}
	}
}

func TestNewMediaResolverRequiresClient(t *testing.T) {
	if _, err := NewMediaResolver(nil, config.StorageConfig{}); err == nil {
		t.Fatal("expected error for nil client")
	}
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/googleapis/gax-go/v2"

	"github.com/hanko-field/variants/internal/domain"
	"github.com/hanko-field/variants/internal/platform/config"
	"github.com/hanko-field/variants/internal/variations"
)

const defaultPublicHost = "https://storage.googleapis.com"

// attrsBackoff paces retries of metadata reads, which are idempotent.
var attrsBackoff = gax.Backoff{
	Initial:    100 * time.Millisecond,
	Max:        2 * time.Second,
	Multiplier: 2,
}

var (
	// ErrMediaNotFound indicates the referenced object does not exist.
	ErrMediaNotFound = errors.New("storage: media object not found")
	// ErrNotImage indicates the referenced object is not an image.
	ErrNotImage = errors.New("storage: media object is not an image")

	errInvalidRef = errors.New("storage: media reference is required")
)

type attrsFunc func(ctx context.Context, bucket, object string) (*gcs.ObjectAttrs, error)

// MediaResolver turns uploaded object references into public image references after checking
// the object exists and holds an image.
type MediaResolver struct {
	bucket  string
	baseURL string
	attrs   attrsFunc
}

var _ variations.MediaSource = (*MediaResolver)(nil)

// NewMediaResolver constructs a resolver backed by the provided Cloud Storage client.
func NewMediaResolver(client *gcs.Client, cfg config.StorageConfig) (*MediaResolver, error) {
	if client == nil {
		return nil, errors.New("storage media resolver: client is required")
	}
	return newMediaResolver(cfg, func(ctx context.Context, bucket, object string) (*gcs.ObjectAttrs, error) {
		return client.Bucket(bucket).Object(object).
			Retryer(gcs.WithBackoff(attrsBackoff), gcs.WithPolicy(gcs.RetryIdempotent)).
			Attrs(ctx)
	}), nil
}

func newMediaResolver(cfg config.StorageConfig, attrs attrsFunc) *MediaResolver {
	return &MediaResolver{
		bucket:  strings.TrimSpace(cfg.MediaBucket),
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/"),
		attrs:   attrs,
	}
}

// ResolveImage accepts either "gs://bucket/object" or an object name inside the media bucket.
func (r *MediaResolver) ResolveImage(ctx context.Context, ref string) (domain.ImageRef, error) {
	if r == nil || r.attrs == nil {
		return domain.ImageRef{}, errors.New("storage media resolver: not initialised")
	}
	bucket, object, err := r.parseRef(ref)
	if err != nil {
		return domain.ImageRef{}, err
	}

	attrs, err := r.attrs(ctx, bucket, object)
	if errors.Is(err, gcs.ErrObjectNotExist) || errors.Is(err, gcs.ErrBucketNotExist) {
		return domain.ImageRef{}, fmt.Errorf("%w: gs://%s/%s", ErrMediaNotFound, bucket, object)
	}
	if err != nil {
		return domain.ImageRef{}, fmt.Errorf("storage: read attrs gs://%s/%s: %w", bucket, object, err)
	}
	if !strings.HasPrefix(strings.ToLower(attrs.ContentType), "image/") {
		return domain.ImageRef{}, fmt.Errorf("%w: gs://%s/%s has content type %q", ErrNotImage, bucket, object, attrs.ContentType)
	}

	return domain.ImageRef{
		Src: r.PublicURL(bucket, object),
		Alt: strings.TrimSpace(attrs.Metadata["alt"]),
	}, nil
}

// PublicURL builds the browser-facing URL of an object. The configured base URL only applies to
// objects in the media bucket.
func (r *MediaResolver) PublicURL(bucket, object string) string {
	escaped := escapeObjectPath(object)
	if r.baseURL != "" && bucket == r.bucket {
		return r.baseURL + "/" + escaped
	}
	return defaultPublicHost + "/" + url.PathEscape(bucket) + "/" + escaped
}

func (r *MediaResolver) parseRef(ref string) (string, string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", "", errInvalidRef
	}
	if rest, ok := strings.CutPrefix(ref, "gs://"); ok {
		bucket, object, found := strings.Cut(rest, "/")
		if !found || bucket == "" || strings.Trim(object, "/") == "" {
			return "", "", fmt.Errorf("storage: invalid media reference %q", ref)
		}
		return bucket, strings.TrimLeft(object, "/"), nil
	}
	if r.bucket == "" {
		return "", "", fmt.Errorf("storage: media bucket is not configured for reference %q", ref)
	}
	object := strings.TrimLeft(ref, "/")
	if object == "" {
		return "", "", errInvalidRef
	}
	return r.bucket, object, nil
}

func escapeObjectPath(object string) string {
	segments := strings.Split(object, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}

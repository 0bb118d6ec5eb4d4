package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

// Document is a decoded snapshot together with its id.
type Document[T any] struct {
	ID   string
	Data T
}

// Collection addresses a collection whose documents decode into T. The path may be nested,
// e.g. "products/p1/variations".
type Collection[T any] struct {
	provider *Provider
	path     string
}

// NewCollection binds path to provider. Leading and trailing slashes are ignored.
func NewCollection[T any](provider *Provider, path string) *Collection[T] {
	return &Collection[T]{provider: provider, path: strings.Trim(strings.TrimSpace(path), "/")}
}

// Path returns the slash separated collection path.
func (c *Collection[T]) Path() string {
	return c.path
}

// ChildPath returns the path of subcollection name under document id of parent.
func ChildPath(parent, id, name string) (string, error) {
	if err := ValidateID(id); err != nil {
		return "", err
	}
	return strings.Trim(parent, "/") + "/" + id + "/" + name, nil
}

// ValidateID rejects ids Firestore would interpret as paths.
func ValidateID(id string) error {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" || trimmed != id || strings.Contains(id, "/") {
		return fmt.Errorf("firestore: invalid document id %q", id)
	}
	return nil
}

// Ref resolves the collection on the shared client.
func (c *Collection[T]) Ref(ctx context.Context) (*firestore.CollectionRef, error) {
	if c.provider == nil {
		return nil, errors.New("firestore: provider is nil")
	}
	if c.path == "" {
		return nil, errors.New("firestore: collection path is required")
	}
	client, err := c.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	coll := client.Collection(c.path)
	if coll == nil {
		return nil, fmt.Errorf("firestore: %q is not a collection path", c.path)
	}
	return coll, nil
}

// Doc resolves document id of the collection.
func (c *Collection[T]) Doc(ctx context.Context, id string) (*firestore.DocumentRef, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	coll, err := c.Ref(ctx)
	if err != nil {
		return nil, err
	}
	return coll.Doc(id), nil
}

// Exists reports whether document id is stored.
func (c *Collection[T]) Exists(ctx context.Context, id string) (bool, error) {
	ref, err := c.Doc(ctx, id)
	if err != nil {
		return false, err
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, WrapError(c.Op("get"), err)
	}
	return snap.Exists(), nil
}

// Decode hydrates snap into T.
func (c *Collection[T]) Decode(snap *firestore.DocumentSnapshot) (Document[T], error) {
	var data T
	if err := snap.DataTo(&data); err != nil {
		return Document[T]{}, fmt.Errorf("firestore: decode %s/%s: %w", c.path, snap.Ref.ID, err)
	}
	return Document[T]{ID: snap.Ref.ID, Data: data}, nil
}

// Collect drains iter in order, decoding every snapshot, and stops it.
func (c *Collection[T]) Collect(iter *firestore.DocumentIterator) ([]Document[T], error) {
	defer iter.Stop()
	var docs []Document[T]
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return docs, nil
		}
		if err != nil {
			return nil, WrapError(c.Op("list"), err)
		}
		doc, err := c.Decode(snap)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
}

// Op names an operation on the collection for error annotation, e.g. "products.get".
func (c *Collection[T]) Op(action string) string {
	return strings.ReplaceAll(c.path, "/", ".") + "." + action
}

package variations

import (
	"bytes"
	"encoding/json"
)

// Field is an optional template value. An unset Field is distinct from a Field explicitly set to
// the zero value of T, so false, 0 and "" are all applied when set.
type Field[T any] struct {
	value T
	set   bool
}

// Some returns a Field set to value.
func Some[T any](value T) Field[T] {
	return Field[T]{value: value, set: true}
}

// Set marks the field present with value.
func (f *Field[T]) Set(value T) {
	f.value = value
	f.set = true
}

// Unset clears the field.
func (f *Field[T]) Unset() {
	var zero T
	f.value = zero
	f.set = false
}

// Get returns the value and whether it was set.
func (f Field[T]) Get() (T, bool) {
	return f.value, f.set
}

// IsSet reports whether the field carries a value.
func (f Field[T]) IsSet() bool {
	return f.set
}

// IsZero reports whether the field is unset; it lets encoding/json omit unset fields via omitzero.
func (f Field[T]) IsZero() bool {
	return !f.set
}

func (f Field[T]) applyTo(dst *T) {
	if f.set {
		*dst = f.value
	}
}

// MarshalJSON encodes the value, or null when unset.
func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.set {
		return []byte("null"), nil
	}
	return json.Marshal(f.value)
}

// UnmarshalJSON treats null as absent and every other literal, including false, 0 and "", as present.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		f.Unset()
		return nil
	}
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	f.Set(value)
	return nil
}

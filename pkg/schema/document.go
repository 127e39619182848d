package schema

import (
	"context"
	"math"

	"autonum/pkg/apperror"
)

// Document is a schemaless attribute map bound to a model. Whether it is
// newly created or pre-existing is decided at construction and trusted as
// given. Documents are not safe for concurrent use.
type Document struct {
	model *Model
	data  map[string]any
	isNew bool
}

// Model returns the owning model.
func (d *Document) Model() *Model {
	return d.model
}

// IsNew reports whether the document has never been saved.
func (d *Document) IsNew() bool {
	return d.isNew
}

// Get returns an attribute value.
func (d *Document) Get(name string) (any, bool) {
	v, ok := d.data[name]
	return v, ok
}

// Set assigns an attribute value.
func (d *Document) Set(name string, value any) {
	d.data[name] = value
}

// Int64 reports whether the attribute currently holds a numeric value and
// returns it widened to int64. Whole-valued floats count as numeric; any
// other type does not.
func (d *Document) Int64(name string) (int64, bool) {
	v, ok := d.data[name]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int16:
		return int64(n), true
	case int8:
		return int64(n), true
	case uint:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		if math.Trunc(n) != n || n > math.MaxInt64 || n < math.MinInt64 {
			return 0, false
		}
		return int64(n), true
	case float32:
		f := float64(n)
		if math.Trunc(f) != f {
			return 0, false
		}
		return int64(f), true
	default:
		return 0, false
	}
}

// Save runs the schema's pre-save hooks in attachment order, aborting on the
// first error. On success the document is marked pre-existing. Persisting the
// attribute map anywhere is the caller's concern.
func (d *Document) Save(ctx context.Context) error {
	for _, hook := range d.model.schema.saveHooks() {
		if err := hook(ctx, d); err != nil {
			return err
		}
	}
	d.isNew = false
	return nil
}

// Call invokes a document method by name.
func (d *Document) Call(ctx context.Context, name string) (int64, error) {
	fn, ok := d.model.schema.method(name)
	if !ok {
		return 0, apperror.NewNotFound("document method", name)
	}
	return fn(ctx)
}

package schema

import (
	"context"

	"autonum/pkg/apperror"
)

// Model is a compiled view of a Schema under a concrete name. Documents are
// created through it, and schema statics are callable on it.
type Model struct {
	name   string
	schema *Schema
}

// Name returns the model name.
func (m *Model) Name() string {
	return m.name
}

// Schema returns the underlying (frozen) schema.
func (m *Model) Schema() *Schema {
	return m.schema
}

// NewDocument creates an empty document marked as newly created.
func (m *Model) NewDocument() *Document {
	return &Document{
		model: m,
		data:  make(map[string]any),
		isNew: true,
	}
}

// Hydrate wraps already-persisted data in a document marked pre-existing.
func (m *Model) Hydrate(data map[string]any) *Document {
	copied := make(map[string]any, len(data))
	for k, v := range data {
		copied[k] = v
	}
	return &Document{
		model: m,
		data:  copied,
		isNew: false,
	}
}

// Static returns the named callable attached to the model.
func (m *Model) Static(name string) (Accessor, bool) {
	return m.schema.static(name)
}

// Call invokes a model static by name.
func (m *Model) Call(ctx context.Context, name string) (int64, error) {
	fn, ok := m.schema.static(name)
	if !ok {
		return 0, apperror.NewNotFound("model static", name)
	}
	return fn(ctx)
}

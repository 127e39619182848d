// Package schema provides the minimal document-mapping surface the allocator
// binds to: numeric field declarations, pre-save hooks, and named accessor
// functions attached to models and document instances. Document persistence
// belongs to the surrounding application, not here.
package schema

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"autonum/pkg/apperror"
)

// FieldType defines the data type of a field.
type FieldType string

const (
	TypeInt64   FieldType = "int64"
	TypeFloat64 FieldType = "float64"
	TypeString  FieldType = "string"
	TypeBool    FieldType = "bool"
	TypeTime    FieldType = "time"
)

// DefaultIDField is the primary identifier attribute of a document.
const DefaultIDField = "_id"

// Field describes a declared document attribute.
type Field struct {
	Name     string    `json:"name"`
	Type     FieldType `json:"type"`
	Unique   bool      `json:"unique,omitempty"`
	Required bool      `json:"required,omitempty"`
}

// Accessor is a named callable attached to a model or a document instance.
type Accessor func(ctx context.Context) (int64, error)

// SaveHook runs before a document save. Returning an error aborts the save.
type SaveHook func(ctx context.Context, doc *Document) error

// Schema collects declarations until it is compiled into a Model. The handle
// is the opaque identity registration and observation calls key on.
type Schema struct {
	handle  uuid.UUID
	idField string

	mu       sync.Mutex
	compiled bool
	fields   map[string]Field
	order    []string
	preSave  []SaveHook
	statics  map[string]Accessor
	methods  map[string]Accessor
}

// Option configures a Schema at construction.
type Option func(*Schema)

// WithIDField overrides the primary identifier attribute name.
func WithIDField(name string) Option {
	return func(s *Schema) {
		if name != "" {
			s.idField = name
		}
	}
}

// New creates an empty, mutable schema.
func New(opts ...Option) *Schema {
	s := &Schema{
		handle:  newHandle(),
		idField: DefaultIDField,
		fields:  make(map[string]Field),
		statics: make(map[string]Accessor),
		methods: make(map[string]Accessor),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newHandle() uuid.UUID {
	v7, err := uuid.NewV7()
	if err != nil {
		// Fallback to V4 if V7 generation fails
		return uuid.New()
	}
	return v7
}

// Handle returns the schema's opaque identity.
func (s *Schema) Handle() uuid.UUID {
	return s.handle
}

// IDField returns the primary identifier attribute name.
func (s *Schema) IDField() string {
	return s.idField
}

// EnsureField declares a field. Redeclaring an identical field is a no-op;
// a conflicting redeclaration or a declaration on a compiled schema fails.
func (s *Schema) EnsureField(f Field) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.fields[f.Name]; ok {
		if existing == f {
			return nil
		}
		return apperror.NewConfig("field", "field "+f.Name+" already declared with a different definition")
	}
	if s.compiled {
		return apperror.NewConfig("schema", "schema is already compiled")
	}
	s.fields[f.Name] = f
	s.order = append(s.order, f.Name)
	return nil
}

// Field returns a declared field by name.
func (s *Schema) Field(name string) (Field, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.fields[name]
	return f, ok
}

// Fields returns the declared fields in declaration order.
func (s *Schema) Fields() []Field {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]Field, 0, len(s.order))
	for _, name := range s.order {
		list = append(list, s.fields[name])
	}
	return list
}

// PreSave attaches a save hook. Hooks run in attachment order.
func (s *Schema) PreSave(h SaveHook) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.compiled {
		return apperror.NewConfig("schema", "schema is already compiled")
	}
	s.preSave = append(s.preSave, h)
	return nil
}

// Static attaches a named callable exposed on compiled models.
func (s *Schema) Static(name string, fn Accessor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.compiled {
		return apperror.NewConfig("schema", "schema is already compiled")
	}
	if _, ok := s.statics[name]; ok {
		return apperror.NewConfig("static", "static "+name+" is already attached")
	}
	s.statics[name] = fn
	return nil
}

// Method attaches a named callable exposed on document instances.
func (s *Schema) Method(name string, fn Accessor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.compiled {
		return apperror.NewConfig("schema", "schema is already compiled")
	}
	if _, ok := s.methods[name]; ok {
		return apperror.NewConfig("method", "method "+name+" is already attached")
	}
	s.methods[name] = fn
	return nil
}

// HasStatic reports whether a static is attached under the name.
func (s *Schema) HasStatic(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.statics[name]
	return ok
}

// HasMethod reports whether a method is attached under the name.
func (s *Schema) HasMethod(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.methods[name]
	return ok
}

// Compile freezes the schema and returns a model under the given name.
// A schema may compile under several names; the first compile freezes it.
func (s *Schema) Compile(name string) (*Model, error) {
	if name == "" {
		return nil, apperror.NewConfig("model", "model name is required")
	}

	s.mu.Lock()
	s.compiled = true
	s.mu.Unlock()

	return &Model{name: name, schema: s}, nil
}

func (s *Schema) saveHooks() []SaveHook {
	s.mu.Lock()
	defer s.mu.Unlock()

	hooks := make([]SaveHook, len(s.preSave))
	copy(hooks, s.preSave)
	return hooks
}

func (s *Schema) static(name string) (Accessor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn, ok := s.statics[name]
	return fn, ok
}

func (s *Schema) method(name string) (Accessor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn, ok := s.methods[name]
	return fn, ok
}

// Package gormalloc binds the allocator to gorm models: registered models get
// their target column populated by a before-create callback, with explicit
// non-zero values reconciled into the counter instead of overwritten.
package gormalloc

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"gorm.io/gorm"
	gormschema "gorm.io/gorm/schema"

	"autonum/pkg/allocator"
	"autonum/pkg/apperror"
	"autonum/pkg/counter"
	"autonum/pkg/logger"
	docschema "autonum/pkg/schema"
)

const callbackName = "autonum:allocate"

// binding holds the per-table allocation state resolved at registration.
type binding struct {
	alloc *allocator.Allocator
	// field is the gorm struct field name receiving generated values.
	field string
}

// Plugin implements gorm.Plugin. Install it with db.Use, then bind models
// through RegisterModel.
type Plugin struct {
	registry   *allocator.Registry
	log        *logger.Logger
	cacheStore *sync.Map

	mu       sync.Mutex
	bindings map[string]*binding          // by table name
	schemas  map[string]*docschema.Schema // synthesized handles, one per table
}

// Option configures the plugin.
type Option func(*Plugin)

// WithLogger injects the logger passed down to the allocator registry.
func WithLogger(l *logger.Logger) Option {
	return func(p *Plugin) {
		if l != nil {
			p.log = l
		}
	}
}

// New creates a plugin allocating from the given counter store.
func New(store counter.Store, opts ...Option) *Plugin {
	p := &Plugin{
		log:        logger.Nop(),
		cacheStore: &sync.Map{},
		bindings:   make(map[string]*binding),
		schemas:    make(map[string]*docschema.Schema),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.registry = allocator.NewRegistry(store, allocator.WithLogger(p.log))
	return p
}

// Name implements gorm.Plugin.
func (p *Plugin) Name() string {
	return "autonum"
}

// Initialize implements gorm.Plugin.
func (p *Plugin) Initialize(db *gorm.DB) error {
	return db.Callback().Create().Before("gorm:create").Register(callbackName, p.allocate)
}

// Registry returns the underlying allocator registry for observer calls.
func (p *Plugin) Registry() *allocator.Registry {
	return p.registry
}

// RegisterModel binds a model's integer column to the counter store. The
// target column defaults to the prioritized primary key; opts.Field accepts
// either the struct field name or the column name. Explicit zero values read
// as absent under Go zero-value semantics, so models that need to assign a
// literal zero must use a pointer-typed field.
func (p *Plugin) RegisterModel(db *gorm.DB, model any, opts allocator.Options) (*allocator.Registration, error) {
	if db == nil {
		return nil, apperror.NewConfig("db", "gorm DB handle is required")
	}
	if model == nil {
		return nil, apperror.NewConfig("model", "model is required")
	}

	sch, err := gormschema.Parse(model, p.cacheStore, db.NamingStrategy)
	if err != nil {
		return nil, apperror.NewConfig("model", fmt.Sprintf("parse model: %v", err))
	}

	field, err := resolveTarget(sch, opts.Field)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	s, ok := p.schemas[sch.Table]
	if !ok {
		idField := field.DBName
		if sch.PrioritizedPrimaryField != nil {
			idField = sch.PrioritizedPrimaryField.DBName
		}
		s = docschema.New(docschema.WithIDField(idField))
		p.schemas[sch.Table] = s
	}
	p.mu.Unlock()

	opts.Field = field.DBName
	reg, err := p.registry.Register(s, sch.Table, opts)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if _, ok := p.bindings[sch.Table]; !ok {
		p.bindings[sch.Table] = &binding{alloc: reg.Allocator(), field: field.Name}
	}
	p.mu.Unlock()
	return reg, nil
}

// resolveTarget picks the column receiving generated values and requires it
// to be an integer field.
func resolveTarget(sch *gormschema.Schema, name string) (*gormschema.Field, error) {
	var field *gormschema.Field
	if name != "" {
		field = sch.LookUpField(name)
		if field == nil {
			return nil, apperror.NewConfig("field",
				fmt.Sprintf("model %s has no field %q", sch.Name, name))
		}
	} else {
		field = sch.PrioritizedPrimaryField
		if field == nil {
			return nil, apperror.NewConfig("field",
				fmt.Sprintf("model %s has no primary key to default to", sch.Name))
		}
	}
	if field.DataType != gormschema.Int && field.DataType != gormschema.Uint {
		return nil, apperror.NewConfig("field",
			fmt.Sprintf("field %q must be an integer, got %s", field.Name, field.DataType))
	}
	return field, nil
}

// allocate is the before-create callback. It runs once per create statement
// and handles both single-struct and slice creates; a failure is reported to
// the statement's own error and leaves other creates untouched.
func (p *Plugin) allocate(db *gorm.DB) {
	if db.Error != nil || db.Statement.Schema == nil {
		return
	}

	p.mu.Lock()
	b, ok := p.bindings[db.Statement.Table]
	p.mu.Unlock()
	if !ok {
		return
	}

	field := db.Statement.Schema.LookUpField(b.field)
	if field == nil {
		return
	}

	ctx := db.Statement.Context
	switch rv := db.Statement.ReflectValue; rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if err := p.allocateRow(ctx, b.alloc, field, rv.Index(i)); err != nil {
				_ = db.AddError(err)
				return
			}
		}
	case reflect.Struct:
		if err := p.allocateRow(ctx, b.alloc, field, rv); err != nil {
			_ = db.AddError(err)
		}
	}
}

func (p *Plugin) allocateRow(ctx context.Context, a *allocator.Allocator, field *gormschema.Field, rv reflect.Value) error {
	if err := a.WaitReady(ctx); err != nil {
		return err
	}

	if v, zero := field.ValueOf(ctx, rv); !zero {
		n, ok := toInt64(v)
		if !ok {
			return apperror.NewInternal(fmt.Errorf("field %s holds non-integer value %v", field.Name, v))
		}
		return a.SyncExplicit(ctx, n)
	}

	next, err := a.Next(ctx)
	if err != nil {
		return err
	}
	return field.Set(ctx, rv, next)
}

func toInt64(v any) (int64, bool) {
	rv := reflect.ValueOf(v)
	// Pointer-typed fields carry their value behind the pointer
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return 0, false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint()), true
	default:
		return 0, false
	}
}

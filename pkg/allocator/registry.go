package allocator

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"autonum/pkg/apperror"
	"autonum/pkg/counter"
	"autonum/pkg/logger"
	"autonum/pkg/schema"
)

// instanceKey identifies one allocator: the schema handle plus its scope.
type instanceKey struct {
	schema uuid.UUID
	scope  counter.Scope
}

// modelKey resolves observer calls, which address a (schema, model) pair.
type modelKey struct {
	schema uuid.UUID
	model  string
}

// Registry owns every allocator and its state. All bookkeeping lives here —
// there is no package-level mutable state.
type Registry struct {
	store counter.Store
	log   *logger.Logger

	mu        sync.Mutex
	defaults  Options
	closed    bool
	instances map[instanceKey]*Allocator
	byModel   map[modelKey]*Allocator // first registration per pair, for observers
	outcomes  map[counter.Scope]*Outcome
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger injects the logger used for provisioning lifecycle events.
func WithLogger(l *logger.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// WithDefaults seeds the registry-level default options. Invalid defaults
// are rejected later by SetDefaults validation semantics, so prefer
// SetDefaults when the options are not statically known.
func WithDefaults(opts Options) RegistryOption {
	return func(r *Registry) {
		r.defaults = opts
	}
}

// NewRegistry creates a registry on top of a counter store.
func NewRegistry(store counter.Store, opts ...RegistryOption) *Registry {
	r := &Registry{
		store:     store,
		log:       logger.Nop(),
		instances: make(map[instanceKey]*Allocator),
		byModel:   make(map[modelKey]*Allocator),
		outcomes:  make(map[counter.Scope]*Outcome),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetDefaults replaces the registry-level default options after validating
// them with the same rules as per-registration options.
func (r *Registry) SetDefaults(opts Options) error {
	if _, err := resolveOptions(opts, Options{}, nil); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaults = opts
	return nil
}

// Defaults returns the current registry-level default options.
func (r *Registry) Defaults() Options {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.defaults
}

// Register binds an allocator to the schema under the model name. A nil
// schema or empty model name fails immediately; every other failure —
// invalid options, schema attachment conflicts, provisioning errors —
// surfaces through the returned Registration's Outcome. Registering the
// same (schema, field, model) again returns the existing Registration
// without re-validating or re-provisioning, and concurrent registrations
// for one (field, model) fingerprint share a single provisioning attempt.
func (r *Registry) Register(s *schema.Schema, model string, opts Options) (*Registration, error) {
	if s == nil {
		return nil, apperror.NewConfig("schema", "schema handle is required")
	}
	if model == "" {
		return nil, apperror.NewConfig("model", "model name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, apperror.NewInternal(errors.New("registry is closed"))
	}

	field := resolveField(opts, r.defaults, s)
	key := instanceKey{schema: s.Handle(), scope: counter.Scope{Field: field, Model: model}}
	if a, ok := r.instances[key]; ok {
		return &Registration{alloc: a}, nil
	}

	cfg, err := resolveOptions(opts, r.defaults, s)
	if err != nil {
		return r.failedAttempt(key.scope, cfg, err), nil
	}

	a := &Allocator{
		scope: key.scope,
		cfg:   cfg,
		store: r.store,
		log:   r.log,
	}

	// The outcome is assigned before anything is attached to the schema, so
	// a hook can never run without one.
	out, running := r.outcomes[key.scope]
	if !running {
		out = newOutcome()
	}
	a.out = out

	if err := r.attach(s, a); err != nil {
		return r.failedAttempt(key.scope, cfg, err), nil
	}

	if !running {
		r.outcomes[key.scope] = out
	}
	r.instances[key] = a
	mk := modelKey{schema: s.Handle(), model: model}
	if _, ok := r.byModel[mk]; !ok {
		r.byModel[mk] = a
	}

	if !running {
		go r.provision(a, out)
	}
	return &Registration{alloc: a}, nil
}

// attach performs the synchronous schema side of registration: the target
// field, the accessors under their configured names, and the save hook. The
// hook goes last — an accessor-name collision with a racing registration must
// not leave a hook installed for a registration that failed.
func (r *Registry) attach(s *schema.Schema, a *Allocator) error {
	field := schema.Field{
		Name:   a.cfg.field,
		Type:   schema.TypeInt64,
		Unique: a.cfg.unique && a.cfg.field != s.IDField(),
	}
	if err := s.EnsureField(field); err != nil {
		return err
	}
	if a.cfg.nextName != "" {
		if err := s.Static(a.cfg.nextName, a.PeekNext); err != nil {
			return err
		}
		if err := s.Method(a.cfg.nextName, a.PeekNext); err != nil {
			return err
		}
	}
	if a.cfg.resetName != "" {
		if err := s.Static(a.cfg.resetName, a.Reset); err != nil {
			return err
		}
		if err := s.Method(a.cfg.resetName, a.Reset); err != nil {
			return err
		}
	}
	return s.PreSave(a.saveHook)
}

// failedAttempt wraps a registration failure in an already-failed outcome.
// The attempt is not recorded, so a corrected registration for the same
// scope can still succeed.
func (r *Registry) failedAttempt(sc counter.Scope, cfg config, err error) *Registration {
	out := newOutcome()
	out.resolve(err)
	r.log.With("field", sc.Field, "model", sc.Model).Warnw("registration attempt failed", "error", err)
	return &Registration{alloc: &Allocator{
		scope: sc,
		cfg:   cfg,
		store: r.store,
		out:   out,
		log:   r.log,
	}}
}

// provision ensures the counter record exists: find, create when absent,
// and swallow the duplicate-creation race since the scope exists either
// way. Any other failure settles the outcome as the allocator's terminal
// error.
func (r *Registry) provision(a *Allocator, out *Outcome) {
	ctx := context.Background()
	log := r.log.With("field", a.scope.Field, "model", a.scope.Model)

	_, err := r.store.FindScope(ctx, a.scope)
	if apperror.IsNotFound(err) {
		err = r.store.CreateScope(ctx, a.scope, a.cfg.initial)
		if apperror.IsDuplicateScope(err) {
			// Another process provisioned the scope first
			err = nil
		}
	}
	if err != nil {
		log.Errorw("counter scope provisioning failed", "error", err)
		out.resolve(err)
		return
	}
	log.Infow("counter scope ready", "startAt", a.cfg.startAt, "incrementBy", a.cfg.incrementBy)
	out.resolve(nil)
}

// Outcome returns the provisioning outcome for a (schema, model) pair, and
// whether the pair was ever registered. With several fields registered for
// one pair it reports the first registration.
func (r *Registry) Outcome(s *schema.Schema, model string) (*Outcome, bool) {
	if s == nil {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byModel[modelKey{schema: s.Handle(), model: model}]
	if !ok {
		return nil, false
	}
	return a.out, true
}

// IsReady reports whether the pair is registered and provisioned.
func (r *Registry) IsReady(s *schema.Schema, model string) bool {
	out, ok := r.Outcome(s, model)
	return ok && out.Ready()
}

// Err returns the pair's terminal provisioning error, or nil when the pair
// is unregistered, pending, or ready.
func (r *Registry) Err(s *schema.Schema, model string) error {
	out, ok := r.Outcome(s, model)
	if !ok {
		return nil
	}
	return out.Err()
}

// Close rejects further registrations and fails every unresolved outcome
// with NOT_INITIALIZED, so insertions blocked on provisioning fail instead
// of waiting forever. Settled outcomes are untouched.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	for sc, out := range r.outcomes {
		out.resolve(apperror.NewNotInitialized(sc.Field, sc.Model))
	}
	r.log.Infow("allocator registry closed")
}

// Registration is the opaque handle returned by Register. It exposes the
// allocator and its provisioning outcome.
type Registration struct {
	alloc *Allocator
}

// Allocator returns the underlying allocator.
func (g *Registration) Allocator() *Allocator {
	return g.alloc
}

// Outcome returns the provisioning-complete signal.
func (g *Registration) Outcome() *Outcome {
	return g.alloc.out
}

// Scope returns the registered (field, model) pair.
func (g *Registration) Scope() counter.Scope {
	return g.alloc.scope
}

// Wait blocks until provisioning resolves.
func (g *Registration) Wait(ctx context.Context) error {
	return g.alloc.out.Wait(ctx)
}

// Ready reports whether provisioning succeeded.
func (g *Registration) Ready() bool {
	return g.alloc.out.Ready()
}

// Err returns the terminal provisioning error, if any.
func (g *Registration) Err() error {
	return g.alloc.out.Err()
}

// Package allocator assigns collision-free, monotonically stepped numeric
// identifiers to documents. A Registry binds schema/scope pairs to a
// counter.Store, provisions counter records lazily, and attaches the
// save-time allocation hook plus the nextCount/resetCount accessors.
package allocator

import (
	"context"

	"autonum/pkg/apperror"
	"autonum/pkg/counter"
	"autonum/pkg/logger"
	"autonum/pkg/schema"
)

// Allocator binds one schema/scope pair to the counter store. Its resolved
// configuration is immutable; readiness is observed through the Outcome.
type Allocator struct {
	scope counter.Scope
	cfg   config
	store counter.Store
	out   *Outcome
	log   *logger.Logger
}

// Scope returns the (field, model) pair this allocator serves.
func (a *Allocator) Scope() counter.Scope {
	return a.scope
}

// Field returns the document attribute receiving generated values.
func (a *Allocator) Field() string {
	return a.cfg.field
}

// Outcome returns the provisioning-complete signal.
func (a *Allocator) Outcome() *Outcome {
	return a.out
}

// Ready reports whether provisioning succeeded.
func (a *Allocator) Ready() bool {
	return a.out.Ready()
}

// Err returns the terminal provisioning error, if any.
func (a *Allocator) Err() error {
	return a.out.Err()
}

// WaitReady blocks until provisioning resolves, returning its terminal
// error if it failed. The recorded error is stable across calls.
func (a *Allocator) WaitReady(ctx context.Context) error {
	return a.out.Wait(ctx)
}

// Next atomically allocates and returns the next value for the scope.
func (a *Allocator) Next(ctx context.Context) (int64, error) {
	return a.store.IncrementAndFetch(ctx, a.scope, a.cfg.incrementBy)
}

// SyncExplicit reconciles an externally assigned value with the counter so
// subsequent auto-allocations never reuse a value at or below it.
func (a *Allocator) SyncExplicit(ctx context.Context, value int64) error {
	return a.store.SetIfGreater(ctx, a.scope, value)
}

// PeekNext computes what the next allocation would be without advancing the
// counter. An unprovisioned scope answers startAt.
func (a *Allocator) PeekNext(ctx context.Context) (int64, error) {
	v, err := a.store.ReadScope(ctx, a.scope)
	if err != nil {
		if apperror.IsNotFound(err) {
			return a.cfg.startAt, nil
		}
		return 0, err
	}
	return v + a.cfg.incrementBy, nil
}

// Reset returns the counter to its initial state, upserting if the scope
// row is absent, and reports the value the next allocation will produce.
func (a *Allocator) Reset(ctx context.Context) (int64, error) {
	if err := a.store.ResetScope(ctx, a.scope, a.cfg.initial); err != nil {
		return 0, err
	}
	return a.cfg.startAt, nil
}

// saveHook is the per-insertion decision attached to the schema:
// pre-existing documents pass through untouched; explicitly assigned
// numeric values are reconciled into the counter; everything else gets the
// next allocation written onto the field. The hook waits on the
// provisioning outcome, so insertions racing registration block until the
// scope is usable and fail with the recorded error once provisioning has
// permanently failed.
func (a *Allocator) saveHook(ctx context.Context, doc *schema.Document) error {
	if !doc.IsNew() {
		return nil
	}
	if err := a.out.Wait(ctx); err != nil {
		return err
	}
	if v, ok := doc.Int64(a.cfg.field); ok {
		// Explicit assignment, zero and negatives included
		return a.SyncExplicit(ctx, v)
	}
	v, err := a.Next(ctx)
	if err != nil {
		return err
	}
	doc.Set(a.cfg.field, v)
	return nil
}

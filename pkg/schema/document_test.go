package schema

import (
	"context"
	"errors"
	"testing"
)

func compiledModel(t *testing.T, s *Schema) *Model {
	t.Helper()
	m, err := s.Compile("Doc")
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	return m
}

func TestDocument_Int64(t *testing.T) {
	m := compiledModel(t, New())

	tests := []struct {
		name    string
		value   any
		want    int64
		numeric bool
	}{
		{name: "int64", value: int64(7), want: 7, numeric: true},
		{name: "int", value: 7, want: 7, numeric: true},
		{name: "int32", value: int32(-3), want: -3, numeric: true},
		{name: "uint8", value: uint8(200), want: 200, numeric: true},
		{name: "uint64 in range", value: uint64(9), want: 9, numeric: true},
		{name: "uint64 overflow", value: uint64(1) << 63, numeric: false},
		{name: "whole float64", value: float64(12), want: 12, numeric: true},
		{name: "fractional float64", value: 12.5, numeric: false},
		{name: "zero", value: 0, want: 0, numeric: true},
		{name: "negative", value: -4, want: -4, numeric: true},
		{name: "string", value: "12", numeric: false},
		{name: "bool", value: true, numeric: false},
		{name: "nil", value: nil, numeric: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := m.NewDocument()
			doc.Set("v", tt.value)

			got, ok := doc.Int64("v")
			if ok != tt.numeric {
				t.Fatalf("numeric mismatch\nwant: %v\ngot:  %v", tt.numeric, ok)
			}
			if ok && got != tt.want {
				t.Errorf("value mismatch\nwant: %d\ngot:  %d", tt.want, got)
			}
		})
	}
}

func TestDocument_Int64_AbsentField(t *testing.T) {
	doc := compiledModel(t, New()).NewDocument()
	if _, ok := doc.Int64("missing"); ok {
		t.Error("absent field must not read as numeric")
	}
}

func TestDocument_SaveRunsHooksInOrder(t *testing.T) {
	s := New()
	var order []string
	if err := s.PreSave(func(_ context.Context, d *Document) error {
		order = append(order, "first")
		d.Set("a", 1)
		return nil
	}); err != nil {
		t.Fatalf("PreSave failed: %v", err)
	}
	if err := s.PreSave(func(_ context.Context, d *Document) error {
		order = append(order, "second")
		return nil
	}); err != nil {
		t.Fatalf("PreSave failed: %v", err)
	}

	doc := compiledModel(t, s).NewDocument()
	if !doc.IsNew() {
		t.Fatal("fresh document must be new")
	}
	if err := doc.Save(context.Background()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if doc.IsNew() {
		t.Error("saved document must not be new")
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("hook order mismatch: %v", order)
	}
	if v, ok := doc.Int64("a"); !ok || v != 1 {
		t.Errorf("hook mutation lost: %v %v", v, ok)
	}
}

func TestDocument_SaveAbortsOnHookError(t *testing.T) {
	s := New()
	boom := errors.New("boom")
	_ = s.PreSave(func(context.Context, *Document) error { return boom })
	reached := false
	_ = s.PreSave(func(context.Context, *Document) error {
		reached = true
		return nil
	})

	doc := compiledModel(t, s).NewDocument()
	if err := doc.Save(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}
	if reached {
		t.Error("later hook must not run after a failure")
	}
	if !doc.IsNew() {
		t.Error("failed save must leave the document new")
	}
}

func TestDocument_HydrateIsPreExisting(t *testing.T) {
	s := New()
	hookRuns := 0
	_ = s.PreSave(func(context.Context, *Document) error {
		hookRuns++
		return nil
	})

	m := compiledModel(t, s)
	doc := m.Hydrate(map[string]any{"_id": int64(5)})
	if doc.IsNew() {
		t.Fatal("hydrated document must not be new")
	}

	// Hooks still run on re-save; distinguishing new from existing is the
	// hook's job, not Save's.
	if err := doc.Save(context.Background()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if hookRuns != 1 {
		t.Errorf("hook runs mismatch: %d", hookRuns)
	}
}

func TestModel_HydrateCopiesData(t *testing.T) {
	m := compiledModel(t, New())
	src := map[string]any{"x": 1}
	doc := m.Hydrate(src)
	src["x"] = 2

	if v, _ := doc.Int64("x"); v != 1 {
		t.Errorf("hydrated data must be detached from the source map, got %d", v)
	}
}

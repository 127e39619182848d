package allocator

import (
	"fmt"
	"strings"

	"autonum/pkg/apperror"
	"autonum/pkg/schema"
)

// Default accessor names, overridable per registration.
const (
	DefaultNextName  = "nextCount"
	DefaultResetName = "resetCount"
)

// Options configures one registration. Zero values fall back to the
// registry defaults and then to the built-ins: the schema's identifier
// field, incrementBy 1, startAt 1, both accessors enabled under their
// default names, unique true.
type Options struct {
	// Field is the document attribute receiving generated values.
	Field string

	// IncrementBy is the step between allocations. May be negative,
	// never zero.
	IncrementBy *int64

	// StartAt is the value the first allocation produces.
	StartAt *int64

	// NextCount and ResetCount name the generated accessor functions.
	NextCount  string
	ResetCount string

	// DisableNextCount and DisableResetCount omit the accessor entirely.
	DisableNextCount  bool
	DisableResetCount bool

	// Unique requests a uniqueness constraint on the target field. Ignored
	// when the field is the document's identifier, which is unique anyway.
	Unique *bool
}

// Int64 returns a pointer to v, for optional Options fields.
func Int64(v int64) *int64 { return &v }

// Bool returns a pointer to v, for optional Options fields.
func Bool(v bool) *bool { return &v }

// config is the resolved, immutable form of Options. It is computed once at
// registration and never recomputed.
type config struct {
	field       string
	incrementBy int64
	startAt     int64
	nextName    string // empty when disabled
	resetName   string // empty when disabled
	unique      bool
	initial     int64 // startAt - incrementBy, so the first increment yields startAt
}

// resolveOptions merges per-call options over defaults and validates them in
// the fixed order field, incrementBy, nextCount name, resetCount name,
// startAt. The first failure is returned as a CONFIG_ERROR naming the
// option. A nil schema skips the attachment-collision checks (used when
// validating registry defaults).
func resolveOptions(opts, defaults Options, s *schema.Schema) (config, error) {
	cfg := config{
		field:       resolveField(opts, defaults, s),
		incrementBy: resolveInt(opts.IncrementBy, defaults.IncrementBy, 1),
		startAt:     resolveInt(opts.StartAt, defaults.StartAt, 1),
		unique:      resolveBool(opts.Unique, defaults.Unique, true),
	}
	if !opts.DisableNextCount && !defaults.DisableNextCount {
		cfg.nextName = resolveString(opts.NextCount, defaults.NextCount, DefaultNextName)
	}
	if !opts.DisableResetCount && !defaults.DisableResetCount {
		cfg.resetName = resolveString(opts.ResetCount, defaults.ResetCount, DefaultResetName)
	}

	if err := validateKey("field", cfg.field); err != nil {
		return config{}, err
	}
	if cfg.incrementBy == 0 {
		return config{}, apperror.NewConfig("incrementBy", "incrementBy must be a non-zero integer")
	}
	if cfg.nextName != "" {
		if err := validateKey("nextCount", cfg.nextName); err != nil {
			return config{}, err
		}
		if s != nil && (s.HasStatic(cfg.nextName) || s.HasMethod(cfg.nextName)) {
			return config{}, apperror.NewConfig("nextCount",
				fmt.Sprintf("accessor name %q is already attached to the schema", cfg.nextName))
		}
	}
	if cfg.resetName != "" {
		if err := validateKey("resetCount", cfg.resetName); err != nil {
			return config{}, err
		}
		if cfg.resetName == cfg.nextName {
			return config{}, apperror.NewConfig("resetCount",
				fmt.Sprintf("accessor name %q collides with nextCount", cfg.resetName))
		}
		if s != nil && (s.HasStatic(cfg.resetName) || s.HasMethod(cfg.resetName)) {
			return config{}, apperror.NewConfig("resetCount",
				fmt.Sprintf("accessor name %q is already attached to the schema", cfg.resetName))
		}
	}
	// startAt: any integer is valid, including zero and negatives.

	cfg.initial = cfg.startAt - cfg.incrementBy
	return cfg, nil
}

// resolveField merges just the field name; Register needs it before full
// validation to key the instance lookup.
func resolveField(opts, defaults Options, s *schema.Schema) string {
	if opts.Field != "" {
		return opts.Field
	}
	if defaults.Field != "" {
		return defaults.Field
	}
	if s != nil {
		return s.IDField()
	}
	return schema.DefaultIDField
}

func resolveInt(v, def *int64, builtin int64) int64 {
	if v != nil {
		return *v
	}
	if def != nil {
		return *def
	}
	return builtin
}

func resolveBool(v, def *bool, builtin bool) bool {
	if v != nil {
		return *v
	}
	if def != nil {
		return *def
	}
	return builtin
}

func resolveString(v, def, builtin string) string {
	if v != "" {
		return v
	}
	if def != "" {
		return def
	}
	return builtin
}

// validateKey enforces document-store key rules on names destined to become
// document attributes or schema accessors.
func validateKey(option, name string) error {
	switch {
	case name == "":
		return apperror.NewConfig(option, option+" must be a non-empty string")
	case strings.ContainsRune(name, '\x00'):
		return apperror.NewConfig(option, option+" must not contain NUL")
	case strings.HasPrefix(name, "$"):
		return apperror.NewConfig(option, option+" must not start with '$'")
	case strings.Contains(name, "."):
		return apperror.NewConfig(option, option+" must not contain '.'")
	}
	return nil
}

package features

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownFeature      = errors.New("unknown feature")
	ErrMissingDependency   = errors.New("missing dependency value")
	ErrCycleDetected       = errors.New("cycle detected")
	ErrDataSourceRead      = errors.New("data source read failed")
	ErrMissingColumn       = errors.New("missing column")
	ErrValueCoercion       = errors.New("value coercion failed")
	ErrStipulationConflict = errors.New("stipulation conflicts with computed value")
	ErrDuplicateFeature    = errors.New("duplicate feature")
	ErrArityMismatch       = errors.New("arity mismatch")
	ErrUnknownEntityType   = errors.New("unknown entity type")
	ErrDuplicateEntityType = errors.New("duplicate entity type")
	ErrDuplicateDataSource = errors.New("duplicate data source")
	ErrSessionClosed       = errors.New("session closed")
	ErrReentrantAccess     = errors.New("feature access from inside a compute function")
)

// UnknownFeatureError reports a feature that is not registered for the
// entity type it was requested on.
type UnknownFeatureError struct {
	EntityType string
	Feature    string
}

func (e *UnknownFeatureError) Error() string {
	return fmt.Sprintf("unknown feature %q for entity type %q", e.Feature, e.EntityType)
}

func (e *UnknownFeatureError) Unwrap() error { return ErrUnknownFeature }

// MissingDependencyValueError wraps the failure of a dependency while
// resolving Feature on Entity.
type MissingDependencyValueError struct {
	Entity     string
	Feature    string
	Dependency string
	Cause      error
}

func (e *MissingDependencyValueError) Error() string {
	return fmt.Sprintf("feature %q on %q: dependency %q: %v", e.Feature, e.Entity, e.Dependency, e.Cause)
}

func (e *MissingDependencyValueError) Unwrap() []error {
	return []error{ErrMissingDependency, e.Cause}
}

// CycleDetectedError carries the feature path that closed the loop, the
// repeated feature appearing at both ends.
type CycleDetectedError struct {
	EntityType string
	Entity     string
	Path       []string
}

func (e *CycleDetectedError) Error() string {
	msg := "cycle"
	if len(e.Path) > 0 {
		msg = "cycle: " + strings.Join(e.Path, " -> ")
	}
	if e.Entity != "" {
		return fmt.Sprintf("%s on %s %q: %s", ErrCycleDetected, e.EntityType, e.Entity, msg)
	}
	return fmt.Sprintf("%s in %s: %s", ErrCycleDetected, e.EntityType, msg)
}

func (e *CycleDetectedError) Unwrap() error { return ErrCycleDetected }

type DataSourceReadError struct {
	Source string
	Row    int
	Cause  error
}

func (e *DataSourceReadError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("data source %q: row %d: %v", e.Source, e.Row, e.Cause)
	}
	return fmt.Sprintf("data source %q: %v", e.Source, e.Cause)
}

func (e *DataSourceReadError) Unwrap() []error {
	return []error{ErrDataSourceRead, e.Cause}
}

// MissingColumnError reports a mapped column absent from a row. Row is the
// 1-based data row index (the header is not counted).
type MissingColumnError struct {
	Source string
	Row    int
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("data source %q: row %d: missing column %q", e.Source, e.Row, e.Column)
}

func (e *MissingColumnError) Unwrap() error { return ErrMissingColumn }

type ValueCoercionError struct {
	Feature   string
	ValueType string
	Raw       any
	Cause     error
}

func (e *ValueCoercionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("feature %q: cannot coerce %#v to %s: %v", e.Feature, e.Raw, e.ValueType, e.Cause)
	}
	return fmt.Sprintf("feature %q: cannot coerce %#v to %s", e.Feature, e.Raw, e.ValueType)
}

func (e *ValueCoercionError) Unwrap() error { return ErrValueCoercion }

// StipulationConflictError is returned under the RejectComputed policy when a
// value is stipulated over one that was already computed.
type StipulationConflictError struct {
	Entity   string
	Feature  string
	Computed any
}

func (e *StipulationConflictError) Error() string {
	return fmt.Sprintf("feature %q on %q already computed as %v", e.Feature, e.Entity, e.Computed)
}

func (e *StipulationConflictError) Unwrap() error { return ErrStipulationConflict }

// ResolveError wraps an error returned by a feature's compute function.
type ResolveError struct {
	Entity  string
	Feature string
	Cause   error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve error in feature %q on %q: %v", e.Feature, e.Entity, e.Cause)
}

func (e *ResolveError) Unwrap() error {
	return e.Cause
}

// HydrationError locates a failure inside a data source scan.
type HydrationError struct {
	Source string
	Row    int
	Entity string
	Column string
	Err    error
}

func (e *HydrationError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "hydrating from %q row %d", e.Source, e.Row)
	if e.Entity != "" {
		fmt.Fprintf(&sb, " entity %q", e.Entity)
	}
	if e.Column != "" {
		fmt.Fprintf(&sb, " column %q", e.Column)
	}
	fmt.Fprintf(&sb, ": %v", e.Err)
	return sb.String()
}

func (e *HydrationError) Unwrap() error { return e.Err }

func invalidf(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

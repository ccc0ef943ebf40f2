package features

import "context"

// Extension provides hooks into resolution, stipulation and hydration
type Extension interface {
	// Name returns the extension's name
	Name() string

	// Order determines extension execution order (lower = earlier)
	Order() int

	// Init is called when the extension is registered to a session
	Init(session *Session) error

	// Wrap intercepts operations. For OpResolve it wraps only the compute
	// call, so it runs once per cache miss.
	Wrap(ctx context.Context, next func() (any, error), op *Operation) (any, error)

	// OnError is called once per failed top-level operation
	OnError(err error, op *Operation, session *Session)

	// Dispose is called when the session is closed
	Dispose(session *Session) error
}

// BaseExtension provides default implementations for Extension methods
type BaseExtension struct {
	name string
}

// NewBaseExtension creates a new base extension with the given name
func NewBaseExtension(name string) BaseExtension {
	return BaseExtension{name: name}
}

func (e *BaseExtension) Name() string {
	return e.name
}

func (e *BaseExtension) Order() int {
	return 100
}

func (e *BaseExtension) Init(session *Session) error {
	return nil
}

func (e *BaseExtension) Wrap(ctx context.Context, next func() (any, error), op *Operation) (any, error) {
	return next()
}

func (e *BaseExtension) OnError(err error, op *Operation, session *Session) {
}

func (e *BaseExtension) Dispose(session *Session) error {
	return nil
}

// Operation describes what operation is happening
type Operation struct {
	Kind    OperationKind
	Entity  *Entity
	Feature AnyFeature
	// Source is set for OpHydrate
	Source  DataSource
	Session *Session
}

// OperationKind represents the type of operation
type OperationKind string

const (
	// OpResolve indicates a feature computation
	OpResolve OperationKind = "resolve"
	// OpStipulate indicates a stipulated value being stored
	OpStipulate OperationKind = "stipulate"
	// OpHydrate indicates a full scan of one data source for one entity type
	OpHydrate OperationKind = "hydrate"
)

// chain wraps next with every extension, the first registered outermost.
func chain(ctx context.Context, exts []Extension, op *Operation, next func() (any, error)) (any, error) {
	for i := len(exts) - 1; i >= 0; i-- {
		ext := exts[i]
		currentNext := next
		next = func() (any, error) {
			return ext.Wrap(ctx, currentNext, op)
		}
	}

	return next()
}

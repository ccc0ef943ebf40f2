package features

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StipulationPolicy decides what happens when a value is stipulated for a
// feature that already has a cached value.
type StipulationPolicy int

const (
	// RejectComputed refuses to replace a computed value but lets a later
	// stipulation replace an earlier one.
	RejectComputed StipulationPolicy = iota
	// Overwrite always replaces the cached value.
	Overwrite
)

func (p StipulationPolicy) String() string {
	switch p {
	case RejectComputed:
		return "reject-computed"
	case Overwrite:
		return "overwrite"
	default:
		return fmt.Sprintf("StipulationPolicy(%d)", int(p))
	}
}

func ParseStipulationPolicy(s string) (StipulationPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reject-computed", "reject_computed":
		return RejectComputed, nil
	case "overwrite":
		return Overwrite, nil
	default:
		return 0, fmt.Errorf("unknown stipulation policy %q", s)
	}
}

// Session is one working context: a catalog, the value cache shared by every
// entity created in it, and the entity directory.
//
// Resolution and stipulation are serialized by a session-wide lock, so a
// feature is computed at most once per entity even under concurrent first
// reads.
type Session struct {
	id         string
	mu         sync.Mutex
	extMu      sync.RWMutex
	catalog    *Catalog
	cache      *ValueCache
	directory  *directory
	extensions []Extension
	policy     StipulationPolicy
	logger     *zap.Logger
	closed     atomic.Bool
}

// SessionOption is a modifier for sessions
type SessionOption func(*Session)

// WithCatalog makes the session use an already built catalog
func WithCatalog(c *Catalog) SessionOption {
	return func(s *Session) {
		s.catalog = c
	}
}

// WithExtension returns an option that registers an extension to a session
func WithExtension(ext Extension) SessionOption {
	return func(s *Session) {
		if err := s.UseExtension(ext); err != nil {
			panic(err)
		}
	}
}

func WithStipulationPolicy(p StipulationPolicy) SessionOption {
	return func(s *Session) {
		s.policy = p
	}
}

func WithLogger(logger *zap.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// NewSession creates a new session with optional configuration
func NewSession(opts ...SessionOption) *Session {
	s := &Session{
		id:         uuid.New().String(),
		catalog:    NewCatalog(),
		cache:      NewValueCache(),
		directory:  newDirectory(),
		extensions: []Extension{},
		logger:     zap.NewNop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.With(zap.String("session", s.id))
	return s
}

func (s *Session) ID() string                { return s.id }
func (s *Session) Catalog() *Catalog         { return s.catalog }
func (s *Session) Cache() *ValueCache        { return s.cache }
func (s *Session) Policy() StipulationPolicy { return s.policy }
func (s *Session) Logger() *zap.Logger       { return s.logger }

// UseExtension registers an extension to the session
func (s *Session) UseExtension(ext Extension) error {
	s.extMu.Lock()
	s.extensions = append(s.extensions, ext)
	sort.SliceStable(s.extensions, func(i, j int) bool {
		return s.extensions[i].Order() < s.extensions[j].Order()
	})
	s.extMu.Unlock()

	return ext.Init(s)
}

func (s *Session) snapshotExtensions() []Extension {
	s.extMu.RLock()
	defer s.extMu.RUnlock()

	exts := make([]Extension, len(s.extensions))
	copy(exts, s.extensions)
	return exts
}

func (s *Session) notifyError(err error, op *Operation) {
	for _, ext := range s.snapshotExtensions() {
		ext.OnError(err, op, s)
	}
}

// Populate runs the registration functions against the session's catalog
// and validates the result.
func (s *Session) Populate(regs ...RegisterFunc) error {
	for _, reg := range regs {
		if err := reg(s.catalog); err != nil {
			return fmt.Errorf("populating catalog: %w", err)
		}
	}
	if err := s.catalog.Validate(); err != nil {
		return fmt.Errorf("validating catalog: %w", err)
	}

	s.logger.Debug("catalog populated",
		zap.Int("entity_types", len(s.catalog.EntityTypes())),
		zap.Int("features", len(s.catalog.Features())),
		zap.Int("data_sources", len(s.catalog.DataSources())),
	)
	return nil
}

func (s *Session) AddEntityType(et *EntityType) error { return s.catalog.AddEntityType(et) }
func (s *Session) AddFeature(f AnyFeature) error      { return s.catalog.AddFeature(f) }
func (s *Session) AddDataSource(ds DataSource) error  { return s.catalog.AddDataSource(ds) }

// Entity returns the session's handle for (et, name), creating it on first
// use.
func (s *Session) Entity(et *EntityType, name string) (*Entity, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}
	if registered, ok := s.catalog.EntityType(et.Name()); !ok || registered != et {
		return nil, invalidf(ErrUnknownEntityType, "%q", et.Name())
	}
	return s.directory.lookupOrCreate(s, et, name)
}

// MustEntity is Entity for setup code where the entity type is known to be
// registered.
func (s *Session) MustEntity(et *EntityType, name string) *Entity {
	e, err := s.Entity(et, name)
	if err != nil {
		panic(err)
	}
	return e
}

// NewEntity returns a fresh handle for (et, name). It shares cached values
// with every other handle of the same entity in this session.
func (s *Session) NewEntity(et *EntityType, name string) (*Entity, error) {
	if _, err := s.Entity(et, name); err != nil {
		return nil, err
	}
	return &Entity{typ: et, name: name, session: s}, nil
}

// Entities returns the entities of et seen so far, in first-seen order.
func (s *Session) Entities(et *EntityType) []*Entity {
	return s.directory.list(et)
}

// Close disposes the extensions and drops every cached value
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	defer s.cache.Clear()

	for _, ext := range s.snapshotExtensions() {
		if err := ext.Dispose(s); err != nil {
			return fmt.Errorf("disposing extension %s: %w", ext.Name(), err)
		}
	}

	s.logger.Debug("session closed")
	return nil
}

package features

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lifecycleExtension struct {
	BaseExtension
	initErr  error
	inits    int
	disposes int
}

func (e *lifecycleExtension) Init(s *Session) error {
	e.inits++
	return e.initErr
}

func (e *lifecycleExtension) Dispose(s *Session) error {
	e.disposes++
	return nil
}

func TestSession_ExtensionLifecycle(t *testing.T) {
	ext := &lifecycleExtension{BaseExtension: NewBaseExtension("lifecycle")}
	s := NewSession(WithExtension(ext))
	assert.Equal(t, 1, ext.inits)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, ext.disposes)
}

func TestSession_ExtensionInitFailure(t *testing.T) {
	ext := &lifecycleExtension{BaseExtension: NewBaseExtension("broken"), initErr: errors.New("no")}

	s := NewSession()
	defer s.Close()
	assert.Error(t, s.UseExtension(ext))
	assert.Panics(t, func() { NewSession(WithExtension(ext)) })
}

func TestSession_CloseClearsCache(t *testing.T) {
	fx := newRectangleFixture(t)
	r1 := fx.session.MustEntity(fx.rect, "r1")
	_, err := Get(r1, fx.area)
	require.NoError(t, err)
	assert.Equal(t, 3, fx.session.Cache().Len())

	require.NoError(t, fx.session.Close())
	assert.Equal(t, 0, fx.session.Cache().Len())
}

func TestSession_Accessors(t *testing.T) {
	cat := NewCatalog()
	s := NewSession(WithCatalog(cat), WithStipulationPolicy(Overwrite), WithLogger(nil))
	defer s.Close()

	assert.Same(t, cat, s.Catalog())
	assert.Equal(t, Overwrite, s.Policy())
	assert.NotNil(t, s.Logger())
	assert.NotEmpty(t, s.ID())
	assert.NotEqual(t, s.ID(), NewSession().ID())
}

func TestParseStipulationPolicy(t *testing.T) {
	for in, want := range map[string]StipulationPolicy{
		"":                RejectComputed,
		"reject-computed": RejectComputed,
		"REJECT_COMPUTED": RejectComputed,
		" overwrite ":     Overwrite,
	} {
		got, err := ParseStipulationPolicy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseStipulationPolicy("sometimes")
	assert.Error(t, err)
	assert.Equal(t, "overwrite", Overwrite.String())
}

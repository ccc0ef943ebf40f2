package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStipulate_RejectsOverComputed(t *testing.T) {
	fx := newRectangleFixture(t)
	r1 := fx.session.MustEntity(fx.rect, "r1")

	_, err := Get(r1, fx.area)
	require.NoError(t, err)

	err = r1.Stipulate(fx.width, "4.0")
	var conflict *StipulationConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "width", conflict.Feature)
	assert.Equal(t, 3.0, conflict.Computed)

	// the computed value is untouched
	w, err := Get(r1, fx.width)
	require.NoError(t, err)
	assert.Equal(t, 3.0, w)
}

func TestStipulate_ReplacesEarlierStipulation(t *testing.T) {
	fx := newRectangleFixture(t)
	r1 := fx.session.MustEntity(fx.rect, "r1")

	require.NoError(t, r1.Stipulate(fx.width, "4.0"))
	a, err := Get(r1, fx.area)
	require.NoError(t, err)
	assert.Equal(t, 8.0, a)

	require.NoError(t, r1.Stipulate(fx.width, "5.0"))
	assert.False(t, r1.IsCached(fx.area), "dependents of a replaced value are dropped")

	a, err = Get(r1, fx.area)
	require.NoError(t, err)
	assert.Equal(t, 10.0, a)
	assert.Equal(t, int32(2), fx.areaCalls.Load())
}

func TestStipulate_KeepsStipulatedDependent(t *testing.T) {
	fx := newRectangleFixture(t)
	r1 := fx.session.MustEntity(fx.rect, "r1")

	require.NoError(t, r1.Stipulate(fx.width, "3.0"))
	require.NoError(t, r1.Stipulate(fx.area, "100"))
	require.NoError(t, r1.Stipulate(fx.width, "4.0"))

	a, err := Get(r1, fx.area)
	require.NoError(t, err)
	assert.Equal(t, 100.0, a)
	assert.Equal(t, int32(0), fx.areaCalls.Load())

	w, err := Get(r1, fx.width)
	require.NoError(t, err)
	assert.Equal(t, 4.0, w)
}

func TestStipulate_OverwritePolicy(t *testing.T) {
	fx := newRectangleFixture(t, WithStipulationPolicy(Overwrite))
	r1 := fx.session.MustEntity(fx.rect, "r1")

	_, err := Get(r1, fx.area)
	require.NoError(t, err)

	require.NoError(t, r1.Stipulate(fx.width, 1.5))
	origin, ok := r1.Origin(fx.width)
	require.True(t, ok)
	assert.Equal(t, OriginStipulated, origin)
	assert.False(t, r1.IsCached(fx.area))
	assert.True(t, r1.IsCached(fx.length))

	a, err := Get(r1, fx.area)
	require.NoError(t, err)
	assert.Equal(t, 3.0, a)
}

func TestStipulate_CoercionFailure(t *testing.T) {
	fx := newRectangleFixture(t)
	r1 := fx.session.MustEntity(fx.rect, "r1")

	err := r1.Stipulate(fx.width, "wide")
	var coercion *ValueCoercionError
	require.ErrorAs(t, err, &coercion)
	assert.Equal(t, "width", coercion.Feature)
	assert.Equal(t, "float", coercion.ValueType)
	assert.Equal(t, "wide", coercion.Raw)
	assert.False(t, r1.IsCached(fx.width))
}

func TestStipulate_UnknownFeature(t *testing.T) {
	fx := newRectangleFixture(t)
	r1 := fx.session.MustEntity(fx.rect, "r1")

	height := Stipulated[float64](fx.rect, "height")
	assert.ErrorIs(t, r1.Stipulate(height, 1.0), ErrUnknownFeature)
}

func TestRelease(t *testing.T) {
	fx := newRectangleFixture(t)
	r1 := fx.session.MustEntity(fx.rect, "r1")

	_, err := Get(r1, fx.area)
	require.NoError(t, err)

	require.NoError(t, r1.Release(fx.width))
	assert.False(t, r1.IsCached(fx.width))
	assert.False(t, r1.IsCached(fx.area))
	assert.True(t, r1.IsCached(fx.length))

	_, err = Get(r1, fx.area)
	require.NoError(t, err)
	assert.Equal(t, int32(2), fx.widthCalls.Load())
	assert.Equal(t, int32(2), fx.areaCalls.Load())
}

func TestRelease_KeepsStipulatedDependent(t *testing.T) {
	fx := newRectangleFixture(t)
	r1 := fx.session.MustEntity(fx.rect, "r1")

	require.NoError(t, r1.Stipulate(fx.area, "100"))
	_, err := Get(r1, fx.width)
	require.NoError(t, err)

	require.NoError(t, r1.Release(fx.width))
	assert.False(t, r1.IsCached(fx.width))

	a, err := Get(r1, fx.area)
	require.NoError(t, err)
	assert.Equal(t, 100.0, a)
	assert.Equal(t, int32(0), fx.areaCalls.Load())
}

func TestEntity_CacheAccessChecksFeature(t *testing.T) {
	fx := newRectangleFixture(t)
	r1 := fx.session.MustEntity(fx.rect, "r1")
	height := Stipulated[float64](fx.rect, "height")

	_, ok := r1.Peek(nil)
	assert.False(t, ok)
	assert.False(t, r1.IsCached(height))
	_, ok = r1.Origin(height)
	assert.False(t, ok)

	assert.ErrorIs(t, r1.Release(nil), ErrUnknownFeature)
	assert.ErrorIs(t, r1.Release(height), ErrUnknownFeature)
}

func TestEntity_ClosedSession(t *testing.T) {
	fx := newRectangleFixture(t)
	r1 := fx.session.MustEntity(fx.rect, "r1")
	require.NoError(t, r1.Stipulate(fx.width, "4.0"))
	require.NoError(t, fx.session.Close())

	_, ok := r1.Peek(fx.width)
	assert.False(t, ok)
	assert.False(t, r1.IsCached(fx.width))
	assert.ErrorIs(t, r1.Release(fx.width), ErrSessionClosed)
	assert.ErrorIs(t, Accessor(r1, fx.width).Release(), ErrSessionClosed)

	_, err := Accessor(r1, fx.width).Reload()
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestController(t *testing.T) {
	fx := newRectangleFixture(t)
	r1 := fx.session.MustEntity(fx.rect, "r1")

	width := Accessor(r1, fx.width)
	area := Accessor(r1, fx.area)
	assert.Same(t, fx.area, area.Feature())

	_, ok := area.Peek()
	assert.False(t, ok)

	require.NoError(t, width.Stipulate("7"))
	v, err := area.Get()
	require.NoError(t, err)
	assert.Equal(t, 14.0, v)
	assert.True(t, area.IsCached())

	peeked, ok := area.Peek()
	require.True(t, ok)
	assert.Equal(t, 14.0, peeked)

	v, err = area.Reload()
	require.NoError(t, err)
	assert.Equal(t, 14.0, v)
	assert.Equal(t, int32(2), fx.areaCalls.Load())
}

func TestMaterialize(t *testing.T) {
	fx := newRectangleFixture(t)
	r1 := fx.session.MustEntity(fx.rect, "r1")
	require.NoError(t, r1.Stipulate(fx.length, "2.5"))

	line, err := r1.Materialize()
	require.NoError(t, err)
	assert.Equal(t, "r1: (width=3.0, length=2.5, area=7.5)", line)
	assert.Equal(t, line, r1.String())
}

func TestMaterialize_Error(t *testing.T) {
	rect := NewEntityType("rectangle")
	width := Stipulated[float64](rect, "width")

	s := NewSession()
	defer s.Close()
	require.NoError(t, s.AddEntityType(rect))
	require.NoError(t, s.AddFeature(width))

	r := s.MustEntity(rect, "r")
	_, err := r.Materialize()
	require.Error(t, err)
	assert.Contains(t, r.String(), "r: (error:")
}

func TestEntity_UnregisteredType(t *testing.T) {
	s := NewSession()
	defer s.Close()

	_, err := s.Entity(NewEntityType("ghost"), "g1")
	assert.ErrorIs(t, err, ErrUnknownEntityType)
	assert.Panics(t, func() { s.MustEntity(NewEntityType("ghost"), "g1") })
}

func TestEntities_FirstSeenOrder(t *testing.T) {
	fx := newRectangleFixture(t)
	for _, name := range []string{"r3", "r1", "r2", "r1"} {
		fx.session.MustEntity(fx.rect, name)
	}

	var names []string
	for _, e := range fx.session.Entities(fx.rect) {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"r3", "r1", "r2"}, names)
	assert.Empty(t, fx.session.Entities(NewEntityType("other")))
}

package features

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_AddEntityType(t *testing.T) {
	c := NewCatalog()
	rect := NewEntityType("rectangle")

	require.NoError(t, c.AddEntityType(rect))
	require.NoError(t, c.AddEntityType(rect), "same type twice is a no-op")
	assert.ErrorIs(t, c.AddEntityType(NewEntityType("rectangle")), ErrDuplicateEntityType)

	got, ok := c.EntityType("rectangle")
	require.True(t, ok)
	assert.Same(t, rect, got)
	assert.Len(t, c.EntityTypes(), 1)
}

func TestCatalog_AddFeature(t *testing.T) {
	c := NewCatalog()
	rect := NewEntityType("rectangle")
	width := Provide(rect, "width", func(e *Entity) (float64, error) { return 1, nil })

	assert.ErrorIs(t, c.AddFeature(width), ErrUnknownEntityType)

	require.NoError(t, c.AddEntityType(rect))
	require.NoError(t, c.AddFeature(width))
	assert.ErrorIs(t, c.AddFeature(width), ErrDuplicateFeature)
	assert.ErrorIs(t, c.AddFeature(Provide(rect, "width", func(e *Entity) (float64, error) { return 2, nil })), ErrDuplicateFeature)

	f, ok := c.Feature(rect, "width")
	require.True(t, ok)
	assert.Same(t, width, f)
	assert.True(t, c.Has(width))
	assert.False(t, c.Has(Provide(rect, "width", func(e *Entity) (float64, error) { return 3, nil })))
}

func TestCatalog_ArityMismatch(t *testing.T) {
	c := NewCatalog()
	rect := NewEntityType("rectangle")
	require.NoError(t, c.AddEntityType(rect))

	area := Define[float64](rect, "area", []string{"width", "length"}, 1, func(e *Entity, args []any) (any, error) {
		return args[0], nil
	})
	err := c.AddFeature(area)
	assert.ErrorIs(t, err, ErrArityMismatch)
	_, ok := c.Feature(rect, "area")
	assert.False(t, ok)
}

func TestCatalog_FeaturesInRegistrationOrder(t *testing.T) {
	fx := newRectangleFixture(t)

	var names []string
	for _, f := range fx.session.Catalog().FeaturesOf(fx.rect) {
		names = append(names, f.Name())
	}
	assert.Equal(t, []string{"width", "length", "area"}, names)
	assert.Len(t, fx.session.Catalog().Features(), 3)
}

func TestCatalog_DataSources(t *testing.T) {
	fx := newRectangleFixture(t)
	c := fx.session.Catalog()

	sizes := NewCSVDataSource("sizes", "sizes.csv", DefaultDialect)
	sizes.AddMapping(fx.width, "w", "id")
	empty := NewCSVDataSource("empty", "empty.csv", DefaultDialect)

	require.NoError(t, c.AddDataSource(sizes))
	require.NoError(t, c.AddDataSource(empty))
	assert.ErrorIs(t, c.AddDataSource(NewCSVDataSource("sizes", "other.csv", DefaultDialect)), ErrDuplicateDataSource)

	got, ok := c.DataSource("sizes")
	require.True(t, ok)
	assert.Same(t, sizes, got)

	with := c.DataSourcesWith(fx.rect)
	require.Len(t, with, 1)
	assert.Same(t, sizes, with[0])
}

func TestCatalog_Validate(t *testing.T) {
	node := NewEntityType("node")
	a := Define[int](node, "a", []string{"b"}, 1, func(e *Entity, args []any) (any, error) { return args[0], nil })
	b := Define[int](node, "b", []string{"a"}, 1, func(e *Entity, args []any) (any, error) { return args[0], nil })
	c := Define[int](node, "c", []string{"missing"}, 1, func(e *Entity, args []any) (any, error) { return args[0], nil })
	unregistered := Stipulated[int](node, "unregistered")

	cat := NewCatalog()
	require.NoError(t, cat.AddEntityType(node))
	require.NoError(t, cat.AddFeature(a))
	require.NoError(t, cat.AddFeature(b))
	require.NoError(t, cat.AddFeature(c))

	src := NewCSVDataSource("src", "src.csv", DefaultDialect)
	src.AddMapping(unregistered, "col", "id")
	require.NoError(t, cat.AddDataSource(src))

	err := cat.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCycleDetected)
	assert.ErrorIs(t, err, ErrMissingDependency)
	assert.ErrorIs(t, err, ErrUnknownFeature)

	var cycle *CycleDetectedError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"a", "b", "a"}, cycle.Path)
}

func TestSession_PopulateFailsOnInvalidCatalog(t *testing.T) {
	node := NewEntityType("node")
	self := Define[int](node, "self", []string{"self"}, 1, func(e *Entity, args []any) (any, error) { return args[0], nil })

	s := NewSession()
	defer s.Close()

	err := s.Populate(func(c *Catalog) error {
		return errors.Join(c.AddEntityType(node), c.AddFeature(self))
	})
	assert.ErrorIs(t, err, ErrCycleDetected)

	err = s.Populate(func(c *Catalog) error { return errors.New("registration failed") })
	assert.ErrorContains(t, err, "registration failed")
}

func TestDerive_RejectsForeignDependency(t *testing.T) {
	rect := NewEntityType("rectangle")
	circle := NewEntityType("circle")
	radius := Stipulated[float64](circle, "radius")

	assert.Panics(t, func() {
		Derive1(rect, "bad", radius, func(e *Entity, r float64) (float64, error) { return r, nil })
	})
}

package features

// Controller gives typed access to one feature of one entity
type Controller[T any] struct {
	feature *Feature[T]
	entity  *Entity
}

// Accessor creates a controller for a feature on an entity
func Accessor[T any](e *Entity, feature *Feature[T]) *Controller[T] {
	return &Controller[T]{
		feature: feature,
		entity:  e,
	}
}

// Get retrieves the value (resolves if not cached)
func (c *Controller[T]) Get() (T, error) {
	return Get(c.entity, c.feature)
}

// Peek retrieves the cached value without resolving
func (c *Controller[T]) Peek() (T, bool) {
	val, ok := c.entity.Peek(c.feature)
	if !ok {
		var zero T
		return zero, false
	}
	return val.(T), true
}

// Stipulate force-sets the value, bypassing computation
func (c *Controller[T]) Stipulate(raw any) error {
	return c.entity.Stipulate(c.feature, raw)
}

// Release invalidates the cached value and its computed dependents
func (c *Controller[T]) Release() error {
	return c.entity.Release(c.feature)
}

// Reload invalidates and immediately re-resolves
func (c *Controller[T]) Reload() (T, error) {
	if err := c.Release(); err != nil {
		var zero T
		return zero, err
	}
	return c.Get()
}

// IsCached checks if the value is currently cached
func (c *Controller[T]) IsCached() bool {
	return c.entity.IsCached(c.feature)
}

// Feature returns the controlled feature definition
func (c *Controller[T]) Feature() *Feature[T] {
	return c.feature
}

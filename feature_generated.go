package features

// Derive helpers take typed dependencies, so a compute function always
// matches its declared dependencies in number, order and type.

func Derive1[T any, D1 any](
	et *EntityType,
	name string,
	d1 *Feature[D1],
	fn func(*Entity, D1) (T, error),
	opts ...FeatureOption,
) *Feature[T] {
	deps := []string{d1.name}
	mustShareEntityType(et, name, d1.entityType, d1.name)

	return newFeature[T](et, name, deps, 1, func(e *Entity, args []any) (any, error) {
		v1, err := arg[D1](args, 0, deps[0])
		if err != nil {
			return nil, err
		}
		return fn(e, v1)
	}, opts)
}

func Derive2[T any, D1 any, D2 any](
	et *EntityType,
	name string,
	d1 *Feature[D1],
	d2 *Feature[D2],
	fn func(*Entity, D1, D2) (T, error),
	opts ...FeatureOption,
) *Feature[T] {
	deps := []string{d1.name, d2.name}
	mustShareEntityType(et, name, d1.entityType, d1.name)
	mustShareEntityType(et, name, d2.entityType, d2.name)

	return newFeature[T](et, name, deps, 2, func(e *Entity, args []any) (any, error) {
		v1, err := arg[D1](args, 0, deps[0])
		if err != nil {
			return nil, err
		}
		v2, err := arg[D2](args, 1, deps[1])
		if err != nil {
			return nil, err
		}
		return fn(e, v1, v2)
	}, opts)
}

func Derive3[T any, D1 any, D2 any, D3 any](
	et *EntityType,
	name string,
	d1 *Feature[D1],
	d2 *Feature[D2],
	d3 *Feature[D3],
	fn func(*Entity, D1, D2, D3) (T, error),
	opts ...FeatureOption,
) *Feature[T] {
	deps := []string{d1.name, d2.name, d3.name}
	mustShareEntityType(et, name, d1.entityType, d1.name)
	mustShareEntityType(et, name, d2.entityType, d2.name)
	mustShareEntityType(et, name, d3.entityType, d3.name)

	return newFeature[T](et, name, deps, 3, func(e *Entity, args []any) (any, error) {
		v1, err := arg[D1](args, 0, deps[0])
		if err != nil {
			return nil, err
		}
		v2, err := arg[D2](args, 1, deps[1])
		if err != nil {
			return nil, err
		}
		v3, err := arg[D3](args, 2, deps[2])
		if err != nil {
			return nil, err
		}
		return fn(e, v1, v2, v3)
	}, opts)
}

func Derive4[T any, D1 any, D2 any, D3 any, D4 any](
	et *EntityType,
	name string,
	d1 *Feature[D1],
	d2 *Feature[D2],
	d3 *Feature[D3],
	d4 *Feature[D4],
	fn func(*Entity, D1, D2, D3, D4) (T, error),
	opts ...FeatureOption,
) *Feature[T] {
	deps := []string{d1.name, d2.name, d3.name, d4.name}
	mustShareEntityType(et, name, d1.entityType, d1.name)
	mustShareEntityType(et, name, d2.entityType, d2.name)
	mustShareEntityType(et, name, d3.entityType, d3.name)
	mustShareEntityType(et, name, d4.entityType, d4.name)

	return newFeature[T](et, name, deps, 4, func(e *Entity, args []any) (any, error) {
		v1, err := arg[D1](args, 0, deps[0])
		if err != nil {
			return nil, err
		}
		v2, err := arg[D2](args, 1, deps[1])
		if err != nil {
			return nil, err
		}
		v3, err := arg[D3](args, 2, deps[2])
		if err != nil {
			return nil, err
		}
		v4, err := arg[D4](args, 3, deps[3])
		if err != nil {
			return nil, err
		}
		return fn(e, v1, v2, v3, v4)
	}, opts)
}

func mustShareEntityType(et *EntityType, name string, depType *EntityType, dep string) {
	if et != depType {
		panic("feature " + et.Name() + "." + name + " cannot depend on " + depType.Name() + "." + dep)
	}
}

package features

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Materialize resolves every feature of the entity's type and renders them
// as "name: (f1=v1, f2=v2)" in registration order.
func (e *Entity) Materialize() (string, error) {
	var sb strings.Builder
	sb.WriteString(e.name)
	sb.WriteString(": (")
	for i, f := range e.Features() {
		v, err := e.Get(f)
		if err != nil {
			return "", err
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(f.Name())
		sb.WriteByte('=')
		sb.WriteString(f.ValueType().Format(v))
	}
	sb.WriteByte(')')
	return sb.String(), nil
}

func (e *Entity) String() string {
	line, err := e.Materialize()
	if err != nil {
		return fmt.Sprintf("%s: (error: %v)", e.name, err)
	}
	return line
}

// Dump hydrates each entity type from its data sources and writes one
// materialization line per known entity of that type.
func (s *Session) Dump(ctx context.Context, w io.Writer) error {
	for _, et := range s.catalog.EntityTypes() {
		if _, err := fmt.Fprintf(w, "Entity type: %s\n", et.Name()); err != nil {
			return err
		}
		if _, err := s.HydrateType(ctx, et); err != nil {
			return err
		}
		for _, e := range s.Entities(et) {
			line, err := e.Materialize()
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
	}
	return nil
}

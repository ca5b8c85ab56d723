package report

import (
	"fmt"
	"sort"
)

// Definition is a registry entry. Build must return a fresh Report on every
// call.
type Definition struct {
	Name     string
	Abstract bool
	Build    func() (*Report, error)
}

// Registry maps report names to definitions. It is read-only after
// construction and safe for concurrent use.
type Registry struct {
	defs  map[string]Definition
	names []string
}

// NewRegistry indexes defs by name. Empty or duplicate names are rejected.
func NewRegistry(defs ...Definition) (*Registry, error) {
	reg := &Registry{defs: make(map[string]Definition, len(defs))}
	for _, def := range defs {
		if def.Name == "" {
			return nil, fmt.Errorf("%w: definition without name", ErrInvalidReport)
		}
		if def.Build == nil {
			return nil, fmt.Errorf("%w: definition %s has no builder", ErrInvalidReport, def.Name)
		}
		if _, exists := reg.defs[def.Name]; exists {
			return nil, fmt.Errorf("%w: duplicate report %s", ErrInvalidReport, def.Name)
		}
		reg.defs[def.Name] = def
		if !def.Abstract {
			reg.names = append(reg.names, def.Name)
		}
	}
	sort.Strings(reg.names)
	return reg, nil
}

// Names returns the concrete report names in sorted order.
func (reg *Registry) Names() []string {
	out := make([]string, len(reg.names))
	copy(out, reg.names)
	return out
}

// Has reports whether name is a concrete report.
func (reg *Registry) Has(name string) bool {
	def, ok := reg.defs[name]
	return ok && !def.Abstract
}

// New builds a fresh instance of the named report. The instance takes the
// registered name.
func (reg *Registry) New(name string) (*Report, error) {
	def, ok := reg.defs[name]
	if !ok || def.Abstract {
		return nil, fmt.Errorf("%w: %s", ErrReportNotFound, name)
	}
	r, err := def.Build()
	if err != nil {
		return nil, fmt.Errorf("build report %s: %w", name, err)
	}
	r.Name = name
	return r, nil
}

// List builds one instance of every concrete report, ordered by name.
func (reg *Registry) List() ([]*Report, error) {
	reports := make([]*Report, 0, len(reg.names))
	for _, name := range reg.names {
		r, err := reg.New(name)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, nil
}

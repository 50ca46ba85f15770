package transform

import (
	"fmt"
	"strings"

	"tailor/internal/services"
)

// ArgBuilder produces the ffmpeg argument list for one input/output pair.
type ArgBuilder func(input, output string) []string

// Operation is a named, deterministic video transform.
type Operation struct {
	ID          string
	Description string
	Suffix      string
	build       ArgBuilder
}

// NewOperation constructs an operation. An empty suffix defaults to the id.
func NewOperation(id, description, suffix string, build ArgBuilder) Operation {
	if strings.TrimSpace(suffix) == "" {
		suffix = id
	}
	return Operation{ID: id, Description: description, Suffix: suffix, build: build}
}

// BuildArgs returns the engine invocation for input and output. It never
// touches the filesystem.
func (o Operation) BuildArgs(input, output string) []string {
	if o.build == nil {
		return nil
	}
	return o.build(input, output)
}

// Registry is an immutable operation table. It is safe for concurrent use
// because nothing mutates it after construction.
type Registry struct {
	ops   []Operation
	index map[string]int
}

// NewRegistry validates ops and freezes them in declaration order.
func NewRegistry(ops ...Operation) (*Registry, error) {
	r := &Registry{
		ops:   make([]Operation, 0, len(ops)),
		index: make(map[string]int, len(ops)),
	}
	for _, op := range ops {
		id := strings.TrimSpace(op.ID)
		if id == "" {
			return nil, fmt.Errorf("%w: operation id must not be empty", services.ErrConfiguration)
		}
		if id != op.ID || strings.ToLower(id) != id {
			return nil, fmt.Errorf("%w: operation id %q must be lowercase without surrounding spaces", services.ErrConfiguration, op.ID)
		}
		if op.build == nil {
			return nil, fmt.Errorf("%w: operation %q has no argument builder", services.ErrConfiguration, id)
		}
		if strings.ContainsAny(op.Suffix, `/\.`) || op.Suffix == "" {
			return nil, fmt.Errorf("%w: operation %q has invalid suffix %q", services.ErrConfiguration, id, op.Suffix)
		}
		if _, dup := r.index[id]; dup {
			return nil, fmt.Errorf("%w: duplicate operation %q", services.ErrConfiguration, id)
		}
		r.index[id] = len(r.ops)
		r.ops = append(r.ops, op)
	}
	return r, nil
}

// Lookup returns the operation registered under id.
func (r *Registry) Lookup(id string) (Operation, error) {
	if r != nil {
		if idx, ok := r.index[id]; ok {
			return r.ops[idx], nil
		}
	}
	return Operation{}, services.Wrap(services.ErrUnknownOperation, "transform", "lookup",
		fmt.Sprintf("no operation %q (known: %s)", id, strings.Join(r.IDs(), ", ")), nil)
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	if r == nil {
		return false
	}
	_, ok := r.index[id]
	return ok
}

// List returns the operations in declaration order.
func (r *Registry) List() []Operation {
	if r == nil {
		return nil
	}
	out := make([]Operation, len(r.ops))
	copy(out, r.ops)
	return out
}

// IDs returns the operation ids in declaration order.
func (r *Registry) IDs() []string {
	if r == nil {
		return nil
	}
	ids := make([]string, len(r.ops))
	for i, op := range r.ops {
		ids[i] = op.ID
	}
	return ids
}

// Suffixes maps each filename suffix to its operation id.
func (r *Registry) Suffixes() map[string]string {
	if r == nil {
		return nil
	}
	out := make(map[string]string, len(r.ops))
	for _, op := range r.ops {
		out[op.Suffix] = op.ID
	}
	return out
}

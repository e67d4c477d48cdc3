package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// DefaultMaxDepth caps how many relational hops Tree follows from the root model.
const DefaultMaxDepth = 3

var (
	// ErrUnknownModel is returned when a model is not registered.
	ErrUnknownModel     = errors.New("unknown model")
	ErrInvalidFieldName = errors.New("invalid field name")
)

// FieldDef describes a single field on a model definition.
type FieldDef struct {
	Name     string    // technical name (snake_case, e.g. "partner_id")
	String   string    // display label (e.g. "Customer")
	Type     FieldType // backend type
	Relation string    // target model for relational fields
}

// ModelDef holds the metadata for one model.
type ModelDef struct {
	Name        string // e.g. "sale.order"
	Description string // e.g. "Sales Order"
	Fields      []FieldDef
}

// Field returns the named field definition, or nil.
func (m *ModelDef) Field(name string) *FieldDef {
	for i := range m.Fields {
		if m.Fields[i].Name == name {
			return &m.Fields[i]
		}
	}
	return nil
}

// Registry holds model definitions. Register is expected at load time; reads are
// safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	models map[string]*ModelDef
	order  []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{models: make(map[string]*ModelDef)}
}

// Register adds or replaces a model definition.
func (r *Registry) Register(m *ModelDef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.models[m.Name]; !exists {
		r.order = append(r.order, m.Name)
		sort.Strings(r.order)
	}
	r.models[m.Name] = m
}

// Model returns the definition for a named model, or nil if not found.
func (r *Registry) Model(name string) *ModelDef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.models[name]
}

// ModelNames returns all registered model names in sorted order.
func (r *Registry) ModelNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Len returns the number of registered models.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.models)
}

// Validate checks that field names are usable as key segments (non-empty,
// unique per model, no whitespace) and that every relation points at a
// registered model.
func (r *Registry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var errs []error
	for _, name := range r.order {
		seen := make(map[string]bool, len(r.models[name].Fields))
		for _, f := range r.models[name].Fields {
			switch {
			case f.Name == "" || strings.ContainsFunc(f.Name, unicode.IsSpace):
				errs = append(errs, fmt.Errorf("%s: %q: %w", name, f.Name, ErrInvalidFieldName))
				continue
			case seen[f.Name]:
				errs = append(errs, fmt.Errorf("%s.%s: duplicate field: %w", name, f.Name, ErrInvalidFieldName))
				continue
			}
			seen[f.Name] = true
			if !f.Type.Relational() {
				continue
			}
			if f.Relation == "" {
				errs = append(errs, fmt.Errorf("%s.%s: %s field without relation", name, f.Name, f.Type))
				continue
			}
			if _, ok := r.models[f.Relation]; !ok {
				errs = append(errs, fmt.Errorf("%s.%s: relation %q: %w", name, f.Name, f.Relation, ErrUnknownModel))
			}
		}
	}
	return errors.Join(errs...)
}

// Tree resolves model into a nested ModelNode. Relational fields get a
// RelatedModel built from their target, up to maxDepth hops (DefaultMaxDepth
// when maxDepth <= 0). A model already on the current path is not expanded
// again, so cyclic relations end in a leaf. Keys are not set; pass the result
// through fieldtree.Build.
func (r *Registry) Tree(model string, maxDepth int) (*ModelNode, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.models[model]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, model)
	}
	return r.node(model, 0, maxDepth, map[string]bool{}), nil
}

func (r *Registry) node(model string, depth, maxDepth int, onPath map[string]bool) *ModelNode {
	def := r.models[model]
	onPath[model] = true
	defer delete(onPath, model)

	node := &ModelNode{
		Model:       def.Name,
		Description: def.Description,
		Fields:      make([]FieldDescriptor, 0, len(def.Fields)),
	}
	for _, f := range def.Fields {
		fd := FieldDescriptor{
			Name:     f.Name,
			String:   f.String,
			Type:     f.Type,
			Model:    def.Name,
			Relation: f.Relation,
		}
		if f.Type.Relational() && depth < maxDepth && !onPath[f.Relation] {
			if _, ok := r.models[f.Relation]; ok {
				fd.RelatedModel = r.node(f.Relation, depth+1, maxDepth, onPath)
			}
		}
		node.Fields = append(node.Fields, fd)
	}
	return node
}

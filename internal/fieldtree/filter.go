package fieldtree

import (
	"strings"

	"github.com/hundred-solutions/onlyoffice-odoo/internal/schema"
)

// MatchTarget selects which text of a field a search string is matched against.
type MatchTarget int

const (
	// MatchSegment matches the field's own key segment (its name).
	MatchSegment MatchTarget = iota
	// MatchLabel matches the field's display label.
	MatchLabel
)

// String returns the configuration name of the target.
func (t MatchTarget) String() string {
	if t == MatchLabel {
		return "label"
	}
	return "segment"
}

// ParseMatchTarget maps "label" to MatchLabel and anything else to MatchSegment.
func ParseMatchTarget(s string) MatchTarget {
	if strings.EqualFold(strings.TrimSpace(s), "label") {
		return MatchLabel
	}
	return MatchSegment
}

type filterOptions struct {
	target          MatchTarget
	caseInsensitive bool
}

// Option adjusts how Filter matches fields.
type Option func(*filterOptions)

// CaseInsensitive makes matching ignore case.
func CaseInsensitive() Option {
	return func(o *filterOptions) { o.caseInsensitive = true }
}

// MatchOn selects the text fields are matched against.
func MatchOn(target MatchTarget) Option {
	return func(o *filterOptions) { o.target = target }
}

// Filter derives the visible tree for search from the ground-truth root.
//
// An empty search returns root itself. Otherwise a field survives when its own
// segment contains search (case-sensitive unless CaseInsensitive is given) or
// when its related model has a surviving field. Nodes left without fields
// collapse to nil, so a search that matches nothing returns nil.
//
// Surviving nodes are fresh values with Expanded set. A field that matches
// directly but has no match below keeps its ground-truth related model, shared
// and unexpanded. root is never modified.
func Filter(root *schema.ModelNode, search string, opts ...Option) *schema.ModelNode {
	if search == "" {
		return root
	}
	var o filterOptions
	for _, opt := range opts {
		opt(&o)
	}
	m := matcher{opts: o, needle: search}
	if o.caseInsensitive {
		m.needle = strings.ToLower(search)
	}
	return m.filter(root)
}

type matcher struct {
	opts   filterOptions
	needle string
}

func (m matcher) matches(f schema.FieldDescriptor) bool {
	text := Segment(f.Key)
	if text == "" {
		text = f.Name
	}
	if m.opts.target == MatchLabel {
		text = f.String
	}
	if m.opts.caseInsensitive {
		text = strings.ToLower(text)
	}
	return strings.Contains(text, m.needle)
}

func (m matcher) filter(n *schema.ModelNode) *schema.ModelNode {
	if n == nil {
		return nil
	}
	var kept []schema.FieldDescriptor
	for _, f := range n.Fields {
		nested := m.filter(f.RelatedModel)
		switch {
		case nested != nil:
			f.RelatedModel = nested
		case m.matches(f):
			// f.RelatedModel stays the shared ground-truth subtree.
		default:
			continue
		}
		kept = append(kept, f)
	}
	if len(kept) == 0 {
		return nil
	}
	return &schema.ModelNode{
		Model:       n.Model,
		Description: n.Description,
		Fields:      kept,
		Expanded:    true,
	}
}

// Package schema describes data models as merge-field trees.
//
// A Registry holds flat model definitions loaded from a catalog source
// (CUE, OpenAPI). Registry.Tree resolves relational fields into nested
// ModelNode values, which the fieldtree package keys, sorts and filters.
package schema

// FieldType is the backend type of a field, as reported by the data model.
type FieldType string

const (
	FieldChar      FieldType = "char"
	FieldText      FieldType = "text"
	FieldSelection FieldType = "selection"
	FieldInteger   FieldType = "integer"
	FieldFloat     FieldType = "float"
	FieldMonetary  FieldType = "monetary"
	FieldDate      FieldType = "date"
	FieldDatetime  FieldType = "datetime"
	FieldMany2One  FieldType = "many2one"
	FieldOne2Many  FieldType = "one2many"
	FieldMany2Many FieldType = "many2many"
	FieldBoolean   FieldType = "boolean"

	// Known to the data model but not insertable as a form field.
	FieldBinary    FieldType = "binary"
	FieldHTML      FieldType = "html"
	FieldImage     FieldType = "image"
	FieldReference FieldType = "reference"
	FieldJSON      FieldType = "json"
)

// String returns the type name.
func (ft FieldType) String() string {
	return string(ft)
}

// Relational reports whether the field points at another model.
func (ft FieldType) Relational() bool {
	switch ft {
	case FieldMany2One, FieldOne2Many, FieldMany2Many:
		return true
	default:
		return false
	}
}

// ToMany reports whether the field holds a list of related records.
func (ft FieldType) ToMany() bool {
	return ft == FieldOne2Many || ft == FieldMany2Many
}

// Known reports whether ft is one of the declared constants.
func (ft FieldType) Known() bool {
	switch ft {
	case FieldChar, FieldText, FieldSelection, FieldInteger, FieldFloat, FieldMonetary,
		FieldDate, FieldDatetime, FieldMany2One, FieldOne2Many, FieldMany2Many, FieldBoolean,
		FieldBinary, FieldHTML, FieldImage, FieldReference, FieldJSON:
		return true
	default:
		return false
	}
}

// FieldDescriptor is one field of a model inside a merge-field tree.
type FieldDescriptor struct {
	Name   string    `json:"name"`
	String string    `json:"string"` // display label
	Type   FieldType `json:"type"`
	Model  string    `json:"model"` // owning model
	// Key is the path of field names from the tree root, set by fieldtree.Build.
	Key          string     `json:"key,omitempty"`
	Relation     string     `json:"relation,omitempty"`
	RelatedModel *ModelNode `json:"related_model,omitempty"`
}

// Leaf reports whether the field has no nested model.
func (f FieldDescriptor) Leaf() bool {
	return f.RelatedModel == nil
}

// ModelNode is the ordered field list of one model, possibly nested under a
// relational field of a parent model.
type ModelNode struct {
	Model       string            `json:"model,omitempty"`
	Description string            `json:"description,omitempty"`
	Fields      []FieldDescriptor `json:"fields"`
	// Expanded marks nodes that hold a search match, directly or below.
	Expanded bool `json:"expanded,omitempty"`
}

// Clone returns a deep copy of n.
func (n *ModelNode) Clone() *ModelNode {
	if n == nil {
		return nil
	}
	out := &ModelNode{
		Model:       n.Model,
		Description: n.Description,
		Expanded:    n.Expanded,
		Fields:      make([]FieldDescriptor, len(n.Fields)),
	}
	for i, f := range n.Fields {
		f.RelatedModel = f.RelatedModel.Clone()
		out.Fields[i] = f
	}
	return out
}

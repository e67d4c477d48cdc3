// Package fieldtree keys, sorts and filters merge-field trees.
//
// Build turns a resolved schema.ModelNode into the ground-truth tree of an
// editing session. Filter derives the visible view for a search string without
// touching the ground truth.
package fieldtree

import (
	"sort"
	"strings"

	"github.com/hundred-solutions/onlyoffice-odoo/internal/schema"
)

// KeySeparator joins field names along a path into a key.
const KeySeparator = " "

// nameSeparator splits flat source names ("partner_id.name") into path parts.
const nameSeparator = "."

// Build returns a copy of root in which every field carries its key and the
// fields of every node are sorted by key. root is not modified.
func Build(root *schema.ModelNode) *schema.ModelNode {
	return build(root, nil)
}

func build(n *schema.ModelNode, path []string) *schema.ModelNode {
	if n == nil {
		return nil
	}
	out := &schema.ModelNode{
		Model:       n.Model,
		Description: n.Description,
		Fields:      make([]schema.FieldDescriptor, 0, len(n.Fields)),
	}
	for _, f := range n.Fields {
		fieldPath := append(path[:len(path):len(path)], f.Name)
		f.Key = strings.Join(fieldPath, KeySeparator)
		f.RelatedModel = build(f.RelatedModel, fieldPath)
		out.Fields = append(out.Fields, f)
	}
	sort.Slice(out.Fields, func(i, j int) bool {
		return out.Fields[i].Key < out.Fields[j].Key
	})
	return out
}

// Segment returns the last field name of a key.
func Segment(key string) string {
	if i := strings.LastIndex(key, KeySeparator); i >= 0 {
		return key[i+len(KeySeparator):]
	}
	return key
}

// Nest folds a flat field list whose names are dotted paths into a nested
// tree rooted at model. "partner_id.name" becomes field "name" inside the
// related model of field "partner_id". A parent segment missing from the list
// becomes a placeholder field with an empty type. Fields keep their order of
// first appearance; Build sorts them.
func Nest(model string, flat []schema.FieldDescriptor) *schema.ModelNode {
	root := &schema.ModelNode{Model: model, Fields: []schema.FieldDescriptor{}}
	for _, f := range flat {
		parts := strings.Split(f.Name, nameSeparator)
		insert(root, parts, f)
	}
	return root
}

func insert(n *schema.ModelNode, parts []string, f schema.FieldDescriptor) {
	name := parts[0]
	idx := -1
	for i := range n.Fields {
		if n.Fields[i].Name == name {
			idx = i
			break
		}
	}
	if len(parts) == 1 {
		f.Name = name
		if f.Model == "" {
			f.Model = n.Model
		}
		if idx >= 0 {
			// Keep a nested model built from earlier, deeper entries.
			f.RelatedModel = n.Fields[idx].RelatedModel
			if f.RelatedModel != nil && f.RelatedModel.Model == "" {
				f.RelatedModel.Model = f.Relation
			}
			n.Fields[idx] = f
			return
		}
		n.Fields = append(n.Fields, f)
		return
	}
	if idx < 0 {
		n.Fields = append(n.Fields, schema.FieldDescriptor{Name: name, String: name, Model: n.Model})
		idx = len(n.Fields) - 1
	}
	parent := &n.Fields[idx]
	if parent.RelatedModel == nil {
		parent.RelatedModel = &schema.ModelNode{Model: parent.Relation, Fields: []schema.FieldDescriptor{}}
	}
	insert(parent.RelatedModel, parts[1:], f)
}

// Walk visits every field depth-first in tree order. Returning false from fn
// stops the walk.
func Walk(root *schema.ModelNode, fn func(f schema.FieldDescriptor, depth int) bool) {
	walk(root, 0, fn)
}

func walk(n *schema.ModelNode, depth int, fn func(schema.FieldDescriptor, int) bool) bool {
	if n == nil {
		return true
	}
	for _, f := range n.Fields {
		if !fn(f, depth) {
			return false
		}
		if !walk(f.RelatedModel, depth+1, fn) {
			return false
		}
	}
	return true
}

// Lookup finds a field by key.
func Lookup(root *schema.ModelNode, key string) (schema.FieldDescriptor, bool) {
	n := root
	parts := strings.Split(key, KeySeparator)
	for i := range parts {
		if n == nil {
			return schema.FieldDescriptor{}, false
		}
		want := strings.Join(parts[:i+1], KeySeparator)
		idx := sort.Search(len(n.Fields), func(j int) bool { return n.Fields[j].Key >= want })
		if idx == len(n.Fields) || n.Fields[idx].Key != want {
			return schema.FieldDescriptor{}, false
		}
		if i == len(parts)-1 {
			return n.Fields[idx], true
		}
		n = n.Fields[idx].RelatedModel
	}
	return schema.FieldDescriptor{}, false
}

// Count returns the number of fields in the tree, nested ones included.
func Count(root *schema.ModelNode) int {
	total := 0
	Walk(root, func(schema.FieldDescriptor, int) bool {
		total++
		return true
	})
	return total
}

package fieldtree

import (
	"strings"

	"github.com/hundred-solutions/onlyoffice-odoo/internal/schema"
)

// Completion kinds.
const (
	KindField    = "field"
	KindRelation = "relation"
)

// Completion is one suggestion for a partially typed field key.
type Completion struct {
	Label      string `json:"label"`
	Kind       string `json:"kind"`
	Detail     string `json:"detail,omitempty"`
	InsertText string `json:"insert_text"`
}

// Complete suggests the fields that can follow text, a key whose last
// segment may be partial: "partner_id na" lists the fields of the partner
// model starting with "na". Every segment but the last must name a
// relational field with a nested model. Suggestions keep tree order.
func Complete(root *schema.ModelNode, text string) []Completion {
	if root == nil {
		return nil
	}
	parts := strings.Split(text, KeySeparator)
	node := root
	for _, name := range parts[:len(parts)-1] {
		next := child(node, name)
		if next == nil {
			return nil
		}
		node = next
	}

	prefix := parts[len(parts)-1]
	var out []Completion
	for _, f := range node.Fields {
		if !strings.HasPrefix(f.Name, prefix) {
			continue
		}
		c := Completion{Label: f.Name, Kind: KindField, Detail: f.String, InsertText: f.Key}
		if f.RelatedModel != nil {
			c.Kind = KindRelation
		}
		if c.InsertText == "" {
			c.InsertText = strings.Join(append(parts[:len(parts)-1:len(parts)-1], f.Name), KeySeparator)
		}
		out = append(out, c)
	}
	return out
}

func child(n *schema.ModelNode, name string) *schema.ModelNode {
	for _, f := range n.Fields {
		if f.Name == name {
			return f.RelatedModel
		}
	}
	return nil
}

package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRegistry builds a small sales catalog with a partner <-> order cycle.
func testRegistry() *Registry {
	r := NewRegistry()
	r.Register(&ModelDef{
		Name:        "sale.order",
		Description: "Sales Order",
		Fields: []FieldDef{
			{Name: "name", String: "Order Reference", Type: FieldChar},
			{Name: "partner_id", String: "Customer", Type: FieldMany2One, Relation: "res.partner"},
			{Name: "order_line", String: "Order Lines", Type: FieldOne2Many, Relation: "sale.order.line"},
			{Name: "amount_total", String: "Total", Type: FieldMonetary},
		},
	})
	r.Register(&ModelDef{
		Name:        "sale.order.line",
		Description: "Sales Order Line",
		Fields: []FieldDef{
			{Name: "name", String: "Description", Type: FieldText},
			{Name: "order_id", String: "Order", Type: FieldMany2One, Relation: "sale.order"},
			{Name: "price_unit", String: "Unit Price", Type: FieldFloat},
		},
	})
	r.Register(&ModelDef{
		Name:        "res.partner",
		Description: "Contact",
		Fields: []FieldDef{
			{Name: "name", String: "Name", Type: FieldChar},
			{Name: "is_company", String: "Is a Company", Type: FieldBoolean},
			{Name: "sale_order_ids", String: "Sales Orders", Type: FieldOne2Many, Relation: "sale.order"},
		},
	})
	return r
}

func TestFieldType(t *testing.T) {
	assert.True(t, FieldMany2One.Relational())
	assert.True(t, FieldOne2Many.ToMany())
	assert.False(t, FieldMany2One.ToMany())
	assert.False(t, FieldChar.Relational())
	assert.True(t, FieldBinary.Known())
	assert.False(t, FieldType("properties").Known())
	assert.Equal(t, "boolean", FieldBoolean.String())
}

func TestRegistry_ModelNames(t *testing.T) {
	r := testRegistry()
	assert.Equal(t, []string{"res.partner", "sale.order", "sale.order.line"}, r.ModelNames())
	assert.Equal(t, 3, r.Len())
	assert.Nil(t, r.Model("missing"))
	require.NotNil(t, r.Model("sale.order").Field("partner_id"))
	assert.Nil(t, r.Model("sale.order").Field("nope"))
}

func TestRegistry_Validate(t *testing.T) {
	r := testRegistry()
	require.NoError(t, r.Validate())

	r.Register(&ModelDef{
		Name: "broken",
		Fields: []FieldDef{
			{Name: "ghost_id", Type: FieldMany2One, Relation: "ghost"},
			{Name: "loose_ids", Type: FieldOne2Many},
		},
	})
	err := r.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownModel)
	assert.Contains(t, err.Error(), "broken.loose_ids")
}

func TestRegistry_ValidateFieldNames(t *testing.T) {
	for name, fields := range map[string][]FieldDef{
		"space":     {{Name: "partner_id name", Type: FieldChar}},
		"tab":       {{Name: "a\tb", Type: FieldChar}},
		"empty":     {{Name: "", Type: FieldChar}},
		"duplicate": {{Name: "ref", Type: FieldChar}, {Name: "ref", Type: FieldText}},
	} {
		t.Run(name, func(t *testing.T) {
			r := testRegistry()
			r.Register(&ModelDef{Name: "x.model", Fields: fields})
			assert.ErrorIs(t, r.Validate(), ErrInvalidFieldName)
		})
	}
}

func TestRegistry_TreeUnknownModel(t *testing.T) {
	_, err := testRegistry().Tree("nope", 0)
	assert.ErrorIs(t, err, ErrUnknownModel)
}

func TestRegistry_TreeResolvesRelations(t *testing.T) {
	tree, err := testRegistry().Tree("sale.order", 0)
	require.NoError(t, err)

	assert.Equal(t, "sale.order", tree.Model)
	require.Len(t, tree.Fields, 4)

	partner := tree.Fields[1]
	require.NotNil(t, partner.RelatedModel)
	assert.Equal(t, "res.partner", partner.RelatedModel.Model)
	assert.Equal(t, "sale.order", partner.Model)

	// res.partner -> sale.order is a cycle back to the root: not expanded.
	orders := partner.RelatedModel.Fields[2]
	assert.Equal(t, "sale_order_ids", orders.Name)
	assert.Nil(t, orders.RelatedModel)

	lines := tree.Fields[2]
	require.NotNil(t, lines.RelatedModel)
	assert.Nil(t, lines.RelatedModel.Fields[1].RelatedModel, "order_id points back to the root")
}

func TestRegistry_TreeDepthCap(t *testing.T) {
	tree, err := testRegistry().Tree("sale.order", 1)
	require.NoError(t, err)
	partner := tree.Fields[1].RelatedModel
	require.NotNil(t, partner)
	for _, f := range partner.Fields {
		assert.Nil(t, f.RelatedModel)
	}
}

func TestModelNode_Clone(t *testing.T) {
	tree, err := testRegistry().Tree("sale.order", 0)
	require.NoError(t, err)

	cp := tree.Clone()
	assert.Equal(t, tree, cp)

	cp.Fields[1].RelatedModel.Fields[0].String = "changed"
	assert.Equal(t, "Name", tree.Fields[1].RelatedModel.Fields[0].String)

	var nilNode *ModelNode
	assert.Nil(t, nilNode.Clone())
}

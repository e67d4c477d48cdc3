package catalog

import (
	_ "embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/hundred-solutions/onlyoffice-odoo/internal/schema"
)

//go:embed odoo.cue
var builtinCUE []byte

// catalogSchema closes the accepted shape. Unknown keys are rejected; unknown
// field types are not, they load as unhandled types.
const catalogSchema = `
#Field: {
	label?:    string
	type:      string & !=""
	relation?: string & !=""
}

#Model: {
	description?: string
	fields: [string]: #Field
}

#Catalog: {
	models: [string]: #Model
}
`

// Builtin returns the registry for the embedded sales catalog.
func Builtin() (*schema.Registry, error) {
	return LoadCUE("odoo.cue", builtinCUE)
}

// LoadCUE reads model definitions from CUE source:
//
//	models: "sale.order": {
//		description: "Sales Order"
//		fields: partner_id: {label: "Customer", type: "many2one", relation: "res.partner"}
//	}
//
// A field without a label gets one derived from its name.
func LoadCUE(filename string, src []byte) (*schema.Registry, error) {
	ctx := cuecontext.New()

	def := ctx.CompileString(catalogSchema).LookupPath(cue.ParsePath("#Catalog"))
	if err := def.Err(); err != nil {
		return nil, fmt.Errorf("catalog schema: %w", err)
	}

	data := ctx.CompileBytes(src, cue.Filename(filename))
	if err := data.Err(); err != nil {
		return nil, fmt.Errorf("compiling %s: %s", filename, cueerrors.Details(err, nil))
	}

	val := def.Unify(data)
	if err := val.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validating %s: %s", filename, cueerrors.Details(err, nil))
	}

	reg := schema.NewRegistry()
	models, err := val.LookupPath(cue.ParsePath("models")).Fields()
	if err != nil {
		return nil, fmt.Errorf("reading models: %w", err)
	}
	for models.Next() {
		m, err := parseModel(models.Selector().Unquoted(), models.Value())
		if err != nil {
			return nil, err
		}
		reg.Register(m)
	}
	return reg, nil
}

func parseModel(name string, val cue.Value) (*schema.ModelDef, error) {
	m := &schema.ModelDef{Name: name}
	m.Description = optionalString(val, "description")

	iter, err := val.LookupPath(cue.ParsePath("fields")).Fields()
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", name, err)
	}
	for iter.Next() {
		label := iter.Selector().Unquoted()
		fd, err := parseField(label, iter.Value())
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", name, err)
		}
		m.Fields = append(m.Fields, fd)
	}
	return m, nil
}

func parseField(name string, val cue.Value) (schema.FieldDef, error) {
	typ, err := val.LookupPath(cue.ParsePath("type")).String()
	if err != nil {
		return schema.FieldDef{}, fmt.Errorf("field %s: %w", name, err)
	}
	fd := schema.FieldDef{
		Name:     name,
		String:   optionalString(val, "label"),
		Type:     schema.FieldType(typ),
		Relation: optionalString(val, "relation"),
	}
	if fd.String == "" {
		fd.String = DefaultLabel(name)
	}
	return fd, nil
}

func optionalString(val cue.Value, path string) string {
	v := val.LookupPath(cue.ParsePath(path))
	if !v.Exists() {
		return ""
	}
	s, _ := v.String()
	return s
}

// DefaultLabel derives a display label from a technical field name the way the
// backend does: "partner_id" -> "Partner", "child_ids" -> "Child".
func DefaultLabel(name string) string {
	name = strings.TrimSuffix(strings.TrimSuffix(name, "_ids"), "_id")
	words := strings.Fields(strings.ReplaceAll(name, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

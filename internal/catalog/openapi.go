package catalog

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/hundred-solutions/onlyoffice-odoo/internal/schema"
)

// Extensions recognised on component schemas and their properties.
const (
	extModel    = "x-odoo-model"    // model name of a component (defaults to the component key)
	extType     = "x-odoo-type"     // explicit field type of a property
	extRelation = "x-odoo-relation" // related model of a property
)

// LoadOpenAPI reads model definitions from the component schemas of an
// OpenAPI 3 document. Each component is a model and each property a field.
// Types are inferred from the schema unless x-odoo-type says otherwise; a
// $ref becomes many2one and an array of $ref becomes one2many.
func LoadOpenAPI(ctx context.Context, data []byte) (*schema.Registry, error) {
	if len(data) == 0 {
		return nil, errors.New("openapi catalog: document is empty")
	}
	loader := &openapi3.Loader{Context: ctx}
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("openapi catalog: load document: %w", err)
	}
	if err := doc.Validate(ctx, openapi3.DisableExamplesValidation()); err != nil {
		return nil, fmt.Errorf("openapi catalog: validate: %w", err)
	}
	if doc.Components == nil || len(doc.Components.Schemas) == 0 {
		return nil, errors.New("openapi catalog: document has no component schemas")
	}

	// Component key -> model name, so refs resolve to model names.
	names := make(map[string]string, len(doc.Components.Schemas))
	for key, ref := range doc.Components.Schemas {
		names[key] = modelName(key, ref)
	}

	reg := schema.NewRegistry()
	for key, ref := range doc.Components.Schemas {
		if ref == nil || ref.Value == nil {
			continue
		}
		reg.Register(convertModel(names[key], ref.Value, names))
	}
	return reg, nil
}

func modelName(key string, ref *openapi3.SchemaRef) string {
	if ref != nil && ref.Value != nil {
		if s, ok := ref.Value.Extensions[extModel].(string); ok && s != "" {
			return s
		}
	}
	return key
}

func convertModel(name string, src *openapi3.Schema, names map[string]string) *schema.ModelDef {
	m := &schema.ModelDef{Name: name, Description: src.Title}
	if m.Description == "" {
		m.Description = src.Description
	}

	props := make([]string, 0, len(src.Properties))
	for p := range src.Properties {
		props = append(props, p)
	}
	sort.Strings(props)

	for _, p := range props {
		ref := src.Properties[p]
		if ref == nil {
			continue
		}
		fd := convertProperty(p, ref, names)
		if fd.String == "" {
			fd.String = DefaultLabel(p)
		}
		m.Fields = append(m.Fields, fd)
	}
	return m
}

func convertProperty(name string, ref *openapi3.SchemaRef, names map[string]string) schema.FieldDef {
	fd := schema.FieldDef{Name: name}
	prop := ref.Value
	if prop != nil {
		// A $ref resolves to the target schema, whose title names the model.
		if ref.Ref == "" {
			fd.String = prop.Title
		}
		if s, ok := prop.Extensions[extRelation].(string); ok {
			fd.Relation = s
		}
	}

	switch {
	case ref.Ref != "":
		fd.Type = schema.FieldMany2One
		if fd.Relation == "" {
			fd.Relation = refModel(ref.Ref, names)
		}
	case prop != nil && prop.Type.Is(openapi3.TypeArray) && prop.Items != nil && prop.Items.Ref != "":
		fd.Type = schema.FieldOne2Many
		if fd.Relation == "" {
			fd.Relation = refModel(prop.Items.Ref, names)
		}
	case prop != nil:
		fd.Type = scalarType(prop)
	}

	if prop != nil {
		if s, ok := prop.Extensions[extType].(string); ok && s != "" {
			fd.Type = schema.FieldType(s)
		}
	}
	return fd
}

func refModel(ref string, names map[string]string) string {
	key := path.Base(ref)
	if n, ok := names[key]; ok {
		return n
	}
	return key
}

func scalarType(s *openapi3.Schema) schema.FieldType {
	switch {
	case s.Type.Is(openapi3.TypeBoolean):
		return schema.FieldBoolean
	case s.Type.Is(openapi3.TypeInteger):
		return schema.FieldInteger
	case s.Type.Is(openapi3.TypeNumber):
		return schema.FieldFloat
	case s.Type.Is(openapi3.TypeString):
		switch s.Format {
		case "date":
			return schema.FieldDate
		case "date-time":
			return schema.FieldDatetime
		case "byte", "binary":
			return schema.FieldBinary
		case "html":
			return schema.FieldHTML
		case "textarea":
			return schema.FieldText
		}
		if len(s.Enum) > 0 {
			return schema.FieldSelection
		}
		return schema.FieldChar
	case s.Type.Is(openapi3.TypeObject):
		return schema.FieldJSON
	}
	return schema.FieldType("")
}

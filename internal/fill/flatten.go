// Package fill turns a data record into merge values and the document
// builder script that writes them into a template's form fields.
package fill

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hundred-solutions/onlyoffice-odoo/internal/schema"
)

// MaxTableDepth bounds how many one2many levels are expanded into tables.
const MaxTableDepth = 3

const (
	DateLayout     = "2006-01-02"
	DatetimeLayout = "2006-01-02 15:04:05"
)

// Record is one decoded data record, field name to value.
type Record map[string]any

// DecodeRecord decodes a JSON object, keeping numbers exact.
func DecodeRecord(data []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}
	if rec == nil {
		return nil, fmt.Errorf("decoding record: not an object")
	}
	return rec, nil
}

// Values are the merge values of one record. Fields hold single values by
// field key; Tables hold one row per related record for to-many fields.
type Values struct {
	Fields map[string]string              `json:"fields"`
	Tables map[string][]map[string]string `json:"tables"`
}

// Len returns the number of single values plus table rows.
func (v Values) Len() int {
	n := len(v.Fields)
	for _, rows := range v.Tables {
		n += len(rows)
	}
	return n
}

// TableKeys returns the table keys in sorted order.
func (v Values) TableKeys() []string {
	keys := make([]string, 0, len(v.Tables))
	for k := range v.Tables {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Flatten walks tree and rec together and collects the merge values under
// the same keys the editor inserted as form keys. Fields missing from rec are
// skipped, as are binary and image fields.
func Flatten(tree *schema.ModelNode, rec Record) Values {
	v := Values{
		Fields: make(map[string]string),
		Tables: make(map[string][]map[string]string),
	}
	flatten(tree, rec, v.Fields, v.Tables, 0)
	return v
}

func flatten(n *schema.ModelNode, rec Record, fields map[string]string, tables map[string][]map[string]string, depth int) {
	if n == nil || rec == nil {
		return
	}
	for _, f := range n.Fields {
		raw, ok := rec[f.Name]
		if !ok {
			continue
		}
		switch f.Type {
		case schema.FieldBinary, schema.FieldImage:
			continue
		case schema.FieldHTML:
			if s, ok := raw.(string); ok {
				fields[f.Key] = StripHTML(s)
			} else {
				fields[f.Key] = Format(f.Type, raw)
			}
		case schema.FieldMany2One:
			if sub, ok := raw.(map[string]any); ok {
				fields[f.Key] = displayName(sub)
				flatten(f.RelatedModel, sub, fields, tables, depth)
				continue
			}
			fields[f.Key] = Format(f.Type, raw)
		case schema.FieldOne2Many, schema.FieldMany2Many:
			list, ok := raw.([]any)
			if !ok {
				fields[f.Key] = Format(f.Type, raw)
				continue
			}
			if names := relatedRows(f, list, tables, depth); len(names) > 0 {
				fields[f.Key] = strings.Join(names, ", ")
			}
		default:
			fields[f.Key] = Format(f.Type, raw)
		}
	}
}

// relatedRows appends one table row per object of a to-many list and returns
// the display names of all entries. Rows of nested to-many fields go to the
// same tables map under their own keys.
func relatedRows(f schema.FieldDescriptor, list []any, tables map[string][]map[string]string, depth int) []string {
	var names []string
	if _, seen := tables[f.Key]; !seen && depth < MaxTableDepth {
		tables[f.Key] = []map[string]string{}
	}
	for _, item := range list {
		sub, ok := item.(map[string]any)
		if !ok {
			names = append(names, Format(schema.FieldMany2One, item))
			continue
		}
		names = append(names, displayName(sub))
		if depth >= MaxTableDepth || f.RelatedModel == nil {
			continue
		}
		row := make(map[string]string)
		flatten(f.RelatedModel, sub, row, tables, depth+1)
		tables[f.Key] = append(tables[f.Key], row)
	}
	return names
}

func displayName(rec map[string]any) string {
	for _, k := range []string{"display_name", "name"} {
		if s, ok := rec[k].(string); ok {
			return s
		}
	}
	if id, ok := rec["id"]; ok {
		return Format(schema.FieldInteger, id)
	}
	return ""
}

// Format renders one scalar value the way it appears in a filled document.
//
// false on a non-boolean field is the data model's "unset" marker and renders
// empty. A [id, name] pair renders as its name.
func Format(ft schema.FieldType, raw any) string {
	switch v := raw.(type) {
	case nil:
		return "null"
	case bool:
		if !v && ft != schema.FieldBoolean {
			return ""
		}
		if v {
			return "true"
		}
		return "false"
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		switch ft {
		case schema.FieldDate:
			return reformat(v, DateLayout)
		case schema.FieldDatetime:
			return reformat(v, DatetimeLayout)
		}
		return v
	case []any:
		if len(v) == 2 {
			if name, ok := v[1].(string); ok {
				return name
			}
		}
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, Format(ft, item))
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		return displayName(v)
	default:
		return fmt.Sprint(v)
	}
}

var inputLayouts = []string{
	time.RFC3339Nano,
	DatetimeLayout,
	"2006-01-02T15:04:05",
	DateLayout,
}

func reformat(s, layout string) string {
	for _, in := range inputLayouts {
		if t, err := time.Parse(in, s); err == nil {
			return t.Format(layout)
		}
	}
	return s
}

var (
	htmlPolicyOnce sync.Once
	htmlPolicy     *bluemonday.Policy
)

// StripHTML reduces rich text to plain text for a text form.
func StripHTML(s string) string {
	htmlPolicyOnce.Do(func() {
		htmlPolicy = bluemonday.StrictPolicy()
	})
	s = strings.NewReplacer("<br>", "\n", "<br/>", "\n", "<br />", "\n", "</p>", "</p>\n").Replace(s)
	return strings.TrimSpace(html.UnescapeString(htmlPolicy.Sanitize(s)))
}

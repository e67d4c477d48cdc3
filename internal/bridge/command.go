package bridge

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind names an editor command.
type Kind string

const (
	KindTextForm     Kind = "create_text_form"
	KindCheckBoxForm Kind = "create_checkbox_form"
)

// FormSpec is the form-field payload handed to the editor.
type FormSpec struct {
	Key         string `json:"key"`
	Placeholder string `json:"placeholder"`
	Tip         string `json:"tip"`
	Tag         string `json:"tag"`
}

// InsertOptions controls how the new paragraph merges with the selection.
type InsertOptions struct {
	KeepTextOnly bool `json:"KeepTextOnly"`
}

// Command is one "insert form field" instruction for the editor.
type Command struct {
	Kind   Kind          `json:"kind"`
	Form   FormSpec      `json:"form"`
	Inline bool          `json:"inline,omitempty"`
	Insert InsertOptions `json:"insert"`
}

// Script renders the command as document builder code, the body the page
// passes to connector.callCommand.
func (c Command) Script() (string, error) {
	var spec any = c.Form
	if c.Kind == KindCheckBoxForm {
		// Checkbox forms take no placeholder.
		spec = struct {
			Key string `json:"key"`
			Tip string `json:"tip"`
			Tag string `json:"tag"`
		}{c.Form.Key, c.Form.Tip, c.Form.Tag}
	}
	form, err := json.Marshal(spec)
	if err != nil {
		return "", fmt.Errorf("encoding form spec: %w", err)
	}
	insert, err := json.Marshal(c.Insert)
	if err != nil {
		return "", fmt.Errorf("encoding insert options: %w", err)
	}

	var b strings.Builder
	b.WriteString("var oDocument = Api.GetDocument();\n")
	switch c.Kind {
	case KindTextForm:
		fmt.Fprintf(&b, "var oForm = Api.CreateTextForm(%s);\n", form)
	case KindCheckBoxForm:
		fmt.Fprintf(&b, "var oForm = Api.CreateCheckBoxForm(%s);\n", form)
	default:
		return "", fmt.Errorf("unknown command kind %q", c.Kind)
	}
	if c.Inline {
		b.WriteString("oForm.ToInline();\n")
	}
	b.WriteString("var oParagraph = Api.CreateParagraph();\n")
	b.WriteString("oParagraph.AddElement(oForm);\n")
	fmt.Fprintf(&b, "oDocument.InsertContent([oParagraph], true, %s);\n", insert)
	return b.String(), nil
}

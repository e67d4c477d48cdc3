package fill

import (
	"encoding/json"
	"fmt"
	"strings"
)

// fillForms is the document builder body that writes values into forms. Forms
// bound to a table column receive one line per row.
const fillForms = `var oDocument = Api.GetDocument();
var aForms = oDocument.GetAllForms();
aForms.forEach(function (oForm) {
    var key = oForm.GetFormKey();
    var value;
    if (Object.prototype.hasOwnProperty.call(fields, key)) {
        value = fields[key];
    } else {
        var column = null;
        Object.keys(tables).forEach(function (table) {
            if (column === null && key.indexOf(table + " ") === 0) {
                column = table;
            }
        });
        if (column === null) {
            return;
        }
        value = tables[column].map(function (row) {
            return row[key] === undefined ? "" : row[key];
        }).join("\n");
    }
    if (oForm.GetFormType() === "checkBoxForm") {
        oForm.SetChecked(value === "true");
    } else {
        oForm.SetText(value);
    }
});
`

// Script renders the document builder script that opens the template at
// openURL, fills its forms from values and saves the result as fileName.docx.
func Script(openURL string, values Values, fileName string) (string, error) {
	fields := values.Fields
	if fields == nil {
		fields = map[string]string{}
	}
	tables := values.Tables
	if tables == nil {
		tables = map[string][]map[string]string{}
	}

	enc := func(v any) (string, error) {
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	url, err := enc(openURL)
	if err != nil {
		return "", fmt.Errorf("encoding template url: %w", err)
	}
	fieldsJS, err := enc(fields)
	if err != nil {
		return "", fmt.Errorf("encoding fields: %w", err)
	}
	tablesJS, err := enc(tables)
	if err != nil {
		return "", fmt.Errorf("encoding tables: %w", err)
	}
	out, err := enc(OutputName(fileName))
	if err != nil {
		return "", fmt.Errorf("encoding file name: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "builder.OpenFile(%s);\n", url)
	fmt.Fprintf(&b, "var fields = %s;\n", fieldsJS)
	fmt.Fprintf(&b, "var tables = %s;\n", tablesJS)
	b.WriteString(fillForms)
	fmt.Fprintf(&b, "builder.SaveFile(\"docxf\", %s);\n", out)
	b.WriteString("builder.CloseFile();\n")
	return b.String(), nil
}

// OutputName returns the file name of a filled document.
func OutputName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Filled record"
	}
	return name + ".docx"
}

// DocumentName builds the name of a filled document from the model
// description and the record's display name.
func DocumentName(modelDescription string, rec Record, recordID string) string {
	name := displayName(rec)
	switch {
	case modelDescription != "" && name != "":
		return modelDescription + " - " + name
	case name != "":
		return name
	case modelDescription != "":
		return modelDescription + " - " + recordID
	default:
		return "Filled record - " + recordID
	}
}

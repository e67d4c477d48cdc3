// Package docx reads the form fields and text of a template document.
package docx

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/unidoc/unioffice/common/license"
	"github.com/unidoc/unioffice/document"
)

// LicenseEnv is the environment variable unioffice keys are read from by
// convention.
const LicenseEnv = "UNIDOC_LICENSE_API_KEY"

// ErrUnlicensed is returned by Inspect until a license key has been set.
var ErrUnlicensed = errors.New("docx: no unioffice license key configured")

var (
	licensed atomic.Bool
	// setMeteredKey is swapped in tests.
	setMeteredKey = license.SetMeteredKey
)

// SetLicenseKey registers a metered unioffice API key. An empty key leaves
// inspection disabled.
func SetLicenseKey(key string) error {
	if key == "" {
		return nil
	}
	if err := setMeteredKey(key); err != nil {
		return fmt.Errorf("docx: setting license key: %w", err)
	}
	licensed.Store(true)
	return nil
}

// Licensed reports whether Inspect can read documents.
func Licensed() bool { return licensed.Load() }

// Field is one legacy form field found in a document.
type Field struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Value   string `json:"value,omitempty"`
	Checked bool   `json:"checked,omitempty"`
}

// Report summarises a template document.
type Report struct {
	Fields     []Field  `json:"fields"`
	Paragraphs []string `json:"paragraphs"`
	Tables     int      `json:"tables"`
}

// Inspect reads a document of size bytes from r. It returns ErrUnlicensed
// before SetLicenseKey has succeeded.
func Inspect(r io.ReaderAt, size int64) (*Report, error) {
	if !Licensed() {
		return nil, ErrUnlicensed
	}
	doc, err := document.Read(r, size)
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}
	defer doc.Close()

	rep := &Report{Fields: []Field{}, Paragraphs: []string{}, Tables: len(doc.Tables())}
	for _, ff := range doc.FormFields() {
		f := Field{Name: ff.Name(), Type: formFieldType(ff.Type())}
		switch ff.Type() {
		case document.FormFieldTypeCheckBox:
			f.Checked = ff.IsChecked()
		default:
			f.Value = ff.Value()
		}
		rep.Fields = append(rep.Fields, f)
	}
	for _, p := range doc.Paragraphs() {
		var sb strings.Builder
		for _, run := range p.Runs() {
			sb.WriteString(run.Text())
		}
		if text := strings.TrimSpace(sb.String()); text != "" {
			rep.Paragraphs = append(rep.Paragraphs, text)
		}
	}
	return rep, nil
}

// InspectBytes is Inspect over an in-memory document.
func InspectBytes(data []byte) (*Report, error) {
	return Inspect(bytes.NewReader(data), int64(len(data)))
}

func formFieldType(t document.FormFieldType) string {
	switch t {
	case document.FormFieldTypeText:
		return "text"
	case document.FormFieldTypeCheckBox:
		return "checkbox"
	case document.FormFieldTypeDropDown:
		return "dropdown"
	default:
		return "unknown"
	}
}

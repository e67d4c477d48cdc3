package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hundred-solutions/onlyoffice-odoo/internal/docx"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/schema"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/template"
	"github.com/hundred-solutions/onlyoffice-odoo/pkg/logger"
)

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestVersion(t *testing.T) {
	out, _, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, logger.Version+"\n", out)
}

func TestFields_Text(t *testing.T) {
	out, _, err := run(t, "fields", "sale.order", "--search", "city")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "partner_id  Customer (many2one)\n"), out)
	assert.Contains(t, out, "\n  partner_id city  City (char)\n")
	assert.NotContains(t, out, "amount_total")
}

func TestFields_NoMatch(t *testing.T) {
	out, _, err := run(t, "fields", "sale.order", "--search", "zzzz")
	require.NoError(t, err)
	assert.Equal(t, "no matching fields\n", out)
}

func TestFields_JSONAndCopy(t *testing.T) {
	var copied string
	orig := copyToClipboard
	copyToClipboard = func(s string) error { copied = s; return nil }
	t.Cleanup(func() { copyToClipboard = orig })

	out, stderr, err := run(t, "fields", "res.partner", "--search", "EMAIL", "--ci", "--json", "--copy")
	require.NoError(t, err)
	assert.Equal(t, out, copied)
	assert.Contains(t, stderr, "copied to clipboard")

	var tree schema.ModelNode
	require.NoError(t, json.Unmarshal([]byte(out), &tree))
	assert.Equal(t, "res.partner", tree.Model)
	require.NotEmpty(t, tree.Fields)
}

func TestFields_Errors(t *testing.T) {
	_, _, err := run(t, "fields", "no.such.model")
	assert.ErrorIs(t, err, schema.ErrUnknownModel)

	_, _, err = run(t, "fields")
	assert.Error(t, err)

	_, _, err = run(t, "fields", "sale.order", "--catalog", filepath.Join(t.TempDir(), "missing.cue"))
	assert.Error(t, err)
}

func TestInspect_Errors(t *testing.T) {
	_, _, err := run(t, "inspect", filepath.Join(t.TempDir(), "missing.docx"))
	assert.Error(t, err)
}

func TestInspect_WithoutLicenseKey(t *testing.T) {
	if docx.Licensed() {
		t.Skip("a license key is already registered")
	}
	path := filepath.Join(t.TempDir(), "blank.docx")
	require.NoError(t, os.WriteFile(path, template.Blank(), 0o600))

	_, _, err := run(t, "inspect", path, "--license-key=")
	assert.ErrorIs(t, err, docx.ErrUnlicensed)
}

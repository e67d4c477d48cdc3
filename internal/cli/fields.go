package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/hundred-solutions/onlyoffice-odoo/internal/catalog"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/fieldtree"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/schema"
)

// copyToClipboard is replaced in tests.
var copyToClipboard = clipboard.WriteAll

type fieldsOptions struct {
	catalog         string
	depth           int
	search          string
	caseInsensitive bool
	label           bool
	copy            bool
	json            bool
}

func newFieldsCmd() *cobra.Command {
	var o fieldsOptions
	cmd := &cobra.Command{
		Use:   "fields <model>",
		Short: "Print the merge-field tree of a model",
		Example: `  doctemplate fields sale.order --search name
  doctemplate fields res.partner --catalog crm.cue --json
  doctemplate fields sale.order --search customer --label --ci --copy`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFields(cmd, args[0], o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.catalog, "catalog", "", "model catalog (.cue or OpenAPI document); built-in when empty")
	f.IntVar(&o.depth, "depth", schema.DefaultMaxDepth, "relational hops to expand")
	f.StringVarP(&o.search, "search", "s", "", "show only fields matching this text")
	f.BoolVar(&o.caseInsensitive, "ci", false, "match case-insensitively")
	f.BoolVar(&o.label, "label", false, "match labels instead of field names")
	f.BoolVar(&o.copy, "copy", false, "copy the output to the clipboard")
	f.BoolVar(&o.json, "json", false, "print the tree as JSON")
	return cmd
}

func runFields(cmd *cobra.Command, model string, o fieldsOptions) error {
	reg, err := catalog.LoadFile(cmd.Context(), o.catalog)
	if err != nil {
		return err
	}
	raw, err := reg.Tree(model, o.depth)
	if err != nil {
		return err
	}
	var opts []fieldtree.Option
	if o.caseInsensitive {
		opts = append(opts, fieldtree.CaseInsensitive())
	}
	if o.label {
		opts = append(opts, fieldtree.MatchOn(fieldtree.MatchLabel))
	}
	view := fieldtree.Filter(fieldtree.Build(raw), o.search, opts...)

	var out strings.Builder
	if o.json {
		enc := json.NewEncoder(&out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(view); err != nil {
			return err
		}
	} else {
		writeTree(&out, view)
	}

	if _, err := io.WriteString(cmd.OutOrStdout(), out.String()); err != nil {
		return err
	}
	if o.copy {
		if err := copyToClipboard(out.String()); err != nil {
			return fmt.Errorf("copying to clipboard: %w", err)
		}
		fmt.Fprintln(cmd.ErrOrStderr(), "copied to clipboard")
	}
	return nil
}

// writeTree prints one field per line, indented by depth.
func writeTree(w io.Writer, root *schema.ModelNode) {
	if root == nil {
		fmt.Fprintln(w, "no matching fields")
		return
	}
	fieldtree.Walk(root, func(f schema.FieldDescriptor, depth int) bool {
		fmt.Fprintf(w, "%s%s  %s (%s)\n", strings.Repeat("  ", depth), f.Key, f.String, f.Type)
		return true
	})
}

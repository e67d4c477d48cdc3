package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hundred-solutions/onlyoffice-odoo/internal/docx"
)

func newInspectCmd() *cobra.Command {
	var (
		asJSON     bool
		licenseKey string
	)
	cmd := &cobra.Command{
		Use:   "inspect <file.docx>",
		Short: "List the form fields and text of a template document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := docx.SetLicenseKey(licenseKey); err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			rep, err := docx.InspectBytes(data)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			}
			fmt.Fprintf(w, "%d form fields, %d paragraphs, %d tables\n", len(rep.Fields), len(rep.Paragraphs), rep.Tables)
			for _, f := range rep.Fields {
				fmt.Fprintf(w, "  %s (%s)\n", f.Name, f.Type)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	cmd.Flags().StringVar(&licenseKey, "license-key", os.Getenv(docx.LicenseEnv), "unioffice metered license key")
	return cmd
}

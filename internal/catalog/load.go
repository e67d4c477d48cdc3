// Package catalog loads model definitions into a schema.Registry from CUE
// files or OpenAPI documents.
package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hundred-solutions/onlyoffice-odoo/internal/schema"
)

// LoadFile picks the loader by extension. An empty path loads the built-in
// catalog. The returned registry has been validated.
func LoadFile(ctx context.Context, path string) (*schema.Registry, error) {
	var (
		reg *schema.Registry
		err error
	)
	if path == "" {
		reg, err = Builtin()
	} else {
		var data []byte
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog: %w", err)
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".cue":
			reg, err = LoadCUE(filepath.Base(path), data)
		case ".yaml", ".yml", ".json":
			reg, err = LoadOpenAPI(ctx, data)
		default:
			return nil, fmt.Errorf("catalog %s: unsupported extension %q", path, filepath.Ext(path))
		}
	}
	if err != nil {
		return nil, err
	}
	if err := reg.Validate(); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return reg, nil
}

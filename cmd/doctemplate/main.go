package main

import (
	"fmt"
	"os"

	"github.com/hundred-solutions/onlyoffice-odoo/internal/cli"
	"github.com/hundred-solutions/onlyoffice-odoo/pkg/logger"
)

func main() {
	exitCode := 0
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		exitCode = 1
	}

	logger.Sync()
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

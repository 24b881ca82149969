//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// rosterFile is the default roster read by the Harvest target. Override
// with ROSTER=path.
const rosterFile = "roster.txt"

// Harvest builds the CLI and runs a harvest over the roster into output/.
func Harvest() error {
	mg.Deps(Init, Build)

	roster := os.Getenv("ROSTER")
	if roster == "" {
		roster = rosterFile
	}
	if _, err := os.Stat(roster); err != nil {
		return fmt.Errorf("roster %s: %w", roster, err)
	}
	return sh.RunV(filepath.Join(binDir, binName), "harvest",
		"--roster", roster,
		"--output", filepath.Join("output", "papers.xlsx"),
		"--report", filepath.Join("output", "reports", "failures.yaml"),
	)
}

// Egress builds the CLI and leases one route from the configured supplier.
func Egress() error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName), "egress")
}

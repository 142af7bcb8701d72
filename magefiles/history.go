//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// History groups targets for the local evaluation history.
type History mg.Namespace

// Export writes the history as YAML to history-export.yaml.
func (History) Export() error {
	mg.Deps(Build)
	out, err := sh.Output(filepath.Join(binDir, binName), "history", "--export", "yaml")
	if err != nil {
		return err
	}
	if err := os.WriteFile("history-export.yaml", []byte(out+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing history-export.yaml: %w", err)
	}
	fmt.Println("Exported to history-export.yaml")
	return nil
}

// Reset deletes the local history database.
func (History) Reset() error {
	dir, err := historyDir()
	if err != nil {
		return err
	}
	for _, name := range []string{"history.db", "history.db-wal", "history.db-shm"} {
		if err := sh.Rm(filepath.Join(dir, name)); err != nil {
			return err
		}
	}
	fmt.Println("History cleared in", dir)
	return nil
}

package main

import (
	"fmt"
	"os"
)

// writeFile writes data to path, wrapping any error with the path for
// context (spec.md §7: "non-zero on IO or configuration error").
func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("flowforge: writing %s: %w", path, err)
	}
	return nil
}

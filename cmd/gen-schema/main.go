// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Command gen-schema writes the JSON Schema of every API request body to
// schemas/<name>.schema.json.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/holomush/holoauth/internal/web"
)

func main() {
	outDir := flag.String("out", "schemas", "output directory")
	flag.Parse()

	paths, err := writeSchemas(*outDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating schemas: %v\n", err)
		os.Exit(1)
	}
	for _, p := range paths {
		fmt.Printf("Generated %s\n", p)
	}
}

// writeSchemas writes every request schema under dir and returns the
// written paths in name order.
func writeSchemas(dir string) ([]string, error) {
	schemas, err := web.RequestSchemas()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}

	names := make([]string, 0, len(schemas))
	for name := range schemas {
		names = append(names, name)
	}
	slices.Sort(names)

	paths := make([]string, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name+".schema.json")
		if err := os.WriteFile(path, schemas[name], 0o600); err != nil {
			return nil, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

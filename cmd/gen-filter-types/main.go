// Command gen-filter-types renders the filter package's operator
// registry as a TypeScript (or JSON) file for a config-authoring
// frontend to consume.
//
// Usage:
//
//	go run cmd/gen-filter-types/main.go
//
// or via go generate:
//
//	//go:generate go run cmd/gen-filter-types/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/streampump/pumpcore/pkg/filter"
)

func main() {
	outputDir := flag.String("o", "../web-ui/src/types/generated", "output directory")
	format := flag.String("f", "ts", "output format (ts, json)")
	flag.Parse()

	registry := filter.Global()

	switch *format {
	case "ts":
		generateTypeScript(registry, *outputDir)
	case "json":
		generateJSON(registry, *outputDir)
	default:
		fmt.Fprintf(os.Stderr, "unknown format: %s\n", *format)
		os.Exit(1)
	}
}

func generateTypeScript(registry *filter.FilterRegistry, outputDir string) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create directory: %v\n", err)
		os.Exit(1)
	}

	content := registry.ToTypeScript()
	outputPath := filepath.Join(outputDir, "filter-operators.ts")

	if err := os.WriteFile(outputPath, []byte(content), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("wrote: %s\n", outputPath)
}

func generateJSON(registry *filter.FilterRegistry, outputDir string) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create directory: %v\n", err)
		os.Exit(1)
	}

	content, err := registry.ToJSON()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate JSON: %v\n", err)
		os.Exit(1)
	}

	outputPath := filepath.Join(outputDir, "filter-operators.json")

	if err := os.WriteFile(outputPath, content, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("wrote: %s\n", outputPath)
}

package scaffold

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/webext-labs/webext/internal/manifest"
)

// ScaffoldData holds all template variables available to scaffold templates.
type ScaffoldData struct {
	Name        string // e.g., "weather-words"
	Type        string // one of manifest.ValidTypes
	Runtime     string // "lua" or "go"
	Description string // Human-readable description
	Author      string
	Version     string // Semver, e.g., "0.1.0"
	Ident       string // Derived: "weather_words", usable as a Go package and component id
	Year        int    // Current year
}

// Result holds the outcome of a scaffold generation.
type Result struct {
	OutputDir string
	Files     []string
	Warnings  []string
}

// NewScaffoldData creates a ScaffoldData with derived fields populated.
func NewScaffoldData(name, typeName, runtime, author string) *ScaffoldData {
	if author == "" {
		author = "unknown"
	}
	return &ScaffoldData{
		Name:        name,
		Type:        typeName,
		Runtime:     runtime,
		Description: fmt.Sprintf("A %s extension: %s", typeName, name),
		Author:      author,
		Version:     "0.1.0",
		Ident:       strings.ReplaceAll(name, "-", "_"),
		Year:        time.Now().Year(),
	}
}

// templateFuncs are available to every scaffold template. quote renders a
// double-quoted scalar that is valid in both YAML and Lua.
var templateFuncs = template.FuncMap{
	"quote": strconv.Quote,
}

// outputName maps a template file name onto the generated file name.
func outputName(data *ScaffoldData, tmplName string) string {
	name := strings.TrimSuffix(tmplName, ".tmpl")
	if name == "module.go" {
		return data.Ident + ".go"
	}
	return name
}

// Generate creates a new extension package from scaffolding templates.
func Generate(data *ScaffoldData, outputDir string) (*Result, error) {
	if !slices.Contains(manifest.ValidTypes, data.Type) {
		return nil, fmt.Errorf("unknown extension type %q: valid types are %s",
			data.Type, strings.Join(manifest.ValidTypes, ", "))
	}
	templatesDir := path.Join("scaffolds", data.Runtime)

	// Verify template set exists in embedded FS.
	entries, err := fs.ReadDir(scaffoldFS, templatesDir)
	if err != nil {
		return nil, fmt.Errorf("no templates for runtime %q: %w", data.Runtime, err)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	// Check for existing files to prevent accidental overwrites.
	existingEntries, err := os.ReadDir(outputDir)
	if err == nil && len(existingEntries) > 0 {
		return nil, fmt.Errorf("output directory %s is not empty; remove existing files first", outputDir)
	}

	result := &Result{
		OutputDir: outputDir,
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		tmplPath := path.Join(templatesDir, entry.Name())
		tmplBytes, err := fs.ReadFile(scaffoldFS, tmplPath)
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", tmplPath, err)
		}

		tmpl, err := template.New(entry.Name()).Funcs(templateFuncs).Parse(string(tmplBytes))
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", entry.Name(), err)
		}

		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return nil, fmt.Errorf("executing template %s: %w", entry.Name(), err)
		}

		outName := outputName(data, entry.Name())
		outPath := filepath.Join(outputDir, outName)
		if err := os.WriteFile(outPath, buf.Bytes(), 0644); err != nil {
			return nil, fmt.Errorf("writing %s: %w", outPath, err)
		}

		result.Files = append(result.Files, outName)
	}

	// Validate the generated descriptor.
	descriptorFile := filepath.Join(outputDir, manifest.FileYAML)
	if _, err := manifest.LoadFile(descriptorFile); err != nil {
		result.Warnings = append(result.Warnings, err.Error())
	}

	return result, nil
}

package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"go.yaml.in/yaml/v3"
)

// ErrNoDescriptor is returned when a directory holds no descriptor file.
var ErrNoDescriptor = errors.New("no extension descriptor found")

// InvalidError reports every issue found in a descriptor.
type InvalidError struct {
	Path   string
	Issues []ValidationIssue
}

func (e *InvalidError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		if issue.Path != "" {
			parts = append(parts, issue.Path+": "+issue.Message)
		} else {
			parts = append(parts, issue.Message)
		}
	}
	return fmt.Sprintf("descriptor %s is invalid: %s", e.Path, strings.Join(parts, "; "))
}

// FindDescriptor returns the descriptor file path inside dir.
func FindDescriptor(dir string) (string, error) {
	for _, name := range DescriptorFiles {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err == nil && info.Mode().IsRegular() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w in %s (expected one of %s)", ErrNoDescriptor, dir, strings.Join(DescriptorFiles, ", "))
}

// HasDescriptor reports whether dir directly contains a descriptor file.
func HasDescriptor(dir string) bool {
	_, err := FindDescriptor(dir)
	return err == nil
}

// Load finds, validates, and parses the descriptor of the package rooted at dir.
func Load(dir string) (*Descriptor, error) {
	path, err := FindDescriptor(dir)
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile validates and parses the descriptor at path. Schema and semantic
// problems are reported together as an *InvalidError.
func LoadFile(path string) (*Descriptor, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}

	result, err := Validate(data)
	if err != nil {
		return nil, fmt.Errorf("validating %s: %w", path, err)
	}
	if !result.Valid {
		return nil, &InvalidError{Path: path, Issues: result.Issues}
	}

	d, err := parse(data, path)
	if err != nil {
		return nil, err
	}
	if issues := Check(d); len(issues) > 0 {
		return nil, &InvalidError{Path: path, Issues: issues}
	}
	return d, nil
}

// Parse decodes descriptor bytes (YAML or JSON) and applies defaults without
// validating them.
func Parse(data []byte) (*Descriptor, error) {
	return parse(data, "<inline>")
}

// ParseFile reads and decodes the descriptor at path without validating it.
func ParseFile(path string) (*Descriptor, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return parse(data, path)
}

func parse(data []byte, path string) (*Descriptor, error) {
	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parsing descriptor %s: %w", path, err)
	}
	applyDefaults(&d)
	return &d, nil
}

// applyDefaults fills optional fields and normalizes sets.
func applyDefaults(d *Descriptor) {
	if d.Runtime == "" {
		d.Runtime = RuntimeGo
	}
	if d.Entrypoint == "" {
		switch d.Runtime {
		case RuntimeLua:
			d.Entrypoint = DefaultLuaEntrypoint
		default:
			d.Entrypoint = d.Name
		}
	}
	if len(d.Dependencies) > 0 {
		deps := mapset.NewThreadUnsafeSet(d.Dependencies...).ToSlice()
		sort.Strings(deps)
		d.Dependencies = deps
	}
	for i := range d.Routes {
		if len(d.Routes[i].Methods) == 0 {
			d.Routes[i].Methods = []string{"GET"}
		}
		for j, m := range d.Routes[i].Methods {
			d.Routes[i].Methods[j] = strings.ToUpper(m)
		}
	}
}

// readFile reads the contents of a file at the given path.
func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}
	return data, nil
}

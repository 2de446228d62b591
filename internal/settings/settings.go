// Package settings resolves and validates per-extension configuration.
// Resolved values are the schema defaults overlaid with stored overrides;
// overrides are validated against a JSON Schema generated from the
// descriptor's settings schema before anything is persisted.
package settings

import (
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/webext-labs/webext/internal/extension"
	"github.com/webext-labs/webext/internal/manifest"
)

// Resolved is the effective configuration of one extension.
type Resolved struct {
	Values map[string]any
	// Missing lists required keys that have neither an override nor a default.
	Missing []string
}

// Get returns the resolved value for key.
func (r Resolved) Get(key string) (any, bool) {
	v, ok := r.Values[key]
	return v, ok
}

// ValidationError lists every rejected override. It matches
// extension.ErrSettingsValidation.
type ValidationError struct {
	Extension string
	Issues    []manifest.ValidationIssue
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		if issue.Path != "" {
			parts = append(parts, strings.TrimPrefix(issue.Path, "/")+": "+issue.Message)
		} else {
			parts = append(parts, issue.Message)
		}
	}
	return fmt.Sprintf("invalid settings for %s: %s", e.Extension, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return extension.ErrSettingsValidation }

// Resolve overlays overrides on the schema defaults. Overrides for keys the
// schema no longer declares are ignored.
func Resolve(schema []manifest.SettingSpec, overrides map[string]any) Resolved {
	r := Resolved{Values: make(map[string]any, len(schema))}
	for _, spec := range schema {
		if v, ok := overrides[spec.Key]; ok && v != nil {
			r.Values[spec.Key] = normalize(spec.Type, v)
			continue
		}
		if spec.HasDefault() {
			r.Values[spec.Key] = normalize(spec.Type, spec.Default)
			continue
		}
		if spec.Required {
			r.Missing = append(r.Missing, spec.Key)
		}
	}
	return r
}

// Validate checks overrides against the schema and returns them normalized
// to their declared types. A nil value is a request to drop the stored
// override for that key, and is passed through as nil.
func Validate(name string, schema []manifest.SettingSpec, overrides map[string]any) (map[string]any, error) {
	specs := make(map[string]manifest.SettingSpec, len(schema))
	for _, spec := range schema {
		specs[spec.Key] = spec
	}

	var issues []manifest.ValidationIssue
	candidate := make(map[string]any, len(overrides))
	for key, v := range overrides {
		if _, ok := specs[key]; !ok {
			issues = append(issues, manifest.ValidationIssue{Path: "/" + key, Message: fmt.Sprintf("unknown setting %q", key), Keyword: "additionalProperties"})
			continue
		}
		if v != nil {
			candidate[key] = v
		}
	}
	if len(issues) > 0 {
		sortIssues(issues)
		return nil, &ValidationError{Extension: name, Issues: issues}
	}

	compiled, err := compile(schema)
	if err != nil {
		return nil, fmt.Errorf("compiling settings schema for %s: %w", name, err)
	}
	inst, err := manifest.ToJSONValue(candidate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", extension.ErrSettingsValidation, err)
	}
	if err := compiled.Validate(inst); err != nil {
		ve, ok := err.(*jsonschema.ValidationError)
		if !ok {
			return nil, fmt.Errorf("validating settings for %s: %w", name, err)
		}
		issues = manifest.ExtractIssues(ve)
		sortIssues(issues)
		return nil, &ValidationError{Extension: name, Issues: issues}
	}

	out := make(map[string]any, len(overrides))
	for key, v := range overrides {
		if v == nil {
			out[key] = nil
			continue
		}
		out[key] = normalize(specs[key].Type, v)
	}
	return out, nil
}

// Merge applies validated changes to stored overrides. Nil values delete.
func Merge(stored, changes map[string]any) map[string]any {
	out := make(map[string]any, len(stored)+len(changes))
	for k, v := range stored {
		out[k] = v
	}
	for k, v := range changes {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}

// compile builds a JSON Schema for the overrides object: no unknown keys, one
// typed property per setting, enum for settings with options.
func compile(schema []manifest.SettingSpec) (*jsonschema.Schema, error) {
	props := make(map[string]any, len(schema))
	for _, spec := range schema {
		prop := map[string]any{"type": spec.Type}
		if len(spec.Options) > 0 {
			prop["enum"] = spec.Options
		}
		if spec.Description != "" {
			prop["description"] = spec.Description
		}
		props[spec.Key] = prop
	}
	doc, err := manifest.ToJSONValue(map[string]any{
		"$schema":              "https://json-schema.org/draft/2020-12/schema",
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
	})
	if err != nil {
		return nil, err
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("settings.schema.json", doc); err != nil {
		return nil, fmt.Errorf("adding schema resource: %w", err)
	}
	return c.Compile("settings.schema.json")
}

// normalize maps decoded numbers onto one Go type per setting type.
func normalize(typ string, v any) any {
	switch typ {
	case manifest.SettingInteger:
		switch n := v.(type) {
		case int:
			return int64(n)
		case int32:
			return int64(n)
		case uint:
			return int64(n)
		case uint32:
			return int64(n)
		case uint64:
			return int64(n)
		case float64:
			if n == float64(int64(n)) {
				return int64(n)
			}
		}
	case manifest.SettingNumber:
		switch n := v.(type) {
		case int:
			return float64(n)
		case int32:
			return float64(n)
		case int64:
			return float64(n)
		case float32:
			return float64(n)
		}
	}
	return v
}

func sortIssues(issues []manifest.ValidationIssue) {
	sort.SliceStable(issues, func(i, j int) bool { return issues[i].Path < issues[j].Path })
}

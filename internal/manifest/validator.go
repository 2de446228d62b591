package manifest

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.yaml.in/yaml/v3"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed schema/extension.schema.json
var schemaBytes []byte

var (
	compiledSchema *jsonschema.Schema
	compileOnce    sync.Once
	compileErr     error
	printer        = message.NewPrinter(language.English)
)

// ValidationResult contains the outcome of a schema validation.
type ValidationResult struct {
	Valid  bool
	Issues []ValidationIssue
}

// ValidationIssue represents a single validation error.
type ValidationIssue struct {
	Path    string // Instance location (e.g., "/name", "/hooks/0/hook")
	Message string // Human-readable error message
	Keyword string // Schema keyword that failed, or "check" for semantic rules
}

// getSchema compiles the embedded JSON schema once and returns it.
func getSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaBytes))
		if err != nil {
			compileErr = fmt.Errorf("unmarshaling schema JSON: %w", err)
			return
		}

		c := jsonschema.NewCompiler()
		if err := c.AddResource("extension.schema.json", doc); err != nil {
			compileErr = fmt.Errorf("adding schema resource: %w", err)
			return
		}
		compiledSchema, compileErr = c.Compile("extension.schema.json")
		if compileErr != nil {
			compileErr = fmt.Errorf("compiling schema: %w", compileErr)
		}
	})
	return compiledSchema, compileErr
}

// Validate validates raw descriptor bytes (YAML or JSON) against the schema.
// The error return is for parse or schema compilation failures; validation
// issues are returned in the ValidationResult.
func Validate(data []byte) (*ValidationResult, error) {
	schema, err := getSchema()
	if err != nil {
		return nil, fmt.Errorf("loading schema: %w", err)
	}

	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	inst, err := ToJSONValue(raw)
	if err != nil {
		return nil, err
	}

	err = schema.Validate(inst)
	if err == nil {
		return &ValidationResult{Valid: true}, nil
	}

	validationErr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return nil, fmt.Errorf("unexpected validation error type: %w", err)
	}

	return &ValidationResult{
		Valid:  false,
		Issues: ExtractIssues(validationErr),
	}, nil
}

// ValidateFile reads a file and validates it against the descriptor schema.
func ValidateFile(path string) (*ValidationResult, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return Validate(data)
}

// ToJSONValue converts a YAML- or Go-decoded value into the representation
// the schema validator expects.
func ToJSONValue(v interface{}) (interface{}, error) {
	jsonData, err := json.Marshal(normalizeYAML(v))
	if err != nil {
		return nil, fmt.Errorf("converting to JSON: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("preparing JSON for validation: %w", err)
	}
	return inst, nil
}

// ExtractIssues walks the ValidationError tree and returns leaf-level issues.
func ExtractIssues(ve *jsonschema.ValidationError) []ValidationIssue {
	var issues []ValidationIssue
	collectValidationIssues(ve, &issues)

	if len(issues) == 0 {
		return []ValidationIssue{{
			Message: ve.Error(),
		}}
	}
	return deduplicateIssues(issues)
}

// collectValidationIssues recursively walks the error tree to find leaf errors
// with specific property information.
func collectValidationIssues(ve *jsonschema.ValidationError, issues *[]ValidationIssue) {
	if len(ve.Causes) == 0 {
		path := "/" + strings.Join(ve.InstanceLocation, "/")
		if len(ve.InstanceLocation) == 0 {
			path = ""
		}

		keyword := ""
		if ve.ErrorKind != nil {
			kwPath := ve.ErrorKind.KeywordPath()
			if len(kwPath) > 0 {
				keyword = kwPath[len(kwPath)-1]
			}
		}

		msg := ""
		if ve.ErrorKind != nil {
			msg = ve.ErrorKind.LocalizedString(printer)
		}

		// Skip generic container errors that aren't informative.
		if keyword == "oneOf" || keyword == "allOf" || keyword == "$ref" || keyword == "" {
			return
		}

		*issues = append(*issues, ValidationIssue{
			Path:    path,
			Message: msg,
			Keyword: keyword,
		})
		return
	}

	for _, cause := range ve.Causes {
		collectValidationIssues(cause, issues)
	}
}

// deduplicateIssues removes duplicate issues (same path + keyword + message).
func deduplicateIssues(issues []ValidationIssue) []ValidationIssue {
	seen := make(map[string]bool)
	var result []ValidationIssue
	for _, issue := range issues {
		key := issue.Path + "|" + issue.Keyword + "|" + issue.Message
		if !seen[key] {
			seen[key] = true
			result = append(result, issue)
		}
	}
	return result
}

// normalizeYAML recursively converts YAML-decoded values to JSON-compatible
// types. Maps with non-string keys are re-keyed by their string form.
func normalizeYAML(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		m := make(map[string]interface{}, len(val))
		for k, v := range val {
			m[k] = normalizeYAML(v)
		}
		return m
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(val))
		for k, v := range val {
			m[fmt.Sprint(k)] = normalizeYAML(v)
		}
		return m
	case []interface{}:
		a := make([]interface{}, len(val))
		for i, v := range val {
			a[i] = normalizeYAML(v)
		}
		return a
	default:
		return val
	}
}

// Check enforces the rules the schema cannot express: version syntax,
// type-specific bindings, uniqueness of ids, mount references, setting
// defaults, and the lua entrypoint location.
func Check(d *Descriptor) []ValidationIssue {
	var issues []ValidationIssue
	add := func(path, format string, args ...interface{}) {
		issues = append(issues, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...), Keyword: "check"})
	}

	if _, err := semver.NewVersion(d.Version); err != nil {
		add("/version", "%q is not a semantic version", d.Version)
	}

	for i, dep := range d.Dependencies {
		if dep == d.Name {
			add(fmt.Sprintf("/dependencies/%d", i), "extension cannot depend on itself")
		}
	}

	allowed := func(field string, types ...string) bool {
		for _, t := range types {
			if d.Type == t {
				return true
			}
		}
		add("/"+field, "%s are not allowed for type %q (allowed for %s)", field, d.Type, strings.Join(types, ", "))
		return false
	}
	if len(d.Components) > 0 || len(d.MountPoints) > 0 {
		allowed("components", TypeUI, TypeTheme)
	}
	if len(d.Routes) > 0 {
		allowed("routes", TypeAPI, TypeTool)
	}
	if len(d.Tools) > 0 {
		allowed("tools", TypeTool, TypeModel)
	}
	if len(d.Styles) > 0 || d.ThemeName != "" {
		allowed("styles", TypeTheme)
	}

	components := make(map[string]bool, len(d.Components))
	for i, c := range d.Components {
		if components[c.ID] {
			add(fmt.Sprintf("/components/%d/id", i), "duplicate component id %q", c.ID)
		}
		components[c.ID] = true
	}
	for mount, ids := range d.MountPoints {
		for i, id := range ids {
			if !components[id] {
				add(fmt.Sprintf("/mount_points/%s/%d", mount, i), "component %q is not declared in components", id)
			}
		}
	}

	routes := make(map[string]bool)
	for i, r := range d.Routes {
		for _, m := range r.Methods {
			key := m + " " + r.Path
			if routes[key] {
				add(fmt.Sprintf("/routes/%d", i), "duplicate route %s", key)
			}
			routes[key] = true
		}
	}

	tools := make(map[string]bool, len(d.Tools))
	for i, t := range d.Tools {
		if tools[t.ID] {
			add(fmt.Sprintf("/tools/%d/id", i), "duplicate tool id %q", t.ID)
		}
		tools[t.ID] = true
	}

	keys := make(map[string]bool, len(d.SettingsSchema))
	for i, s := range d.SettingsSchema {
		at := fmt.Sprintf("/settings_schema/%d", i)
		if keys[s.Key] {
			add(at+"/key", "duplicate setting key %q", s.Key)
		}
		keys[s.Key] = true
		for j, opt := range s.Options {
			if !MatchesType(s.Type, opt) {
				add(fmt.Sprintf("%s/options/%d", at, j), "option %v is not of type %s", opt, s.Type)
			}
		}
		if !s.HasDefault() {
			continue
		}
		if !MatchesType(s.Type, s.Default) {
			add(at+"/default", "default %v is not of type %s", s.Default, s.Type)
		} else if len(s.Options) > 0 && !containsValue(s.Options, s.Default) {
			add(at+"/default", "default %v is not one of the declared options", s.Default)
		}
	}

	if d.Runtime == RuntimeLua {
		clean := path.Clean(filepath.ToSlash(d.Entrypoint))
		if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
			add("/entrypoint", "entrypoint %q must stay inside the package", d.Entrypoint)
		} else if path.Ext(clean) != ".lua" {
			add("/entrypoint", "lua entrypoint %q must be a .lua file", d.Entrypoint)
		}
	}

	return issues
}

// MatchesType reports whether v, as decoded from YAML or JSON, is a value of
// the declared setting type. Integral floats count as integers.
func MatchesType(typ string, v interface{}) bool {
	switch typ {
	case SettingString:
		_, ok := v.(string)
		return ok
	case SettingBoolean:
		_, ok := v.(bool)
		return ok
	case SettingInteger:
		switch n := v.(type) {
		case int, int32, int64, uint, uint32, uint64:
			return true
		case float64:
			return n == float64(int64(n))
		}
		return false
	case SettingNumber:
		switch v.(type) {
		case int, int32, int64, uint, uint32, uint64, float32, float64:
			return true
		}
		return false
	case SettingArray:
		_, ok := v.([]interface{})
		return ok
	case SettingObject:
		switch v.(type) {
		case map[string]interface{}, map[interface{}]interface{}:
			return true
		}
		return false
	}
	return false
}

func containsValue(options []interface{}, v interface{}) bool {
	for _, opt := range options {
		if fmt.Sprint(opt) == fmt.Sprint(v) && MatchesType(typeOf(opt), v) {
			return true
		}
	}
	return false
}

func typeOf(v interface{}) string {
	for _, t := range []string{SettingBoolean, SettingInteger, SettingNumber, SettingString, SettingArray, SettingObject} {
		if MatchesType(t, v) {
			return t
		}
	}
	return ""
}

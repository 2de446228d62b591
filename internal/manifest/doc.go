// Package manifest parses and validates extension descriptors. A descriptor
// (extension.yaml or extension.json at the package root) declares identity,
// type, dependencies, the settings schema, and the static capability bindings
// the registry registers on enable. Validation runs in two passes: the
// embedded JSON Schema checks shape, then Check enforces the cross-field rules
// a schema cannot express.
package manifest

// Package runtime loads the code module behind an extension descriptor.
// Two runtimes are supported: "go" modules are compiled-in factories
// registered by entrypoint name, and "lua" modules are sandboxed gopher-lua
// scripts shipped inside the package. Load selects the runtime from the
// descriptor's runtime field.
package runtime

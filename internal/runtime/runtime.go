package runtime

import (
	"fmt"

	"github.com/webext-labs/webext/internal/extension"
	"github.com/webext-labs/webext/internal/manifest"
)

// Supported runtime identifiers.
const (
	RuntimeGo  = manifest.RuntimeGo
	RuntimeLua = manifest.RuntimeLua
)

// Load returns the code module for desc, whose package lives at dir. Errors
// wrap extension.ErrPackageLayout.
func Load(desc *manifest.Descriptor, dir string) (extension.Module, error) {
	var (
		mod extension.Module
		err error
	)
	switch desc.Runtime {
	case RuntimeGo, "":
		mod, err = loadGo(desc)
	case RuntimeLua:
		mod, err = loadLua(desc, dir)
	default:
		err = fmt.Errorf("unknown runtime %q: supported runtimes are %q and %q", desc.Runtime, RuntimeGo, RuntimeLua)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: loading %s: %w", extension.ErrPackageLayout, desc.Name, err)
	}
	return mod, nil
}

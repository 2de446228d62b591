// Package builtin links the compiled-in Go extension modules into a binary.
// Import it for its side effects:
//
//	import _ "github.com/webext-labs/webext/internal/builtin"
package builtin

import (
	_ "github.com/webext-labs/webext/internal/builtin/helloworld"
	_ "github.com/webext-labs/webext/internal/builtin/weather"
)

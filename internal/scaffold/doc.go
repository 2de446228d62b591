// Package scaffold generates new extension packages from embedded templates.
// It powers the "webext create" command, producing a descriptor and an entry
// point for the chosen runtime with one example binding per extension type.
package scaffold

package extension

import "errors"

// Error taxonomy. Registry operations wrap exactly one of these so callers can
// classify failures with errors.Is.
var (
	ErrSourceResolution   = errors.New("cannot resolve source")
	ErrPackageLayout      = errors.New("invalid package layout")
	ErrNameConflict       = errors.New("name conflict")
	ErrDependencyMissing  = errors.New("dependency missing")
	ErrInitializeFailure  = errors.New("initialize failed")
	ErrActivationFailure  = errors.New("activation failed")
	ErrSettingsValidation = errors.New("invalid settings")
	ErrNotFound           = errors.New("extension not found")
	ErrStateConflict      = errors.New("state conflict")
	ErrInternal           = errors.New("internal error")
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrSourceResolution, "SourceResolutionError"},
	{ErrPackageLayout, "PackageLayoutError"},
	{ErrNameConflict, "NameConflictError"},
	{ErrDependencyMissing, "DependencyMissing"},
	{ErrInitializeFailure, "InitializeFailure"},
	{ErrActivationFailure, "ActivationFailure"},
	{ErrSettingsValidation, "SettingsValidationError"},
	{ErrNotFound, "NotFoundError"},
	{ErrStateConflict, "StateConflictError"},
	{ErrInternal, "InternalError"},
}

// Kind returns the taxonomy name of err, or "" when err is nil or unclassified.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return ""
}

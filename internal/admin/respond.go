package admin

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/webext-labs/webext/internal/catalog"
	"github.com/webext-labs/webext/internal/extension"
	"github.com/webext-labs/webext/internal/registry"
)

// envelope is the body of every admin response. Extras are merged into the
// top-level object next to success and message.
type envelope map[string]any

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// respond writes the outcome of err. A TeardownError counts as success.
func respond(w http.ResponseWriter, err error, msg string, extras envelope) {
	res := registry.Outcome(err, msg)
	status := http.StatusOK
	if !res.Success {
		status = statusFor(err)
	}
	body := envelope{"success": res.Success, "message": res.Message}
	if res.Success {
		for k, v := range extras {
			body[k] = v
		}
	}
	writeJSON(w, status, body)
}

func fail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{"success": false, "message": msg})
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, extension.ErrNotFound), errors.Is(err, catalog.ErrToolNotFound):
		return http.StatusNotFound
	case errors.Is(err, extension.ErrNameConflict), errors.Is(err, extension.ErrStateConflict),
		errors.Is(err, catalog.ErrAmbiguousTool):
		return http.StatusConflict
	case errors.Is(err, extension.ErrSettingsValidation), errors.Is(err, extension.ErrPackageLayout),
		errors.Is(err, extension.ErrSourceResolution):
		return http.StatusBadRequest
	case errors.Is(err, extension.ErrDependencyMissing):
		return http.StatusFailedDependency
	default:
		return http.StatusInternalServerError
	}
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

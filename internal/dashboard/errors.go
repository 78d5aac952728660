package dashboard

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/weftworks/weft/internal/engine"
)

// errorEnvelope is the wire shape of every error response.
type errorEnvelope struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// statusForCode maps the stable engine error kinds onto HTTP statuses.
func statusForCode(code string) int {
	switch code {
	case engine.CodeNotFound:
		return http.StatusNotFound
	case engine.CodeValidation, engine.CodeTemplateParse:
		return http.StatusBadRequest
	case engine.CodeConflict, engine.CodeCycleDetected,
		engine.CodeHardEnforcement, engine.CodeTransitionNotAllowed:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError renders the envelope for err. Hard-enforcement errors embed
// the missing fields, the currently valid transitions, and a hint so
// clients can self-correct without a second request.
func writeError(w http.ResponseWriter, err error) {
	code := engine.CodeOf(err)
	env := errorEnvelope{Error: err.Error(), Code: code}

	var hard *engine.HardEnforcementError
	if errors.As(err, &hard) {
		env.Details = map[string]interface{}{
			"missing_fields":    hard.MissingFields,
			"valid_transitions": hard.ValidTransitions,
			"hint":              hard.Hint(),
		}
	}

	writeJSON(w, statusForCode(code), env)
}

// writeBadRequest reports a malformed request that never reached the engine.
func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorEnvelope{
		Error: strings.TrimSpace(msg),
		Code:  engine.CodeValidation,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

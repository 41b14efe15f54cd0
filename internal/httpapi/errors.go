// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TPO Portal Contributors

package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sayedAmaan-6104/tpo-react/internal/identity"
	"github.com/sayedAmaan-6104/tpo-react/pkg/errutil"
)

// CodeInternal is the only code an infrastructure failure is reported with.
const CodeInternal = "INTERNAL"

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// publicErrors maps each domain code to its HTTP status and client message.
var publicErrors = map[string]struct {
	status  int
	message string
}{
	identity.CodeValidation:            {http.StatusBadRequest, "request validation failed"},
	identity.CodeWeakSecret:            {http.StatusBadRequest, "password does not meet the policy"},
	identity.CodeMissingRequiredField:  {http.StatusBadRequest, "a required field is missing"},
	identity.CodeInvalidCredentials:    {http.StatusBadRequest, "invalid email or password"},
	identity.CodeInvalidOrExpiredToken: {http.StatusBadRequest, "invalid or expired token"},
	identity.CodeDuplicateEmail:        {http.StatusConflict, "an account with this email already exists"},
	identity.CodeRoleMismatch:          {http.StatusForbidden, "account exists under a different role"},
	identity.CodeForbidden:             {http.StatusForbidden, "not allowed for this account type"},
	identity.CodeNoSuchSession:         {http.StatusUnauthorized, "authentication required"},
	identity.CodeSessionInactive:       {http.StatusUnauthorized, "session is no longer active"},
	identity.CodeNotFound:              {http.StatusNotFound, "not found"},
}

// statusOf returns the HTTP status for err.
func statusOf(err error) int {
	if pe, ok := publicErrors[identity.ErrorCode(err)]; ok {
		return pe.status
	}
	return http.StatusInternalServerError
}

// writeError renders err. Domain errors keep their code and field map;
// anything else is logged and reported as INTERNAL.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := identity.ErrorCode(err)
	pe, ok := publicErrors[code]
	if !ok {
		errutil.LogError(r.Context(), h.logger, "request failed", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: errorDetail{
			Code:    CodeInternal,
			Message: "internal server error",
		}})
		return
	}
	writeJSON(w, pe.status, errorBody{Error: errorDetail{
		Code:    code,
		Message: pe.message,
		Fields:  identity.FieldsOf(err),
	}})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Debug("response write failed", "error", err)
	}
}

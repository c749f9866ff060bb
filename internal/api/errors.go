package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Shivansh-2508/AI-DB/internal/assistant"
	"github.com/Shivansh-2508/AI-DB/internal/query"
)

// writeAssistantError renders pipeline failures in the standard envelope,
// adding the transcript snapshot and any SQL or suggestions.
func writeAssistantError(w http.ResponseWriter, r *http.Request, err error) {
	var failure *assistant.Error
	if !errors.As(err, &failure) {
		writeError(r.Context(), w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error", true, nil)
		return
	}

	status, retryable := statusForFailure(failure)
	var extra map[string]any
	if failure.Kind == assistant.KindExecutionFailure && failure.Failure != "" {
		extra = map[string]any{"failure": failure.Failure}
	}
	envelope := errorEnvelope(r.Context(), strings.ToUpper(string(failure.Kind)), failure.Error(), retryable, extra)
	envelope["history"] = historyPayload(failure.History)
	if failure.SQL != "" {
		envelope["sql"] = failure.SQL
	}
	if len(failure.Suggestions) > 0 {
		envelope["suggestions"] = failure.Suggestions
	}
	writeJSON(w, status, envelope)
}

func statusForFailure(failure *assistant.Error) (int, bool) {
	switch failure.Kind {
	case assistant.KindInvalidRequest:
		return http.StatusBadRequest, false
	case assistant.KindInvalidConfirmationState:
		return http.StatusConflict, false
	case assistant.KindWriteForbidden:
		return http.StatusForbidden, false
	case assistant.KindSynthesisUngrounded:
		return http.StatusUnprocessableEntity, false
	case assistant.KindExecutionFailure:
		if failure.Failure == query.FailureConnection {
			return http.StatusBadGateway, true
		}
		return http.StatusBadRequest, false
	case assistant.KindSchemaUnavailable:
		return http.StatusServiceUnavailable, true
	case assistant.KindGatewayFailure:
		return http.StatusBadGateway, true
	case assistant.KindNotFound:
		return http.StatusNotFound, false
	default:
		return http.StatusInternalServerError, true
	}
}

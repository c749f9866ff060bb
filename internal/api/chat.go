package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/Shivansh-2508/AI-DB/internal/assistant"
	"github.com/Shivansh-2508/AI-DB/internal/config"
	"github.com/Shivansh-2508/AI-DB/internal/conversation"
)

type routes struct {
	cfg  config.Config
	deps Dependencies
}

func newRoutes(cfg config.Config, deps Dependencies) *routes {
	return &routes{cfg: cfg, deps: deps}
}

func (rt *routes) handleAsk(w http.ResponseWriter, r *http.Request) {
	body, who, ok := rt.begin(w, r)
	if !ok {
		return
	}
	reply, err := rt.deps.Assistant.Ask(r.Context(), who, assistant.AskRequest{
		Message:   firstString(body, "message"),
		MessageID: firstString(body, "message_id", "messageId"),
		ChartKind: firstString(body, "chart_kind", "chartKind"),
	})
	if err != nil {
		writeAssistantError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, replyPayload(reply))
}

func (rt *routes) handleConfirm(w http.ResponseWriter, r *http.Request) {
	body, who, ok := rt.begin(w, r)
	if !ok {
		return
	}
	reply, err := rt.deps.Assistant.Confirm(r.Context(), who, firstString(body, "decision"))
	if err != nil {
		writeAssistantError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, replyPayload(reply))
}

func (rt *routes) handleCancel(w http.ResponseWriter, r *http.Request) {
	_, who, ok := rt.begin(w, r)
	if !ok {
		return
	}
	reply, err := rt.deps.Assistant.Cancel(r.Context(), who)
	if err != nil {
		writeAssistantError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, replyPayload(reply))
}

// handleChat saves a message when the body carries content and otherwise
// opens the chat by warming the schema cache.
func (rt *routes) handleChat(w http.ResponseWriter, r *http.Request) {
	body, who, ok := rt.begin(w, r)
	if !ok {
		return
	}

	if firstString(body, "content", "text", "message") != "" || hasStructuredContent(body) {
		history, err := rt.deps.Assistant.SaveMessage(r.Context(), who, conversation.Decode(body))
		if err != nil {
			writeAssistantError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "saved", "history": historyPayload(history)})
		return
	}
	if r.Method == http.MethodPut {
		writeError(r.Context(), w, http.StatusBadRequest, "MESSAGE_REQUIRED", "text (message) is required", false, nil)
		return
	}

	prefetch, err := rt.deps.Assistant.Prefetch(r.Context(), who)
	if err != nil {
		writeAssistantError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":        prefetch.Message,
		"schema_summary": prefetch.SchemaSummary,
		"history":        historyPayload(prefetch.History),
	})
}

func (rt *routes) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !rt.configured(w, r) {
		return
	}
	who, err := requesterFromRequest(rt.cfg, r, r.PathValue("session"))
	if err != nil {
		writeError(r.Context(), w, http.StatusUnauthorized, "IDENTITY_REQUIRED", err.Error(), false, nil)
		return
	}
	history, err := rt.deps.Assistant.History(r.Context(), who)
	if err != nil {
		writeAssistantError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": who.Session, "history": historyPayload(history)})
}

func (rt *routes) handleClear(w http.ResponseWriter, r *http.Request) {
	_, who, ok := rt.begin(w, r)
	if !ok {
		return
	}
	if err := rt.deps.Assistant.Clear(r.Context(), who); err != nil {
		writeAssistantError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "history cleared for " + who.Session,
		"history": []conversation.Turn{},
	})
}

// begin decodes the JSON body and resolves the caller, writing the error
// response itself when either fails.
func (rt *routes) begin(w http.ResponseWriter, r *http.Request) (map[string]any, assistant.Requester, bool) {
	if !rt.configured(w, r) {
		return nil, assistant.Requester{}, false
	}
	body, err := decodeBody(r)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid request body", false, map[string]any{"details": err.Error()})
		return nil, assistant.Requester{}, false
	}
	who, err := requesterFromRequest(rt.cfg, r, sessionFromBody(body))
	if err != nil {
		writeError(r.Context(), w, http.StatusUnauthorized, "IDENTITY_REQUIRED", err.Error(), false, nil)
		return nil, assistant.Requester{}, false
	}
	return body, who, true
}

func (rt *routes) configured(w http.ResponseWriter, r *http.Request) bool {
	if rt.deps.Assistant == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ASSISTANT_NOT_CONFIGURED", "assistant dependencies are not configured", false, nil)
		return false
	}
	return true
}

func decodeBody(r *http.Request) (map[string]any, error) {
	body := map[string]any{}
	if r.Body == nil {
		return body, nil
	}
	decoder := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := decoder.Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]any{}, nil
		}
		return nil, err
	}
	if body == nil {
		body = map[string]any{}
	}
	return body, nil
}

func hasStructuredContent(body map[string]any) bool {
	for _, key := range []string{"content", "text", "message"} {
		if _, ok := body[key].(map[string]any); ok {
			return true
		}
	}
	return false
}

func replyPayload(reply assistant.Reply) map[string]any {
	payload := map[string]any{
		"outcome": reply.Outcome,
		"history": historyPayload(reply.History),
	}
	switch reply.Outcome {
	case assistant.OutcomeClarify:
		payload["clarifier"] = reply.Message
	case assistant.OutcomePendingWrite:
		payload["clarifier"] = reply.Message
		payload["sql"] = reply.SQL
		payload["pending"] = true
	case assistant.OutcomeCancelled:
		payload["message"] = reply.Message
	default:
		payload["sql"] = reply.SQL
		if reply.Message != "" {
			payload["message"] = reply.Message
		}
		if reply.Result.HasRows() {
			payload["columns"] = reply.Result.Columns
			payload["rows"] = reply.Result.Rows
			payload["results"] = reply.Result.Rows
			payload["truncated"] = reply.Result.Truncated
			payload["chartable"] = reply.Chart.Chartable
			payload["chart"] = reply.Chart
		}
		if reply.Result.RowsAffected != nil {
			payload["rows_affected"] = *reply.Result.RowsAffected
		}
		if reply.ArchiveKey != "" {
			payload["archive_key"] = reply.ArchiveKey
		}
	}
	return payload
}

func historyPayload(history []conversation.Turn) []conversation.Turn {
	if history == nil {
		return []conversation.Turn{}
	}
	return history
}

package api

import (
	"net/http"

	"github.com/Shivansh-2508/AI-DB/internal/schema"
)

func (rt *routes) handleSchema(w http.ResponseWriter, r *http.Request) {
	rt.serveSchema(w, r, false)
}

func (rt *routes) handleSchemaRefresh(w http.ResponseWriter, r *http.Request) {
	rt.serveSchema(w, r, true)
}

func (rt *routes) serveSchema(w http.ResponseWriter, r *http.Request, refresh bool) {
	if !rt.configured(w, r) {
		return
	}
	who, err := requesterFromRequest(rt.cfg, r, "")
	if err != nil {
		writeError(r.Context(), w, http.StatusUnauthorized, "IDENTITY_REQUIRED", err.Error(), false, nil)
		return
	}

	var description schema.Description
	if refresh {
		description, err = rt.deps.Assistant.RefreshSchema(r.Context(), who.Identity)
	} else {
		description, err = rt.deps.Assistant.Schema(r.Context(), who.Identity)
	}
	if err != nil {
		writeAssistantError(w, r, err)
		return
	}
	if description == nil {
		description = schema.Description{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"identity": who.Identity,
		"tables":   description,
		"summary":  description.Summary(),
	})
}

func (rt *routes) handleArchive(w http.ResponseWriter, r *http.Request) {
	if !rt.configured(w, r) {
		return
	}
	who, err := requesterFromRequest(rt.cfg, r, "")
	if err != nil {
		writeError(r.Context(), w, http.StatusUnauthorized, "IDENTITY_REQUIRED", err.Error(), false, nil)
		return
	}
	key := r.PathValue("key")
	table, err := rt.deps.Assistant.ArchivedResult(r.Context(), who.Identity, key)
	if err != nil {
		writeAssistantError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"key":     key,
		"columns": table.Columns,
		"rows":    table.Rows,
	})
}

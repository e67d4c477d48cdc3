package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hundred-solutions/onlyoffice-odoo/internal/fieldtree"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/session"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/wire"
)

func (a *API) ListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, a.sessions.List())
}

// SearchSession is the REST form of the "search" socket message.
func (a *API) SearchSession(w http.ResponseWriter, r *http.Request) {
	var req wire.SearchData
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	sess, err := a.sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	view := sess.Search(r.Context(), req.Search, wire.SearchOptions(req)...)
	writeJSON(w, r, http.StatusOK, wire.TreeData{Search: req.Search, Count: fieldtree.Count(view), Tree: view})
}

type clickResponse struct {
	Queued bool `json:"queued"`
}

// ClickSession is the REST form of the "field_click" socket message. Queued
// is false when no editor is connected or the field type has no form.
func (a *API) ClickSession(w http.ResponseWriter, r *http.Request) {
	var req wire.FieldClickData
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	sess, err := a.sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	queued, err := sess.Click(r.Context(), req.Key)
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, clickResponse{Queued: queued})
}

func (a *API) CloseSession(w http.ResponseWriter, r *http.Request) {
	if err := a.sessions.Close(r.Context(), chi.URLParam(r, "id"), session.ReasonClient); err != nil {
		errorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

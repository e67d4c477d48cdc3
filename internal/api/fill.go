package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/hundred-solutions/onlyoffice-odoo/internal/auth"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/docserver"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/event"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/fill"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/schema"
	"github.com/hundred-solutions/onlyoffice-odoo/pkg/logger"
)

type fillRequest struct {
	RecordID any             `json:"record_id"`
	Record   json.RawMessage `json:"record"`
}

type fillResponse struct {
	Href string `json:"href"`
}

// FillTemplate merges a record into the template through the document
// builder and returns the URL of the filled document.
func (a *API) FillTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req fillRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	rec, err := fill.DecodeRecord(req.Record)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_RECORD", err.Error())
		return
	}

	tpl, err := a.Templates.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	tree, err := a.tree(tpl.Model)
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	log := logger.FromContext(ctx).WithValues("template_id", tpl.ID, "model", tpl.Model)

	recordID := ""
	if req.RecordID != nil {
		recordID = fill.Format(schema.FieldChar, req.RecordID)
	}
	description := ""
	if def := a.Registry.Model(tpl.Model); def != nil {
		description = def.Description
	}
	user := requestUser(r)

	open, err := tokenURL(a.Deps, "/api/templates/"+url.PathEscape(tpl.ID)+"/download", auth.PurposeDownload, tpl.ID, user, a.tokenTTL())
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	values := fill.Flatten(tree, rec)
	name := fill.DocumentName(description, rec, recordID)
	script, err := fill.Script(open, values, name)
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	job := a.jobs.Add(fill.Job{TemplateID: tpl.ID, Model: tpl.Model, FileName: fill.OutputName(name), Script: script})
	scriptURL, err := tokenURL(a.Deps, "/api/fill/"+url.PathEscape(job.ID)+"/script", auth.PurposeFill, job.ID, user, a.tokenTTL())
	if err != nil {
		a.jobs.Remove(job.ID)
		errorToHTTP(w, r, err)
		return
	}

	href, err := a.DocServer.Build(ctx, scriptURL)
	a.jobs.Remove(job.ID)
	payload := event.TemplateFilledPayload{TemplateID: tpl.ID, JobID: job.ID, Model: tpl.Model, Href: href}
	if err != nil {
		payload.Error = err.Error()
	}
	a.publisher.Publish(ctx, event.NewTemplateFilled(payload))

	if err != nil {
		log.Error(err, "template fill failed", "job_id", job.ID)
		status := http.StatusBadGateway
		if errors.Is(err, docserver.ErrNotConfigured) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, r, status, "FILL_FAILED", err.Error())
		return
	}
	log.Info("template filled", "job_id", job.ID, "values", values.Len())
	writeJSON(w, r, http.StatusOK, fillResponse{Href: href})
}

// FillScript hands the document builder the script of a pending fill job.
func (a *API) FillScript(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "job")
	if _, err := a.Tokens.Verify(r.URL.Query().Get("token"), auth.PurposeFill, id); err != nil {
		errorToHTTP(w, r, err)
		return
	}
	job, err := a.jobs.Get(id)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="fill_template.docbuilder"`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, job.Script)
}

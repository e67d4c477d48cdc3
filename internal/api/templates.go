package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hundred-solutions/onlyoffice-odoo/internal/auth"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/docserver"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/docx"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/session"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/template"
	"github.com/hundred-solutions/onlyoffice-odoo/pkg/logger"
)

type createTemplateRequest struct {
	Name  string `json:"name"`
	Model string `json:"model"`
	// Data is the base64 document; empty starts from the blank template.
	Data []byte `json:"data,omitempty"`
}

// CreateTemplate accepts a JSON body or a multipart form with name, model
// and an optional file part.
func (a *API) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req createTemplateRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := readMultipart(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_FORM", err.Error())
			return
		}
	} else if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}

	if a.Registry.Model(strings.TrimSpace(req.Model)) == nil {
		writeError(w, r, http.StatusBadRequest, "UNKNOWN_MODEL", "unknown model: "+req.Model)
		return
	}
	tpl, err := a.Templates.Create(r.Context(), template.Template{Name: req.Name, Model: req.Model, Data: req.Data})
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	logger.FromContext(r.Context()).Info("template created", "template_id", tpl.ID, "model", tpl.Model)
	writeJSON(w, r, http.StatusCreated, tpl)
}

func readMultipart(w http.ResponseWriter, r *http.Request, req *createTemplateRequest) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return err
	}
	req.Name = r.FormValue("name")
	req.Model = r.FormValue("model")
	file, _, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil
	}
	if err != nil {
		return err
	}
	defer file.Close()
	req.Data, err = io.ReadAll(file)
	return err
}

func (a *API) ListTemplates(w http.ResponseWriter, r *http.Request) {
	list, err := a.Templates.List(r.Context(), r.URL.Query().Get("model"))
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, list)
}

func (a *API) GetTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := a.Templates.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, tpl)
}

type renameTemplateRequest struct {
	Name string `json:"name"`
}

func (a *API) RenameTemplate(w http.ResponseWriter, r *http.Request) {
	var req renameTemplateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	tpl, err := a.Templates.Rename(r.Context(), chi.URLParam(r, "id"), req.Name)
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, tpl)
}

func (a *API) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := a.Templates.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		errorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DownloadTemplate serves the stored document. The document server presents
// a download token; a request from a known user needs none.
func (a *API) DownloadTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	token := r.URL.Query().Get("token")
	if token != "" || requestUser(r) == "" {
		if _, err := a.Tokens.Verify(token, auth.PurposeDownload, id); err != nil {
			errorToHTTP(w, r, err)
			return
		}
	}
	tpl, err := a.Templates.Get(r.Context(), id)
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	w.Header().Set("Content-Type", tpl.MimeType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": tpl.FileName}))
	w.Header().Set("Content-Length", strconv.Itoa(len(tpl.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(tpl.Data)
}

func (a *API) InspectTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := a.Templates.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	rep, err := docx.InspectBytes(tpl.Data)
	if errors.Is(err, docx.ErrUnlicensed) {
		writeError(w, r, http.StatusServiceUnavailable, "INSPECT_UNAVAILABLE", err.Error())
		return
	}
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, "INSPECT_FAILED", err.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, rep)
}

// EditorConfig returns what the page needs to start an editor on the
// template without opening a session.
func (a *API) EditorConfig(w http.ResponseWriter, r *http.Request) {
	tpl, err := a.Templates.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	editor, err := NewEditorLoader(a.Deps).Editor(r.Context(), tpl, requestUser(r))
	if err != nil {
		logger.FromContext(r.Context()).Error(err, "editor config", "template_id", tpl.ID)
		errorToHTTP(w, r, fmt.Errorf("%w: %w", session.ErrEditorUnavailable, err))
		return
	}
	writeJSON(w, r, http.StatusOK, editor)
}

type callbackResponse struct {
	Error   int    `json:"error"`
	Message string `json:"message,omitempty"`
}

// Callback receives document server status updates. Saves replace the
// template document with the edited one.
func (a *API) Callback(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	log := logger.FromContext(r.Context()).WithValues("template_id", id)
	if _, err := a.Tokens.Verify(r.URL.Query().Get("token"), auth.PurposeCallback, id); err != nil {
		errorToHTTP(w, r, err)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeJSON(w, r, http.StatusOK, callbackResponse{Error: 1, Message: err.Error()})
		return
	}
	cb, err := a.DocServer.ParseCallback(body, r.Header.Get(a.DocServer.Header()))
	if err != nil {
		log.Info("rejected document server callback", "error", err.Error())
		if errors.Is(err, docserver.ErrInvalidToken) {
			writeError(w, r, http.StatusForbidden, "INVALID_TOKEN", err.Error())
			return
		}
		writeJSON(w, r, http.StatusOK, callbackResponse{Error: 1, Message: err.Error()})
		return
	}
	log.V(1).Info("document server callback", "status", cb.Status, "key", cb.Key)
	if !cb.Saves() {
		writeJSON(w, r, http.StatusOK, callbackResponse{})
		return
	}

	data, err := a.DocServer.Download(r.Context(), cb.URL)
	if err == nil {
		_, err = a.Templates.UpdateData(r.Context(), id, data)
	}
	if err != nil {
		log.Error(err, "saving edited template")
		writeJSON(w, r, http.StatusOK, callbackResponse{Error: 1, Message: err.Error()})
		return
	}
	log.Info("template saved", "status", cb.Status, "size", len(data))
	writeJSON(w, r, http.StatusOK, callbackResponse{})
}

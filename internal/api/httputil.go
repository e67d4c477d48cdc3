package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/hundred-solutions/onlyoffice-odoo/internal/auth"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/schema"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/session"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/template"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/wire"
	"github.com/hundred-solutions/onlyoffice-odoo/pkg/logger"
)

// maxBodySize caps JSON request bodies. Template uploads use maxUploadSize.
const (
	maxBodySize   = 4 << 20
	maxUploadSize = 64 << 20
)

// writeJSON marshals v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.FromContext(r.Context()).Error(err, "writeJSON encode")
	}
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, r, status, map[string]string{
		"error": message,
		"code":  code,
	})
}

// decodeJSON decodes the request body into v.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decoding request body: %w", err)
	}
	return nil
}

// requestUser returns the end user named by the front proxy.
func requestUser(r *http.Request) string {
	return r.Header.Get(wire.UserHeader)
}

// queryBool parses a boolean query parameter; absent or malformed is false.
func queryBool(r *http.Request, name string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return b
}

// errorToHTTP maps domain errors to HTTP responses.
func errorToHTTP(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, template.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrClosed):
		writeError(w, r, http.StatusNotFound, "SESSION_NOT_FOUND", err.Error())
	case errors.Is(err, schema.ErrUnknownModel):
		writeError(w, r, http.StatusNotFound, "UNKNOWN_MODEL", err.Error())
	case errors.Is(err, session.ErrUnknownField):
		writeError(w, r, http.StatusNotFound, "UNKNOWN_FIELD", err.Error())
	case errors.Is(err, template.ErrInvalid):
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, auth.ErrInvalidToken):
		writeError(w, r, http.StatusForbidden, "INVALID_TOKEN", err.Error())
	case errors.Is(err, session.ErrEditorUnavailable):
		writeError(w, r, http.StatusBadGateway, wire.CodeEditorUnavailable, err.Error())
	default:
		logger.FromContext(r.Context()).Error(err, "internal error")
		writeError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

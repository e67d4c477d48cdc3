package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hundred-solutions/onlyoffice-odoo/internal/fieldtree"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/wire"
)

type modelSummary struct {
	Model       string `json:"model"`
	Description string `json:"description"`
	Fields      int    `json:"fields"`
}

func (a *API) ListModels(w http.ResponseWriter, r *http.Request) {
	names := a.Registry.ModelNames()
	out := make([]modelSummary, 0, len(names))
	for _, name := range names {
		def := a.Registry.Model(name)
		if def == nil {
			continue
		}
		out = append(out, modelSummary{Model: def.Name, Description: def.Description, Fields: len(def.Fields)})
	}
	writeJSON(w, r, http.StatusOK, out)
}

type fieldsResponse struct {
	Model string `json:"model"`
	wire.TreeData
}

// ModelFields serves the keyed field tree of a model, filtered by the
// optional search, ci (case-insensitive) and match (segment|label) query
// parameters.
func (a *API) ModelFields(w http.ResponseWriter, r *http.Request) {
	model := chi.URLParam(r, "model")
	tree, err := a.tree(model)
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	q := r.URL.Query()
	search := wire.SearchData{
		Search:          q.Get("search"),
		CaseInsensitive: queryBool(r, "ci"),
		Match:           q.Get("match"),
	}
	view := fieldtree.Filter(tree, search.Search, wire.SearchOptions(search)...)
	writeJSON(w, r, http.StatusOK, fieldsResponse{
		Model:    model,
		TreeData: wire.TreeData{Search: search.Search, Count: fieldtree.Count(view), Tree: view},
	})
}

// CompleteField suggests the fields that can follow the partial key in the
// q query parameter.
func (a *API) CompleteField(w http.ResponseWriter, r *http.Request) {
	tree, err := a.tree(chi.URLParam(r, "model"))
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	out := fieldtree.Complete(tree, r.URL.Query().Get("q"))
	if out == nil {
		out = []fieldtree.Completion{}
	}
	writeJSON(w, r, http.StatusOK, out)
}

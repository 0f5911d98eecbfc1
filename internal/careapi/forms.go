package careapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (a *API) handleListForms(w http.ResponseWriter, _ *http.Request) {
	forms := a.forms.Forms()
	out := make([]map[string]any, 0, len(forms))
	for _, f := range forms {
		out = append(out, map[string]any{
			"id":           f.ID,
			"title":        f.Title,
			"has_schedule": f.Schedule != nil,
			"rules":        len(f.Rules),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"forms": out})
}

func (a *API) handleGetForm(w http.ResponseWriter, r *http.Request) {
	form, ok := a.forms.Form(chi.URLParam(r, "formID"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown form")
		return
	}
	writeJSON(w, http.StatusOK, form)
}

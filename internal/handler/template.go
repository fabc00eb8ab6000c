package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/herald/internal/model"
	"github.com/dukerupert/herald/internal/notify"
)

type TemplateHandler struct {
	svc    *notify.Service
	logger *slog.Logger
}

func NewTemplateHandler(svc *notify.Service, logger *slog.Logger) *TemplateHandler {
	return &TemplateHandler{svc: svc, logger: logger}
}

// List handles GET /api/templates
func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	tmpls, err := h.svc.ListTemplates(r.Context())
	if err != nil {
		writeError(w, h.logger, "list templates", err)
		return
	}
	if tmpls == nil {
		tmpls = []model.Template{}
	}
	writeJSON(w, http.StatusOK, tmpls)
}

// Get handles GET /api/templates/{type}
func (h *TemplateHandler) Get(w http.ResponseWriter, r *http.Request) {
	tmpl, err := h.svc.GetTemplate(r.Context(), model.Type(r.PathValue("type")))
	if err != nil {
		writeError(w, h.logger, "get template", err)
		return
	}
	writeJSON(w, http.StatusOK, tmpl)
}

// Put handles PUT /api/templates/{type}
func (h *TemplateHandler) Put(w http.ResponseWriter, r *http.Request) {
	var tmpl model.Template
	if !decodeJSON(w, r, &tmpl) {
		return
	}
	tmpl.Type = model.Type(r.PathValue("type"))

	saved, err := h.svc.SaveTemplate(r.Context(), tmpl)
	if err != nil {
		writeError(w, h.logger, "save template", err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// Delete handles DELETE /api/templates/{type}
func (h *TemplateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteTemplate(r.Context(), model.Type(r.PathValue("type"))); err != nil {
		writeError(w, h.logger, "delete template", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

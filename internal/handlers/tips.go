package handlers

import (
	"net/http"

	"github.com/HammerMeetNail/campussafe/internal/models"
	"github.com/HammerMeetNail/campussafe/internal/services"
)

// TipHandler serves the static safety tips catalogue; it needs no login.
type TipHandler struct {
	tipService services.TipServiceInterface
}

func NewTipHandler(tipService services.TipServiceInterface) *TipHandler {
	return &TipHandler{tipService: tipService}
}

type TipListResponse struct {
	Categories []models.TipCategory `json:"categories"`
}

type TipCategoryResponse struct {
	Category *models.TipCategory `json:"category"`
}

func (h *TipHandler) List(w http.ResponseWriter, r *http.Request) {
	categories := h.tipService.Categories()
	if categories == nil {
		categories = []models.TipCategory{}
	}
	w.Header().Set("Cache-Control", "public, max-age=300")
	writeJSON(w, http.StatusOK, TipListResponse{Categories: categories})
}

func (h *TipHandler) ByCategory(w http.ResponseWriter, r *http.Request) {
	category, err := h.tipService.ByCategory(r.PathValue("category"))
	if err != nil {
		writeServiceError(w, r, "get tip category", err)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=300")
	writeJSON(w, http.StatusOK, TipCategoryResponse{Category: category})
}

// Package plans HTTP-обработчик списка тарифных планов.
package plans

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/union-portal/internal/http/middlewarectx"
	"github.com/magabrotheeeer/union-portal/internal/http/response"
	"github.com/magabrotheeeer/union-portal/internal/models"
)

// Service список планов.
type Service interface {
	Plans(lang string) []models.Plan
}

// Handler обрабатывает GET /plans.
type Handler struct {
	service Service
}

// New создает обработчик.
func New(service Service) *Handler {
	return &Handler{service: service}
}

// ServeHTTP godoc
// @Summary Тарифные планы
// @Tags Subscription
// @Produce json
// @Param lang query string false "Язык названий (en, hi, te)"
// @Success 200 {object} response.Response{data=[]models.Plan}
// @Router /plans [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, response.OKWithData(h.service.Plans(middlewarectx.LangFrom(r))))
}

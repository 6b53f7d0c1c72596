package diagnosis

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Source is the read side of the diagnosis cache.
type Source interface {
	DiagnosisSet() Set
}

type Handler struct {
	src Source
}

func NewHandler(src Source) *Handler {
	return &Handler{src: src}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/diagnoses", h.ListDiagnoses)
	api.GET("/diagnoses/:code", h.GetDiagnosis)
}

// ListDiagnoses returns every cached diagnosis ordered by code.
func (h *Handler) ListDiagnoses(c echo.Context) error {
	return c.JSON(http.StatusOK, h.src.DiagnosisSet().Sorted())
}

func (h *Handler) GetDiagnosis(c echo.Context) error {
	d, ok := h.src.DiagnosisSet().Diagnosis(c.Param("code"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "diagnosis not found")
	}
	return c.JSON(http.StatusOK, d)
}

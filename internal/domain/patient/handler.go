package patient

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/KOPFJE/patientor/internal/domain/diagnosis"
	"github.com/KOPFJE/patientor/internal/domain/entry"
	"github.com/KOPFJE/patientor/internal/platform/apierr"
	"github.com/KOPFJE/patientor/pkg/pagination"
)

type Handler struct {
	svc      *Service
	renderer *entry.Renderer
	lookup   diagnosis.Lookup
	logger   zerolog.Logger
}

func NewHandler(svc *Service, renderer *entry.Renderer, lookup diagnosis.Lookup, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, renderer: renderer, lookup: lookup, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients", h.ListPatients)
	api.POST("/patients", h.CreatePatient)
	api.GET("/patients/:id", h.GetPatient)
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	list := h.svc.List()
	return c.JSON(http.StatusOK, pagination.NewResponse(pagination.Slice(list, pg), len(list), pg.Limit, pg.Offset))
}

type bannerBody struct {
	Error  string            `json:"error"`
	Errors map[string]string `json:"errors,omitempty"`
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var in NewPatient
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return c.JSON(http.StatusUnprocessableEntity, bannerBody{Error: "invalid patient", Errors: verr.Errors})
		}
		return c.JSON(http.StatusBadGateway, bannerBody{Error: apierr.Banner(err)})
	}
	return c.JSON(http.StatusCreated, p)
}

type header struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Occupation  string `json:"occupation"`
	Gender      Gender `json:"gender"`
	SSN         string `json:"ssn,omitempty"`
	DateOfBirth string `json:"dateOfBirth,omitempty"`
}

type renderedEntry struct {
	ID      string         `json:"id"`
	Type    entry.Type     `json:"type"`
	Summary *entry.Summary `json:"summary,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// DetailView is a patient page: the patient plus each entry rendered on its
// own, so one bad entry does not take down the page.
type DetailView struct {
	Patient header          `json:"patient"`
	Entries []renderedEntry `json:"entries"`
}

// BuildDetail renders p's entries. Entries that fail to render are logged
// and carried with their error.
func (h *Handler) BuildDetail(p Patient) DetailView {
	view := DetailView{
		Patient: header{
			ID:          p.ID,
			Name:        p.Name,
			Occupation:  p.Occupation,
			Gender:      p.Gender,
			SSN:         p.SSN,
			DateOfBirth: p.DateOfBirth,
		},
		Entries: make([]renderedEntry, 0, len(p.Entries)),
	}
	for i, r := range h.renderer.SummarizeAll(p.Entries, h.lookup) {
		e := p.Entries[i]
		re := renderedEntry{ID: e.Common().ID, Type: e.Kind(), Summary: r.Summary}
		if r.Err != nil {
			h.logger.Error().Err(r.Err).Str("patient_id", p.ID).Str("entry_id", re.ID).Msg("render entry")
			re.Error = r.Err.Error()
		}
		view.Entries = append(view.Entries, re)
	}
	return view
}

func (h *Handler) GetPatient(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "patient id is required")
	}
	p, err := h.svc.Detail(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrStale) {
			return echo.NewHTTPError(http.StatusConflict, "patient fetch superseded by a newer request")
		}
		var aerr *apierr.Error
		if errors.As(err, &aerr) && aerr.Status == http.StatusNotFound {
			return c.JSON(http.StatusNotFound, bannerBody{Error: apierr.Banner(err)})
		}
		return c.JSON(http.StatusBadGateway, bannerBody{Error: apierr.Banner(err)})
	}
	return c.JSON(http.StatusOK, h.BuildDetail(p))
}

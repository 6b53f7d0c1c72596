package entry

import (
	"errors"
	"net/http"
	"sort"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/KOPFJE/patientor/internal/domain/diagnosis"
	"github.com/KOPFJE/patientor/internal/platform/apierr"
)

// DiagnosisSource is the read side of the diagnosis cache.
type DiagnosisSource interface {
	diagnosis.Lookup
	DiagnosisSet() diagnosis.Set
}

type Handler struct {
	svc       *Service
	drafts    *Drafts
	reg       *Registry
	renderer  *Renderer
	diagnoses DiagnosisSource
	logger    zerolog.Logger
}

func NewHandler(svc *Service, drafts *Drafts, reg *Registry, diagnoses DiagnosisSource, logger zerolog.Logger) *Handler {
	return &Handler{
		svc:       svc,
		drafts:    drafts,
		reg:       reg,
		renderer:  NewRenderer(reg),
		diagnoses: diagnoses,
		logger:    logger,
	}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/entry-types", h.ListTypes)
	api.POST("/patients/:id/entry-forms", h.OpenForm)
	api.GET("/entry-forms/:id", h.GetForm)
	api.PATCH("/entry-forms/:id", h.UpdateForm)
	api.POST("/entry-forms/:id/submit", h.SubmitForm)
	api.DELETE("/entry-forms/:id", h.CancelForm)
}

type typeView struct {
	Type   Type    `json:"type"`
	Label  string  `json:"label"`
	Fields []Field `json:"fields"`
}

// ListTypes returns the selectable entry types with their full field sets.
func (h *Handler) ListTypes(c echo.Context) error {
	kinds := h.reg.Kinds()
	out := make([]typeView, 0, len(kinds))
	for _, k := range kinds {
		fields, _ := h.reg.Fields(k.Type)
		out = append(out, typeView{Type: k.Type, Label: k.Label, Fields: fields})
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) OpenForm(c echo.Context) error {
	patientID := c.Param("id")
	if patientID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "patient id is required")
	}
	view := h.drafts.Open(patientID, h.diagnoses.DiagnosisSet())
	return c.JSON(http.StatusCreated, view)
}

func (h *Handler) GetForm(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	view, err := h.drafts.Get(id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, view)
}

// FormUpdate is the body of PATCH /entry-forms/:id. Type is applied first,
// so values may target fields of the new type.
type FormUpdate struct {
	Type           *Type             `json:"type,omitempty"`
	Values         map[string]string `json:"values,omitempty"`
	DiagnosisCodes *[]string         `json:"diagnosisCodes,omitempty"`
	Touched        []string          `json:"touched,omitempty"`
}

func (u FormUpdate) apply(f *Form) error {
	if u.Type != nil {
		if err := f.SelectType(*u.Type); err != nil {
			return err
		}
	}
	names := make([]string, 0, len(u.Values))
	for name := range u.Values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := f.Set(name, u.Values[name]); err != nil {
			return err
		}
	}
	if u.DiagnosisCodes != nil {
		if err := f.SetDiagnoses(*u.DiagnosisCodes); err != nil {
			return err
		}
	}
	for _, name := range u.Touched {
		if err := f.Touch(name); err != nil {
			return err
		}
	}
	return nil
}

type formFailure struct {
	Error  string            `json:"error"`
	Errors map[string]string `json:"errors,omitempty"`
	Form   *DraftView        `json:"form,omitempty"`
}

func (h *Handler) UpdateForm(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body FormUpdate
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	view, err := h.drafts.Update(id, body.apply)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, view)
	case errors.Is(err, ErrDraftNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDraftBusy):
		return c.JSON(http.StatusConflict, formFailure{Error: err.Error(), Form: &view})
	default:
		return c.JSON(http.StatusBadRequest, formFailure{Error: err.Error(), Form: &view})
	}
}

type submitResult struct {
	Entry   Entry    `json:"entry"`
	Summary *Summary `json:"summary,omitempty"`
}

// SubmitForm validates the draft locally, posts it, and folds the created
// entry into the cache. API failures come back as a banner message with the
// draft left open.
func (h *Handler) SubmitForm(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	patientID, payload, view, err := h.drafts.Begin(id)
	if err != nil {
		var verr *ValidationError
		switch {
		case errors.Is(err, ErrDraftNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, ErrDraftBusy):
			return c.JSON(http.StatusConflict, formFailure{Error: err.Error(), Form: &view})
		case errors.As(err, &verr):
			return c.JSON(http.StatusUnprocessableEntity, formFailure{Error: "invalid entry", Errors: verr.Errors, Form: &view})
		case errors.Is(err, ErrPristine):
			return c.JSON(http.StatusUnprocessableEntity, formFailure{Error: err.Error(), Form: &view})
		default:
			return c.JSON(http.StatusBadRequest, formFailure{Error: err.Error(), Form: &view})
		}
	}

	created, err := h.svc.Create(c.Request().Context(), patientID, payload)
	h.drafts.Finish(id, err == nil)
	if err != nil {
		view, _ := h.drafts.Get(id)
		return c.JSON(http.StatusBadGateway, formFailure{Error: apierr.Banner(err), Form: &view})
	}

	res := submitResult{Entry: created}
	if s, err := h.renderer.Summarize(created, h.diagnoses); err == nil {
		res.Summary = &s
	} else {
		h.logger.Error().Err(err).Str("entry_id", created.Common().ID).Msg("render created entry")
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *Handler) CancelForm(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.drafts.Cancel(id); err != nil {
		if errors.Is(err, ErrDraftBusy) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

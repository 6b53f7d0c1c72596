package patient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/KOPFJE/patientor/internal/domain/diagnosis"
	"github.com/KOPFJE/patientor/internal/domain/entry"
	"github.com/KOPFJE/patientor/internal/platform/apierr"
)

// unknownEntry is an entry of a type the renderer does not know.
func unknownEntry() entry.Entry {
	return &entry.UnknownEntry{Base: entry.Base{ID: "e2"}, Tag: "Telehealth"}
}

func newTestHandler(api *mockAPI, cache *mockCache) *Handler {
	lookup := diagnosis.NewSet([]diagnosis.Diagnosis{{Code: "J10", Name: "Influenza"}})
	return NewHandler(NewService(api, cache, zerolog.Nop()), entry.NewRenderer(nil), lookup, zerolog.Nop())
}

func TestHandler_ListPatients(t *testing.T) {
	cache := newMockCache()
	cache.ReplacePatientsIfAbsent([]Patient{{ID: "1", Name: "B"}, {ID: "2", Name: "A"}, {ID: "3", Name: "C"}})
	h := newTestHandler(&mockAPI{}, cache)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/patients?limit=2", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListPatients(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var page struct {
		Data    []Patient `json:"data"`
		Total   int       `json:"total"`
		HasMore bool      `json:"has_more"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Total != 3 || len(page.Data) != 2 || !page.HasMore || page.Data[0].Name != "A" {
		t.Errorf("unexpected page: %+v", page)
	}
}

func TestHandler_GetPatientRendersEachEntry(t *testing.T) {
	api := &mockAPI{get: func(ctx context.Context, id string) (*Patient, error) {
		return &Patient{
			ID:   id,
			Name: "Anna",
			Entries: entry.List{
				&entry.HealthCheckEntry{
					Base:              entry.Base{ID: "e1", Description: "Annual", Date: "2023-04-01", Specialist: "Dr. House", DiagnosisCodes: []string{"J10"}},
					HealthCheckRating: entry.RatingHighRisk,
				},
				unknownEntry(),
			},
		}, nil
	}}
	h := newTestHandler(api, newMockCache())

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("p1")

	if err := h.GetPatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var view struct {
		Patient struct {
			Name string `json:"name"`
		} `json:"patient"`
		Entries []struct {
			ID      string         `json:"id"`
			Summary *entry.Summary `json:"summary"`
			Error   string         `json:"error"`
		} `json:"entries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Patient.Name != "Anna" || len(view.Entries) != 2 {
		t.Fatalf("unexpected view: %+v", view)
	}
	if view.Entries[0].Summary == nil || view.Entries[0].Summary.Band != entry.BandCritical {
		t.Errorf("expected first entry rendered critical, got %+v", view.Entries[0])
	}
	if view.Entries[0].Summary.Diagnoses[0].Name != "Influenza" {
		t.Errorf("expected diagnosis name resolved, got %+v", view.Entries[0].Summary.Diagnoses)
	}
	if view.Entries[1].Summary != nil || !strings.Contains(view.Entries[1].Error, "Telehealth") {
		t.Errorf("expected second entry to carry its error, got %+v", view.Entries[1])
	}
}

func TestHandler_GetPatientNotFound(t *testing.T) {
	api := &mockAPI{get: func(ctx context.Context, id string) (*Patient, error) {
		return nil, &apierr.Error{Status: http.StatusNotFound, Message: "patient not found"}
	}}
	h := newTestHandler(api, newMockCache())

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("missing")

	if err := h.GetPatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "patient not found") {
		t.Errorf("expected API message, got %s", rec.Body.String())
	}
}

func TestHandler_CreatePatient(t *testing.T) {
	cache := newMockCache()
	h := newTestHandler(&mockAPI{}, cache)

	body := `{"name":"John McClane","ssn":"090786-122X","dateOfBirth":"1986-07-09","occupation":"Cop","gender":"male"}`
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreatePatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if _, ok := cache.Patient("new-id"); !ok {
		t.Error("expected created patient cached")
	}
}

func TestHandler_CreatePatientInvalid(t *testing.T) {
	h := newTestHandler(&mockAPI{}, newMockCache())

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"John","gender":"robot"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreatePatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	var body bannerBody
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Errors["gender"] == "" || body.Errors["ssn"] == "" {
		t.Errorf("expected field errors, got %+v", body.Errors)
	}
}

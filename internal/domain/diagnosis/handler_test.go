package diagnosis

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

type staticSource Set

func (s staticSource) DiagnosisSet() Set { return Set(s) }

func TestHandler_ListDiagnoses(t *testing.T) {
	h := NewHandler(staticSource(NewSet([]Diagnosis{{Code: "Z99"}, {Code: "J10", Name: "Influenza"}})))
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/diagnoses", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListDiagnoses(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var out []Diagnosis
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 2 || out[0].Code != "J10" {
		t.Errorf("expected diagnoses sorted by code, got %+v", out)
	}
}

func TestHandler_GetDiagnosis_NotFound(t *testing.T) {
	h := NewHandler(staticSource(NewSet(nil)))
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("code")
	c.SetParamValues("X00")

	err := h.GetDiagnosis(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

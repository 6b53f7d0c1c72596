package apiclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/KOPFJE/patientor/internal/domain/diagnosis"
	"github.com/KOPFJE/patientor/internal/domain/entry"
	"github.com/KOPFJE/patientor/internal/domain/patient"
	"github.com/KOPFJE/patientor/internal/platform/apierr"
	"github.com/KOPFJE/patientor/internal/platform/middleware"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", Options{}, zerolog.Nop())
}

func TestListPatients(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/patients" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		io.WriteString(w, `[{"id":"p1","name":"John","occupation":"Engineer","gender":"male"}]`)
	})

	list, err := c.ListPatients(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 1 || list[0].ID != "p1" || list[0].Gender != patient.GenderMale {
		t.Errorf("unexpected patients: %+v", list)
	}
}

func TestGetPatient_DecodesEntriesAndKeepsUnknown(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/patients/p1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		io.WriteString(w, `{"id":"p1","name":"John","occupation":"Engineer","gender":"male","entries":[
			{"id":"e1","type":"HealthCheck","description":"Annual","date":"2023-04-01","specialist":"Dr. House","healthCheckRating":2},
			{"id":"e2","type":"Telehealth","description":"Call","date":"2023-05-01","specialist":"Dr. Who"},
			{"id":"e3","type":"Hospital","description":"Surgery","date":"2023-06-01","specialist":"Dr. Grey","discharge":{"date":"2023-06-05","criteria":"Healed"}}
		]}`)
	})

	p, err := c.GetPatient(context.Background(), "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(p.Entries))
	}
	hc, ok := p.Entries[0].(*entry.HealthCheckEntry)
	if !ok || hc.HealthCheckRating != entry.RatingHighRisk {
		t.Errorf("expected HealthCheck entry with rating 2, got %#v", p.Entries[0])
	}
	if _, ok := p.Entries[1].(*entry.UnknownEntry); !ok {
		t.Errorf("expected unknown entry, got %T", p.Entries[1])
	}
	if h, ok := p.Entries[2].(*entry.HospitalEntry); !ok || h.Discharge.Criteria != "Healed" {
		t.Errorf("expected hospital entry, got %#v", p.Entries[2])
	}
}

func TestGetPatient_EscapesID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.EscapedPath() != "/patients/a%2Fb" {
			t.Errorf("expected escaped path, got %s", r.URL.EscapedPath())
		}
		io.WriteString(w, `{"id":"a/b"}`)
	})
	if _, err := c.GetPatient(context.Background(), "a/b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateEntry(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/patients/p1/entries" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected JSON content type, got %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"type":"HealthCheck"`) {
			t.Errorf("expected type discriminant in body, got %s", body)
		}
		if strings.Contains(string(body), `"id"`) {
			t.Errorf("expected payload without id, got %s", body)
		}
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"id":"e9","type":"HealthCheck","description":"Annual","date":"2023-04-01","specialist":"Dr. House","healthCheckRating":0}`)
	})

	payload := &entry.HealthCheckEntry{
		Base: entry.Base{Description: "Annual", Date: "2023-04-01", Specialist: "Dr. House"},
	}
	created, err := c.CreateEntry(context.Background(), "p1", payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.Common().ID != "e9" || created.Kind() != entry.TypeHealthCheck {
		t.Errorf("unexpected created entry: %#v", created)
	}
}

func TestCreateEntry_FromSubmittedForm(t *testing.T) {
	tests := []struct {
		typ    entry.Type
		values map[string]string
		check  func(t *testing.T, e entry.Entry)
	}{
		{
			typ: entry.TypeHospital,
			values: map[string]string{
				entry.FieldDischargeDate:     "2023-01-05",
				entry.FieldDischargeCriteria: "Healed",
			},
			check: func(t *testing.T, e entry.Entry) {
				h, ok := e.(*entry.HospitalEntry)
				if !ok || h.Discharge.Criteria != "Healed" || h.Discharge.Date != "2023-01-05" {
					t.Errorf("unexpected hospital entry: %#v", e)
				}
			},
		},
		{
			typ: entry.TypeOccupationalHealthcare,
			values: map[string]string{
				entry.FieldEmployerName:   "HyPD",
				entry.FieldSickLeaveStart: "2023-01-01",
			},
			check: func(t *testing.T, e entry.Entry) {
				o, ok := e.(*entry.OccupationalHealthcareEntry)
				if !ok || o.EmployerName != "HyPD" || o.SickLeave == nil || o.SickLeave.StartDate != "2023-01-01" {
					t.Errorf("unexpected occupational entry: %#v", e)
				}
			},
		},
		{
			typ:    entry.TypeHealthCheck,
			values: map[string]string{entry.FieldHealthCheckRating: "2"},
			check: func(t *testing.T, e entry.Entry) {
				h, ok := e.(*entry.HealthCheckEntry)
				if !ok || h.HealthCheckRating != entry.RatingHighRisk {
					t.Errorf("unexpected health check entry: %#v", e)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			var (
				gotKind entry.Type
				gotID   = "unset"
			)
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				body, _ := io.ReadAll(r.Body)
				e, err := entry.Decode(body)
				if err != nil {
					t.Errorf("server could not decode %s: %v", body, err)
					w.WriteHeader(http.StatusBadRequest)
					return
				}
				gotKind, gotID = e.Kind(), e.Common().ID
				e.Common().ID = "e-new"
				w.WriteHeader(http.StatusCreated)
				json.NewEncoder(w).Encode(e)
			})

			f := entry.NewForm(nil, diagnosis.NewSet([]diagnosis.Diagnosis{{Code: "J10", Name: "Influenza"}}))
			if err := f.SelectType(tt.typ); err != nil {
				t.Fatalf("select: %v", err)
			}
			values := map[string]string{
				entry.FieldDescription: "Visit",
				entry.FieldDate:        "2023-01-01",
				entry.FieldSpecialist:  "Dr. Grey",
			}
			for k, v := range tt.values {
				values[k] = v
			}
			for k, v := range values {
				if err := f.Set(k, v); err != nil {
					t.Fatalf("set %s: %v", k, err)
				}
			}
			if err := f.SetDiagnoses([]string{"J10"}); err != nil {
				t.Fatalf("diagnoses: %v", err)
			}
			payload, err := f.Submit()
			if err != nil {
				t.Fatalf("submit: %v", err)
			}

			created, err := c.CreateEntry(context.Background(), "p1", payload)
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if gotKind != tt.typ || gotID != "" {
				t.Errorf("expected server to receive an id-less %s payload, got %s with id %q", tt.typ, gotKind, gotID)
			}
			if created.Common().ID != "e-new" || created.Kind() != tt.typ {
				t.Errorf("unexpected created entry: %#v", created)
			}
			codes := created.Common().DiagnosisCodes
			if created.Common().Description != "Visit" || len(codes) != 1 || codes[0] != "J10" {
				t.Errorf("common fields lost in transit: %#v", created.Common())
			}
			tt.check(t, created)
		})
	}
}

func TestErrorBodySurfacesVerbatim(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":"Incorrect or missing date"}`)
	})

	_, err := c.CreateEntry(context.Background(), "p1", &entry.HealthCheckEntry{})
	var aerr *apierr.Error
	if !errors.As(err, &aerr) {
		t.Fatalf("expected *apierr.Error, got %v", err)
	}
	if aerr.Status != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", aerr.Status)
	}
	if got := apierr.Banner(err); got != "Incorrect or missing date" {
		t.Errorf("expected verbatim message, got %q", got)
	}
}

func TestMalformedErrorBodyUsesGenericMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `<html>oops</html>`)
	})

	_, err := c.ListDiagnoses(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if got := apierr.Banner(err); got != apierr.GenericMessage {
		t.Errorf("expected generic message, got %q", got)
	}
}

func TestForwardsRequestID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get(middleware.RequestIDHeader); got != "req-1" {
			t.Errorf("expected request id req-1, got %q", got)
		}
		io.WriteString(w, `[]`)
	})

	ctx := middleware.WithRequestID(context.Background(), "req-1")
	if _, err := c.ListDiagnoses(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCancelledContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[]`)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.ListPatients(ctx); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

// Package apiclient talks to the patients REST API.
package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/KOPFJE/patientor/internal/domain/diagnosis"
	"github.com/KOPFJE/patientor/internal/domain/entry"
	"github.com/KOPFJE/patientor/internal/domain/patient"
	"github.com/KOPFJE/patientor/internal/platform/apierr"
	"github.com/KOPFJE/patientor/internal/platform/middleware"
)

const maxErrorBody = 64 << 10

// Options tunes a Client. Zero values select the defaults.
type Options struct {
	Timeout    time.Duration
	RPS        float64
	Burst      int
	HTTPClient *http.Client
}

// Client is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

func New(baseURL string, opts Options, logger zerolog.Logger) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	limit := rate.Inf
	if opts.RPS > 0 {
		limit = rate.Limit(opts.RPS)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
}

func (c *Client) ListPatients(ctx context.Context) ([]patient.Patient, error) {
	var out []patient.Patient
	if err := c.do(ctx, http.MethodGet, "/patients", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetPatient(ctx context.Context, id string) (*patient.Patient, error) {
	var out patient.Patient
	if err := c.do(ctx, http.MethodGet, "/patients/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreatePatient(ctx context.Context, in patient.NewPatient) (*patient.Patient, error) {
	var out patient.Patient
	if err := c.do(ctx, http.MethodPost, "/patients", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListDiagnoses(ctx context.Context) ([]diagnosis.Diagnosis, error) {
	var out []diagnosis.Diagnosis
	if err := c.do(ctx, http.MethodGet, "/diagnoses", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateEntry posts payload to the patient's entries and returns the stored
// entry, id included.
func (c *Client) CreateEntry(ctx context.Context, patientID string, payload entry.Entry) (entry.Entry, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/patients/"+url.PathEscape(patientID)+"/entries", payload, &raw); err != nil {
		return nil, err
	}
	created, err := entry.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode created entry: %w", err)
	}
	return created, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := middleware.RequestIDFrom(ctx); id != "" {
		req.Header.Set(middleware.RequestIDHeader, id)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("method", method).Str("path", path).Msg("patients api request failed")
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("patients api request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return apierr.FromResponse(method, path, resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

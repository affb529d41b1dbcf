package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vetora/vetora/pkg/api"
	"github.com/vetora/vetora/pkg/auth"
	"github.com/vetora/vetora/pkg/hospitalization"
	"github.com/vetora/vetora/pkg/storage"
	"github.com/vetora/vetora/pkg/transport"
)

// Rate limit types used by the routes.
const (
	LimitAdmission = "admission"
	LimitWrite     = "write"
)

// Adapter serves the clinic API over HTTP. Every API route runs behind
// the authorization gate; health and metrics endpoints are public.
type Adapter struct {
	gate    *auth.Gate
	svc     *hospitalization.Service
	backend storage.Backend
	mux     *http.ServeMux
	actions map[string]http.HandlerFunc
	config  Config
	handler http.Handler
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	MaxBodySize int64

	// MetricsPath serves Prometheus metrics. Empty disables the endpoint.
	MetricsPath string
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize: 1 << 20, // 1 MB
		MetricsPath: "/metrics",
	}
}

// listResponse wraps collection results.
type listResponse[T any] struct {
	Data []T `json:"data"`
}

// NewAdapter creates an HTTP adapter. backend is checked by /readyz.
// Middleware wraps every route in the given order.
func NewAdapter(gate *auth.Gate, svc *hospitalization.Service, backend storage.Backend, cfg Config, middlewares ...transport.Middleware) *Adapter {
	a := &Adapter{
		gate:    gate,
		svc:     svc,
		backend: backend,
		mux:     http.NewServeMux(),
		config:  cfg,
	}

	a.mux.HandleFunc("GET /healthz", a.handleHealthz)
	a.mux.HandleFunc("GET /readyz", a.handleReadyz)
	if cfg.MetricsPath != "" {
		a.mux.Handle("GET "+cfg.MetricsPath, promhttp.Handler())
	}

	a.mux.Handle("GET /api/me", gate.Route(auth.Authenticated, a.handleMe))

	a.mux.Handle("GET /api/clinics/{clinic}/kennels", gate.Route(auth.Staff, a.handleListKennels))
	a.mux.Handle("POST /api/clinics/{clinic}/kennels", gate.Route(auth.Admin.WithRateLimit(LimitWrite), a.handleCreateKennel))
	a.mux.Handle("GET /api/clinics/{clinic}/hospitalizations", gate.Route(auth.Staff, a.handleListHospitalizations))

	a.mux.Handle("POST /api/hospitalizations", gate.Route(auth.Staff.WithRateLimit(LimitAdmission), a.handleAdmit))
	a.mux.Handle("GET /api/hospitalizations/{id}", gate.Route(auth.Staff, a.handleGetHospitalization))
	a.mux.Handle("PATCH /api/hospitalizations/{id}", gate.Route(auth.Staff.WithRateLimit(LimitWrite), a.handleDischarge))

	a.actions = map[string]http.HandlerFunc{
		"kennels.set_status": actionEndpoint(a,
			auth.Action[api.KennelStatusRequest, *api.Kennel](gate, auth.Admin.WithRateLimit(LimitWrite), "kennels.set_status", a.setKennelStatus)),
		"hospitalizations.discharge": actionEndpoint(a,
			auth.Action[api.DischargeAction, *api.Hospitalization](gate, auth.Staff.WithRateLimit(LimitWrite), "hospitalizations.discharge", a.discharge)),
	}
	a.mux.HandleFunc("POST /api/actions/{name}", a.handleAction)

	a.handler = a.mux
	if len(middlewares) > 0 {
		a.handler = transport.Chain(middlewares...)(a.mux)
	}
	return a
}

// Handler returns the http.Handler for this adapter.
func (a *Adapter) Handler() http.Handler {
	return a.handler
}

// decodeJSON reads a JSON request body into v. Bodies that are not JSON
// are rejected before any field is looked at.
func (a *Adapter) decodeJSON(w http.ResponseWriter, r *http.Request, v any) *api.APIError {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || mt != "application/json" {
			return api.NewUnsupportedMediaTypeError()
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			apiErr := api.NewInvalidFormatError("body",
				fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize))
			apiErr.Status = http.StatusRequestEntityTooLarge
			return apiErr
		}
		return api.NewInvalidFormatError("body", "invalid JSON: "+err.Error())
	}
	return nil
}

func (a *Adapter) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *Adapter) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := a.backend.HealthCheck(r.Context()); err != nil {
		transport.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleMe handles GET /api/me.
func (a *Adapter) handleMe(w http.ResponseWriter, _ *http.Request, az *auth.Authorized) error {
	transport.WriteJSON(w, http.StatusOK, az.Profile)
	return nil
}

// handleListKennels handles GET /api/clinics/{clinic}/kennels.
func (a *Adapter) handleListKennels(w http.ResponseWriter, r *http.Request, az *auth.Authorized) error {
	kennels, err := a.svc.ListKennels(r.Context(), az.Scope, r.URL.Query().Get("status"))
	if err != nil {
		return err
	}
	transport.WriteJSON(w, http.StatusOK, listResponse[*api.Kennel]{Data: kennels})
	return nil
}

// handleCreateKennel handles POST /api/clinics/{clinic}/kennels.
func (a *Adapter) handleCreateKennel(w http.ResponseWriter, r *http.Request, az *auth.Authorized) error {
	var req api.KennelRequest
	if apiErr := a.decodeJSON(w, r, &req); apiErr != nil {
		return apiErr
	}
	kennel, err := a.svc.CreateKennel(r.Context(), az.Scope, &req)
	if err != nil {
		return err
	}
	transport.WriteJSON(w, http.StatusCreated, kennel)
	return nil
}

// handleListHospitalizations handles GET /api/clinics/{clinic}/hospitalizations.
func (a *Adapter) handleListHospitalizations(w http.ResponseWriter, r *http.Request, az *auth.Authorized) error {
	list, err := a.svc.List(r.Context(), az.Scope, r.URL.Query().Get("status"))
	if err != nil {
		return err
	}
	transport.WriteJSON(w, http.StatusOK, listResponse[*api.Hospitalization]{Data: list})
	return nil
}

// handleAdmit handles POST /api/hospitalizations.
func (a *Adapter) handleAdmit(w http.ResponseWriter, r *http.Request, az *auth.Authorized) error {
	var req api.AdmissionRequest
	if apiErr := a.decodeJSON(w, r, &req); apiErr != nil {
		return apiErr
	}
	h, err := a.svc.Admit(r.Context(), az.Scope, az.Profile, &req)
	if err != nil {
		return err
	}
	transport.WriteJSON(w, http.StatusCreated, h)
	return nil
}

// handleGetHospitalization handles GET /api/hospitalizations/{id}.
func (a *Adapter) handleGetHospitalization(w http.ResponseWriter, r *http.Request, az *auth.Authorized) error {
	h, err := a.svc.Get(r.Context(), az.Scope, r.PathValue("id"))
	if err != nil {
		return err
	}
	transport.WriteJSON(w, http.StatusOK, h)
	return nil
}

// handleDischarge handles PATCH /api/hospitalizations/{id}.
func (a *Adapter) handleDischarge(w http.ResponseWriter, r *http.Request, az *auth.Authorized) error {
	var req api.DischargeRequest
	if apiErr := a.decodeJSON(w, r, &req); apiErr != nil {
		return apiErr
	}
	h, err := a.svc.Discharge(r.Context(), az.Scope, az.Profile, r.PathValue("id"), &req)
	if err != nil {
		return err
	}
	transport.WriteJSON(w, http.StatusOK, h)
	return nil
}

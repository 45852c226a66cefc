// Package api exposes the owner contract over HTTP: lifecycle commands,
// status, and the telemetry stream.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radio-control/sapd/internal/ap"
	"github.com/radio-control/sapd/internal/auth"
	"github.com/radio-control/sapd/internal/softap"
	"github.com/radio-control/sapd/internal/telemetry"
)

// Server holds the HTTP surface.
type Server struct {
	session  *Session
	hub      *telemetry.Hub
	verifier *auth.Verifier
	log      *zap.Logger
	router   chi.Router
}

// NewServer builds the router. verifier may be nil to disable auth.
func NewServer(session *Session, hub *telemetry.Hub, verifier *auth.Verifier, log *zap.Logger) *Server {
	s := &Server{
		session:  session,
		hub:      hub,
		verifier: verifier,
		log:      log.Named("api"),
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/api/v1/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.requireScope(auth.ScopeViewer))
		r.Get("/api/v1/ap/status", s.handleStatus)
		r.Get("/api/v1/telemetry", s.handleTelemetry)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireScope(auth.ScopeController))
		r.Post("/api/v1/ap/start", s.handleStart)
		r.Post("/api/v1/ap/stop", s.handleStop)
		r.Put("/api/v1/ap/capability", s.handleUpdateCapability)
		r.Put("/api/v1/ap/config", s.handleUpdateConfiguration)
		r.Put("/api/v1/ap/country", s.handleUpdateCountry)
		r.Post("/api/v1/ap/coex", s.handleCoex)
		r.Post("/api/v1/ap/station", s.handleStation)
		r.Post("/api/v1/ap/plugged", s.handlePlugged)
	})

	return r
}

func (s *Server) requireScope(scope string) func(http.Handler) http.Handler {
	if s.verifier == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return s.verifier.Middleware(scope)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, map[string]string{"status": "ok"})
}

// configPayload carries an operator configuration over the wire. The
// passphrase and vendor data are accepted on input only; ap.Configuration
// never serializes them back out.
type configPayload struct {
	ap.Configuration
	Passphrase string            `json:"passphrase,omitempty"`
	VendorData map[string]string `json:"vendorData,omitempty"`
}

func (p configPayload) toConfig() ap.Configuration {
	cfg := p.Configuration
	cfg.Passphrase = p.Passphrase
	cfg.VendorData = p.VendorData
	return cfg
}

type capabilityPayload struct {
	Channels    map[string][]int `json:"channels"`
	MaxClients  int              `json:"maxClients"`
	Features    uint32           `json:"features"`
	CountryCode string           `json:"countryCode"`
}

func (p capabilityPayload) toCapability() (ap.Capability, error) {
	out := ap.Capability{
		Channels:    make(map[ap.Band][]int, len(p.Channels)),
		MaxClients:  p.MaxClients,
		Features:    ap.Feature(p.Features),
		CountryCode: p.CountryCode,
	}
	for name, chans := range p.Channels {
		var band ap.Band
		switch name {
		case "2.4GHz":
			band = ap.Band2GHz
		case "5GHz":
			band = ap.Band5GHz
		case "6GHz":
			band = ap.Band6GHz
		default:
			return ap.Capability{}, errors.New("unknown band " + name)
		}
		out.Channels[band] = chans
	}
	return out, nil
}

type startRequest struct {
	Config     configPayload     `json:"config"`
	Capability capabilityPayload `json:"capability"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", err.Error())
		return
	}
	cfg := req.Config.toConfig()
	if err := cfg.Validate(); err != nil {
		WriteError(w, http.StatusBadRequest, "INVALID_CONFIG", err.Error(), nil)
		return
	}
	capability, err := req.Capability.toCapability()
	if err != nil {
		WriteError(w, http.StatusBadRequest, "INVALID_CAPABILITY", err.Error(), nil)
		return
	}

	id, err := s.session.Start(cfg, capability, auth.Subject(r.Context()))
	if errors.Is(err, ErrAlreadyRunning) {
		WriteError(w, http.StatusConflict, "ALREADY_RUNNING", err.Error(), nil)
		return
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	s.log.Info("start accepted", zap.String("id", id), zap.String("ssid", cfg.SSID))
	WriteSuccess(w, map[string]string{"id": id})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Stop(auth.Subject(r.Context())); err != nil {
		s.writeSessionError(w, err)
		return
	}
	WriteSuccess(w, nil)
}

func (s *Server) handleUpdateCapability(w http.ResponseWriter, r *http.Request) {
	var payload capabilityPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", err.Error())
		return
	}
	capability, err := payload.toCapability()
	if err != nil {
		WriteError(w, http.StatusBadRequest, "INVALID_CAPABILITY", err.Error(), nil)
		return
	}
	if err := s.session.UpdateCapability(capability); err != nil {
		s.writeSessionError(w, err)
		return
	}
	WriteSuccess(w, nil)
}

func (s *Server) handleUpdateConfiguration(w http.ResponseWriter, r *http.Request) {
	var payload configPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", err.Error())
		return
	}
	cfg := payload.toConfig()
	if err := cfg.Validate(); err != nil {
		WriteError(w, http.StatusBadRequest, "INVALID_CONFIG", err.Error(), nil)
		return
	}
	if err := s.session.UpdateConfiguration(cfg); err != nil {
		s.writeSessionError(w, err)
		return
	}
	WriteSuccess(w, nil)
}

func (s *Server) handleUpdateCountry(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		CountryCode string `json:"countryCode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.CountryCode == "" {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "countryCode is required", nil)
		return
	}
	if err := s.session.UpdateCountryCode(payload.CountryCode); err != nil {
		s.writeSessionError(w, err)
		return
	}
	WriteSuccess(w, nil)
}

func (s *Server) handleCoex(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UnsafeFrequencies []int `json:"unsafeFrequencies"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", err.Error())
		return
	}
	unsafe := make(map[int]bool, len(payload.UnsafeFrequencies))
	for _, f := range payload.UnsafeFrequencies {
		unsafe[f] = true
	}
	if err := s.session.NotifyUnsafeChannels(unsafe); err != nil {
		s.writeSessionError(w, err)
		return
	}
	WriteSuccess(w, nil)
}

func (s *Server) handleStation(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		FrequencyMHz int `json:"frequencyMhz"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", err.Error())
		return
	}
	if err := s.session.NotifyStationFrequency(payload.FrequencyMHz); err != nil {
		s.writeSessionError(w, err)
		return
	}
	WriteSuccess(w, nil)
}

func (s *Server) handlePlugged(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Plugged bool `json:"plugged"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", err.Error())
		return
	}
	if err := s.session.NotifyPluggedState(payload.Plugged); err != nil {
		s.writeSessionError(w, err)
		return
	}
	WriteSuccess(w, nil)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, ok := s.session.Status()
	if !ok {
		WriteSuccess(w, softap.Status{State: ap.StateDisabled, Clients: []ap.Client{}, Instances: []ap.InstanceInfo{}})
		return
	}
	WriteSuccess(w, status)
}

func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	if err := s.hub.Subscribe(r.Context(), w, r); err != nil {
		s.log.Warn("telemetry subscription ended with error", zap.Error(err))
	}
}

func (s *Server) writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotRunning):
		WriteError(w, http.StatusConflict, "NOT_RUNNING", err.Error(), nil)
	case errors.Is(err, softap.ErrTerminated):
		WriteError(w, http.StatusConflict, "NOT_RUNNING", "access point already stopped", nil)
	default:
		WriteError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
	}
}

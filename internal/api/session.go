package api

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radio-control/sapd/internal/ap"
	"github.com/radio-control/sapd/internal/audit"
	"github.com/radio-control/sapd/internal/config"
	"github.com/radio-control/sapd/internal/hal"
	"github.com/radio-control/sapd/internal/softap"
	"github.com/radio-control/sapd/internal/telemetry"
)

var (
	ErrAlreadyRunning = errors.New("access point already running")
	ErrNotRunning     = errors.New("no access point running")
)

// Session owns the lifecycle machines: one softap.Manager per start/stop
// cycle, rebuilt fresh for every start. Owner callbacks are fanned out to
// telemetry and the audit log.
type Session struct {
	driver     hal.Driver
	timing     config.Timing
	errorTable string
	hub        *telemetry.Hub
	audit      *audit.Logger
	clock      softap.Clock
	log        *zap.Logger

	mu      sync.Mutex
	current *softap.Manager
}

// NewSession wires the session. clock may be nil for the system clock.
func NewSession(driver hal.Driver, cfg *config.Config, hub *telemetry.Hub, auditLog *audit.Logger, clock softap.Clock, log *zap.Logger) *Session {
	return &Session{
		driver:     driver,
		timing:     cfg.Timing,
		errorTable: cfg.Driver.ErrorTable,
		hub:        hub,
		audit:      auditLog,
		clock:      clock,
		log:        log.Named("session"),
	}
}

// Start constructs a fresh machine and requests bring-up. Only one machine
// may be live at a time.
func (s *Session) Start(cfg ap.Configuration, capability ap.Capability, requestor string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.liveLocked() {
		return "", ErrAlreadyRunning
	}
	id := uuid.NewString()
	m := softap.NewManager(id, s.driver, &sessionCallbacks{session: s, requestor: requestor}, s.timing, s.errorTable, s.clock, s.log)
	if err := m.Start(cfg, capability, requestor); err != nil {
		return "", err
	}
	s.current = m
	s.audit.Record(requestor, "", "start", map[string]interface{}{
		"ssid":    cfg.SSID,
		"bridged": cfg.Bridged(),
	}, "ACCEPTED", "")
	return id, nil
}

func (s *Session) liveLocked() bool {
	if s.current == nil {
		return false
	}
	select {
	case <-s.current.Done():
		return false
	default:
		return true
	}
}

func (s *Session) live() (*softap.Manager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.liveLocked() {
		return nil, ErrNotRunning
	}
	return s.current, nil
}

// Stop tears down the live machine.
func (s *Session) Stop(requestor string) error {
	m, err := s.live()
	if err != nil {
		return err
	}
	if err := m.Stop(); err != nil {
		return err
	}
	s.audit.Record(requestor, "", "stop", nil, "ACCEPTED", "")
	return nil
}

// UpdateCapability forwards a capability snapshot to the live machine.
func (s *Session) UpdateCapability(capability ap.Capability) error {
	m, err := s.live()
	if err != nil {
		return err
	}
	return m.UpdateCapability(capability)
}

// UpdateConfiguration forwards a configuration update to the live machine.
func (s *Session) UpdateConfiguration(cfg ap.Configuration) error {
	m, err := s.live()
	if err != nil {
		return err
	}
	return m.UpdateConfiguration(cfg)
}

// UpdateCountryCode forwards a country change to the live machine.
func (s *Session) UpdateCountryCode(code string) error {
	m, err := s.live()
	if err != nil {
		return err
	}
	return m.UpdateCountryCode(code)
}

// NotifyUnsafeChannels forwards a coexistence restriction change.
func (s *Session) NotifyUnsafeChannels(unsafe map[int]bool) error {
	m, err := s.live()
	if err != nil {
		return err
	}
	return m.NotifyUnsafeChannels(unsafe)
}

// NotifyStationFrequency forwards the station-mode frequency.
func (s *Session) NotifyStationFrequency(freqMHz int) error {
	m, err := s.live()
	if err != nil {
		return err
	}
	return m.NotifyStationFrequency(freqMHz)
}

// NotifyPluggedState forwards the external power state.
func (s *Session) NotifyPluggedState(plugged bool) error {
	m, err := s.live()
	if err != nil {
		return err
	}
	return m.NotifyPluggedState(plugged)
}

// Status returns the latest machine snapshot, alive or terminated.
func (s *Session) Status() (softap.Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return softap.Status{}, false
	}
	return s.current.Status(), true
}

// sessionCallbacks bridges machine callbacks onto telemetry and audit.
type sessionCallbacks struct {
	session   *Session
	requestor string
}

func (c *sessionCallbacks) StateChanged(state ap.State, reason ap.FailureReason) {
	c.session.hub.Publish(telemetry.TypeStateChanged, map[string]interface{}{
		"state":  state.String(),
		"reason": reason.String(),
	})
}

func (c *sessionCallbacks) ConnectedClientsChanged(clients []ap.Client, infos []ap.InstanceInfo) {
	c.session.hub.Publish(telemetry.TypeClientsChanged, map[string]interface{}{
		"clients":   clients,
		"instances": infos,
	})
}

func (c *sessionCallbacks) BlockedClientConnecting(client ap.Client, reason ap.DisconnectReason) {
	c.session.hub.Publish(telemetry.TypeBlockedClient, map[string]interface{}{
		"mac":    string(client.MAC),
		"reason": reason.String(),
	})
}

func (c *sessionCallbacks) Started(id string) {
	c.session.hub.Publish(telemetry.TypeStarted, map[string]interface{}{"id": id})
	c.session.audit.Record(c.requestor, "", "started", nil, "SUCCESS", "")
}

func (c *sessionCallbacks) Stopped(id string, event ap.StopEvent) {
	c.session.hub.Publish(telemetry.TypeStopped, map[string]interface{}{
		"id":    id,
		"event": event.String(),
	})
	c.session.audit.Record(c.requestor, "", "stopped", nil, "SUCCESS", event.String())
}

func (c *sessionCallbacks) StartFailed(id string, result ap.StartResult) {
	c.session.hub.Publish(telemetry.TypeStartFailure, map[string]interface{}{
		"id":     id,
		"result": result.String(),
	})
	c.session.audit.Record(c.requestor, "", "start", nil, "FAILED", result.String())
}

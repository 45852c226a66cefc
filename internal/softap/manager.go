// Package softap implements the lifecycle state machine for a radio in
// access-point mode. One Manager governs one start/stop cycle: it is
// constructed, started once, and torn down entirely on stop or failure;
// the owner builds a fresh Manager for the next cycle.
//
// Every external input is serialized onto a single command queue and
// processed to completion by one goroutine. Driver callbacks and timer
// firings enqueue; nothing mutates state outside the loop.
package softap

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/radio-control/sapd/internal/ap"
	"github.com/radio-control/sapd/internal/config"
	"github.com/radio-control/sapd/internal/hal"
)

// Callbacks is the owner-facing notification contract. Methods are called
// from the state machine goroutine and must not block; each fires exactly
// once per transition it describes.
type Callbacks interface {
	StateChanged(state ap.State, reason ap.FailureReason)
	ConnectedClientsChanged(clients []ap.Client, infos []ap.InstanceInfo)
	BlockedClientConnecting(client ap.Client, reason ap.DisconnectReason)
	Started(id string)
	Stopped(id string, event ap.StopEvent)
	StartFailed(id string, result ap.StartResult)
}

// pendingDisconnect tracks a forced disconnect awaiting confirmation by a
// disassociation event.
type pendingDisconnect struct {
	reason   ap.DisconnectReason
	instance string
}

type phase int

const (
	phaseIdle phase = iota
	phaseWaitingCountry
	phaseStarted
	phaseTerminated
)

// Status is a point-in-time snapshot for the owner's status surface.
type Status struct {
	ID          string            `json:"id"`
	State       ap.State          `json:"state"`
	Interface   string            `json:"interface,omitempty"`
	StartedAt   time.Time         `json:"startedAt,omitempty"`
	Clients     []ap.Client       `json:"clients"`
	Instances   []ap.InstanceInfo `json:"instances"`
	CountryCode string            `json:"countryCode,omitempty"`
	StopEvent   ap.StopEvent      `json:"stopEvent,omitempty"`
	StartResult ap.StartResult    `json:"startResult"`
}

// Manager is the lifecycle state machine. All exported methods are safe
// for concurrent use; they enqueue and return.
type Manager struct {
	id         string
	driver     hal.Driver
	owner      Callbacks
	timing     config.Timing
	errorTable string
	clock      Clock
	log        *zap.Logger

	queue chan command
	done  chan struct{}

	// Loop-owned state. Nothing below is touched outside run().
	phase       phase
	desired     ap.Configuration
	active      ap.Configuration
	capability  ap.Capability
	unsafe      map[int]bool
	requestor   string
	iface       string
	startedAt   time.Time
	lastState   ap.State
	startResult ap.StartResult
	stopEvent   ap.StopEvent

	deferred      []command
	countryTarget string
	countryTimer  Timer

	infos      map[string]ap.InstanceInfo
	byInstance map[string]map[ap.MAC]bool
	clients    map[ap.MAC]ap.Client
	admitOrder []ap.MAC
	pending    map[ap.MAC]pendingDisconnect
	retryTimer Timer

	timers      *timerSet
	plugged     bool
	stationFreq int

	statusMu sync.Mutex
	status   Status
}

// NewManager builds a machine in its idle state and starts its command
// loop. id attributes the machine in callbacks and logs; errorTable picks
// the driver family for error normalization, "" meaning generic.
func NewManager(id string, driver hal.Driver, owner Callbacks, timing config.Timing, errorTable string, clock Clock, log *zap.Logger) *Manager {
	if clock == nil {
		clock = SystemClock{}
	}
	if errorTable == "" {
		errorTable = "generic"
	}
	m := &Manager{
		id:         id,
		driver:     driver,
		owner:      owner,
		timing:     timing,
		errorTable: errorTable,
		clock:      clock,
		log:        log.Named("softap").With(zap.String("id", id)),
		queue:      make(chan command, timing.CommandQueueSize),
		done:       make(chan struct{}),
		lastState:  ap.StateDisabled,
		infos:      make(map[string]ap.InstanceInfo),
		byInstance: make(map[string]map[ap.MAC]bool),
		clients:    make(map[ap.MAC]ap.Client),
		pending:    make(map[ap.MAC]pendingDisconnect),
	}
	m.timers = newTimerSet(m)
	m.status = Status{ID: id, State: ap.StateDisabled}
	go m.run()
	return m
}

// ID returns the attribution identifier the machine was built with.
func (m *Manager) ID() string { return m.id }

// Done is closed when the machine has reached its terminal state.
func (m *Manager) Done() <-chan struct{} { return m.done }

var ErrTerminated = errors.New("softap: manager terminated")

// submit enqueues a command unless the machine already terminated.
func (m *Manager) submit(c command) error {
	select {
	case <-m.done:
		return ErrTerminated
	default:
	}
	select {
	case m.queue <- c:
		return nil
	case <-m.done:
		return ErrTerminated
	}
}

// Start requests bring-up. Valid once, from idle.
func (m *Manager) Start(cfg ap.Configuration, capability ap.Capability, requestor string) error {
	return m.submit(startCmd{cfg: cfg.Clone(), capability: capability.Clone(), requestor: requestor})
}

// Stop tears the machine down from any state.
func (m *Manager) Stop() error { return m.submit(stopCmd{}) }

// UpdateCapability replaces the capability snapshot.
func (m *Manager) UpdateCapability(capability ap.Capability) error {
	return m.submit(updateCapabilityCmd{capability: capability.Clone()})
}

// UpdateConfiguration applies a new desired configuration. Changes that
// would require a restart are rejected silently; the owner must stop and
// start for those.
func (m *Manager) UpdateConfiguration(cfg ap.Configuration) error {
	return m.submit(updateConfigCmd{cfg: cfg.Clone()})
}

// UpdateCountryCode asks the driver to move to a new regulatory domain
// while running.
func (m *Manager) UpdateCountryCode(code string) error {
	return m.submit(updateCountryCmd{code: code})
}

// NotifyCountryCodeChanged delivers a driver country-code confirmation.
func (m *Manager) NotifyCountryCodeChanged(code string) error {
	return m.submit(countryChangedCmd{code: code})
}

// NotifyUnsafeChannels delivers a coexistence restriction change. Keys
// are frequencies in MHz.
func (m *Manager) NotifyUnsafeChannels(unsafe map[int]bool) error {
	cp := make(map[int]bool, len(unsafe))
	for k, v := range unsafe {
		cp[k] = v
	}
	return m.submit(unsafeChannelsCmd{unsafe: cp})
}

// NotifyStationFrequency reports the frequency of an active station-mode
// link on the shared hardware; zero clears it.
func (m *Manager) NotifyStationFrequency(freqMHz int) error {
	return m.submit(stationFrequencyCmd{frequencyMHz: freqMHz})
}

// NotifyPluggedState reports external power, which exempts bridged idle
// timers when configured to.
func (m *Manager) NotifyPluggedState(plugged bool) error {
	return m.submit(pluggedCmd{plugged: plugged})
}

// Status returns the latest snapshot. Usable after termination.
func (m *Manager) Status() Status {
	m.statusMu.Lock()
	defer m.statusMu.Unlock()
	return m.status
}

// barrier blocks until every command enqueued before it was processed.
func (m *Manager) barrier() {
	ch := make(chan struct{})
	if err := m.submit(barrierCmd{done: ch}); err != nil {
		return
	}
	select {
	case <-ch:
	case <-m.done:
	}
}

// hal.EventSink implementation: driver callbacks cross into the queue.

func (m *Manager) OnInterfaceStateChanged(iface string, state hal.InterfaceState) {
	_ = m.submit(interfaceStatusCmd{iface: iface, state: state})
}

func (m *Manager) OnInterfaceDestroyed(iface string) {
	_ = m.submit(interfaceDestroyedCmd{iface: iface})
}

func (m *Manager) OnFailure(iface, instance string) {
	_ = m.submit(failureCmd{iface: iface, instance: instance})
}

func (m *Manager) OnConnectedClientsChanged(iface, instance string, clients []ap.Client) {
	cp := make([]ap.Client, len(clients))
	copy(cp, clients)
	_ = m.submit(clientsChangedCmd{instance: instance, clients: cp})
}

func (m *Manager) OnInfoChanged(iface string, info ap.InstanceInfo) {
	_ = m.submit(infoChangedCmd{info: info})
}

func (m *Manager) run() {
	for {
		c := <-m.queue
		m.handle(c)
		m.publishStatus()
		if m.phase == phaseTerminated {
			m.drainBarriers()
			return
		}
	}
}

// drainBarriers releases barriers that were queued behind the terminating
// command so callers do not hang.
func (m *Manager) drainBarriers() {
	for {
		select {
		case c := <-m.queue:
			if b, ok := c.(barrierCmd); ok {
				close(b.done)
			}
		default:
			return
		}
	}
}

func (m *Manager) handle(c command) {
	if m.phase == phaseWaitingCountry {
		switch c.(type) {
		case stopCmd, countryChangedCmd, countryWaitTimeoutCmd, barrierCmd:
		default:
			// Everything else waits for the country negotiation to
			// resolve and replays in arrival order.
			m.deferred = append(m.deferred, c)
			return
		}
	}

	switch cmd := c.(type) {
	case startCmd:
		m.handleStart(cmd)
	case stopCmd:
		m.stopWith(ap.StopEventStopped)
	case updateCapabilityCmd:
		m.handleUpdateCapability(cmd.capability)
	case updateConfigCmd:
		m.handleUpdateConfiguration(cmd.cfg)
	case updateCountryCmd:
		m.handleUpdateCountry(cmd.code)
	case countryChangedCmd:
		m.handleCountryChanged(cmd.code)
	case countryWaitTimeoutCmd:
		m.handleCountryTimeout()
	case interfaceStatusCmd:
		m.handleInterfaceStatus(cmd)
	case interfaceDestroyedCmd:
		if m.phase == phaseStarted && cmd.iface == m.iface {
			m.stopWith(ap.StopEventInterfaceDestroyed)
		}
	case failureCmd:
		m.handleFailure(cmd)
	case clientsChangedCmd:
		m.handleClientsChanged(cmd)
	case infoChangedCmd:
		m.handleInfoChanged(cmd.info)
	case unsafeChannelsCmd:
		m.handleUnsafeChannels(cmd.unsafe)
	case stationFrequencyCmd:
		m.handleStationFrequency(cmd.frequencyMHz)
	case pluggedCmd:
		m.handlePlugged(cmd.plugged)
	case wholeTimeoutCmd:
		m.handleWholeTimeout()
	case instanceTimeoutCmd:
		m.handleInstanceTimeout(cmd.instance)
	case retryPendingCmd:
		m.retryPendingDisconnects()
	case barrierCmd:
		close(cmd.done)
	}
}

func (m *Manager) handleStart(cmd startCmd) {
	if m.phase != phaseIdle {
		m.log.Warn("start ignored outside idle phase")
		return
	}
	m.desired = cmd.cfg
	m.capability = cmd.capability
	m.requestor = cmd.requestor

	if err := cmd.cfg.Validate(); err != nil {
		m.log.Error("configuration rejected", zap.Error(err))
		if errors.Is(err, ap.ErrSecurityBandConflict) {
			m.failStart(ap.StartResultFailureUnsupportedConfig)
		} else {
			m.failStart(ap.StartResultFailureGeneral)
		}
		return
	}

	resolved, err := ap.Resolve(ap.ResolveInput{
		Desired:                 cmd.cfg,
		Capability:              m.capability,
		Unsafe:                  m.unsafe,
		WorldMode:               m.targetCountry() == m.timing.WorldModeCountryCode,
		BridgedCreatable:        m.driver.CanCreateInterface(cmd.cfg.Bridged(), cmd.requestor),
		DowngradeForConcurrency: m.driver.ShouldDowngradeForConcurrency(cmd.requestor),
		StationFrequency:        m.stationFreq,
	})
	if err != nil {
		m.log.Error("channel plan resolution failed", zap.Error(err))
		switch {
		case errors.Is(err, ap.ErrNoUsableChannel):
			m.failStart(ap.StartResultFailureNoChannel)
		case errors.Is(err, ap.ErrUnsupportedConfiguration):
			m.failStart(ap.StartResultFailureUnsupportedConfig)
		default:
			m.failStart(ap.StartResultFailureGeneral)
		}
		return
	}
	m.active = resolved

	if !m.driver.CanCreateInterface(resolved.Bridged(), cmd.requestor) {
		m.failStart(ap.StartResultFailureInterfaceConflict)
		return
	}

	m.setState(ap.StateEnabling, ap.FailureNone)

	ctx := context.Background()
	iface, err := m.driver.CreateInterface(ctx, hal.InterfaceRequest{
		Bands:      resolved.Bands,
		Bridged:    resolved.Bridged(),
		Requestor:  cmd.requestor,
		VendorData: resolved.VendorData,
	})
	if err != nil {
		m.log.Error("interface creation failed", zap.Error(err))
		m.failStart(ap.StartResultFailureCreateInterface)
		return
	}
	m.iface = iface

	if err := m.driver.RegisterEventSink(iface, m); err != nil {
		m.log.Error("event sink registration failed", zap.Error(err))
		m.failStart(ap.StartResultFailureRegisterCallback)
		return
	}

	if result := m.programMAC(ctx); result != ap.StartResultSuccess {
		m.failStart(result)
		return
	}

	target := m.targetCountry()
	if target != "" && target != m.capability.CountryCode {
		if err := m.driver.SetCountryCode(ctx, iface, target); err != nil {
			if m.active.BandUnion().RequiresCountryCode() {
				m.log.Error("country code set failed", zap.String("code", target), zap.Error(err))
				m.failStart(ap.StartResultFailureSetCountryCode)
				return
			}
			m.log.Warn("country code set failed on 2.4GHz-only plan, continuing",
				zap.String("code", target), zap.Error(err))
		} else {
			// Suspend until the driver confirms or the wait times out;
			// everything else queues behind us.
			m.phase = phaseWaitingCountry
			m.countryTarget = target
			m.countryTimer = m.clock.AfterFunc(m.timing.CountryCodeChangeTimeout, func() {
				_ = m.submit(countryWaitTimeoutCmd{})
			})
			m.log.Info("waiting for country code confirmation", zap.String("code", target))
			return
		}
	}

	m.finishStart()
}

// programMAC pins or resets the hardware address. A reset failure is soft;
// failing to honor an explicit BSSID is fatal.
func (m *Manager) programMAC(ctx context.Context) ap.StartResult {
	if m.active.BSSID == "" {
		if err := m.driver.ResetFactoryMAC(ctx, m.iface); err != nil {
			m.log.Warn("factory mac reset failed, keeping current address", zap.Error(err))
		}
		return ap.StartResultSuccess
	}
	if !m.driver.MACSettingSupported() {
		m.log.Error("explicit bssid requested but driver cannot set addresses")
		return ap.StartResultFailureUnsupportedConfig
	}
	if err := m.driver.SetMACAddress(ctx, m.iface, m.active.BSSID); err != nil {
		m.log.Error("bssid set failed", zap.String("bssid", string(m.active.BSSID)), zap.Error(err))
		return ap.StartResultFailureSetMACAddress
	}
	return ap.StartResultSuccess
}

func (m *Manager) targetCountry() string {
	if m.desired.CountryCode != "" {
		return m.desired.CountryCode
	}
	return m.capability.CountryCode
}

func (m *Manager) handleCountryChanged(code string) {
	if m.phase == phaseWaitingCountry {
		if code != m.countryTarget {
			m.log.Debug("ignoring country confirmation for different code", zap.String("code", code))
			return
		}
		m.capability.CountryCode = code
		m.resumeStart()
		return
	}
	m.capability.CountryCode = code
}

func (m *Manager) handleCountryTimeout() {
	if m.phase != phaseWaitingCountry {
		return
	}
	// Proceed with the requested code anyway; waiting longer buys nothing.
	m.log.Warn("country code confirmation timed out, proceeding",
		zap.String("code", m.countryTarget))
	m.capability.CountryCode = m.countryTarget
	m.resumeStart()
}

func (m *Manager) resumeStart() {
	if m.countryTimer != nil {
		m.countryTimer.Stop()
		m.countryTimer = nil
	}
	m.countryTarget = ""
	m.phase = phaseIdle
	m.finishStart()
	m.replayDeferred()
}

func (m *Manager) replayDeferred() {
	pending := m.deferred
	m.deferred = nil
	for _, c := range pending {
		if m.phase == phaseTerminated {
			return
		}
		m.handle(c)
	}
}

func (m *Manager) finishStart() {
	if err := m.driver.StartAccessPoint(context.Background(), m.iface, m.active); err != nil {
		m.log.Error("driver start failed", zap.Error(err))
		norm := hal.NormalizeWithDriver(err, nil, m.errorTable)
		switch {
		case errors.Is(norm, hal.ErrNoChannel):
			m.failStart(ap.StartResultFailureNoChannel)
		case errors.Is(norm, hal.ErrUnsupported):
			m.failStart(ap.StartResultFailureUnsupportedConfig)
		case errors.Is(norm, hal.ErrUnavailable):
			m.failStart(ap.StartResultFailureBringUpHardware)
		default:
			m.failStart(ap.StartResultFailureStartDriver)
		}
		return
	}

	m.phase = phaseStarted
	m.startedAt = m.clock.Now()
	m.startResult = ap.StartResultSuccess
	m.setState(ap.StateEnabled, ap.FailureNone)
	m.owner.Started(m.id)
	m.timers.rescheduleAll()
	m.log.Info("access point started",
		zap.String("iface", m.iface), zap.String("ssid", m.active.SSID),
		zap.Bool("bridged", m.active.Bridged()))
}

// failStart reports the result, releases any partial interface and
// terminates the machine. Exactly one result is reported per attempt.
func (m *Manager) failStart(result ap.StartResult) {
	m.startResult = result
	m.setState(ap.StateFailed, ap.FailureReasonFor(result))
	if m.iface != "" {
		m.driver.TeardownInterface(m.iface)
	}
	m.owner.StartFailed(m.id, result)
	m.setState(ap.StateDisabled, ap.FailureNone)
	m.terminate()
}

// stopWith runs the common teardown path and terminates the machine.
func (m *Manager) stopWith(event ap.StopEvent) {
	if m.phase == phaseTerminated {
		return
	}
	if m.countryTimer != nil {
		m.countryTimer.Stop()
		m.countryTimer = nil
	}

	wasUp := m.phase == phaseStarted
	if wasUp {
		m.setState(ap.StateDisabling, ap.FailureNone)
	}

	ctx := context.Background()
	for mac := range m.clients {
		if err := m.driver.ForceClientDisconnect(ctx, m.iface, mac, ap.DisconnectUnspecified); err != nil {
			m.log.Warn("disconnect on stop failed", zap.String("mac", string(mac)), zap.Error(err))
		}
	}
	m.clients = make(map[ap.MAC]ap.Client)
	m.admitOrder = nil
	m.pending = make(map[ap.MAC]pendingDisconnect)
	m.byInstance = make(map[string]map[ap.MAC]bool)
	m.infos = make(map[string]ap.InstanceInfo)

	if m.iface != "" && event != ap.StopEventInterfaceDestroyed {
		m.driver.TeardownInterface(m.iface)
	}

	m.stopEvent = event
	m.owner.Stopped(m.id, event)
	m.setState(ap.StateDisabled, ap.FailureNone)
	m.log.Info("access point stopped", zap.Stringer("event", event))
	m.terminate()
}

func (m *Manager) terminate() {
	m.timers.cancelAll()
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
	m.phase = phaseTerminated
	m.publishStatus()
	close(m.done)
}

func (m *Manager) handleUpdateCapability(capability ap.Capability) {
	m.capability = capability
	if m.phase != phaseStarted {
		return
	}
	// Policy violators go before anyone is evicted for capacity.
	m.enforcePolicy()
	m.enforceCapacity()
	m.timers.rescheduleAll()
}

func (m *Manager) handleUpdateConfiguration(cfg ap.Configuration) {
	if ap.RestartRequired(m.desired, cfg) {
		// The owner has to stop/start for identity changes; nothing is
		// applied in place.
		m.log.Info("configuration update requires restart, ignored")
		return
	}
	m.active = ap.ApplyRuntime(m.active, cfg)
	m.desired = ap.ApplyRuntime(m.desired, cfg)
	if m.phase != phaseStarted {
		return
	}
	m.enforcePolicy()
	m.enforceCapacity()
	m.timers.rescheduleAll()
}

func (m *Manager) handleUpdateCountry(code string) {
	if m.phase != phaseStarted || code == "" || code == m.capability.CountryCode {
		return
	}
	if !m.capability.Supports(ap.FeatureACSOffload) {
		m.log.Info("live country change not supported without acs offload", zap.String("code", code))
		return
	}
	if err := m.driver.SetCountryCode(context.Background(), m.iface, code); err != nil {
		m.log.Error("live country change failed", zap.String("code", code), zap.Error(err))
		return
	}
	m.capability.CountryCode = code
}

func (m *Manager) handleInterfaceStatus(cmd interfaceStatusCmd) {
	if m.phase != phaseStarted || cmd.iface != m.iface {
		return
	}
	if cmd.state == hal.InterfaceDown {
		m.stopWith(ap.StopEventInterfaceDown)
	}
}

// handleFailure removes a single failed bridged leg when a sibling is
// still serving; anything else is a full hardware failure stop.
func (m *Manager) handleFailure(cmd failureCmd) {
	if m.phase != phaseStarted || cmd.iface != m.iface {
		return
	}
	if cmd.instance != "" && len(m.driver.BridgedInstances(m.iface)) > 1 {
		m.log.Warn("bridged instance failed, removing leg", zap.String("instance", cmd.instance))
		m.removeInstance(cmd.instance)
		return
	}
	m.stopWith(ap.StopEventHostapdFailure)
}

func (m *Manager) removeInstance(instance string) {
	if err := m.driver.RemoveBridgedInstance(context.Background(), m.iface, instance); err != nil {
		m.log.Error("instance removal failed", zap.String("instance", instance), zap.Error(err))
	}
	delete(m.infos, instance)
	for mac := range m.byInstance[instance] {
		m.dropClient(mac)
	}
	delete(m.byInstance, instance)
	for mac, pd := range m.pending {
		if pd.instance == instance {
			delete(m.pending, mac)
		}
	}
	m.timers.cancel(instance)
	m.timers.rescheduleAll()
	m.notifyClientsChanged()
}

func (m *Manager) handleClientsChanged(cmd clientsChangedCmd) {
	if m.phase != phaseStarted {
		return
	}

	reported := make(map[ap.MAC]bool, len(cmd.clients))
	for _, cl := range cmd.clients {
		reported[cl.MAC] = true
	}

	changed := false

	// Departures first: a disassociation confirms any pending forced
	// disconnect regardless of why it was issued.
	if prev := m.byInstance[cmd.instance]; prev != nil {
		for mac := range prev {
			if !reported[mac] {
				delete(prev, mac)
				if _, ok := m.clients[mac]; ok {
					m.dropClient(mac)
					changed = true
				}
			}
		}
	}
	for mac, pd := range m.pending {
		if pd.instance == cmd.instance && !reported[mac] {
			delete(m.pending, mac)
		}
	}

	for _, cl := range cmd.clients {
		cl.Instance = cmd.instance
		if prev, ok := m.clients[cl.MAC]; ok {
			// Roamed to a sibling leg: move its membership so a later
			// report from the old leg does not drop it.
			if prev.Instance != cmd.instance {
				delete(m.byInstance[prev.Instance], cl.MAC)
				m.clients[cl.MAC] = cl
				if m.byInstance[cmd.instance] == nil {
					m.byInstance[cmd.instance] = make(map[ap.MAC]bool)
				}
				m.byInstance[cmd.instance][cl.MAC] = true
				changed = true
			}
			continue
		}
		if _, ok := m.pending[cl.MAC]; ok {
			continue // disconnect already in flight
		}
		decision := ap.Admit(cl, m.active, m.capability, len(m.clients))
		if decision.Allowed {
			m.clients[cl.MAC] = cl
			m.admitOrder = append(m.admitOrder, cl.MAC)
			if m.byInstance[cmd.instance] == nil {
				m.byInstance[cmd.instance] = make(map[ap.MAC]bool)
			}
			m.byInstance[cmd.instance][cl.MAC] = true
			changed = true
			continue
		}
		m.owner.BlockedClientConnecting(cl, decision.Reason)
		m.forceDisconnect(cl.MAC, cmd.instance, decision.Reason)
	}

	if changed {
		m.notifyClientsChanged()
	}
	m.timers.rescheduleAll()
}

func (m *Manager) handleInfoChanged(info ap.InstanceInfo) {
	if m.phase != phaseStarted {
		return
	}
	info.AutoShutdownTimeoutMillis = m.timers.effectiveTimeoutMillis()
	m.infos[info.Instance] = info
	if m.byInstance[info.Instance] == nil {
		m.byInstance[info.Instance] = make(map[ap.MAC]bool)
	}
	m.notifyClientsChanged()
	m.timers.rescheduleAll()
}

// handleUnsafeChannels reacts to a coexistence change: in bridged mode the
// leg sitting on a now-unsafe frequency is removed while a sibling remains.
// When several legs are unsafe at once the higher band goes first.
func (m *Manager) handleUnsafeChannels(unsafe map[int]bool) {
	m.unsafe = unsafe
	if m.phase != phaseStarted || len(m.infos) < 2 {
		return
	}
	hit := make(map[string]ap.InstanceInfo)
	for instance, info := range m.infos {
		if info.Frequency > 0 && unsafe[info.Frequency] {
			hit[instance] = info
		}
	}
	if victim := ap.HighestFrequencyInstance(hit); victim != "" {
		m.log.Warn("instance frequency became unsafe, removing leg",
			zap.String("instance", victim), zap.Int("freqMHz", hit[victim].Frequency))
		m.removeInstance(victim)
	}
}

// handleStationFrequency downgrades a bridged AP when a station-mode link
// lands on a frequency the AP cannot coexist with.
func (m *Manager) handleStationFrequency(freqMHz int) {
	m.stationFreq = freqMHz
	if m.phase != phaseStarted || freqMHz == 0 || len(m.infos) < 2 {
		return
	}
	safe := ap.SafeChannelFrequencies(m.active.BandUnion(), m.capability, m.unsafe)
	if safe[freqMHz] {
		return
	}
	band := ap.FrequencyToBand(freqMHz)
	for instance, info := range m.infos {
		if ap.FrequencyToBand(info.Frequency) == band {
			m.removeInstance(instance)
			return
		}
	}
	if victim := ap.HighestFrequencyInstance(m.infos); victim != "" {
		m.removeInstance(victim)
	}
}

func (m *Manager) handlePlugged(plugged bool) {
	m.plugged = plugged
	if m.phase == phaseStarted {
		m.timers.rescheduleAll()
	}
}

func (m *Manager) handleWholeTimeout() {
	if m.phase != phaseStarted {
		return
	}
	if len(m.clients) > 0 || !m.active.AutoShutdownEnabled {
		return
	}
	m.log.Info("idle timeout, shutting down")
	m.stopWith(ap.StopEventNoUsageTimeout)
}

func (m *Manager) handleInstanceTimeout(instance string) {
	if m.phase != phaseStarted {
		return
	}
	if len(m.byInstance[instance]) > 0 {
		return
	}
	// Never remove the last leg from here; the whole-radio timer owns
	// full shutdown.
	if len(m.infos) < 2 {
		return
	}
	m.log.Info("idle bridged instance timeout, removing leg", zap.String("instance", instance))
	m.removeInstance(instance)
}

// enforcePolicy disconnects connected clients that the current lists no
// longer admit.
func (m *Manager) enforcePolicy() {
	var evict []ap.MAC
	for mac, cl := range m.clients {
		d := ap.Admit(cl, m.active, m.capability, 0)
		if !d.Allowed {
			evict = append(evict, mac)
		}
	}
	for _, mac := range evict {
		m.forceDisconnect(mac, m.clients[mac].Instance, ap.DisconnectBlockedByUser)
		m.dropClient(mac)
	}
	if len(evict) > 0 {
		m.notifyClientsChanged()
	}
}

// enforceCapacity evicts the minimum number of clients to fit the current
// limit, most recently admitted first.
func (m *Manager) enforceCapacity() {
	limit := ap.EffectiveMaxClients(m.active, m.capability)
	if limit <= 0 || !m.capability.Supports(ap.FeatureClientForceDisconnect) {
		return
	}
	evicted := false
	for len(m.clients) > limit && len(m.admitOrder) > 0 {
		mac := m.admitOrder[len(m.admitOrder)-1]
		m.forceDisconnect(mac, m.clients[mac].Instance, ap.DisconnectNoMoreStations)
		m.dropClient(mac)
		evicted = true
	}
	if evicted {
		m.notifyClientsChanged()
	}
}

// forceDisconnect issues the hardware call and tracks the client as
// pending until a disassociation confirms it.
func (m *Manager) forceDisconnect(mac ap.MAC, instance string, reason ap.DisconnectReason) {
	m.pending[mac] = pendingDisconnect{reason: reason, instance: instance}
	if err := m.driver.ForceClientDisconnect(context.Background(), m.iface, mac, reason); err != nil {
		m.log.Warn("force disconnect failed, will retry",
			zap.String("mac", string(mac)), zap.Error(err))
	}
	m.armRetryTimer()
}

func (m *Manager) armRetryTimer() {
	if len(m.pending) == 0 || m.retryTimer != nil {
		return
	}
	m.retryTimer = m.clock.AfterFunc(m.timing.PendingDisconnectRetryInterval, func() {
		_ = m.submit(retryPendingCmd{})
	})
}

func (m *Manager) retryPendingDisconnects() {
	m.retryTimer = nil
	if m.phase != phaseStarted || len(m.pending) == 0 {
		return
	}
	ctx := context.Background()
	for mac, pd := range m.pending {
		if err := m.driver.ForceClientDisconnect(ctx, m.iface, mac, pd.reason); err != nil {
			m.log.Warn("force disconnect retry failed",
				zap.String("mac", string(mac)), zap.Error(err))
		}
	}
	m.armRetryTimer()
}

func (m *Manager) dropClient(mac ap.MAC) {
	delete(m.clients, mac)
	for i, c := range m.admitOrder {
		if c == mac {
			m.admitOrder = append(m.admitOrder[:i], m.admitOrder[i+1:]...)
			break
		}
	}
	for _, members := range m.byInstance {
		delete(members, mac)
	}
}

func (m *Manager) setState(s ap.State, reason ap.FailureReason) {
	if m.lastState == s {
		return
	}
	m.lastState = s
	m.owner.StateChanged(s, reason)
}

func (m *Manager) notifyClientsChanged() {
	m.owner.ConnectedClientsChanged(m.clientSnapshot(), m.infoSnapshot())
}

func (m *Manager) clientSnapshot() []ap.Client {
	out := make([]ap.Client, 0, len(m.clients))
	for _, mac := range m.admitOrder {
		if cl, ok := m.clients[mac]; ok {
			out = append(out, cl)
		}
	}
	return out
}

func (m *Manager) infoSnapshot() []ap.InstanceInfo {
	out := make([]ap.InstanceInfo, 0, len(m.infos))
	for _, info := range m.infos {
		out = append(out, info)
	}
	return out
}

func (m *Manager) publishStatus() {
	s := Status{
		ID:          m.id,
		State:       m.lastState,
		Interface:   m.iface,
		StartedAt:   m.startedAt,
		Clients:     m.clientSnapshot(),
		Instances:   m.infoSnapshot(),
		CountryCode: m.capability.CountryCode,
		StopEvent:   m.stopEvent,
		StartResult: m.startResult,
	}
	m.statusMu.Lock()
	m.status = s
	m.statusMu.Unlock()
}

package softap

import (
	"time"

	"go.uber.org/zap"

	"github.com/radio-control/sapd/internal/ap"
)

// timerSet owns the idle-shutdown timers: one for the whole radio and one
// per bridged instance. It is loop-owned state like everything else on the
// Manager; firings come back through the command queue.
type timerSet struct {
	m           *Manager
	whole       Timer
	perInstance map[string]instanceTimer
}

// instanceTimer remembers the duration it was armed with so an unchanged
// leg keeps its countdown across unrelated events.
type instanceTimer struct {
	timer Timer
	d     time.Duration
}

func newTimerSet(m *Manager) *timerSet {
	return &timerSet{m: m, perInstance: make(map[string]instanceTimer)}
}

func (t *timerSet) wholeTimeout() time.Duration {
	if t.m.active.ShutdownTimeout > 0 {
		return t.m.active.ShutdownTimeout
	}
	return t.m.timing.DefaultShutdownTimeout
}

func (t *timerSet) instanceTimeout() time.Duration {
	if t.m.active.BridgedIdleShutdownTimeout > 0 {
		return t.m.active.BridgedIdleShutdownTimeout
	}
	return t.m.timing.DefaultBridgedIdleTimeout
}

func (t *timerSet) effectiveTimeoutMillis() int64 {
	if !t.m.active.AutoShutdownEnabled {
		return 0
	}
	return t.wholeTimeout().Milliseconds()
}

// rescheduleAll reconciles every timer against current state. A timer keeps
// its deadline while its arming condition and duration inputs hold; it is
// re-armed only when those change, so unrelated events never reset an idle
// countdown.
func (t *timerSet) rescheduleAll() {
	m := t.m

	armWhole := m.active.AutoShutdownEnabled && len(m.clients) == 0
	if armWhole && t.whole == nil {
		d := t.wholeTimeout()
		t.whole = m.clock.AfterFunc(d, func() {
			_ = m.submit(wholeTimeoutCmd{})
		})
		m.log.Debug("armed whole-radio idle timer", zap.Duration("timeout", d))
	} else if !armWhole && t.whole != nil {
		t.whole.Stop()
		t.whole = nil
	}

	bridged := len(m.infos) >= 2 && m.active.BridgedIdleShutdownEnabled &&
		!(m.plugged && m.timing.DisableBridgedIdleWhenPlugged)

	for instance, it := range t.perInstance {
		_, alive := m.infos[instance]
		if !bridged || !alive || len(m.byInstance[instance]) > 0 {
			it.timer.Stop()
			delete(t.perInstance, instance)
		}
	}
	if !bridged {
		return
	}

	// The higher-frequency leg must fire first so a downgrade always
	// sheds the higher band; the lower-frequency leg gets a fixed offset.
	highest := ap.HighestFrequencyInstance(m.infos)
	base := t.instanceTimeout()
	for instance := range m.infos {
		if len(m.byInstance[instance]) > 0 {
			continue
		}
		d := base
		if instance != highest {
			d += m.timing.BridgedIdleStaggerOffset
		}
		if it, ok := t.perInstance[instance]; ok {
			if it.d == d {
				continue
			}
			it.timer.Stop()
		}
		inst := instance
		t.perInstance[instance] = instanceTimer{
			d: d,
			timer: m.clock.AfterFunc(d, func() {
				_ = m.submit(instanceTimeoutCmd{instance: inst})
			}),
		}
	}
}

func (t *timerSet) cancel(instance string) {
	if it, ok := t.perInstance[instance]; ok {
		it.timer.Stop()
		delete(t.perInstance, instance)
	}
}

func (t *timerSet) cancelAll() {
	if t.whole != nil {
		t.whole.Stop()
		t.whole = nil
	}
	for instance, it := range t.perInstance {
		it.timer.Stop()
		delete(t.perInstance, instance)
	}
}

package bus

import (
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// DriverInfo is a registry snapshot row for diagnostics and admin
// surfaces.
type DriverInfo struct {
	Name     string `json:"name"`
	Priority int    `json:"priority"`
	Enabled  bool   `json:"enabled"`
	State    string `json:"state"`
	Err      string `json:"err,omitempty"`
}

type driverEntry struct {
	priority int
	driver   Driver
	name     string
	enabled  bool
	seq      uint64
}

// Manager owns the driver registry and sequences the frame lifecycle.
// Higher priority values win selection; ties keep registration order.
//
// The Manager is confined to the render goroutine. Driver
// implementations may complete work on their own goroutines, but every
// Manager call happens from the loop that renders frames.
type Manager struct {
	// Waiter drives the busy-poll loops. Replace its clock or pump
	// before use to control waiting behavior.
	Waiter Waiter

	log       zerolog.Logger
	drivers   []*driverEntry
	exclusive string
	seq       uint64
	listeners []ChannelListener
}

// NewManager creates an empty registry logging through lg.
func NewManager(lg zerolog.Logger) *Manager {
	return &Manager{log: lg}
}

// AddDriver registers a driver under its own name. Nil drivers and
// drivers with empty names are rejected. Registering a name that
// already exists hot-swaps: the Manager first waits for all drivers to
// become READY so the old instance is not torn down mid-transmission.
// While an exclusive driver is set, non-matching registrations come up
// disabled.
func (m *Manager) AddDriver(priority int, d Driver) {
	if d == nil {
		m.log.Warn().Msg("add driver: nil driver")
		return
	}
	name := d.Name()
	if name == "" {
		m.log.Warn().Msg("add driver: empty driver name")
		return
	}

	replacing := false
	for _, e := range m.drivers {
		if e.name == name {
			replacing = true
			break
		}
	}
	if replacing {
		m.log.Warn().Str("driver", name).Msg("replacing existing driver")
		m.WaitForReady(DefaultWaitTimeout)
		for i, e := range m.drivers {
			if e.name == name {
				m.drivers = append(m.drivers[:i], m.drivers[i+1:]...)
				break
			}
		}
	}

	enabled := true
	if m.exclusive != "" {
		enabled = name == m.exclusive
	}

	m.seq++
	m.drivers = append(m.drivers, &driverEntry{
		priority: priority,
		driver:   d,
		name:     name,
		enabled:  enabled,
		seq:      m.seq,
	})
	m.sortByPriority()

	m.log.Debug().
		Str("driver", name).
		Int("priority", priority).
		Stringer("caps", d.Capabilities()).
		Bool("enabled", enabled).
		Msg("driver registered")
}

// RemoveDriver deletes the driver from the registry, matched by
// identity. Returns false when it was never registered.
func (m *Manager) RemoveDriver(d Driver) bool {
	if d == nil {
		m.log.Warn().Msg("remove driver: nil driver")
		return false
	}
	for i, e := range m.drivers {
		if e.driver == d {
			m.log.Debug().Str("driver", e.name).Msg("driver removed")
			m.drivers = append(m.drivers[:i], m.drivers[i+1:]...)
			return true
		}
	}
	m.log.Warn().Str("driver", d.Name()).Msg("remove driver: not in registry")
	return false
}

// ClearAllDrivers empties the registry, waiting for all drivers to
// become READY first so none is dropped mid-transmission.
func (m *Manager) ClearAllDrivers() {
	m.WaitForReady(DefaultWaitTimeout)
	m.log.Debug().Int("count", len(m.drivers)).Msg("clearing drivers")
	m.drivers = nil
}

// SetDriverEnabled toggles a driver without unregistering it. Disabled
// drivers never win selection but still report into the aggregate
// poll.
func (m *Manager) SetDriverEnabled(name string, enabled bool) {
	found := false
	for _, e := range m.drivers {
		if e.name == name {
			e.enabled = enabled
			found = true
			m.log.Debug().Str("driver", name).Bool("enabled", enabled).Msg("driver toggled")
		}
	}
	if !found {
		m.log.Error().Str("driver", name).Msg("set driver enabled: not in registry")
	}
}

// SetExclusiveDriver enables only the named driver and disables the
// rest. The name sticks: drivers registered later are auto-disabled
// unless they match. An empty name clears exclusive mode and disables
// every driver. Returns whether the named driver was found.
func (m *Manager) SetExclusiveDriver(name string) bool {
	if name == "" {
		m.log.Error().Msg("set exclusive driver: empty name, disabling all drivers")
		m.exclusive = ""
		for _, e := range m.drivers {
			e.enabled = false
		}
		return false
	}

	m.exclusive = name
	found := false
	for _, e := range m.drivers {
		e.enabled = e.name == name
		found = found || e.enabled
	}
	if !found {
		m.log.Error().Str("driver", name).Msg("set exclusive driver: not in registry")
	}
	return found
}

// SetDriverPriority reassigns a driver's priority and re-sorts the
// registry.
func (m *Manager) SetDriverPriority(name string, priority int) bool {
	if name == "" {
		m.log.Error().Msg("set driver priority: empty name")
		return false
	}
	for _, e := range m.drivers {
		if e.name == name {
			e.priority = priority
			m.sortByPriority()
			m.log.Debug().Str("driver", name).Int("priority", priority).Msg("driver priority changed")
			return true
		}
	}
	m.log.Error().Str("driver", name).Msg("set driver priority: not in registry")
	return false
}

// IsDriverEnabled reports the enabled flag for a registered driver,
// false when the name is unknown.
func (m *Manager) IsDriverEnabled(name string) bool {
	for _, e := range m.drivers {
		if e.name == name {
			return e.enabled
		}
	}
	m.log.Error().Str("driver", name).Msg("is driver enabled: not in registry")
	return false
}

// DriverCount returns the number of registered drivers.
func (m *Manager) DriverCount() int {
	return len(m.drivers)
}

// DriverInfos snapshots the registry in priority order, polling each
// driver for its current state.
func (m *Manager) DriverInfos() []DriverInfo {
	infos := make([]DriverInfo, 0, len(m.drivers))
	for _, e := range m.drivers {
		st := e.driver.Poll()
		infos = append(infos, DriverInfo{
			Name:     e.name,
			Priority: e.priority,
			Enabled:  e.enabled,
			State:    st.State.String(),
			Err:      st.Err,
		})
	}
	return infos
}

// DriverByName returns the enabled driver with the given name, nil if
// unknown or disabled.
func (m *Manager) DriverByName(name string) Driver {
	if name == "" {
		m.log.Error().Msg("driver by name: empty name")
		return nil
	}
	if d := m.lookupEnabled(name); d != nil {
		return d
	}
	m.log.Error().Str("driver", name).Msg("driver by name: not found or disabled")
	return nil
}

func (m *Manager) lookupEnabled(name string) Driver {
	for _, e := range m.drivers {
		if e.enabled && e.name == name {
			return e.driver
		}
	}
	return nil
}

// SelectDriverForChannel picks the transmit driver for the given
// buffer. With an affinity name the lookup is exact: the named driver
// must exist, be enabled and accept the data, otherwise selection
// fails rather than falling back. Without affinity, enabled drivers
// are scanned in priority order for the first that accepts.
func (m *Manager) SelectDriverForChannel(data *ChannelData, affinity string) Driver {
	if data == nil {
		m.log.Error().Msg("select driver: nil channel data")
		return nil
	}

	if affinity != "" {
		d := m.lookupEnabled(affinity)
		if d == nil {
			m.log.Error().Str("driver", affinity).Str("channel", data.Channel()).Msg("affinity driver not found or disabled")
			return nil
		}
		if !d.CanHandle(data) {
			m.log.Error().Str("driver", affinity).Str("channel", data.Channel()).Msg("affinity driver cannot handle channel")
			return nil
		}
		return d
	}

	for _, e := range m.drivers {
		if !e.enabled {
			continue
		}
		if e.driver.CanHandle(data) {
			return e.driver
		}
	}

	m.log.Error().Str("channel", data.Channel()).Msg("no compatible driver for channel")
	return nil
}

// Poll queries every registered driver, disabled ones included, and
// folds the results with precedence ERROR > BUSY > DRAINING > READY.
// The first non-empty error message in priority order is carried into
// the aggregate. With no drivers registered the aggregate is READY.
func (m *Manager) Poll() Status {
	anyBusy := false
	anyDraining := false
	firstErr := ""

	for _, e := range m.drivers {
		st := e.driver.Poll()
		switch st.State {
		case StateBusy:
			anyBusy = true
		case StateDraining:
			anyDraining = true
		case StateError:
			if firstErr == "" {
				firstErr = st.Err
			}
		}
	}

	if firstErr != "" {
		return Status{State: StateError, Err: firstErr}
	}
	if anyBusy {
		return Status{State: StateBusy}
	}
	if anyDraining {
		return Status{State: StateDraining}
	}
	return Status{State: StateReady}
}

// WaitForReady busy-polls until the aggregate state is READY.
func (m *Manager) WaitForReady(timeout time.Duration) bool {
	ok := m.Waiter.Wait(func() bool {
		return m.Poll().State == StateReady
	}, timeout)
	if !ok {
		m.log.Error().Dur("timeout", timeout).Msg("timed out waiting for READY")
	}
	return ok
}

// WaitForReadyOrDraining busy-polls until the aggregate state is READY
// or DRAINING.
func (m *Manager) WaitForReadyOrDraining(timeout time.Duration) bool {
	ok := m.Waiter.Wait(func() bool {
		s := m.Poll().State
		return s == StateReady || s == StateDraining
	}, timeout)
	if !ok {
		m.log.Error().Dur("timeout", timeout).Msg("timed out waiting for READY or DRAINING")
	}
	return ok
}

// OnBeginFrame blocks until the previous frame is fully off the wire.
func (m *Manager) OnBeginFrame() {
	m.WaitForReady(DefaultWaitTimeout)
}

// OnEndFrame triggers transmission on every enabled driver, in
// registration order, then waits until the aggregate state is READY or
// DRAINING so asynchronous hardware can finish on its own.
func (m *Manager) OnEndFrame() {
	for _, e := range m.byRegistration() {
		if e.enabled {
			e.driver.Show()
		}
	}
	m.WaitForReadyOrDraining(DefaultWaitTimeout)
}

// Reset waits for all drivers to settle. Called between test runs and
// on shutdown.
func (m *Manager) Reset() {
	m.WaitForReady(DefaultWaitTimeout)
	m.log.Debug().Msg("all drivers ready")
}

func (m *Manager) sortByPriority() {
	sort.SliceStable(m.drivers, func(i, j int) bool {
		return m.drivers[i].priority > m.drivers[j].priority
	})
}

func (m *Manager) byRegistration() []*driverEntry {
	out := make([]*driverEntry, len(m.drivers))
	copy(out, m.drivers)
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

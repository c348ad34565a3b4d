package bus

// ChannelListener observes channel lifecycle points. Telemetry hangs
// off these to count frames and drops without the bus knowing about
// it. Callbacks run synchronously on the render goroutine; keep them
// cheap.
type ChannelListener interface {
	OnChannelCreated(channel string)
	OnChannelConfigured(channel string)
	OnChannelEncoded(channel string, bytes int)
	OnChannelEnqueued(channel, driver string)
	OnChannelDropped(channel, reason string)
	OnChannelRemoved(channel string)
}

// AddChannelListener registers a lifecycle listener.
func (m *Manager) AddChannelListener(l ChannelListener) {
	if l == nil {
		return
	}
	m.listeners = append(m.listeners, l)
}

// RemoveChannelListener drops a previously registered listener.
func (m *Manager) RemoveChannelListener(l ChannelListener) {
	for i, have := range m.listeners {
		if have == l {
			m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
			return
		}
	}
}

func (m *Manager) notifyCreated(channel string) {
	for _, l := range m.listeners {
		l.OnChannelCreated(channel)
	}
}

func (m *Manager) notifyConfigured(channel string) {
	for _, l := range m.listeners {
		l.OnChannelConfigured(channel)
	}
}

func (m *Manager) notifyEncoded(channel string, bytes int) {
	for _, l := range m.listeners {
		l.OnChannelEncoded(channel, bytes)
	}
}

func (m *Manager) notifyEnqueued(channel, driver string) {
	for _, l := range m.listeners {
		l.OnChannelEnqueued(channel, driver)
	}
}

func (m *Manager) notifyDropped(channel, reason string) {
	for _, l := range m.listeners {
		l.OnChannelDropped(channel, reason)
	}
}

func (m *Manager) notifyRemoved(channel string) {
	for _, l := range m.listeners {
		l.OnChannelRemoved(channel)
	}
}

// Package engine owns the frame lifecycle: a fixed-rate render loop
// bracketed by begin/end callbacks. The bus manager hangs off these
// callbacks to fence frame N against frame N-1, telemetry hangs off
// them to snapshot per-frame state.
package engine

// FrameListener receives frame boundary callbacks. OnBeginFrame runs
// before the renderer touches any pixels, OnEndFrame after every
// channel published.
type FrameListener interface {
	OnBeginFrame()
	OnEndFrame()
}

// Events fans frame boundaries out to listeners in registration order.
// Listener order is load-bearing: the bus manager must run before
// observers that read its post-show state.
type Events struct {
	listeners []FrameListener
}

func (e *Events) AddListener(l FrameListener) {
	if l == nil {
		return
	}
	e.listeners = append(e.listeners, l)
}

func (e *Events) RemoveListener(l FrameListener) {
	for i, cur := range e.listeners {
		if cur == l {
			e.listeners = append(e.listeners[:i], e.listeners[i+1:]...)
			return
		}
	}
}

func (e *Events) BeginFrame() {
	for _, l := range e.listeners {
		l.OnBeginFrame()
	}
}

func (e *Events) EndFrame() {
	for _, l := range e.listeners {
		l.OnEndFrame()
	}
}

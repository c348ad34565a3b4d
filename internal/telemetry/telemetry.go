// Package telemetry exposes the bus over HTTP: a health endpoint, a
// per-frame driver state stream and a diagnostics stream. It observes
// the render loop through frame and channel listeners and never calls
// into the manager outside those callbacks, so manager confinement to
// the render goroutine holds.
package telemetry

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lumentide/ledbus/internal/bus"
	diag "github.com/lumentide/ledbus/internal/diagnostics"
)

const writeWait = 200 * time.Millisecond

type State struct {
	mu      sync.RWMutex
	log     zerolog.Logger
	mgr     *bus.Manager
	session string
	start   time.Time

	frameID   uint64
	aggregate bus.Status
	lastState bus.State
	drivers   []bus.DriverInfo
	publishes uint64
	drops     uint64
	channels  map[string]int

	clients     map[*websocket.Conn]bool
	diagClients map[*websocket.Conn]bool
}

func New(m *bus.Manager, lg zerolog.Logger) *State {
	return &State{
		log:         lg,
		mgr:         m,
		session:     uuid.NewString(),
		start:       time.Now(),
		channels:    map[string]int{},
		clients:     map[*websocket.Conn]bool{},
		diagClients: map[*websocket.Conn]bool{},
	}
}

// Session identifies this process run in every frame payload.
func (s *State) Session() string { return s.session }

func (s *State) OnBeginFrame() {}

// OnEndFrame snapshots the registry after the manager finished its own
// end-of-frame work. Register this listener after the manager so the
// poll sees post-show state.
func (s *State) OnEndFrame() {
	infos := s.mgr.DriverInfos()
	status := s.mgr.Poll()

	s.mu.Lock()
	s.frameID++
	s.drivers = infos
	s.aggregate = status
	faulted := status.State == bus.StateError && s.lastState != bus.StateError
	s.lastState = status.State
	msg := s.frameLocked()
	s.mu.Unlock()

	if faulted {
		s.PushDiag(diag.DriverFault(faultedDriver(infos), status.Err))
	}
	s.broadcast(msg)
}

func faultedDriver(infos []bus.DriverInfo) string {
	for _, info := range infos {
		if info.State == bus.StateError.String() {
			return info.Name
		}
	}
	return ""
}

func (s *State) OnChannelCreated(channel string) {
	s.mu.Lock()
	s.channels[channel] = 0
	s.mu.Unlock()
}

// OnChannelConfigured resets the byte count; the next encode refills
// it under the channel's new parameters.
func (s *State) OnChannelConfigured(channel string) {
	s.mu.Lock()
	s.channels[channel] = 0
	s.mu.Unlock()
}

func (s *State) OnChannelEncoded(channel string, bytes int) {
	s.mu.Lock()
	s.channels[channel] = bytes
	s.mu.Unlock()
}

func (s *State) OnChannelEnqueued(channel, driver string) {
	s.mu.Lock()
	s.publishes++
	s.mu.Unlock()
}

func (s *State) OnChannelDropped(channel, reason string) {
	s.mu.Lock()
	s.drops++
	s.mu.Unlock()
	s.log.Warn().Str("channel", channel).Str("reason", reason).Msg("frame dropped")
	s.PushDiag(diag.FrameDropped(channel, reason))
}

func (s *State) OnChannelRemoved(channel string) {
	s.mu.Lock()
	delete(s.channels, channel)
	s.mu.Unlock()
}

type frame struct {
	T         int64            `json:"t"`
	Session   string           `json:"session"`
	FrameID   uint64           `json:"frame_id"`
	State     string           `json:"state"`
	Err       string           `json:"err,omitempty"`
	Drivers   []bus.DriverInfo `json:"drivers"`
	Publishes uint64           `json:"publishes"`
	Drops     uint64           `json:"drops"`
	Channels  map[string]int   `json:"channels"`
}

func (s *State) frameLocked() frame {
	channels := make(map[string]int, len(s.channels))
	for k, v := range s.channels {
		channels[k] = v
	}
	return frame{
		T:         time.Now().UnixNano(),
		Session:   s.session,
		FrameID:   s.frameID,
		State:     s.aggregate.State.String(),
		Err:       s.aggregate.Err,
		Drivers:   s.drivers,
		Publishes: s.publishes,
		Drops:     s.drops,
		Channels:  channels,
	}
}

// HandleDriversWS streams one frame summary per rendered frame.
func (s *State) HandleDriversWS(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.clients[conn] = true
	msg := s.frameLocked()
	s.mu.Unlock()
	s.send(conn, msg)

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.clients, conn)
			s.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// HandleDiagWS streams diagnostics as they happen.
func (s *State) HandleDiagWS(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.diagClients[conn] = true
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.diagClients, conn)
			s.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *State) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	resp := map[string]any{
		"session":   s.session,
		"uptime_s":  time.Since(s.start).Seconds(),
		"frame_id":  s.frameID,
		"state":     s.aggregate.State.String(),
		"err":       s.aggregate.Err,
		"drivers":   s.drivers,
		"publishes": s.publishes,
		"drops":     s.drops,
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *State) send(conn *websocket.Conn, msg frame) {
	b, _ := json.Marshal(msg)
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteMessage(websocket.TextMessage, b)
}

func (s *State) broadcast(msg frame) {
	b, _ := json.Marshal(msg)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.clients {
		c.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
			s.log.Debug().Err(err).Msg("write frame summary")
		}
	}
}

// PushDiag fans a diagnostic out to every diagnostics client.
func (s *State) PushDiag(d diag.Diagnostic) {
	b, _ := json.Marshal(d)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.diagClients {
		c.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.WriteMessage(websocket.TextMessage, b)
	}
}

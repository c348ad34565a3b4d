package engine_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumentide/ledbus/internal/engine"
)

type recorder struct {
	mu  sync.Mutex
	seq []string
}

func (r *recorder) add(v string) {
	r.mu.Lock()
	r.seq = append(r.seq, v)
	r.mu.Unlock()
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seq)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seq...)
}

type recListener struct {
	name string
	rec  *recorder
}

func (l *recListener) OnBeginFrame() { l.rec.add(l.name + ":begin") }
func (l *recListener) OnEndFrame()   { l.rec.add(l.name + ":end") }

func TestEventsDispatchInRegistrationOrder(t *testing.T) {
	rec := &recorder{}
	e := &engine.Events{}
	e.AddListener(&recListener{name: "bus", rec: rec})
	e.AddListener(&recListener{name: "telemetry", rec: rec})

	e.BeginFrame()
	e.EndFrame()

	assert.Equal(t, []string{
		"bus:begin", "telemetry:begin",
		"bus:end", "telemetry:end",
	}, rec.snapshot())
}

func TestEventsRemoveListener(t *testing.T) {
	rec := &recorder{}
	a := &recListener{name: "a", rec: rec}
	b := &recListener{name: "b", rec: rec}
	e := &engine.Events{}
	e.AddListener(a)
	e.AddListener(b)
	e.RemoveListener(a)

	e.BeginFrame()
	assert.Equal(t, []string{"b:begin"}, rec.snapshot())
}

func TestLoopRendersUntilCancelled(t *testing.T) {
	var frames atomic.Int64
	loop := &engine.Loop{
		FPS:    500,
		Events: &engine.Events{},
		Render: func(time.Duration) { frames.Add(1) },
		Log:    zerolog.Nop(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for frames.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop after cancel")
	}
	assert.GreaterOrEqual(t, frames.Load(), int64(3))
}

func TestLoopBracketsRenderWithEvents(t *testing.T) {
	rec := &recorder{}
	e := &engine.Events{}
	e.AddListener(&recListener{name: "bus", rec: rec})

	ctx, cancel := context.WithCancel(context.Background())
	loop := &engine.Loop{
		FPS:    500,
		Events: e,
		Render: func(time.Duration) { rec.add("render") },
		Log:    zerolog.Nop(),
	}

	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for rec.len() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done

	got := rec.snapshot()
	require.GreaterOrEqual(t, len(got), 3)
	assert.Equal(t, []string{"bus:begin", "render", "bus:end"}, got[:3])
}

package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const DefaultFPS = 30

// Loop runs the render cycle at a fixed rate until the context ends.
// Each tick is BeginFrame, Render with the elapsed time since start,
// EndFrame. Everything runs on the calling goroutine.
type Loop struct {
	FPS    int
	Events *Events
	Render func(elapsed time.Duration)
	Log    zerolog.Logger
}

func (l *Loop) Run(ctx context.Context) error {
	fps := l.FPS
	if fps <= 0 {
		fps = DefaultFPS
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	start := time.Now()
	l.Log.Info().Int("fps", fps).Msg("render loop starting")
	for {
		select {
		case <-ctx.Done():
			l.Log.Info().Msg("render loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if l.Events != nil {
				l.Events.BeginFrame()
			}
			if l.Render != nil {
				l.Render(time.Since(start))
			}
			if l.Events != nil {
				l.Events.EndFrame()
			}
		}
	}
}

// Package validation checks the registered driver set against what the
// deployment expects. A missing backend means frames silently fall
// through to lower-priority drivers, which is exactly the failure mode
// that is hardest to spot from the strip itself.
package validation

import (
	"github.com/rs/zerolog"

	"github.com/lumentide/ledbus/internal/bus"
)

type Report struct {
	Expected []string `json:"expected"`
	Present  []string `json:"present"`
	Missing  []string `json:"missing"`
}

func (r Report) OK() bool { return len(r.Missing) == 0 }

// Check compares the expectation list against the manager's registry.
// Matching is by driver name, enabled or not.
func Check(m *bus.Manager, expected []string) Report {
	have := make(map[string]bool)
	for _, info := range m.DriverInfos() {
		have[info.Name] = true
	}

	r := Report{Expected: expected}
	for _, name := range expected {
		if have[name] {
			r.Present = append(r.Present, name)
		} else {
			r.Missing = append(r.Missing, name)
		}
	}
	return r
}

// Log writes one error line per missing driver so the gap shows up
// even when nobody watches the diagnostics stream.
func (r Report) Log(lg zerolog.Logger) {
	for _, name := range r.Missing {
		lg.Error().Str("driver", name).Msg("expected driver not registered")
	}
	if r.OK() && len(r.Expected) > 0 {
		lg.Debug().Strs("drivers", r.Present).Msg("driver expectations satisfied")
	}
}

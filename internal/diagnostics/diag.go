package diagnostics

type Severity string

const (
	Info Severity = "info"
	Warn Severity = "warning"
	Err  Severity = "error"
)

type Diagnostic struct {
	Severity       Severity       `json:"severity"`
	Code           string         `json:"code"`
	Summary        string         `json:"summary"`
	Detail         string         `json:"detail,omitempty"`
	LikelyCauses   []string       `json:"likely_causes,omitempty"`
	SuggestedFixes []string       `json:"suggested_fixes,omitempty"`
	Evidence       map[string]any `json:"evidence,omitempty"`
}

// DriverFault reports a backend stuck in its error state.
func DriverFault(driver, msg string) Diagnostic {
	return Diagnostic{
		Severity: Err,
		Code:     "DRIVER.FAULT",
		Summary:  "Driver reported a transmission error",
		Detail:   msg,
		LikelyCauses: []string{
			"SPI port disappeared or is held by another process",
			"Channel pixel count does not match the driver",
		},
		SuggestedFixes: []string{
			"Check the port device and wiring",
			"Align channel count with the driver's pixel count",
		},
		Evidence: map[string]any{"driver": driver},
	}
}

// DriverMissing reports an expected backend that never registered.
func DriverMissing(name string) Diagnostic {
	return Diagnostic{
		Severity: Warn,
		Code:     "DRIVER.MISSING",
		Summary:  "Expected driver is not registered",
		Detail:   "Channels that would route to it fall through to lower-priority drivers.",
		LikelyCauses: []string{
			"Hardware init failed at startup",
			"Driver left out of the config",
		},
		SuggestedFixes: []string{
			"Check startup logs for port open errors",
			"Add the driver to the drivers list or drop it from expect_drivers",
		},
		Evidence: map[string]any{"driver": name},
	}
}

// FrameDropped reports a channel publish that went nowhere.
func FrameDropped(channel, reason string) Diagnostic {
	return Diagnostic{
		Severity: Warn,
		Code:     "CHANNEL.DROP",
		Summary:  "Channel frame was dropped",
		Detail:   reason,
		Evidence: map[string]any{"channel": channel},
	}
}

// ConfigProblem reports a channel or driver entry that failed to build.
func ConfigProblem(msg string) Diagnostic {
	return Diagnostic{
		Severity: Err,
		Code:     "CONFIG.INVALID",
		Summary:  "Configuration entry rejected",
		Detail:   msg,
	}
}

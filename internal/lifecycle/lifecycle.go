// Package lifecycle tracks process phase for the health check.
package lifecycle

import "sync/atomic"

// Phase is the process lifecycle phase.
type Phase int32

const (
	// Starting: dataset or model not loaded yet.
	Starting Phase = iota
	// Ready: dataset and model loaded; evaluations are served.
	Ready
	// ShuttingDown: SIGTERM/SIGINT received; draining.
	ShuttingDown
)

func (p Phase) String() string {
	switch p {
	case Starting:
		return "starting"
	case Ready:
		return "ready"
	case ShuttingDown:
		return "shutting-down"
	default:
		return "unknown"
	}
}

var phase atomic.Int32

// Set moves the process to p. ShuttingDown is terminal except via Reset.
func Set(p Phase) {
	for {
		cur := phase.Load()
		if Phase(cur) == ShuttingDown {
			return
		}
		if phase.CompareAndSwap(cur, int32(p)) {
			return
		}
	}
}

// Current returns the current phase.
func Current() Phase {
	return Phase(phase.Load())
}

// IsShuttingDown reports whether the process is draining.
func IsShuttingDown() bool {
	return Current() == ShuttingDown
}

// Reset returns to Starting. For tests only.
func Reset() {
	phase.Store(int32(Starting))
}

package lifecycle

import "testing"

func TestCurrent_DefaultStarting(t *testing.T) {
	Reset()
	if got := Current(); got != Starting {
		t.Errorf("Current() = %v, want starting", got)
	}
}

func TestSet_Ready(t *testing.T) {
	Reset()
	defer Reset()
	Set(Ready)
	if got := Current(); got != Ready {
		t.Errorf("Current() = %v, want ready", got)
	}
	if IsShuttingDown() {
		t.Error("IsShuttingDown() = true, want false")
	}
}

func TestSet_ShuttingDownIsTerminal(t *testing.T) {
	Reset()
	defer Reset()
	Set(ShuttingDown)
	Set(Ready)
	if !IsShuttingDown() {
		t.Errorf("Current() = %v after Set(Ready), want shutting-down", Current())
	}
}

func TestPhase_String(t *testing.T) {
	for p, want := range map[Phase]string{Starting: "starting", Ready: "ready", ShuttingDown: "shutting-down", Phase(9): "unknown"} {
		if got := p.String(); got != want {
			t.Errorf("Phase(%d).String() = %q, want %q", p, got, want)
		}
	}
}

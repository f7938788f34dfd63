package lifecycle

import (
	"testing"
	"time"
)

func TestShuttingDown(t *testing.T) {
	t.Cleanup(func() { SetShuttingDown(false) })
	if IsShuttingDown() {
		t.Fatal("IsShuttingDown() = true before SetShuttingDown")
	}
	SetShuttingDown(true)
	if !IsShuttingDown() {
		t.Error("IsShuttingDown() = false after SetShuttingDown(true)")
	}
}

func TestUptime(t *testing.T) {
	MarkStarted(time.Now().Add(-time.Minute))
	if got := Uptime(); got < time.Minute {
		t.Errorf("Uptime() = %v, want >= 1m", got)
	}
}

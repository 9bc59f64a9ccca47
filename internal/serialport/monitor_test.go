package serialport

import (
	"testing"

	"github.com/pilebones/go-udev/netlink"

	"wavedaq/internal/logging"
)

func TestMonitorRunning(t *testing.T) {
	t.Run("nil monitor returns false", func(t *testing.T) {
		var m *Monitor
		if m.Running() {
			t.Error("expected Running() to return false for nil monitor")
		}
	})

	t.Run("unstarted monitor returns false", func(t *testing.T) {
		m := NewMonitor(nil, logging.NewNop())
		if m.Running() {
			t.Error("expected Running() to return false for unstarted monitor")
		}
	})
}

func TestMonitorStopIsSafe(t *testing.T) {
	t.Run("stop on nil monitor", func(t *testing.T) {
		var m *Monitor
		m.Stop() // must not panic
	})

	t.Run("stop on unstarted monitor", func(t *testing.T) {
		m := NewMonitor(nil, logging.NewNop())
		m.Stop()
		m.Stop() // double stop must not panic
		if m.Running() {
			t.Error("expected Running() to return false after Stop")
		}
	})
}

func TestTTYMatcher(t *testing.T) {
	matcher := ttyMatcher()
	if matcher == nil {
		t.Fatal("expected non-nil matcher")
	}

	addEvent := netlink.UEvent{
		Action: netlink.ADD,
		Env: map[string]string{
			"SUBSYSTEM": "tty",
			"DEVNAME":   "ttyUSB0",
		},
	}
	if !matcher.Evaluate(addEvent) {
		t.Error("expected matcher to accept tty add event")
	}

	removeEvent := netlink.UEvent{
		Action: netlink.REMOVE,
		Env: map[string]string{
			"SUBSYSTEM": "tty",
			"DEVNAME":   "ttyUSB0",
		},
	}
	if !matcher.Evaluate(removeEvent) {
		t.Error("expected matcher to accept tty remove event")
	}

	blockEvent := netlink.UEvent{
		Action: netlink.ADD,
		Env: map[string]string{
			"SUBSYSTEM": "block",
			"DEVNAME":   "sda",
		},
	}
	if matcher.Evaluate(blockEvent) {
		t.Error("expected matcher to reject non-tty subsystem")
	}
}

func TestHandleEvent(t *testing.T) {
	t.Run("ignores event without device name", func(t *testing.T) {
		var called bool
		m := NewMonitor(func(Event) { called = true }, logging.NewNop())
		m.handleEvent(netlink.UEvent{Action: netlink.ADD, Env: map[string]string{}})
		if called {
			t.Error("handler should not run without a device name")
		}
	})

	t.Run("delivers DEVNAME events", func(t *testing.T) {
		var got Event
		m := NewMonitor(func(e Event) { got = e }, logging.NewNop())
		m.handleEvent(netlink.UEvent{
			Action: netlink.ADD,
			Env:    map[string]string{"DEVNAME": "ttyUSB0"},
		})
		if got.Action != "add" || got.Path != "/dev/ttyUSB0" {
			t.Errorf("unexpected event %+v", got)
		}
	})

	t.Run("falls back to DEVPATH", func(t *testing.T) {
		var got Event
		m := NewMonitor(func(e Event) { got = e }, logging.NewNop())
		m.handleEvent(netlink.UEvent{
			Action: netlink.REMOVE,
			Env: map[string]string{
				"DEVPATH": "/devices/pci0000:00/0000:00:14.0/usb1/1-2/1-2:1.0/ttyUSB0/tty/ttyUSB0",
			},
		})
		if got.Action != "remove" || got.Path != "/dev/ttyUSB0" {
			t.Errorf("unexpected event %+v", got)
		}
	})

	t.Run("nil handler does not panic", func(t *testing.T) {
		m := NewMonitor(nil, logging.NewNop())
		m.handleEvent(netlink.UEvent{
			Action: netlink.ADD,
			Env:    map[string]string{"DEVNAME": "/dev/ttyACM1"},
		})
	})
}

func TestExtractDeviceName(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"absolute devname", map[string]string{"DEVNAME": "/dev/ttyUSB0"}, "/dev/ttyUSB0"},
		{"relative devname", map[string]string{"DEVNAME": "ttyACM0"}, "/dev/ttyACM0"},
		{"devpath fallback", map[string]string{"DEVPATH": "/devices/virtual/tty/ttyUSB3"}, "/dev/ttyUSB3"},
		{"empty env", map[string]string{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractDeviceName(netlink.UEvent{Env: tt.env})
			if got != tt.want {
				t.Errorf("extractDeviceName() = %q, want %q", got, tt.want)
			}
		})
	}
}

package serialport_test

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"wavedaq/internal/serialport"
)

func TestPresent(t *testing.T) {
	if serialport.Present(filepath.Join(t.TempDir(), "ttyUSB0")) {
		t.Error("expected Present to be false for missing node")
	}

	path := filepath.Join(t.TempDir(), "ttyUSB0")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("create node: %v", err)
	}
	if !serialport.Present(path) {
		t.Error("expected Present to be true for existing node")
	}
}

func TestScanReturnsSortedDevices(t *testing.T) {
	devices, err := serialport.Scan()
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if !sort.SliceIsSorted(devices, func(i, j int) bool { return devices[i].Path < devices[j].Path }) {
		t.Errorf("expected devices sorted by path: %+v", devices)
	}
	for _, dev := range devices {
		if dev.Path == "" {
			t.Errorf("device with empty path: %+v", dev)
		}
	}
}

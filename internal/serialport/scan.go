package serialport

import (
	"os"
	"path/filepath"
	"sort"
)

// Device is one candidate serial adapter.
type Device struct {
	// Path is the device node, e.g. /dev/ttyUSB0.
	Path string `json:"path"`
	// ByID is the stable /dev/serial/by-id alias when one exists.
	ByID string `json:"by_id,omitempty"`
}

var scanPatterns = []string{
	"/dev/ttyUSB*",
	"/dev/ttyACM*",
}

const byIDDir = "/dev/serial/by-id"

// Scan lists serial adapters currently present, sorted by path.
func Scan() ([]Device, error) {
	seen := make(map[string]*Device)
	for _, pattern := range scanPatterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, err
		}
		for _, path := range matches {
			seen[path] = &Device{Path: path}
		}
	}

	// Attach stable aliases where the symlink resolves to a known node.
	if entries, err := os.ReadDir(byIDDir); err == nil {
		for _, entry := range entries {
			alias := filepath.Join(byIDDir, entry.Name())
			target, err := filepath.EvalSymlinks(alias)
			if err != nil {
				continue
			}
			if dev, ok := seen[target]; ok {
				dev.ByID = alias
			}
		}
	}

	devices := make([]Device, 0, len(seen))
	for _, dev := range seen {
		devices = append(devices, *dev)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Path < devices[j].Path })
	return devices, nil
}

// Present reports whether the device node exists.
func Present(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

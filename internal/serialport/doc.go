// Package serialport discovers the serial adapters a sensor can sit behind,
// both by scanning /dev and by watching udev hotplug events.
package serialport

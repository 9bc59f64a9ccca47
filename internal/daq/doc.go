// Package daq acquires vibration samples from the sensor over Modbus RTU.
//
// The sensor exposes its sampling rate, a FIFO fill level, and the FIFO
// contents as input registers. The Poller drains the FIFO on a fixed-period
// clock derived from the configured sample rate and emits decoded
// multi-channel samples on a single downstream channel.
package daq

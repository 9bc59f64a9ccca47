package testsupport

import (
	"errors"
	"sync"
)

// Sensor register map mirrored by the fake device.
const (
	RegSampleRate = 0x01
	RegFIFOLength = 0x02
	RegDataStart  = 0x03
	RegChipID     = 0x80
)

// ErrSimulatedRead is returned by reads scripted to fail.
var ErrSimulatedRead = errors.New("simulated read failure")

// FakeClient simulates the sensor register interface. Each polling tick sees
// GroupsPerTick channel groups in the FIFO with monotonically increasing
// raw values, so decoded output is deterministic.
type FakeClient struct {
	Channels      int
	GroupsPerTick int

	mu        sync.Mutex
	connects  int
	closes    int
	failReads int
	failAll   bool
	writes    map[uint16]uint16
	raw       int16
	connErr   error
}

// NewFakeClient builds a fake device with the given channel count and FIFO
// fill per tick.
func NewFakeClient(channels, groupsPerTick int) *FakeClient {
	return &FakeClient{
		Channels:      channels,
		GroupsPerTick: groupsPerTick,
		writes:        make(map[uint16]uint16),
	}
}

// FailNextReads makes the next n register reads fail.
func (f *FakeClient) FailNextReads(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failReads = n
}

// FailAllReads makes every subsequent register read fail until cleared.
func (f *FakeClient) FailAllReads(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAll = fail
}

// SetConnectError scripts Connect to fail.
func (f *FakeClient) SetConnectError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connErr = err
}

// Connects reports how many times Connect succeeded.
func (f *FakeClient) Connects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

// Closes reports how many times Close was called.
func (f *FakeClient) Closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

// Written returns the last value written to a register.
func (f *FakeClient) Written(address uint16) (uint16, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.writes[address]
	return value, ok
}

func (f *FakeClient) Connect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connErr != nil {
		return f.connErr
	}
	f.connects++
	return nil
}

func (f *FakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *FakeClient) WriteRegister(address, value uint16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes[address] = value
	return nil
}

func (f *FakeClient) ReadInputRegisters(address, quantity uint16) ([]uint16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failAll {
		return nil, ErrSimulatedRead
	}
	if f.failReads > 0 {
		f.failReads--
		return nil, ErrSimulatedRead
	}

	switch address {
	case RegChipID:
		id := []uint16{0x00ad, 0x0001, 0x0055}
		if int(quantity) < len(id) {
			id = id[:quantity]
		}
		return id, nil
	case RegFIFOLength:
		return []uint16{uint16(f.GroupsPerTick * f.Channels)}, nil
	default:
		words := make([]uint16, quantity)
		for i := range words {
			f.raw++
			words[i] = uint16(f.raw)
		}
		return words, nil
	}
}

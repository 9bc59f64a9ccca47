package daq

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/goburrow/modbus"
)

// Sensor register map.
const (
	regSampleRate = 0x01 // holding: samples per second per channel
	regFIFOLength = 0x02 // input: words currently buffered
	regDataStart  = 0x03 // input: FIFO contents, channel-interleaved
	regChipID     = 0x80 // input: three identification words
)

// maxFIFOGroups is the largest number of whole channel groups the sensor
// returns in one FIFO read.
const maxFIFOGroups = 41

// rawScale converts a two's-complement register word into engineering units.
const rawScale = 8192.0

// RegisterClient is the black-box request/response view of the field bus.
// Implementations must be safe to Close more than once.
type RegisterClient interface {
	Connect() error
	ReadInputRegisters(address, quantity uint16) ([]uint16, error)
	WriteRegister(address, value uint16) error
	Close() error
}

// ClientOptions configure the Modbus RTU transport.
type ClientOptions struct {
	SerialPort  string
	BaudRate    int
	SlaveID     byte
	ReadTimeout time.Duration
}

// modbusClient adapts the goburrow RTU client to RegisterClient.
type modbusClient struct {
	handler *modbus.RTUClientHandler
	client  modbus.Client
}

// NewModbusClient builds an RTU register client for the sensor. The transport
// is not opened until Connect is called.
func NewModbusClient(opts ClientOptions) RegisterClient {
	handler := modbus.NewRTUClientHandler(opts.SerialPort)
	handler.BaudRate = opts.BaudRate
	handler.DataBits = 8
	handler.Parity = "N"
	handler.StopBits = 1
	handler.SlaveId = opts.SlaveID
	handler.Timeout = opts.ReadTimeout
	return &modbusClient{handler: handler, client: modbus.NewClient(handler)}
}

func (c *modbusClient) Connect() error {
	if err := c.handler.Connect(); err != nil {
		return fmt.Errorf("connect %s: %w", c.handler.Address, err)
	}
	return nil
}

func (c *modbusClient) ReadInputRegisters(address, quantity uint16) ([]uint16, error) {
	raw, err := c.client.ReadInputRegisters(address, quantity)
	if err != nil {
		return nil, err
	}
	if len(raw) < int(quantity)*2 {
		return nil, fmt.Errorf("short register read: want %d words, got %d bytes", quantity, len(raw))
	}
	words := make([]uint16, quantity)
	for i := range words {
		words[i] = binary.BigEndian.Uint16(raw[i*2:])
	}
	return words, nil
}

func (c *modbusClient) WriteRegister(address, value uint16) error {
	_, err := c.client.WriteSingleRegister(address, value)
	return err
}

func (c *modbusClient) Close() error {
	return c.handler.Close()
}

// decodeWords converts channel-interleaved register words into rows of
// per-channel readings. Only whole channel groups are kept: a trailing
// partial group is discarded so channels can never shift between rows.
func decodeWords(words []uint16, channels int) [][]float64 {
	if channels <= 0 {
		return nil
	}
	groups := len(words) / channels
	if groups == 0 {
		return nil
	}
	rows := make([][]float64, groups)
	for g := 0; g < groups; g++ {
		row := make([]float64, channels)
		for ch := 0; ch < channels; ch++ {
			row[ch] = float64(int16(words[g*channels+ch])) / rawScale
		}
		rows[g] = row
	}
	return rows
}

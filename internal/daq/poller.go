package daq

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"wavedaq/internal/logging"
)

// minTickInterval is the shortest polling period the serial transport
// sustains; faster sample rates are served by draining more FIFO content
// per tick rather than by ticking faster.
const minTickInterval = 2 * time.Millisecond

// SamplePeriod returns the nominal duration between successive samples.
func SamplePeriod(sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / float64(sampleRate))
}

// TickInterval returns the polling period for the configured sample rate,
// clamped to the minimum the transport supports.
func TickInterval(sampleRate int) time.Duration {
	period := SamplePeriod(sampleRate)
	if period < minTickInterval {
		return minTickInterval
	}
	return period
}

// PollerConfig carries the acquisition parameters the Poller needs beyond
// the transport itself.
type PollerConfig struct {
	SampleRate       int
	Channels         int
	FailureThreshold int
}

// Poller drains the sensor FIFO on a fixed-period clock and emits decoded
// sample batches. It owns the transport exclusively: the transport is opened
// when Run starts and closed exactly once when Run returns.
type Poller struct {
	client RegisterClient
	cfg    PollerConfig
	logger *slog.Logger

	out   chan Batch
	ready chan struct{}

	readErrors atomic.Uint64
}

// NewPoller constructs a poller over the given register client.
func NewPoller(client RegisterClient, cfg PollerConfig, logger *slog.Logger) *Poller {
	return &Poller{
		client: client,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "poller"),
		out:    make(chan Batch, 128),
		ready:  make(chan struct{}),
	}
}

// Ready is closed once the transport is open and the sensor is programmed.
// It never closes when the transport fails to open.
func (p *Poller) Ready() <-chan struct{} {
	return p.ready
}

// Batches returns the downstream sink. The channel is closed when Run
// returns; batches preserve production order.
func (p *Poller) Batches() <-chan Batch {
	return p.out
}

// ReadErrors reports the number of skipped ticks since Run started.
func (p *Poller) ReadErrors() uint64 {
	return p.readErrors.Load()
}

// Run opens the transport, programs the sensor, and polls until the context
// is canceled or the failure threshold is exceeded. It returns nil on a
// cooperative stop and a *FatalError when too many consecutive reads fail.
func (p *Poller) Run(ctx context.Context) error {
	defer close(p.out)

	if err := p.open(); err != nil {
		return err
	}
	close(p.ready)
	defer func() {
		if err := p.client.Close(); err != nil {
			p.logger.Warn("close transport", logging.Error(err))
		}
	}()

	interval := TickInterval(p.cfg.SampleRate)
	samplePeriod := SamplePeriod(p.cfg.SampleRate)
	start := time.Now()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	reconnect := backoff.NewExponentialBackOff()
	reconnect.InitialInterval = 50 * time.Millisecond
	reconnect.MaxInterval = 500 * time.Millisecond
	reconnect.Reset()

	consecutive := 0
	var index uint64
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		batch, err := p.readTick(index, start, samplePeriod)
		if err != nil {
			consecutive++
			p.readErrors.Add(1)
			p.logger.Warn("sensor read failed; tick skipped",
				logging.Error(err),
				logging.Int("consecutive", consecutive),
				logging.String(logging.FieldEventType, "daq_read_failed"),
			)
			if consecutive >= p.cfg.FailureThreshold {
				return &FatalError{Consecutive: consecutive, Last: err}
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(reconnect.NextBackOff()):
			}
			p.reopen()
			continue
		}
		consecutive = 0
		reconnect.Reset()

		if len(batch) == 0 {
			continue
		}
		index += uint64(len(batch))

		select {
		case <-ctx.Done():
			return nil
		case p.out <- batch:
		}
	}
}

func (p *Poller) open() error {
	if err := p.client.Connect(); err != nil {
		return fmt.Errorf("%w: %v", ErrTransportOpen, err)
	}

	// Chip identification is diagnostic only; the sensor works without it.
	if words, err := p.client.ReadInputRegisters(regChipID, 3); err != nil {
		p.logger.Warn("read chip id", logging.Error(err))
	} else if len(words) >= 3 {
		p.logger.Debug("sensor chip id",
			logging.String("chip_id", fmt.Sprintf("%#04x %#04x %#04x", words[0], words[1], words[2])))
	}

	if err := p.client.WriteRegister(regSampleRate, uint16(p.cfg.SampleRate)); err != nil {
		_ = p.client.Close()
		return fmt.Errorf("%w: set sample rate: %v", ErrTransportOpen, err)
	}
	p.logger.Debug("sample rate programmed", logging.Int("sample_rate", p.cfg.SampleRate))
	return nil
}

// reopen re-establishes the transport after a failed tick. Errors are left
// for the next tick to surface; the consecutive-failure budget bounds how
// long this can go on.
func (p *Poller) reopen() {
	_ = p.client.Close()
	if err := p.client.Connect(); err != nil {
		p.logger.Debug("transport reconnect failed", logging.Error(err))
	}
}

// readTick performs one FIFO drain: length register first, then the data
// block. An empty FIFO yields an empty batch and no error.
func (p *Poller) readTick(index uint64, start time.Time, samplePeriod time.Duration) (Batch, error) {
	lengthWords, err := p.client.ReadInputRegisters(regFIFOLength, 1)
	if err != nil {
		return nil, fmt.Errorf("read fifo length: %w", err)
	}
	available := int(lengthWords[0])
	if available <= 0 {
		return nil, nil
	}
	if max := maxFIFOGroups * p.cfg.Channels; available > max {
		available = max
	}

	words, err := p.client.ReadInputRegisters(regDataStart, uint16(available))
	if err != nil {
		return nil, fmt.Errorf("read fifo block: %w", err)
	}

	rows := decodeWords(words, p.cfg.Channels)
	if len(rows) == 0 {
		return nil, nil
	}

	batch := make(Batch, len(rows))
	for i, row := range rows {
		offset := time.Duration(index+uint64(i)) * samplePeriod
		batch[i] = Sample{
			Index:  index + uint64(i),
			Time:   start.Add(offset),
			Offset: offset,
			Values: row,
		}
	}
	return batch, nil
}

// Package recorder persists sample batches to rotating CSV files.
package recorder

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"wavedaq/internal/daq"
	"wavedaq/internal/logging"
)

const (
	fileTimeFormat = "20060102150405"
	rowTimeFormat  = "2006-01-02 15:04:05.000000"
	writeBufferLen = 128 * 1024
)

// RotationTarget returns the number of rows a single output file holds
// before the recorder opens the next one. The product is rounded half away
// from zero so fractional sample rates still give a deterministic boundary.
func RotationTarget(sampleRate, channels, rotateSeconds int) int {
	target := int(math.Round(float64(sampleRate) * float64(channels) * float64(rotateSeconds)))
	if target < 1 {
		target = 1
	}
	return target
}

// Options configure a session recording.
type Options struct {
	// BaseDir is the recordings root; the session writes into a
	// "<start>_<label>" folder beneath it.
	BaseDir string
	Label   string
	Start   time.Time
	// Channels fixes the row width and the header.
	Channels int
	// Target is the rotation threshold in rows; see RotationTarget.
	Target int
	// FlushInterval bounds how long rows may sit in the write buffer.
	FlushInterval time.Duration

	// OnFileOpened and OnFileClosed observe rotation for the catalog.
	// Either may be nil.
	OnFileOpened func(seq int, path string)
	OnFileClosed func(seq int, path string, rows int)
}

type fileHandle interface {
	io.Writer
	Sync() error
	Close() error
}

// Recorder appends rows to the active CSV file and rotates once the target
// row count is reached. The rotation check runs before the write, so no file
// ever exceeds the target. A storage fault degrades recording (the row is
// dropped and counted) but never stops acquisition.
type Recorder struct {
	opts   Options
	logger *slog.Logger
	dir    string

	file      fileHandle
	writer    *bufio.Writer
	path      string
	seq       int
	written   int
	lastFlush time.Time

	totalRows atomic.Uint64
	dropped   atomic.Uint64
	degraded  atomic.Bool

	// abortMu guards the handle Abort may close from another goroutine.
	abortMu   sync.Mutex
	abortFile fileHandle

	// openFile is a seam for storage-fault tests.
	openFile func(path string) (fileHandle, error)
}

// New constructs a recorder. Open must be called before Record.
func New(opts Options, logger *slog.Logger) *Recorder {
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = time.Second
	}
	return &Recorder{
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "recorder"),
		openFile: func(path string) (fileHandle, error) {
			return os.Create(path)
		},
	}
}

// Open creates the session directory and the first output file.
func (r *Recorder) Open() error {
	r.dir = filepath.Join(r.opts.BaseDir, fmt.Sprintf("%s_%s", r.opts.Start.Format(fileTimeFormat), r.opts.Label))
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}
	r.seq = 1
	return r.createFile()
}

// Dir returns the session output directory.
func (r *Recorder) Dir() string { return r.dir }

// CurrentFile returns the active file path and sequence number.
func (r *Recorder) CurrentFile() (string, int) { return r.path, r.seq }

// Rows returns the total number of rows recorded across all files.
func (r *Recorder) Rows() uint64 { return r.totalRows.Load() }

// Dropped returns the number of rows lost to storage faults.
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }

// Degraded reports whether any storage fault occurred during the session.
func (r *Recorder) Degraded() bool { return r.degraded.Load() }

// Record appends one sample row, rotating first when the active file is at
// its target. Storage faults are absorbed: the row is dropped, the degraded
// flag is set, and the error is logged.
func (r *Recorder) Record(sample daq.Sample) {
	if r.written >= r.opts.Target {
		if err := r.rotate(); err != nil {
			r.storageFault("rotate output file", err)
			return
		}
	}
	if r.writer == nil {
		// A previous fault lost the active file; try to recover on the
		// next sequence number rather than silently discarding forever.
		if err := r.createFile(); err != nil {
			r.storageFault("reopen output file", err)
			return
		}
	}

	if _, err := r.writer.WriteString(r.formatRow(sample)); err != nil {
		r.storageFault("write row", err)
		return
	}
	r.written++
	r.totalRows.Add(1)

	if time.Since(r.lastFlush) >= r.opts.FlushInterval {
		if err := r.writer.Flush(); err != nil {
			r.storageFault("flush output file", err)
			return
		}
		r.lastFlush = time.Now()
	}
}

// RecordBatch appends a batch in production order.
func (r *Recorder) RecordBatch(batch daq.Batch) {
	for _, sample := range batch {
		r.Record(sample)
	}
}

// Close flushes and closes the active file regardless of how many rows it
// holds. It is safe to call more than once.
func (r *Recorder) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.closeFile()
	if err != nil {
		r.logger.Warn("close recording file", logging.Error(err), logging.String(logging.FieldFile, r.path))
	}
	return err
}

// Abort force-releases the active file handle without flushing. It exists
// for teardown paths that cannot wait for an in-flight write; a write stuck
// on the handle returns with an error once it is closed. Safe to call from
// another goroutine and more than once.
func (r *Recorder) Abort() {
	r.abortMu.Lock()
	file := r.abortFile
	r.abortFile = nil
	r.abortMu.Unlock()
	if file != nil {
		_ = file.Close()
	}
}

func (r *Recorder) rotate() error {
	if err := r.closeFile(); err != nil {
		return err
	}
	r.seq++
	return r.createFile()
}

func (r *Recorder) createFile() error {
	name := fmt.Sprintf("%s_%s_%03d.csv", r.opts.Start.Format(fileTimeFormat), r.opts.Label, r.seq)
	path := filepath.Join(r.dir, name)

	file, err := r.openFile(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	writer := bufio.NewWriterSize(file, writeBufferLen)
	if _, err := writer.WriteString(r.header()); err != nil {
		_ = file.Close()
		return fmt.Errorf("write header: %w", err)
	}
	// Make sure the file exists on disk with its header before data flows.
	if err := writer.Flush(); err != nil {
		_ = file.Close()
		return fmt.Errorf("flush header: %w", err)
	}

	r.file = file
	r.writer = writer
	r.path = path
	r.written = 0
	r.lastFlush = time.Now()
	r.abortMu.Lock()
	r.abortFile = file
	r.abortMu.Unlock()

	r.logger.Info("recording file opened",
		logging.String(logging.FieldFile, name),
		logging.Int(logging.FieldSequence, r.seq),
	)
	if r.opts.OnFileOpened != nil {
		r.opts.OnFileOpened(r.seq, path)
	}
	return nil
}

// closeFile flushes, syncs, and releases the active file. Closed files are
// immutable from this point on.
func (r *Recorder) closeFile() error {
	if r.file == nil {
		return nil
	}
	file, writer, path, seq, rows := r.file, r.writer, r.path, r.seq, r.written
	r.file = nil
	r.writer = nil
	r.abortMu.Lock()
	r.abortFile = nil
	r.abortMu.Unlock()

	var firstErr error
	if err := writer.Flush(); err != nil {
		firstErr = fmt.Errorf("flush %s: %w", path, err)
	}
	if err := file.Sync(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("sync %s: %w", path, err)
	}
	if err := file.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close %s: %w", path, err)
	}

	if firstErr == nil && r.opts.OnFileClosed != nil {
		r.opts.OnFileClosed(seq, path, rows)
	}
	return firstErr
}

func (r *Recorder) storageFault(action string, err error) {
	r.dropped.Add(1)
	if r.degraded.CompareAndSwap(false, true) {
		r.logger.Error("recording degraded; acquisition continues",
			logging.Error(err),
			logging.String("action", action),
			logging.String(logging.FieldEventType, "storage_degraded"),
			logging.String(logging.FieldErrorHint, "check free space and permissions on the output directory"),
		)
		return
	}
	r.logger.Debug("row dropped", logging.Error(err), logging.String("action", action))
}

func (r *Recorder) header() string {
	var b strings.Builder
	b.WriteString("Timestamp")
	for ch := 1; ch <= r.opts.Channels; ch++ {
		b.WriteString(",Channel_")
		b.WriteString(strconv.Itoa(ch))
	}
	b.WriteByte('\n')
	return b.String()
}

func (r *Recorder) formatRow(sample daq.Sample) string {
	var b strings.Builder
	b.Grow(32 + len(sample.Values)*12)
	b.WriteString(sample.Time.Format(rowTimeFormat))
	for _, v := range sample.Values {
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(v, 'f', 6, 64))
	}
	b.WriteByte('\n')
	return b.String()
}

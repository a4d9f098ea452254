package stats

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const ringSize = 60

// Reader is the read side of a Collector, as presenters see it.
type Reader interface {
	Snapshot() Snapshot
	RollingSpeed(seconds int) float64
	RollingEntriesPerSec(seconds int) float64
	SparklineData(n int) []float64
	ETA() time.Duration
}

// ReadTicker is a Reader that the presenter also drives once per second.
type ReadTicker interface {
	Reader
	Tick()
}

// Collector tracks operation worker progress using lock-free atomic counters.
type Collector struct {
	startTime time.Time

	entriesDone    atomic.Int64
	entriesFailed  atomic.Int64
	entriesSkipped atomic.Int64
	bytesWritten   atomic.Int64
	dirsCreated    atomic.Int64
	progressDone   atomic.Int64
	progressTotal  atomic.Int64
	filesTotal     atomic.Int64
	dirsTotal      atomic.Int64
	verified       atomic.Int64

	// Ring buffer, written only by Tick.
	mu          sync.Mutex
	throughput  [ringSize]int64 // progress units per second
	entriesRate [ringSize]int64 // entries per second
	ringIdx     int
	ringCount   int // samples written, capped at ringSize
	lastDone    int64
	lastEntries int64
}

// NewCollector creates a Collector with startTime set to now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// SetTotals records the statistics totals (called once initialization ends).
func (c *Collector) SetTotals(files, dirs, progress int64) {
	c.filesTotal.Store(files)
	c.dirsTotal.Store(dirs)
	c.progressTotal.Store(progress)
}

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	EntriesDone    int64
	EntriesFailed  int64
	EntriesSkipped int64
	BytesWritten   int64
	DirsCreated    int64
	ProgressDone   int64
	ProgressTotal  int64
	FilesTotal     int64
	DirsTotal      int64
	Verified       int64
	Elapsed        time.Duration
}

func (c *Collector) AddEntriesDone(n int64)    { c.entriesDone.Add(n) }
func (c *Collector) AddEntriesFailed(n int64)  { c.entriesFailed.Add(n) }
func (c *Collector) AddEntriesSkipped(n int64) { c.entriesSkipped.Add(n) }
func (c *Collector) AddBytesWritten(n int64)   { c.bytesWritten.Add(n) }
func (c *Collector) AddDirsCreated(n int64)    { c.dirsCreated.Add(n) }
func (c *Collector) AddProgress(n int64)       { c.progressDone.Add(n) }
func (c *Collector) AddVerified(n int64)       { c.verified.Add(n) }

// Done returns the progress numerator.
func (c *Collector) Done() int64 { return c.progressDone.Load() }

// Snapshot returns a point-in-time read of all counters.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		EntriesDone:    c.entriesDone.Load(),
		EntriesFailed:  c.entriesFailed.Load(),
		EntriesSkipped: c.entriesSkipped.Load(),
		BytesWritten:   c.bytesWritten.Load(),
		DirsCreated:    c.dirsCreated.Load(),
		ProgressDone:   c.progressDone.Load(),
		ProgressTotal:  c.progressTotal.Load(),
		FilesTotal:     c.filesTotal.Load(),
		DirsTotal:      c.dirsTotal.Load(),
		Verified:       c.verified.Load(),
		Elapsed:        c.Elapsed(),
	}
}

// Tick records progress and entry deltas into the ring buffer. Called once
// per second by the presenter.
func (c *Collector) Tick() {
	done := c.progressDone.Load()
	entries := c.entriesDone.Load()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.throughput[c.ringIdx] = done - c.lastDone
	c.entriesRate[c.ringIdx] = entries - c.lastEntries
	c.lastDone, c.lastEntries = done, entries
	c.ringIdx = (c.ringIdx + 1) % ringSize
	if c.ringCount < ringSize {
		c.ringCount++
	}
}

// RollingSpeed returns average progress units (bytes, mostly) per second
// over the last n samples.
func (c *Collector) RollingSpeed(seconds int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rollingAvg(c.throughput[:], seconds)
}

// RollingEntriesPerSec returns average entries/sec over the last n samples.
func (c *Collector) RollingEntriesPerSec(seconds int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rollingAvg(c.entriesRate[:], seconds)
}

func (c *Collector) rollingAvg(buf []int64, n int) float64 {
	count := min(n, c.ringCount)
	if count <= 0 {
		return 0
	}
	var sum int64
	for i := range count {
		idx := (c.ringIdx - 1 - i + ringSize) % ringSize
		sum += buf[idx]
	}
	return float64(sum) / float64(count)
}

// SparklineData returns up to n throughput samples, oldest first.
func (c *Collector) SparklineData(n int) []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := min(n, c.ringCount)
	if count <= 0 {
		return nil
	}
	data := make([]float64, count)
	for i := range count {
		idx := (c.ringIdx - count + i + ringSize) % ringSize
		data[i] = float64(c.throughput[idx])
	}
	return data
}

// ETA estimates remaining time from the rolling speed and remaining units.
func (c *Collector) ETA() time.Duration {
	speed := c.RollingSpeed(10)
	if speed <= 0 {
		return 0
	}
	remaining := c.progressTotal.Load() - c.progressDone.Load()
	if remaining <= 0 {
		return 0
	}
	return time.Duration(float64(remaining)/speed) * time.Second
}

// Elapsed returns time since collector creation.
func (c *Collector) Elapsed() time.Duration {
	return time.Since(c.startTime)
}

func (s Snapshot) String() string {
	return fmt.Sprintf(
		"done=%d failed=%d skipped=%d bytes=%d dirs=%d progress=%d/%d",
		s.EntriesDone, s.EntriesFailed, s.EntriesSkipped,
		s.BytesWritten, s.DirsCreated, s.ProgressDone, s.ProgressTotal,
	)
}

// FormatBytes returns a human-readable byte count.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}

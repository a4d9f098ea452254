package stats

import (
	"fmt"
	"sync/atomic"
)

// SizeInfo is a point-in-time read of a statistics job's counters.
type SizeInfo struct {
	TotalSize         int64
	TotalProgressSize int64
	FileCount         int64
	DirectoryCount    int64
	// DirUnit is the progress charge for a directory, zero-byte file or link.
	DirUnit int64
}

func (s SizeInfo) String() string {
	return fmt.Sprintf("size=%d progress=%d files=%d dirs=%d",
		s.TotalSize, s.TotalProgressSize, s.FileCount, s.DirectoryCount)
}

// Sizes accumulates SizeInfo with atomic counters. The traversal goroutine
// is the only writer; any goroutine may read.
type Sizes struct {
	totalSize    atomic.Int64
	progressSize atomic.Int64
	files        atomic.Int64
	dirs         atomic.Int64
	unit         int64
}

// NewSizes returns zeroed counters charging unit per directory-like entry.
func NewSizes(unit int64) *Sizes {
	if unit <= 0 {
		unit = 1
	}
	return &Sizes{unit: unit}
}

func (s *Sizes) Unit() int64 { return s.unit }

func (s *Sizes) AddSize(n int64)     { s.totalSize.Add(n) }
func (s *Sizes) AddProgress(n int64) { s.progressSize.Add(n) }
func (s *Sizes) AddFiles(n int64)    { s.files.Add(n) }
func (s *Sizes) AddDirs(n int64)     { s.dirs.Add(n) }

// SetFiles replaces the file count (single-depth counting).
func (s *Sizes) SetFiles(n int64) { s.files.Store(n) }

// Charge adds size to the progress total; empty entries are charged one unit.
func (s *Sizes) Charge(size int64) {
	if size <= 0 {
		size = s.unit
	}
	s.progressSize.Add(size)
}

func (s *Sizes) TotalSize() int64         { return s.totalSize.Load() }
func (s *Sizes) TotalProgressSize() int64 { return s.progressSize.Load() }
func (s *Sizes) FileCount() int64         { return s.files.Load() }
func (s *Sizes) DirectoryCount() int64    { return s.dirs.Load() }

// Snapshot returns all counters.
func (s *Sizes) Snapshot() SizeInfo {
	return SizeInfo{
		TotalSize:         s.totalSize.Load(),
		TotalProgressSize: s.progressSize.Load(),
		FileCount:         s.files.Load(),
		DirectoryCount:    s.dirs.Load(),
		DirUnit:           s.unit,
	}
}

// Reset zeroes the counters for a new run.
func (s *Sizes) Reset() {
	s.totalSize.Store(0)
	s.progressSize.Store(0)
	s.files.Store(0)
	s.dirs.Store(0)
}

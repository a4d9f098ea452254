// Package event defines the notifications emitted by the statistics job and
// the operation worker, and the dispatcher that delivers them in order.
package event

import (
	"time"

	"github.com/bamsammich/ferry/internal/job"
)

// Type identifies the kind of event.
type Type int

const (
	StateChanged Type = iota + 1
	SizeChanged
	DataNotify
	EntryStarted
	EntryProgress
	EntryFinished
	EntrySkipped
	EntryFailed
	DirCreated
	Progress
	DecisionRequested
	DecisionResolved
	JobFinished
)

var typeNames = [...]string{
	StateChanged:      "StateChanged",
	SizeChanged:       "SizeChanged",
	DataNotify:        "DataNotify",
	EntryStarted:      "EntryStarted",
	EntryProgress:     "EntryProgress",
	EntryFinished:     "EntryFinished",
	EntrySkipped:      "EntrySkipped",
	EntryFailed:       "EntryFailed",
	DirCreated:        "DirCreated",
	Progress:          "Progress",
	DecisionRequested: "DecisionRequested",
	DecisionResolved:  "DecisionResolved",
	JobFinished:       "JobFinished",
}

func (t Type) String() string {
	if t > 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Unknown"
}

// Event is a single notification. Which fields are set depends on Type:
//
//   - StateChanged: State, Outcome
//   - SizeChanged: Size (total size so far)
//   - DataNotify: Size, Files, Dirs
//   - Entry*: Path, Dest, Size (entry bytes or bytes so far), Error
//   - Progress: Done, Total (progress units), Files, Dirs, Size (bytes written)
//   - DecisionRequested / DecisionResolved: Request, Decision
//   - JobFinished: Outcome, Summary
type Event struct {
	Timestamp time.Time
	Error     error
	Request   *job.Request
	Summary   any
	JobID     string
	Path      string
	Dest      string
	Size      int64
	Done      int64
	Total     int64
	Files     int64
	Dirs      int64
	State     job.State
	Outcome   job.Outcome
	Decision  job.Decision
	Type      Type
}

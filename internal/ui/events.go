package ui

import "github.com/bamsammich/ferry/internal/event"

// Event is the notification type presenters consume.
type Event = event.Event

// Re-export event types for convenience.
const (
	StateChanged      = event.StateChanged
	EntryStarted      = event.EntryStarted
	EntryFinished     = event.EntryFinished
	EntrySkipped      = event.EntrySkipped
	EntryFailed       = event.EntryFailed
	DirCreated        = event.DirCreated
	Progress          = event.Progress
	DecisionRequested = event.DecisionRequested
	DecisionResolved  = event.DecisionResolved
	JobFinished       = event.JobFinished
)

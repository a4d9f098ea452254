// Package job holds the vocabulary shared by the statistics job, the
// operation worker and the job handle, together with the two blocking
// primitives they are built on: Gate (pause/resume/stop) and Decider
// (error-decision round trips).
package job

// State is the lifecycle state of a job run.
type State int32

const (
	Idle State = iota
	Running
	Paused
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Outcome qualifies the Stopped state.
type Outcome int32

const (
	NoOutcome Outcome = iota
	Completed
	Cancelled
	Failed
)

func (o Outcome) String() string {
	switch o {
	case NoOutcome:
		return "none"
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

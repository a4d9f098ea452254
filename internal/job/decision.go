package job

import "slices"

// Decision is the answer to an error or collision prompt.
type Decision int

const (
	NoDecision Decision = iota
	Skip
	SkipAll
	Retry
	Cancel
	Overwrite
	OverwriteAll
	Rename
	Coexist
)

var decisionNames = [...]string{
	NoDecision:   "none",
	Skip:         "skip",
	SkipAll:      "skip-all",
	Retry:        "retry",
	Cancel:       "cancel",
	Overwrite:    "overwrite",
	OverwriteAll: "overwrite-all",
	Rename:       "rename",
	Coexist:      "coexist",
}

func (d Decision) String() string {
	if d >= 0 && int(d) < len(decisionNames) {
		return decisionNames[d]
	}
	return "unknown"
}

// ParseDecision is the inverse of Decision.String.
func ParseDecision(s string) (Decision, bool) {
	for i, n := range decisionNames {
		if n == s && i != int(NoDecision) {
			return Decision(i), true
		}
	}
	return NoDecision, false
}

// Single maps an "apply to all" answer to its one-shot form.
func (d Decision) Single() Decision {
	switch d {
	case SkipAll:
		return Skip
	case OverwriteAll:
		return Overwrite
	default:
		return d
	}
}

// IsAll reports whether d should be remembered for later prompts.
func (d Decision) IsAll() bool { return d == SkipAll || d == OverwriteAll }

// ErrorKind classifies a failure raised by the operation worker.
type ErrorKind int

const (
	UnknownError ErrorKind = iota
	PermissionDenied
	NotFound
	FileExists
	NoSpace
	ReadFailed
	WriteFailed
	NameTooLong
	SymlinkLoop
	CrossDevice
	DeviceGone
	DeleteFailed
	TrashFailed
	RestoreFailed
	ChecksumMismatch
	TargetInsideSource
)

var errorKindNames = [...]string{
	UnknownError:       "unknown",
	PermissionDenied:   "permission-denied",
	NotFound:           "not-found",
	FileExists:         "file-exists",
	NoSpace:            "no-space",
	ReadFailed:         "read-failed",
	WriteFailed:        "write-failed",
	NameTooLong:        "name-too-long",
	SymlinkLoop:        "symlink-loop",
	CrossDevice:        "cross-device",
	DeviceGone:         "device-gone",
	DeleteFailed:       "delete-failed",
	TrashFailed:        "trash-failed",
	RestoreFailed:      "restore-failed",
	ChecksumMismatch:   "checksum-mismatch",
	TargetInsideSource: "target-inside-source",
}

func (k ErrorKind) String() string {
	if k >= 0 && int(k) < len(errorKindNames) {
		return errorKindNames[k]
	}
	return "unknown"
}

// FatalToEntry reports whether retrying cannot help: the entry is skipped
// after one decision round.
func (k ErrorKind) FatalToEntry() bool {
	switch k {
	case NameTooLong, SymlinkLoop, TargetInsideSource:
		return true
	}
	return false
}

// Request is a blocking prompt raised for one failed entry.
type Request struct {
	ID      string
	JobID   string
	Source  string
	Dest    string
	Message string
	Allowed []Decision
	Kind    ErrorKind
}

// Allows reports whether d is an accepted answer. An empty Allowed list
// accepts anything.
func (r Request) Allows(d Decision) bool {
	return len(r.Allowed) == 0 || slices.Contains(r.Allowed, d)
}

// Standard answer sets.
var (
	CollisionChoices = []Decision{Overwrite, OverwriteAll, Rename, Coexist, Skip, SkipAll, Cancel}
	ConflictChoices  = []Decision{Rename, Coexist, Skip, SkipAll, Cancel}
	ErrorChoices     = []Decision{Retry, Skip, SkipAll, Cancel}
	FatalChoices     = []Decision{Skip, SkipAll, Cancel}
)

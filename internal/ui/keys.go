package ui

import (
	"strings"

	"github.com/bamsammich/ferry/internal/job"
)

type choice struct {
	label    string
	decision job.Decision
	key      rune
}

// choices is the fixed key map shared by the line prompt and the TUI.
var choices = []choice{
	{key: 'o', decision: job.Overwrite, label: "overwrite"},
	{key: 'O', decision: job.OverwriteAll, label: "overwrite all"},
	{key: 'r', decision: job.Rename, label: "rename existing"},
	{key: 'c', decision: job.Coexist, label: "keep both"},
	{key: 't', decision: job.Retry, label: "try again"},
	{key: 's', decision: job.Skip, label: "skip"},
	{key: 'S', decision: job.SkipAll, label: "skip all"},
	{key: 'q', decision: job.Cancel, label: "cancel"},
}

// DecisionForKey maps a key press to an answer the request accepts.
func DecisionForKey(key string, req job.Request) (job.Decision, bool) {
	key = strings.TrimSpace(key)
	for _, c := range choices {
		if key == string(c.key) && req.Allows(c.decision) {
			return c.decision, true
		}
	}
	return job.NoDecision, false
}

// ChoiceHint lists the keys a request accepts, e.g. "[o] overwrite  [s] skip".
func ChoiceHint(req job.Request) string {
	var parts []string
	for _, c := range choices {
		if req.Allows(c.decision) {
			parts = append(parts, "["+string(c.key)+"] "+c.label)
		}
	}
	return strings.Join(parts, "  ")
}

// Describe renders the request headline shown above the choices.
func Describe(req job.Request) string {
	var b strings.Builder
	b.WriteString(headline(req.Kind))
	b.WriteString(": ")
	if req.Dest != "" && req.Kind == job.FileExists {
		b.WriteString(req.Dest)
	} else {
		b.WriteString(req.Source)
	}
	if req.Message != "" {
		b.WriteString(" (")
		b.WriteString(req.Message)
		b.WriteString(")")
	}
	return b.String()
}

func headline(k job.ErrorKind) string {
	switch k {
	case job.FileExists:
		return "already exists"
	case job.PermissionDenied:
		return "permission denied"
	case job.NotFound:
		return "not found"
	case job.NoSpace:
		return "not enough space"
	case job.ReadFailed:
		return "cannot read"
	case job.WriteFailed:
		return "cannot write"
	case job.NameTooLong:
		return "name too long"
	case job.SymlinkLoop:
		return "symlink loop"
	case job.DeleteFailed:
		return "cannot delete"
	case job.TrashFailed:
		return "cannot move to trash"
	case job.RestoreFailed:
		return "cannot restore"
	case job.ChecksumMismatch:
		return "checksum mismatch"
	case job.TargetInsideSource:
		return "target is inside source"
	default:
		return k.String()
	}
}

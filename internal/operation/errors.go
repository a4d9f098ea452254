package operation

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sys/unix"

	"github.com/bamsammich/ferry/internal/event"
	"github.com/bamsammich/ferry/internal/fsys"
	"github.com/bamsammich/ferry/internal/job"
)

// Reasons attached to EntrySkipped events.
var (
	ErrSpecialFile  = errors.New("special file not transferred")
	ErrPseudoFile   = errors.New("pseudo file not transferred")
	ErrSkipped      = errors.New("skipped at user request")
	ErrSameLocation = errors.New("source and destination are the same")
)

var (
	// ErrDeviceGone stops the whole run with Outcome Failed.
	ErrDeviceGone = errors.New("device disappeared")

	errChecksum     = errors.New("checksum mismatch")
	errInsideSource = errors.New("destination is inside the source directory")
)

// EntryError records a failure of one entry.
type EntryError struct {
	Err  error
	Path string
	Dest string
	Kind job.ErrorKind
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Path, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }

// opError tags an I/O error with the stage it came from.
type opError struct {
	err  error
	kind job.ErrorKind
}

func (e *opError) Error() string { return e.err.Error() }
func (e *opError) Unwrap() error { return e.err }

// classify maps err to an ErrorKind, using fallback for anything not
// recognised.
func classify(err error, fallback job.ErrorKind) job.ErrorKind {
	var op *opError
	if errors.As(err, &op) {
		fallback = op.kind
	}
	switch {
	case errors.Is(err, errChecksum):
		return job.ChecksumMismatch
	case errors.Is(err, errInsideSource):
		return job.TargetInsideSource
	case errors.Is(err, unix.ENODEV), errors.Is(err, unix.ENXIO):
		return job.DeviceGone
	case errors.Is(err, fsys.ErrLinkLoop), errors.Is(err, unix.ELOOP):
		return job.SymlinkLoop
	case errors.Is(err, unix.ENAMETOOLONG):
		return job.NameTooLong
	case errors.Is(err, unix.ENOSPC), errors.Is(err, unix.EDQUOT):
		return job.NoSpace
	case errors.Is(err, unix.EXDEV):
		return job.CrossDevice
	case errors.Is(err, fs.ErrPermission):
		return job.PermissionDenied
	case errors.Is(err, fs.ErrNotExist):
		return job.NotFound
	case errors.Is(err, fs.ErrExist):
		return job.FileExists
	}
	return fallback
}

// onError routes a failure through the decider. retry reports whether the
// caller should try again; a non-nil error ends the run.
func (w *Worker) onError(ctx context.Context, kind job.ErrorKind, src, dst string, cause error) (retry bool, err error) {
	if kind == job.DeviceGone {
		w.fail(src, dst, kind, cause)
		return false, fmt.Errorf("%s: %w", src, ErrDeviceGone)
	}
	allowed := job.ErrorChoices
	if kind.FatalToEntry() {
		allowed = job.FatalChoices
	}
	return w.decide(ctx, kind, src, dst, cause, allowed)
}

// giveUp is onError for failures that cannot be retried in place.
func (w *Worker) giveUp(ctx context.Context, kind job.ErrorKind, src, dst string, cause error) error {
	if kind == job.DeviceGone {
		w.fail(src, dst, kind, cause)
		return fmt.Errorf("%s: %w", src, ErrDeviceGone)
	}
	_, err := w.decide(ctx, kind, src, dst, cause, job.FatalChoices)
	return err
}

func (w *Worker) decide(ctx context.Context, kind job.ErrorKind, src, dst string, cause error, allowed []job.Decision) (bool, error) {
	w.log.Debug("requesting decision", "path", src, "kind", kind.String(), "error", cause)
	dec, err := w.decider.Ask(ctx, job.Request{
		Kind:    kind,
		Source:  src,
		Dest:    dst,
		Message: cause.Error(),
		Allowed: allowed,
	})
	if err != nil {
		return false, err
	}
	switch dec {
	case job.Retry:
		return true, nil
	case job.Cancel:
		w.gate.Stop()
		return false, job.ErrStopped
	default:
		w.fail(src, dst, kind, cause)
		return false, nil
	}
}

// attempt runs op until it succeeds, the entry is given up, or the run
// ends. kind is the fallback classification; when fixed is set it is used
// as is (DeviceGone still wins).
func (w *Worker) attempt(ctx context.Context, kind job.ErrorKind, fixed bool, src, dst string, op func() error) (bool, error) {
	for {
		err := op()
		if err == nil {
			return true, nil
		}
		if errors.Is(err, job.ErrStopped) {
			return false, err
		}
		k := classify(err, kind)
		if fixed && k != job.DeviceGone {
			k = kind
		}
		retry, ferr := w.onError(ctx, k, src, dst, err)
		if ferr != nil {
			return false, ferr
		}
		if !retry {
			return false, nil
		}
	}
}

func (w *Worker) fail(src, dst string, kind job.ErrorKind, err error) {
	w.stats.AddEntriesFailed(1)
	w.errs = multierror.Append(w.errs, &EntryError{Path: src, Dest: dst, Kind: kind, Err: err})
	w.events.Emit(event.Event{Type: event.EntryFailed, JobID: w.jobID, Path: src, Dest: dst, Error: err})
	w.log.Warn("entry failed", "path", src, "kind", kind.String(), "error", err)
}

func (w *Worker) skip(src, dst string, reason error) {
	w.stats.AddEntriesSkipped(1)
	w.events.Emit(event.Event{Type: event.EntrySkipped, JobID: w.jobID, Path: src, Dest: dst, Error: reason})
	w.log.Debug("entry skipped", "path", src, "reason", reason)
}

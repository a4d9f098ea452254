package operation

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/bamsammich/ferry/internal/config"
	"github.com/bamsammich/ferry/internal/event"
	"github.com/bamsammich/ferry/internal/fsys"
	"github.com/bamsammich/ferry/internal/job"
)

const unit = 4096

func testSettings() config.Settings {
	s := config.DefaultSettings()
	s.ProgressUnit = unit
	s.ProgressInterval = time.Millisecond
	return s
}

// memTree builds an in-memory tree. Keys ending in "/" are directories.
func memTree(t *testing.T, entries map[string]string) (*fsys.Afero, afero.Fs) {
	t.Helper()
	mfs := afero.NewMemMapFs()
	for p, content := range entries {
		if strings.HasSuffix(p, "/") {
			require.NoError(t, mfs.MkdirAll(p, 0o755))
			continue
		}
		require.NoError(t, mfs.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, afero.WriteFile(mfs, p, []byte(content), 0o644))
	}
	return fsys.NewAfero(mfs, 1), mfs
}

func readFile(t *testing.T, mfs afero.Fs, path string) string {
	t.Helper()
	b, err := afero.ReadFile(mfs, path)
	require.NoError(t, err)
	return string(b)
}

func exists(mfs afero.Fs, path string) bool {
	_, err := mfs.Stat(path)
	return err == nil
}

type recorder struct {
	events []event.Event
	mu     sync.Mutex
}

func (r *recorder) OnEvent(e event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) ofType(typ event.Type) []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []event.Event
	for _, e := range r.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) last() event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

// runPlan runs plan to completion. answer, when set, resolves every
// decision request.
func runPlan(
	t *testing.T,
	fsy fsys.FS,
	plan job.Plan,
	s config.Settings,
	answer func(job.Request) job.Decision,
	configure ...func(*Config),
) (Summary, *recorder) {
	t.Helper()
	rec := &recorder{}
	var decider *job.Decider
	events := event.NewDispatcher(rec, event.ObserverFunc(func(e event.Event) {
		if e.Type == event.DecisionRequested && answer != nil {
			decider.Resolve(e.Request.ID, answer(*e.Request))
		}
	}))
	gate, d := Controls(events, "test")
	decider = d

	cfg := Config{FS: fsy, Plan: plan, Settings: s, Events: events, Gate: gate, Decider: d, JobID: "test"}
	for _, fn := range configure {
		fn(&cfg)
	}
	sum := New(cfg).Run(context.Background())
	events.Close()
	return sum, rec
}

func mustPlan(t *testing.T, kind job.Kind, sources []string, dest string, flags job.Flags) job.Plan {
	t.Helper()
	p, err := job.NewPlan(kind, sources, dest, flags)
	require.NoError(t, err)
	return p
}

func entryErrors(t *testing.T, err error) []*EntryError {
	t.Helper()
	var out []*EntryError
	var merr interface{ WrappedErrors() []error }
	require.ErrorAs(t, err, &merr)
	for _, e := range merr.WrappedErrors() {
		var ee *EntryError
		if errors.As(e, &ee) {
			out = append(out, ee)
		}
	}
	return out
}

// faultFS wraps an FS with optional per-call hooks.
type faultFS struct {
	fsys.FS
	create  func(path string) error
	write   func(path string) error
	remove  func(path string) error
	rename  func(oldPath, newPath string) error
	iterate func(path string)
	open    func(path string, r io.ReadCloser) io.ReadCloser
}

func (f *faultFS) Create(path string, perm fs.FileMode) (io.WriteCloser, error) {
	if f.create != nil {
		if err := f.create(path); err != nil {
			return nil, err
		}
	}
	w, err := f.FS.Create(path, perm)
	if err != nil || f.write == nil {
		return w, err
	}
	return &faultWriter{WriteCloser: w, fail: func() error { return f.write(path) }}, nil
}

func (f *faultFS) Remove(path string) error {
	if f.remove != nil {
		if err := f.remove(path); err != nil {
			return err
		}
	}
	return f.FS.Remove(path)
}

func (f *faultFS) Rename(oldPath, newPath string) error {
	if f.rename != nil {
		if err := f.rename(oldPath, newPath); err != nil {
			return err
		}
	}
	return f.FS.Rename(oldPath, newPath)
}

func (f *faultFS) Iterate(path string) (fsys.Iterator, error) {
	if f.iterate != nil {
		f.iterate(path)
	}
	return f.FS.Iterate(path)
}

func (f *faultFS) OpenRead(path string) (io.ReadCloser, error) {
	r, err := f.FS.OpenRead(path)
	if err != nil || f.open == nil {
		return r, err
	}
	return f.open(path, r), nil
}

type faultWriter struct {
	io.WriteCloser
	fail func() error
}

func (w *faultWriter) Write(p []byte) (int, error) {
	if err := w.fail(); err != nil {
		return 0, err
	}
	return w.WriteCloser.Write(p)
}

type hookReader struct {
	io.ReadCloser
	onRead func()
}

func (r *hookReader) Read(p []byte) (int, error) {
	n, err := r.ReadCloser.Read(p)
	r.onRead()
	return n, err
}

func TestWorker_CopyTree(t *testing.T) {
	fsy, mfs := memTree(t, map[string]string{
		"/src/a.txt":     "hello",
		"/src/sub/b.txt": "world",
		"/src/empty/":    "",
		"/dst/":          "",
	})

	sum, rec := runPlan(t, fsy, mustPlan(t, job.Copy, []string{"/src"}, "/dst", 0), testSettings(), nil)

	require.NoError(t, sum.Err)
	assert.Equal(t, job.Completed, sum.Outcome)
	assert.Equal(t, int64(10), sum.Bytes)
	assert.Equal(t, int64(5), sum.Entries)
	assert.Zero(t, sum.Failed)
	assert.Zero(t, sum.Skipped)

	assert.Equal(t, "hello", readFile(t, mfs, "/dst/src/a.txt"))
	assert.Equal(t, "world", readFile(t, mfs, "/dst/src/sub/b.txt"))
	info, err := mfs.Stat("/dst/src/empty")
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, "hello", readFile(t, mfs, "/src/a.txt"), "copy keeps the source")

	progress := rec.ofType(event.Progress)
	require.NotEmpty(t, progress)
	final := progress[len(progress)-1]
	assert.Equal(t, int64(10+3*unit), final.Total)
	assert.Equal(t, final.Total, final.Done)
	for i := 1; i < len(progress); i++ {
		assert.GreaterOrEqual(t, progress[i].Done, progress[i-1].Done, "progress went backwards")
	}
	assert.Len(t, rec.ofType(event.DirCreated), 3)

	finished := rec.ofType(event.JobFinished)
	require.Len(t, finished, 1)
	assert.Equal(t, job.Completed, finished[0].Outcome)

	last := rec.last()
	assert.Equal(t, event.StateChanged, last.Type)
	assert.Equal(t, job.Stopped, last.State)
	assert.Equal(t, job.Completed, last.Outcome)
}

func TestWorker_CopyOntoItselfCoexists(t *testing.T) {
	fsy, mfs := memTree(t, map[string]string{"/d/f.txt": "data"})

	sum, rec := runPlan(t, fsy, mustPlan(t, job.Copy, []string{"/d/f.txt"}, "/d", 0), testSettings(), nil)

	require.NoError(t, sum.Err)
	assert.Equal(t, "data", readFile(t, mfs, "/d/f (1).txt"))
	assert.Equal(t, "data", readFile(t, mfs, "/d/f.txt"))
	assert.Empty(t, rec.ofType(event.DecisionRequested))
}

func TestWorker_CollisionPolicies(t *testing.T) {
	tests := []struct {
		check  func(t *testing.T, mfs afero.Fs, sum Summary)
		name   string
		policy job.Decision
	}{
		{
			name:   "overwrite",
			policy: job.OverwriteAll,
			check: func(t *testing.T, mfs afero.Fs, _ Summary) {
				assert.Equal(t, "new", readFile(t, mfs, "/dst/f.txt"))
				assert.False(t, exists(mfs, "/dst/f (1).txt"))
			},
		},
		{
			name:   "coexist",
			policy: job.Coexist,
			check: func(t *testing.T, mfs afero.Fs, _ Summary) {
				assert.Equal(t, "old", readFile(t, mfs, "/dst/f.txt"))
				assert.Equal(t, "new", readFile(t, mfs, "/dst/f (1).txt"))
			},
		},
		{
			name:   "rename existing aside",
			policy: job.Rename,
			check: func(t *testing.T, mfs afero.Fs, _ Summary) {
				assert.Equal(t, "new", readFile(t, mfs, "/dst/f.txt"))
				assert.Equal(t, "old", readFile(t, mfs, "/dst/f (1).txt"))
			},
		},
		{
			name:   "skip",
			policy: job.SkipAll,
			check: func(t *testing.T, mfs afero.Fs, sum Summary) {
				assert.Equal(t, "old", readFile(t, mfs, "/dst/f.txt"))
				assert.Equal(t, int64(1), sum.Skipped)
				assert.Zero(t, sum.Entries)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsy, mfs := memTree(t, map[string]string{
				"/src/f.txt": "new",
				"/dst/f.txt": "old",
			})
			s := testSettings()
			s.OnConflict = tt.policy

			sum, rec := runPlan(t, fsy, mustPlan(t, job.Copy, []string{"/src/f.txt"}, "/dst", 0), s, nil)

			require.NoError(t, sum.Err)
			assert.Equal(t, job.Completed, sum.Outcome)
			assert.Empty(t, rec.ofType(event.DecisionRequested), "policy answers without asking")
			tt.check(t, mfs, sum)
		})
	}
}

func TestWorker_MergeDirectories(t *testing.T) {
	fsy, mfs := memTree(t, map[string]string{
		"/src/d/a": "new-a",
		"/src/d/b": "new-b",
		"/dst/d/a": "old-a",
		"/dst/d/c": "old-c",
	})

	var asked []job.Request
	answer := func(r job.Request) job.Decision {
		asked = append(asked, r)
		return job.OverwriteAll
	}
	sum, _ := runPlan(t, fsy, mustPlan(t, job.Copy, []string{"/src/d"}, "/dst", 0), testSettings(), answer)

	require.NoError(t, sum.Err)
	assert.Equal(t, "new-a", readFile(t, mfs, "/dst/d/a"))
	assert.Equal(t, "new-b", readFile(t, mfs, "/dst/d/b"))
	assert.Equal(t, "old-c", readFile(t, mfs, "/dst/d/c"))
	require.Len(t, asked, 1, "OverwriteAll is cached for the rest of the run")
	assert.Equal(t, job.FileExists, asked[0].Kind)
	assert.Equal(t, "/dst/d", asked[0].Dest)
}

func TestWorker_FileOntoDirectoryOffersNoOverwrite(t *testing.T) {
	fsy, mfs := memTree(t, map[string]string{
		"/src/x":   "file",
		"/dst/x/y": "inside",
	})

	var allowed []job.Decision
	answer := func(r job.Request) job.Decision {
		allowed = r.Allowed
		return job.Coexist
	}
	sum, _ := runPlan(t, fsy, mustPlan(t, job.Copy, []string{"/src/x"}, "/dst", 0), testSettings(), answer)

	require.NoError(t, sum.Err)
	assert.NotContains(t, allowed, job.Overwrite)
	assert.Equal(t, "file", readFile(t, mfs, "/dst/x (1)"))
}

func TestWorker_CancelDecision(t *testing.T) {
	fsy, mfs := memTree(t, map[string]string{
		"/src/f.txt": "new",
		"/dst/f.txt": "old",
	})

	sum, _ := runPlan(t, fsy, mustPlan(t, job.Copy, []string{"/src/f.txt"}, "/dst", 0), testSettings(),
		func(job.Request) job.Decision { return job.Cancel })

	assert.Equal(t, job.Cancelled, sum.Outcome)
	assert.Equal(t, "old", readFile(t, mfs, "/dst/f.txt"))
}

func TestWorker_ContextCancelWakesDecision(t *testing.T) {
	fsy, _ := memTree(t, map[string]string{
		"/src/f.txt": "new",
		"/dst/f.txt": "old",
	})
	events := event.NewDispatcher()
	defer events.Close()
	gate, decider := Controls(events, "test")
	w := New(Config{
		FS: fsy, Events: events, Gate: gate, Decider: decider, Settings: testSettings(),
		Plan: mustPlan(t, job.Copy, []string{"/src/f.txt"}, "/dst", 0),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan Summary, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return len(decider.Pending()) == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case sum := <-done:
		assert.Equal(t, job.Cancelled, sum.Outcome)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
	assert.Empty(t, decider.Pending())
}

func TestWorker_CutSameDevice(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	dst := filepath.Join(root, "dst")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "sub"), 0o755))
	require.NoError(t, os.MkdirAll(dst, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "sub", "f"), []byte("payload"), 0o644))

	sum, _ := runPlan(t, fsys.NewLocal(), mustPlan(t, job.Cut, []string{src}, dst, 0), testSettings(), nil)

	require.NoError(t, sum.Err)
	assert.Equal(t, job.Completed, sum.Outcome)
	assert.NoDirExists(t, src)
	got, err := os.ReadFile(filepath.Join(dst, "src", "sub", "f"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))
	assert.Zero(t, sum.Bytes, "same-device cut renames without copying data")
}

func TestWorker_CutCrossDevice(t *testing.T) {
	fsy, mfs := memTree(t, map[string]string{
		"/src/a":     "aaa",
		"/src/sub/b": "bb",
		"/dst/":      "",
	})
	ffs := &faultFS{FS: fsy, rename: func(oldPath, newPath string) error {
		return &os.LinkError{Op: "rename", Old: oldPath, New: newPath, Err: unix.EXDEV}
	}}

	sum, _ := runPlan(t, ffs, mustPlan(t, job.Cut, []string{"/src"}, "/dst", 0), testSettings(), nil)

	require.NoError(t, sum.Err)
	assert.Equal(t, job.Completed, sum.Outcome)
	assert.Equal(t, int64(5), sum.Bytes)
	assert.Equal(t, "aaa", readFile(t, mfs, "/dst/src/a"))
	assert.Equal(t, "bb", readFile(t, mfs, "/dst/src/sub/b"))
	assert.False(t, exists(mfs, "/src/sub/b"))
	assert.False(t, exists(mfs, "/src"))
}

func TestWorker_CutKeepsSourceWhenCopyFails(t *testing.T) {
	fsy, mfs := memTree(t, map[string]string{
		"/src/ok":  "fine",
		"/src/bad": "broken",
		"/dst/":    "",
	})
	ffs := &faultFS{
		FS: fsy,
		rename: func(oldPath, newPath string) error {
			return &os.LinkError{Op: "rename", Old: oldPath, New: newPath, Err: unix.EXDEV}
		},
		create: func(path string) error {
			if filepath.Base(path) == "bad" {
				return &fs.PathError{Op: "open", Path: path, Err: fs.ErrPermission}
			}
			return nil
		},
	}
	s := testSettings()
	s.OnError = job.SkipAll

	sum, _ := runPlan(t, ffs, mustPlan(t, job.Cut, []string{"/src"}, "/dst", 0), s, nil)

	assert.Equal(t, job.Completed, sum.Outcome)
	assert.Equal(t, int64(1), sum.Failed)
	assert.False(t, exists(mfs, "/src/ok"))
	assert.True(t, exists(mfs, "/src/bad"))
	assert.True(t, exists(mfs, "/src"), "directory with a failed child stays")

	errs := entryErrors(t, sum.Err)
	require.Len(t, errs, 1)
	assert.Equal(t, job.PermissionDenied, errs[0].Kind)
	assert.Equal(t, "/src/bad", errs[0].Path)
}

func TestWorker_CutOntoItselfSkips(t *testing.T) {
	fsy, mfs := memTree(t, map[string]string{"/d/f": "x"})

	sum, rec := runPlan(t, fsy, mustPlan(t, job.Cut, []string{"/d/f"}, "/d", 0), testSettings(), nil)

	require.NoError(t, sum.Err)
	assert.Equal(t, int64(1), sum.Skipped)
	assert.True(t, exists(mfs, "/d/f"))
	skipped := rec.ofType(event.EntrySkipped)
	require.Len(t, skipped, 1)
	assert.ErrorIs(t, skipped[0].Error, ErrSameLocation)
}

func TestWorker_TargetInsideSource(t *testing.T) {
	fsy, mfs := memTree(t, map[string]string{"/src/sub/f": "x"})

	var allowed []job.Decision
	sum, _ := runPlan(t, fsy, mustPlan(t, job.Copy, []string{"/src"}, "/src/sub", 0), testSettings(),
		func(r job.Request) job.Decision {
			allowed = r.Allowed
			return job.Skip
		})

	assert.Equal(t, job.Completed, sum.Outcome)
	assert.Equal(t, job.FatalChoices, allowed)
	assert.False(t, exists(mfs, "/src/sub/src"))
	errs := entryErrors(t, sum.Err)
	require.Len(t, errs, 1)
	assert.Equal(t, job.TargetInsideSource, errs[0].Kind)
}

func TestWorker_DeletePostOrder(t *testing.T) {
	fsy, mfs := memTree(t, map[string]string{
		"/tree/a":     "1",
		"/tree/sub/b": "2",
		"/tree/sub/c": "3",
	})

	sum, rec := runPlan(t, fsy, mustPlan(t, job.Delete, []string{"/tree"}, "", 0), testSettings(), nil)

	require.NoError(t, sum.Err)
	assert.Equal(t, job.Completed, sum.Outcome)
	assert.Equal(t, int64(5), sum.Entries)
	assert.False(t, exists(mfs, "/tree"))

	order := map[string]int{}
	for i, e := range rec.ofType(event.EntryFinished) {
		order[e.Path] = i
	}
	assert.Less(t, order["/tree/sub/b"], order["/tree/sub"])
	assert.Less(t, order["/tree/sub/c"], order["/tree/sub"])
	assert.Less(t, order["/tree/sub"], order["/tree"])
	assert.Less(t, order["/tree/a"], order["/tree"])

	progress := rec.ofType(event.Progress)
	final := progress[len(progress)-1]
	assert.Equal(t, int64(5*unit), final.Total)
	assert.Equal(t, final.Total, final.Done)
}

func TestWorker_DeleteKeepsParentOfFailedChild(t *testing.T) {
	fsy, mfs := memTree(t, map[string]string{
		"/tree/keep/locked": "x",
		"/tree/gone":        "y",
	})
	ffs := &faultFS{FS: fsy, remove: func(path string) error {
		if path == "/tree/keep/locked" {
			return &fs.PathError{Op: "remove", Path: path, Err: fs.ErrPermission}
		}
		return nil
	}}
	s := testSettings()
	s.OnError = job.SkipAll

	sum, rec := runPlan(t, ffs, mustPlan(t, job.Delete, []string{"/tree"}, "", 0), s, nil)

	assert.Equal(t, job.Completed, sum.Outcome)
	assert.Equal(t, int64(1), sum.Failed)
	assert.True(t, exists(mfs, "/tree/keep/locked"))
	assert.False(t, exists(mfs, "/tree/gone"))
	assert.Len(t, rec.ofType(event.EntryFailed), 1, "parents of a failed entry are not reported")

	progress := rec.ofType(event.Progress)
	final := progress[len(progress)-1]
	assert.Equal(t, final.Total, final.Done, "given-up subtrees still complete the bar")
}

type mockTrash struct {
	mock.Mock
}

func (m *mockTrash) Trash(ctx context.Context, path string) error {
	return m.Called(ctx, path).Error(0)
}

func (m *mockTrash) Restore(ctx context.Context, trashed, dest string) (string, error) {
	args := m.Called(ctx, trashed, dest)
	return args.String(0), args.Error(1)
}

func TestWorker_Trash(t *testing.T) {
	fsy, _ := memTree(t, map[string]string{"/a": "1", "/b": "2"})
	tr := &mockTrash{}
	tr.On("Trash", mock.Anything, "/a").Return(nil).Once()
	tr.On("Trash", mock.Anything, "/b").Return(errors.New("trash full")).Once()
	s := testSettings()
	s.OnError = job.SkipAll

	sum, _ := runPlan(t, fsy, mustPlan(t, job.Trash, []string{"/a", "/b"}, "", 0), s, nil,
		func(c *Config) { c.Trash = tr })

	tr.AssertExpectations(t)
	assert.Equal(t, job.Completed, sum.Outcome)
	assert.Equal(t, int64(1), sum.Entries)
	errs := entryErrors(t, sum.Err)
	require.Len(t, errs, 1)
	assert.Equal(t, job.TrashFailed, errs[0].Kind)
}

func TestWorker_Restore(t *testing.T) {
	fsy, _ := memTree(t, map[string]string{"/trash/files/x": "1", "/home/": ""})
	tr := &mockTrash{}
	tr.On("Restore", mock.Anything, "/trash/files/x", "/home/x").Return("/home/x", nil).Once()

	sum, rec := runPlan(t, fsy, mustPlan(t, job.Restore, []string{"/trash/files/x"}, "/home", 0), testSettings(), nil,
		func(c *Config) { c.Trash = tr })

	tr.AssertExpectations(t)
	require.NoError(t, sum.Err)
	assert.Equal(t, int64(1), sum.Entries)
	finished := rec.ofType(event.EntryFinished)
	require.Len(t, finished, 1)
	assert.Equal(t, "/home/x", finished[0].Dest)
}

func TestWorker_TrashWithoutBackendFails(t *testing.T) {
	fsy, _ := memTree(t, map[string]string{"/a": "1"})

	sum, _ := runPlan(t, fsy, mustPlan(t, job.Trash, []string{"/a"}, "", 0), testSettings(), nil)

	assert.Equal(t, job.Failed, sum.Outcome)
	assert.ErrorIs(t, sum.Err, ErrNoTrash)
}

func TestWorker_NoSpaceRemovesPartial(t *testing.T) {
	fsy, mfs := memTree(t, map[string]string{"/src/big": "0123456789", "/dst/": ""})
	ffs := &faultFS{FS: fsy, write: func(string) error { return unix.ENOSPC }}

	var kind job.ErrorKind
	sum, _ := runPlan(t, ffs, mustPlan(t, job.Copy, []string{"/src/big"}, "/dst", 0), testSettings(),
		func(r job.Request) job.Decision {
			kind = r.Kind
			return job.Skip
		})

	assert.Equal(t, job.Completed, sum.Outcome)
	assert.Equal(t, job.NoSpace, kind)
	assert.Equal(t, int64(1), sum.Failed)
	assert.False(t, exists(mfs, "/dst/big"), "skipped partial file is removed")
	assert.Empty(t, sum.Incomplete)
}

func TestWorker_NoSpaceCancelKeepsIncomplete(t *testing.T) {
	fsy, mfs := memTree(t, map[string]string{"/src/big": "0123456789", "/dst/": ""})
	ffs := &faultFS{FS: fsy, write: func(string) error { return unix.ENOSPC }}

	sum, rec := runPlan(t, ffs, mustPlan(t, job.Copy, []string{"/src/big"}, "/dst", 0), testSettings(),
		func(job.Request) job.Decision { return job.Cancel })

	assert.Equal(t, job.Cancelled, sum.Outcome)
	assert.Equal(t, []string{"/dst/big"}, sum.Incomplete)
	assert.True(t, exists(mfs, "/dst/big"), "partial file stays for a later clean")
	last := rec.last()
	assert.Equal(t, event.StateChanged, last.Type)
	assert.Equal(t, job.Stopped, last.State)
	assert.Equal(t, job.Cancelled, last.Outcome)
}

func TestWorker_VerifyCancelKeepsIncomplete(t *testing.T) {
	fsy, mfs := memTree(t, map[string]string{"/src/f": "original", "/dst/": ""})
	ffs := &faultFS{FS: fsy, open: func(path string, r io.ReadCloser) io.ReadCloser {
		if strings.HasPrefix(path, "/dst/") {
			r.Close()
			return io.NopCloser(strings.NewReader("tampered"))
		}
		return r
	}}

	sum, _ := runPlan(t, ffs, mustPlan(t, job.Copy, []string{"/src/f"}, "/dst", job.Verify), testSettings(),
		func(job.Request) job.Decision { return job.Cancel })

	assert.Equal(t, job.Cancelled, sum.Outcome)
	assert.Equal(t, []string{"/dst/f"}, sum.Incomplete)
	assert.True(t, exists(mfs, "/dst/f"))
}

func TestWorker_RetryDoesNotOvershootProgress(t *testing.T) {
	fsy, mfs := memTree(t, map[string]string{"/src/f": strings.Repeat("z", 64), "/dst/": ""})
	var fails int
	ffs := &faultFS{FS: fsy, write: func(string) error {
		fails++
		if fails == 3 {
			return unix.EIO
		}
		return nil
	}}
	s := testSettings()
	s.ChunkSize = 16

	sum, rec := runPlan(t, ffs, mustPlan(t, job.Copy, []string{"/src/f"}, "/dst", 0), s,
		func(job.Request) job.Decision { return job.Retry })

	require.NoError(t, sum.Err)
	assert.Equal(t, strings.Repeat("z", 64), readFile(t, mfs, "/dst/f"))
	for _, p := range rec.ofType(event.Progress) {
		assert.LessOrEqual(t, p.Done, int64(64))
	}
}

func TestWorker_DeviceGoneFailsJob(t *testing.T) {
	fsy, _ := memTree(t, map[string]string{"/src/a": "1", "/src/b": "2", "/dst/": ""})
	ffs := &faultFS{FS: fsy, create: func(path string) error {
		return &fs.PathError{Op: "open", Path: path, Err: unix.ENODEV}
	}}

	sum, rec := runPlan(t, ffs, mustPlan(t, job.Copy, []string{"/src/a", "/src/b"}, "/dst", 0), testSettings(), nil)

	assert.Equal(t, job.Failed, sum.Outcome)
	assert.ErrorIs(t, sum.Err, ErrDeviceGone)
	assert.Empty(t, rec.ofType(event.DecisionRequested))
	assert.Equal(t, int64(1), sum.Failed, "the run stops at the first vanished device")
}

func TestWorker_VerifyMismatch(t *testing.T) {
	fsy, mfs := memTree(t, map[string]string{"/src/f": "original", "/dst/": ""})
	ffs := &faultFS{FS: fsy, open: func(path string, r io.ReadCloser) io.ReadCloser {
		if strings.HasPrefix(path, "/dst/") {
			r.Close()
			return io.NopCloser(strings.NewReader("tampered"))
		}
		return r
	}}
	s := testSettings()
	s.OnError = job.SkipAll

	sum, _ := runPlan(t, ffs, mustPlan(t, job.Copy, []string{"/src/f"}, "/dst", job.Verify), s, nil)

	errs := entryErrors(t, sum.Err)
	require.Len(t, errs, 1)
	assert.Equal(t, job.ChecksumMismatch, errs[0].Kind)
	assert.False(t, exists(mfs, "/dst/f"))
}

func TestWorker_VerifyMatch(t *testing.T) {
	fsy, _ := memTree(t, map[string]string{"/src/f": "original", "/dst/": ""})
	s := testSettings()
	s.Verify = true
	events := event.NewDispatcher()
	defer events.Close()

	w := New(Config{FS: fsy, Events: events, Settings: s, Plan: mustPlan(t, job.Copy, []string{"/src/f"}, "/dst", 0)})
	sum := w.Run(context.Background())

	require.NoError(t, sum.Err)
	assert.Equal(t, int64(1), w.Stats().Snapshot().Verified)
}

func TestWorker_StopMidFileListsIncomplete(t *testing.T) {
	fsy, mfs := memTree(t, map[string]string{"/src/big": strings.Repeat("q", 64), "/dst/": ""})
	events := event.NewDispatcher()
	defer events.Close()
	gate, decider := Controls(events, "test")
	ffs := &faultFS{FS: fsy, open: func(path string, r io.ReadCloser) io.ReadCloser {
		return &hookReader{ReadCloser: r, onRead: gate.Stop}
	}}
	s := testSettings()
	s.ChunkSize = 8

	w := New(Config{FS: ffs, Events: events, Gate: gate, Decider: decider, Settings: s,
		Plan: mustPlan(t, job.Copy, []string{"/src/big"}, "/dst", 0)})
	sum := w.Run(context.Background())

	assert.Equal(t, job.Cancelled, sum.Outcome)
	assert.Equal(t, []string{"/dst/big"}, sum.Incomplete)
	assert.True(t, exists(mfs, "/dst/big"), "partial file is left for the caller")
	state, outcome := gate.State()
	assert.Equal(t, job.Stopped, state)
	assert.Equal(t, job.Cancelled, outcome)
}

func TestWorker_PauseBlocksUntilResume(t *testing.T) {
	fsy, mfs := memTree(t, map[string]string{"/src/f": "x", "/dst/": ""})
	release := make(chan struct{})
	var once sync.Once
	ffs := &faultFS{FS: fsy, iterate: func(string) {
		once.Do(func() { <-release })
	}}
	events := event.NewDispatcher()
	defer events.Close()
	gate, decider := Controls(events, "test")
	w := New(Config{FS: ffs, Events: events, Gate: gate, Decider: decider, Settings: testSettings(),
		Plan: mustPlan(t, job.Copy, []string{"/src"}, "/dst", 0)})

	done := make(chan Summary, 1)
	go func() { done <- w.Run(context.Background()) }()

	require.Eventually(t, gate.Active, time.Second, time.Millisecond)
	require.True(t, gate.Pause())
	close(release)

	select {
	case <-done:
		t.Fatal("worker ran while paused")
	case <-time.After(50 * time.Millisecond):
	}
	assert.False(t, exists(mfs, "/dst/src/f"))

	require.True(t, gate.Resume())
	select {
	case sum := <-done:
		assert.Equal(t, job.Completed, sum.Outcome)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not finish after resume")
	}
	assert.Equal(t, "x", readFile(t, mfs, "/dst/src/f"))
}

func TestWorker_PauseHoldsInitialMeasurement(t *testing.T) {
	fsy, _ := memTree(t, map[string]string{
		"/src/a/f": "1", "/src/b/f": "2", "/src/c/f": "3", "/dst/": "",
	})
	release := make(chan struct{})
	var calls atomic.Int32
	ffs := &faultFS{FS: fsy, iterate: func(string) {
		if calls.Add(1) == 1 {
			<-release
		}
	}}
	events := event.NewDispatcher()
	defer events.Close()
	gate, decider := Controls(events, "test")
	w := New(Config{FS: ffs, Events: events, Gate: gate, Decider: decider, Settings: testSettings(),
		Plan: mustPlan(t, job.Copy, []string{"/src"}, "/dst", 0)})

	done := make(chan Summary, 1)
	go func() { done <- w.Run(context.Background()) }()

	require.Eventually(t, func() bool { return gate.Active() && calls.Load() == 1 }, time.Second, time.Millisecond)
	require.True(t, gate.Pause())
	close(release)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "no directory is listed while paused")
	state, _ := gate.State()
	assert.Equal(t, job.Paused, state)

	require.True(t, gate.Resume())
	select {
	case sum := <-done:
		assert.Equal(t, job.Completed, sum.Outcome)
		assert.Equal(t, int64(3), w.Stats().Snapshot().FilesTotal)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not finish after resume")
	}
}

func TestWorker_SkipsPseudoAndFiltered(t *testing.T) {
	fsy, mfs := memTree(t, map[string]string{
		"/src/keep.txt": "k",
		"/src/.hidden":  "h",
		"/dst/":         "",
	})
	s := testSettings()
	s.PseudoFiles = append(s.PseudoFiles, "/src/keep.txt")

	sum, rec := runPlan(t, fsy, mustPlan(t, job.Copy, []string{"/src"}, "/dst", job.SkipHidden), s, nil)

	require.NoError(t, sum.Err)
	assert.False(t, exists(mfs, "/dst/src/keep.txt"))
	assert.False(t, exists(mfs, "/dst/src/.hidden"))
	skipped := rec.ofType(event.EntrySkipped)
	require.Len(t, skipped, 1)
	assert.ErrorIs(t, skipped[0].Error, ErrPseudoFile)
}

func TestNextFree(t *testing.T) {
	fsy, _ := memTree(t, map[string]string{
		"/d/f.txt":     "",
		"/d/f (1).txt": "",
		"/d/.bashrc":   "",
		"/d/dir.v2/":   "",
		"/d/a.tar.gz":  "",
	})
	w := New(Config{FS: fsy, Settings: testSettings()})

	assert.Equal(t, "/d/f (2).txt", w.nextFree("/d/f.txt"))
	assert.Equal(t, "/d/.bashrc (1)", w.nextFree("/d/.bashrc"))
	assert.Equal(t, "/d/dir.v2 (1)", w.nextFree("/d/dir.v2"))
	assert.Equal(t, "/d/a.tar (1).gz", w.nextFree("/d/a.tar.gz"))
}

func TestWithin(t *testing.T) {
	assert.True(t, within("/a", "/a/b"))
	assert.True(t, within("/a/", "/a/b/c"))
	assert.False(t, within("/a", "/a"))
	assert.False(t, within("/a", "/ab"))
	assert.False(t, within("/a/b", "/a"))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want job.ErrorKind
	}{
		{&fs.PathError{Op: "open", Path: "/x", Err: unix.EACCES}, job.PermissionDenied},
		{&fs.PathError{Op: "open", Path: "/x", Err: unix.ENOENT}, job.NotFound},
		{&fs.PathError{Op: "mkdir", Path: "/x", Err: unix.EEXIST}, job.FileExists},
		{&fs.PathError{Op: "write", Path: "/x", Err: unix.EDQUOT}, job.NoSpace},
		{&fs.PathError{Op: "open", Path: "/x", Err: unix.ENAMETOOLONG}, job.NameTooLong},
		{&fs.PathError{Op: "open", Path: "/x", Err: unix.ELOOP}, job.SymlinkLoop},
		{&os.LinkError{Op: "rename", Old: "/a", New: "/b", Err: unix.EXDEV}, job.CrossDevice},
		{&fs.PathError{Op: "read", Path: "/x", Err: unix.ENXIO}, job.DeviceGone},
		{&opError{err: unix.EIO, kind: job.ReadFailed}, job.ReadFailed},
		{errors.New("odd"), job.WriteFailed},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.err, job.WriteFailed))
		})
	}
}

func TestBWLimiter(t *testing.T) {
	assert.Equal(t, defaultChunk, NewBWLimiter(10<<20).Burst())
	assert.Equal(t, 512, NewBWLimiter(512).Burst())
	require.NoError(t, waitBytes(context.Background(), nil, 1<<30))

	l := NewBWLimiter(1 << 20)
	start := time.Now()
	require.NoError(t, waitBytes(context.Background(), l, 3<<20))
	assert.GreaterOrEqual(t, time.Since(start), time.Second, "bursts beyond the first must wait")
}

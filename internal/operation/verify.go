package operation

import (
	"bytes"
	"fmt"
	"io"

	"github.com/zeebo/blake3"

	"github.com/bamsammich/ferry/internal/fsys"
	"github.com/bamsammich/ferry/internal/job"
)

// hashFile computes the BLAKE3 digest of path as read through m.
func hashFile(m fsys.Mutator, path string) ([]byte, error) {
	r, err := m.OpenRead(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer r.Close()

	h := blake3.New()
	buf := make([]byte, 32*1024)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return nil, fmt.Errorf("hash %s: %w", path, err)
	}
	return h.Sum(nil), nil
}

// verifyCopy compares source and destination digests.
func (w *Worker) verifyCopy(src, dst string) error {
	a, err := hashFile(w.fs, src)
	if err != nil {
		return &opError{err: err, kind: job.ReadFailed}
	}
	b, err := hashFile(w.fs, dst)
	if err != nil {
		return &opError{err: err, kind: job.ReadFailed}
	}
	if !bytes.Equal(a, b) {
		return fmt.Errorf("%s: %w", dst, errChecksum)
	}
	w.stats.AddVerified(1)
	return nil
}

package fsys

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/moby/sys/mountinfo"
)

const mountCacheTTL = 5 * time.Second

// MountOf returns the mount containing path, chosen as the longest mount
// point that is a prefix of the cleaned path.
func (l *Local) MountOf(path string) (Mount, error) {
	mounts, err := l.mountTable()
	if err != nil {
		return Mount{}, err
	}
	return longestMount(mounts, path), nil
}

func (l *Local) mountTable() ([]Mount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.mounts != nil && time.Since(l.loadedAt) < mountCacheTTL {
		return l.mounts, nil
	}
	mounts, err := readMountTable()
	if err != nil {
		return nil, err
	}
	l.mounts = mounts
	l.loadedAt = time.Now()
	return mounts, nil
}

func longestMount(mounts []Mount, path string) Mount {
	path = filepath.Clean(path)
	var best Mount
	for _, m := range mounts {
		if !underRoot(m.Root, path) {
			continue
		}
		if len(m.Root) >= len(best.Root) {
			best = m
		}
	}
	return best
}

func underRoot(root, path string) bool {
	if root == "/" || root == path {
		return true
	}
	return strings.HasPrefix(path, root+"/")
}

func readMountTable() ([]Mount, error) {
	infos, err := mountinfo.GetMounts(nil)
	if err != nil {
		return nil, err
	}
	return toMounts(infos), nil
}

func toMounts(infos []*mountinfo.Info) []Mount {
	mounts := make([]Mount, 0, len(infos))
	for _, info := range infos {
		mounts = append(mounts, Mount{
			Root:   info.Mountpoint,
			Device: info.Source,
			FSType: info.FSType,
		})
	}
	return mounts
}

package fsys

import (
	"testing"

	"github.com/moby/sys/mountinfo"
	"github.com/stretchr/testify/assert"
)

var sampleMounts = toMounts([]*mountinfo.Info{
	{Mountpoint: "/", Source: "/dev/sda1", FSType: "ext4"},
	{Mountpoint: "/proc", Source: "proc", FSType: "proc"},
	{Mountpoint: "/home/u/.avfs", Source: "avfsd", FSType: "fuse.avfsd"},
	{Mountpoint: "/media/my disk", Source: "/dev/sdb1", FSType: "vfat"},
})

func TestToMounts(t *testing.T) {
	assert.Equal(t, Mount{Root: "/", Device: "/dev/sda1", FSType: "ext4"}, sampleMounts[0])
	assert.Equal(t, "fuse.avfsd", sampleMounts[2].FSType)
	assert.Empty(t, toMounts(nil))
}

func TestLongestMount(t *testing.T) {
	tests := []struct {
		path string
		root string
	}{
		{"/proc", "/proc"},
		{"/proc/1/fd", "/proc"},
		{"/processes", "/"},
		{"/media/my disk/x", "/media/my disk"},
		{"/home/u", "/"},
		{"/home/u/.avfs/a.zip#", "/home/u/.avfs"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.root, longestMount(sampleMounts, tt.path).Root)
		})
	}
}

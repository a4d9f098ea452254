package fsys

import (
	"strings"
	"testing"

	"github.com/moby/sys/mountinfo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMountInfo = `22 1 8:1 / / rw,relatime shared:1 - ext4 /dev/sda1 rw
23 22 0:21 / /proc rw,nosuid,nodev,noexec,relatime shared:12 - proc proc rw
24 22 0:45 / /home/u/.avfs rw,nosuid,nodev,relatime shared:40 - fuse.avfsd avfsd rw,user_id=1000
25 22 0:46 / /media/my\040disk rw - vfat /dev/sdb1 rw
`

func TestToMounts_FromMountInfo(t *testing.T) {
	infos, err := mountinfo.GetMountsFromReader(strings.NewReader(sampleMountInfo), nil)
	require.NoError(t, err)
	mounts := toMounts(infos)
	require.Len(t, mounts, 4)

	assert.Equal(t, Mount{Root: "/proc", Device: "proc", FSType: "proc"}, mounts[1])
	assert.Equal(t, "/media/my disk", mounts[3].Root)
	assert.Equal(t, "/media/my disk", longestMount(mounts, "/media/my disk/a").Root)
}

func TestLocal_MountOfRoot(t *testing.T) {
	m, err := NewLocal().MountOf("/")
	require.NoError(t, err)
	assert.Equal(t, "/", m.Root)
}

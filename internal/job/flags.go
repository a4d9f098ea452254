package job

import "strings"

// Flags is the option bitset shared by one submitted operation.
type Flags uint32

const (
	NoFollowSymlink Flags = 1 << iota
	SingleDepth
	ExcludeSourceFile
	DontSkipCharDeviceFile
	DontSkipBlockDeviceFile
	DontSkipFIFOFile
	DontSkipSocketFile
	DontSkipAVFSDStorage
	DontSkipPROCStorage
	// SkipHidden ignores dot-named entries below the roots.
	SkipHidden
	// DeepCount makes SingleDepth count files recursively (the number only).
	DeepCount
	// CopyLinkTargets copies what a symlink points to instead of the link.
	CopyLinkTargets
	// Verify compares BLAKE3 digests after each file copy.
	Verify
)

var flagNames = []struct {
	flag Flags
	name string
}{
	{NoFollowSymlink, "no-follow-symlink"},
	{SingleDepth, "single-depth"},
	{ExcludeSourceFile, "exclude-source-file"},
	{DontSkipCharDeviceFile, "dont-skip-char-device"},
	{DontSkipBlockDeviceFile, "dont-skip-block-device"},
	{DontSkipFIFOFile, "dont-skip-fifo"},
	{DontSkipSocketFile, "dont-skip-socket"},
	{DontSkipAVFSDStorage, "dont-skip-avfsd"},
	{DontSkipPROCStorage, "dont-skip-proc"},
	{SkipHidden, "skip-hidden"},
	{DeepCount, "deep-count"},
	{CopyLinkTargets, "copy-link-targets"},
	{Verify, "verify"},
}

// Has reports whether all bits of f2 are set.
func (f Flags) Has(f2 Flags) bool { return f&f2 == f2 }

func (f Flags) String() string {
	if f == 0 {
		return "none"
	}
	var parts []string
	for _, n := range flagNames {
		if f.Has(n.flag) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

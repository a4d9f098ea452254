package job

import (
	"errors"
	"path/filepath"
	"slices"
)

// Kind is the transfer kind a plan executes.
type Kind int

const (
	Copy Kind = iota
	Cut
	Delete
	Trash
	Restore
)

func (k Kind) String() string {
	switch k {
	case Copy:
		return "copy"
	case Cut:
		return "cut"
	case Delete:
		return "delete"
	case Trash:
		return "trash"
	case Restore:
		return "restore"
	default:
		return "unknown"
	}
}

// NeedsDest reports whether the kind requires a destination directory.
func (k Kind) NeedsDest() bool { return k == Copy || k == Cut }

// Pair is one source and its resolved destination.
type Pair struct {
	Source string
	Dest   string
}

// Plan is the immutable description of one user-initiated operation.
type Plan struct {
	Pairs []Pair
	Kind  Kind
	Flags Flags
}

var (
	ErrNoSources = errors.New("no sources given")
	ErrNoDest    = errors.New("destination required")
)

// NewPlan pairs every source with destDir/base(source). destDir is ignored
// for delete and trash, and optional for restore.
func NewPlan(kind Kind, sources []string, destDir string, flags Flags) (Plan, error) {
	if len(sources) == 0 {
		return Plan{}, ErrNoSources
	}
	if kind.NeedsDest() && destDir == "" {
		return Plan{}, ErrNoDest
	}
	p := Plan{Kind: kind, Flags: flags, Pairs: make([]Pair, 0, len(sources))}
	for _, src := range sources {
		src = filepath.Clean(src)
		pair := Pair{Source: src}
		if destDir != "" && kind != Delete && kind != Trash {
			pair.Dest = filepath.Join(destDir, filepath.Base(src))
		}
		p.Pairs = append(p.Pairs, pair)
	}
	return p, nil
}

// Sources returns the source side of every pair.
func (p Plan) Sources() []string {
	out := make([]string, len(p.Pairs))
	for i, pair := range p.Pairs {
		out[i] = pair.Source
	}
	return out
}

// Drop returns a copy of the plan without pair i.
func (p Plan) Drop(i int) Plan {
	if i < 0 || i >= len(p.Pairs) {
		return p
	}
	p.Pairs = slices.Delete(slices.Clone(p.Pairs), i, i+1)
	return p
}

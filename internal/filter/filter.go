// Package filter decides which entries below a root take part in a
// statistics pass or a transfer: ordered include/exclude glob rules, size
// bounds and hidden-name skipping.
package filter

import (
	"path/filepath"
	"strings"
)

// Rule is a single include or exclude rule.
type Rule struct {
	Pattern *compiledPattern
	Include bool
}

// Chain holds an ordered list of rules plus size filters. A nil *Chain
// includes everything.
type Chain struct {
	rules      []Rule
	minSize    int64
	maxSize    int64
	skipHidden bool
}

func NewChain() *Chain {
	return &Chain{}
}

// AddExclude adds an exclude rule for the given pattern.
func (c *Chain) AddExclude(pattern string) error {
	cp, err := compilePattern(pattern)
	if err != nil {
		return err
	}
	c.rules = append(c.rules, Rule{Pattern: cp})
	return nil
}

// AddInclude adds an include rule for the given pattern.
func (c *Chain) AddInclude(pattern string) error {
	cp, err := compilePattern(pattern)
	if err != nil {
		return err
	}
	c.rules = append(c.rules, Rule{Pattern: cp, Include: true})
	return nil
}

func (c *Chain) SetMinSize(n int64)    { c.minSize = n }
func (c *Chain) SetMaxSize(n int64)    { c.maxSize = n }
func (c *Chain) SetSkipHidden(on bool) { c.skipHidden = on }

// Empty reports whether the chain filters nothing.
func (c *Chain) Empty() bool {
	return c == nil || (len(c.rules) == 0 && c.minSize == 0 && c.maxSize == 0 && !c.skipHidden)
}

// Match reports whether relPath should be INCLUDED. relPath is relative to
// the root being walked; size is ignored for directories. The first
// matching rule wins and no match means include.
func (c *Chain) Match(relPath string, isDir bool, size int64) bool {
	if c == nil {
		return true
	}
	relPath = filepath.ToSlash(relPath)
	if c.skipHidden && IsHidden(relPath) {
		return false
	}
	if !isDir {
		if c.minSize > 0 && size < c.minSize {
			return false
		}
		if c.maxSize > 0 && size > c.maxSize {
			return false
		}
	}
	for _, rule := range c.rules {
		if rule.Pattern.match(relPath, isDir) {
			return rule.Include
		}
	}
	return true
}

// IsHidden reports whether the final element of path is a dot-name.
func IsHidden(path string) bool {
	name := filepath.Base(path)
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

package filter

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadFile appends rules read from a file, one per line:
//
//	+ pattern   include
//	- pattern   exclude
//	pattern     exclude
//	# comment
func (c *Chain) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open filter file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for lineNum := 1; sc.Scan(); lineNum++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		add, pattern := c.AddExclude, line
		switch {
		case strings.HasPrefix(line, "+ "):
			add, pattern = c.AddInclude, strings.TrimSpace(line[2:])
		case strings.HasPrefix(line, "- "):
			pattern = strings.TrimSpace(line[2:])
		}
		if err := add(pattern); err != nil {
			return fmt.Errorf("filter file %s line %d: %w", path, lineNum, err)
		}
	}
	return sc.Err()
}

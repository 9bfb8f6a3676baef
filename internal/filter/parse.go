package filter

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadFile reads rules from a file and appends them to the chain.
// Format:
//   - pattern  → ignore
//   + pattern  → keep
//   # comment  → skip
//   blank line → skip
//   no prefix  → ignore
func (c *Chain) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open ignore file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if err := c.addRule(line); err != nil {
			return fmt.Errorf("ignore file %s line %d: %w", path, lineNum, err)
		}
	}

	return scanner.Err()
}

// addRule parses one rule line. "+ " keeps, "- " or no prefix ignores.
func (c *Chain) addRule(line string) error {
	switch {
	case strings.HasPrefix(line, "+ "):
		return c.AddInclude(strings.TrimSpace(line[2:]))
	case strings.HasPrefix(line, "- "):
		return c.AddExclude(strings.TrimSpace(line[2:]))
	default:
		return c.AddExclude(line)
	}
}

// Build returns a chain from inline rules followed by the rules in file
// (skipped when empty). Inline rules use the same prefixes as the file.
func Build(patterns []string, file string) (*Chain, error) {
	c := NewChain()
	for _, p := range patterns {
		if err := c.addRule(strings.TrimSpace(p)); err != nil {
			return nil, err
		}
	}
	if file != "" {
		if err := c.LoadFile(file); err != nil {
			return nil, err
		}
	}
	return c, nil
}

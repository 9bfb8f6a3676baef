// Package filter decides which entries under a root are observed. Rules are
// evaluated in order and the first match wins; an entry no rule matches is
// kept.
package filter

// Rule is a single ignore or keep rule.
type Rule struct {
	Pattern *compiledPattern
	Include bool // true keeps the entry, false ignores it
}

// Chain holds an ordered list of rules.
type Chain struct {
	rules []Rule
}

// NewChain creates an empty chain that keeps everything.
func NewChain() *Chain {
	return &Chain{}
}

// AddExclude appends a rule ignoring entries that match pattern.
func (c *Chain) AddExclude(pattern string) error {
	cp, err := compilePattern(pattern)
	if err != nil {
		return err
	}
	c.rules = append(c.rules, Rule{Pattern: cp, Include: false})
	return nil
}

// AddInclude appends a rule keeping entries that match pattern, overriding
// later excludes.
func (c *Chain) AddInclude(pattern string) error {
	cp, err := compilePattern(pattern)
	if err != nil {
		return err
	}
	c.rules = append(c.rules, Rule{Pattern: cp, Include: true})
	return nil
}

// Empty reports whether the chain has no rules.
func (c *Chain) Empty() bool {
	return c == nil || len(c.rules) == 0
}

// Len returns the number of rules.
func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.rules)
}

// Match returns true if the entry should be kept. relPath is slash-separated
// and relative to the root; isDir marks directories. A nil chain keeps
// everything.
func (c *Chain) Match(relPath string, isDir bool) bool {
	if c == nil {
		return true
	}
	for _, rule := range c.rules {
		if rule.Pattern.match(relPath, isDir) {
			return rule.Include
		}
	}
	return true
}

package filter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	rulesFile := filepath.Join(dir, "ignore.rules")

	content := `# This is a comment
+ *.go
- *.log

- build/
noprefix.txt
`
	require.NoError(t, os.WriteFile(rulesFile, []byte(content), 0o644))

	c := NewChain()
	require.NoError(t, c.LoadFile(rulesFile))

	require.Len(t, c.rules, 4)
	assert.True(t, c.rules[0].Include)
	assert.False(t, c.rules[1].Include)
	assert.False(t, c.rules[2].Include)
	assert.False(t, c.rules[3].Include)

	assert.True(t, c.Match("main.go", false))
	assert.False(t, c.Match("app.log", false))
	assert.False(t, c.Match("build", true))
	assert.False(t, c.Match("noprefix.txt", false))
}

func TestLoadFileMissing(t *testing.T) {
	err := NewChain().LoadFile(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open ignore file")
}

func TestLoadFileReportsLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.rules")
	require.NoError(t, os.WriteFile(path, []byte("*.log\n- [\n"), 0o644))

	err := NewChain().LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestBuild(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ignore.rules")
	require.NoError(t, os.WriteFile(path, []byte("*.tmp\n"), 0o644))

	c, err := Build([]string{".git/"}, path)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
	assert.False(t, c.Match(".git", true))
	assert.False(t, c.Match("x/y.tmp", false))
	assert.True(t, c.Match("keep.txt", false))

	c, err = Build(nil, "")
	require.NoError(t, err)
	assert.True(t, c.Empty())
}

func TestBuild_InlinePrefixes(t *testing.T) {
	c, err := Build([]string{"+ keep.log", "- *.log", " build/ "}, "")
	require.NoError(t, err)
	assert.Equal(t, 3, c.Len())
	assert.True(t, c.Match("keep.log", false))
	assert.False(t, c.Match("other.log", false))
	assert.False(t, c.Match("build", true))
}

package runner

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initRepo(t *testing.T) Git {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	for _, args := range [][]string{
		{"init", "-q", "-b", "main"},
		{"config", "user.email", "test@example.com"},
		{"config", "user.name", "test"},
	} {
		cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
		require.NoError(t, cmd.Run(), "git %v", args)
	}
	return Git{Dir: dir}
}

func commitFile(t *testing.T, g Git, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(g.Dir, name), []byte(content), 0644))
	for _, args := range [][]string{
		{"add", name},
		{"commit", "-q", "-m", "add " + name},
	} {
		cmd := exec.Command("git", append([]string{"-C", g.Dir}, args...)...)
		require.NoError(t, cmd.Run(), "git %v", args)
	}
}

func TestGitFactsOutsideRepo(t *testing.T) {
	g := Git{Dir: t.TempDir()}

	assert.Equal(t, "", g.Branch())
	assert.Equal(t, "", g.ShortCommit())
	assert.Nil(t, g.HotFiles())
}

func TestGitBranchAndCommit(t *testing.T) {
	g := initRepo(t)
	commitFile(t, g, "a.go", "package a\n")

	assert.Equal(t, "main", g.Branch())
	assert.Len(t, g.ShortCommit(), 7)
}

func TestIsAncestor(t *testing.T) {
	g := initRepo(t)
	commitFile(t, g, "a.go", "package a\n")
	first := g.ShortCommit()
	commitFile(t, g, "b.go", "package a\n")

	assert.True(t, g.IsAncestor(first, "HEAD"))
	assert.False(t, g.IsAncestor("HEAD", first))
	assert.False(t, g.IsAncestor("no-such-ref", "HEAD"))

	outside := Git{Dir: t.TempDir()}
	assert.False(t, outside.IsAncestor("HEAD", "HEAD"))
}

func TestHotFilesUnion(t *testing.T) {
	g := initRepo(t)
	commitFile(t, g, "a.go", "package a\n")

	// One modified tracked file, one untracked file.
	require.NoError(t, os.WriteFile(filepath.Join(g.Dir, "a.go"), []byte("package a // edited\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(g.Dir, "b.go"), []byte("package b\n"), 0644))

	hot := g.HotFiles()
	assert.ElementsMatch(t, []string{"a.go", "b.go"}, hot)
}

func TestHotFilesFallsBackToLastCommit(t *testing.T) {
	g := initRepo(t)
	commitFile(t, g, "a.go", "package a\n")

	// Clean tree: the last commit's files stand in for hot files.
	hot := g.HotFiles()
	assert.Equal(t, []string{"a.go"}, hot)
}

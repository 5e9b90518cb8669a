package deps

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTool(t *testing.T, dir, name string, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), mode))
	return path
}

// withExecutable pretends the running binary lives in dir.
func withExecutable(t *testing.T, dir string) {
	t.Helper()
	previous := executable
	executable = func() (string, error) { return filepath.Join(dir, "dashgrab"), nil }
	t.Cleanup(func() { executable = previous })
}

func TestResolveAll(t *testing.T) {
	withExecutable(t, t.TempDir())
	present := writeTool(t, t.TempDir(), "ffmpeg", 0o755)

	probes := ResolveAll([]Tool{
		FFmpeg(present),
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  "},
	})
	require.Len(t, probes, 3)

	assert.True(t, probes[0].Available)
	assert.Equal(t, present, probes[0].Path)
	assert.Empty(t, probes[0].Detail)
	assert.True(t, probes[0].Optional)

	assert.False(t, probes[1].Available)
	assert.Empty(t, probes[1].Path)
	assert.Contains(t, probes[1].Detail, "not found")

	assert.False(t, probes[2].Available)
	assert.Equal(t, "command not configured", probes[2].Detail)
}

func TestResolve_PrefersPath(t *testing.T) {
	binDir := t.TempDir()
	onPath := writeTool(t, binDir, "ffmpeg", 0o755)
	t.Setenv("PATH", binDir)

	beside := t.TempDir()
	writeTool(t, beside, "ffmpeg", 0o755)
	withExecutable(t, beside)

	probe := Resolve(FFmpeg("ffmpeg"))
	assert.True(t, probe.Available)
	assert.Equal(t, onPath, probe.Path)
}

func TestResolve_FindsBundledBinary(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	beside := t.TempDir()
	bundledPath := writeTool(t, beside, "ffmpeg", 0o755)
	withExecutable(t, beside)

	probe := Resolve(FFmpeg("ffmpeg"))
	assert.True(t, probe.Available)
	assert.Equal(t, bundledPath, probe.Path)
}

func TestResolve_IgnoresNonExecutableBundledFile(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	beside := t.TempDir()
	writeTool(t, beside, "ffmpeg", 0o644)
	withExecutable(t, beside)

	probe := Resolve(FFmpeg("ffmpeg"))
	assert.False(t, probe.Available)
	assert.Equal(t, `binary "ffmpeg" not found`, probe.Detail)
}

func TestResolve_PathsAreNotSearchedElsewhere(t *testing.T) {
	beside := t.TempDir()
	writeTool(t, beside, "ffmpeg", 0o755)
	withExecutable(t, beside)

	probe := Resolve(FFmpeg(filepath.Join(t.TempDir(), "ffmpeg")))
	assert.False(t, probe.Available)
}

package main

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func setupWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("FRAMEFED_REMOTE_ENTRY_TEMPLATE", filepath.Join(dir, "frames", "frame-{id}", "remoteEntry.go"))
	t.Setenv("FRAMEFED_LOG_OUTPUTS", filepath.Join(dir, "framefed.log"))
	t.Setenv("FRAMEFED_BUILD_LOCK_FILE", filepath.Join(dir, "build.lock"))
	t.Setenv("FRAMEFED_BUILD_FRAMES_DIR", filepath.Join(dir, "frames"))

	img := image.NewGray(image.Rect(0, 0, 2, 2))
	img.SetGray(1, 0, color.Gray{Y: 255})
	img.SetGray(0, 1, color.Gray{Y: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "frame.png"), buf.Bytes(), 0o644))
	return dir
}

func TestGenThenResolve(t *testing.T) {
	dir := setupWorkspace(t)
	entry := filepath.Join(dir, "frames", "frame-0002", "remoteEntry.go")

	_, err := runCommand(t, "gen", filepath.Join(dir, "frame.png"), "--frame", "2", "--palette", "-o", entry)
	require.NoError(t, err)
	src, err := os.ReadFile(entry)
	require.NoError(t, err)
	assert.Contains(t, string(src), "package frame_0002")

	out, err := runCommand(t, "resolve", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "frame_0002/Frame")
	assert.Contains(t, out, "2x2")
	assert.Contains(t, out, "ok")
}

func TestResolveReportsFailures(t *testing.T) {
	setupWorkspace(t)

	out, err := runCommand(t, "resolve", "5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 frame(s) failed")
	assert.Contains(t, out, "frame_0005/Frame")
	assert.Contains(t, out, "load")
}

func TestResolveRejectsBadFrames(t *testing.T) {
	setupWorkspace(t)

	_, err := runCommand(t, "resolve", "zero")
	assert.ErrorContains(t, err, "not a number")
	_, err = runCommand(t, "resolve", "0")
	assert.ErrorContains(t, err, "outside")
}

func TestGenWritesToStdout(t *testing.T) {
	dir := setupWorkspace(t)

	out, err := runCommand(t, "gen", filepath.Join(dir, "frame.png"), "--frame", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "package frame_0007")
	assert.Contains(t, out, "func MountFrame(target io.Writer) error")
}

func TestBuildDryRunCommand(t *testing.T) {
	dir := setupWorkspace(t)
	for _, name := range []string{"frame-0001", "frame-0002", "frame-0003"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "frames", name), 0o755))
	}

	out, err := runCommand(t, "build", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "1-3")
	assert.Contains(t, out, "ok")
}

func TestBadConfigFails(t *testing.T) {
	setupWorkspace(t)
	t.Setenv("FRAMEFED_PLAYBACK_FPS", "0")

	_, err := runCommand(t, "resolve")
	assert.ErrorContains(t, err, "fps")
}

func TestFileOutputs(t *testing.T) {
	assert.Equal(t, []string{"/var/log/framefed.log"}, fileOutputs([]string{"stderr", "/var/log/framefed.log", " stdout "}))
	assert.Empty(t, fileOutputs([]string{"stdout"}))
}

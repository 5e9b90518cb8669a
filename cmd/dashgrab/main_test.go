package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testManifest = `<MPD xmlns="urn:mpeg:dash:schema:mpd:2011">
  <Period>
    <AdaptationSet mimeType="video/mp4">
      <Representation id="hd" width="1920" height="1080">
        <SegmentTemplate timescale="1" duration="5" initialization="v/init.mp4" media="v/$Number$.m4s"/>
      </Representation>
    </AdaptationSet>
    <AdaptationSet mimeType="audio/mp4">
      <Representation id="aac">
        <SegmentTemplate timescale="1" duration="5" initialization="a/init.mp4" media="a/$Number$.m4s"/>
      </Representation>
    </AdaptationSet>
  </Period>
</MPD>`

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeDescriptor(t *testing.T, serverURL string) string {
	t.Helper()
	doc := fmt.Sprintf(`{
  "informacio": {"titol": "Els Matins: 12/03", "durada": {"milisegons": 10000}},
  "media": {"url": [
    {"label": "DASH", "file": "%[1]s/vod/manifest.mpd"},
    {"label": "720p", "file": "%[1]s/vod/720.mp4"}
  ]},
  "subtitols": [{"text": "Català", "url": "%[1]s/vod/ca.vtt", "iso": "ca"}]
}`, serverURL)
	path := filepath.Join(t.TempDir(), "6543.json")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func newTestOrigin(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/vod/manifest.mpd" {
			w.Write([]byte(testManifest))
			return
		}
		w.Write([]byte(r.URL.Path + "|"))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestOptionsCommand_WithoutFFmpeg(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	server := newTestOrigin(t)

	out, err := runCLI(t, "options", writeDescriptor(t, server.URL), "--log-level", "error")
	require.NoError(t, err)

	assert.Contains(t, out, "Els Matins 1203 (video, 00:00:10)")
	assert.Contains(t, out, "Audio")
	assert.Contains(t, out, "HD (720p)")
	assert.Contains(t, out, "Subtitles (ca)")
	assert.NotContains(t, out, "Full HD (1080p)")
}

func TestOptionsCommand_WithFFmpeg(t *testing.T) {
	binDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(binDir, "ffmpeg"), []byte("#!/bin/sh\nexit 0\n"), 0o755))
	t.Setenv("PATH", binDir)
	server := newTestOrigin(t)

	out, err := runCLI(t, "options", writeDescriptor(t, server.URL), "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "Video - Full HD (1080p)")
}

func TestGetCommand_DashAudio(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	server := newTestOrigin(t)
	outDir := t.TempDir()

	out, err := runCLI(t, "get", writeDescriptor(t, server.URL), "1", "-o", outDir, "--log-level", "error")
	require.NoError(t, err)

	path := filepath.Join(outDir, "Els Matins 1203.m4a")
	assert.Equal(t, path, strings.TrimSpace(out))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/vod/a/init.mp4|/vod/a/0.m4s|/vod/a/1.m4s|", string(data))
}

func TestGetCommand_OutOfRange(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	server := newTestOrigin(t)

	_, err := runCLI(t, "get", writeDescriptor(t, server.URL), "9", "--log-level", "error")
	assert.ErrorContains(t, err, "out of range")

	_, err = runCLI(t, "get", writeDescriptor(t, server.URL), "first", "--log-level", "error")
	assert.ErrorContains(t, err, "not a number")
}

func TestSRTCommand(t *testing.T) {
	dir := t.TempDir()
	vtt := filepath.Join(dir, "show.ca.vtt")
	require.NoError(t, os.WriteFile(vtt, []byte("WEBVTT\n\n00:01.000 --> 00:02.000\nHola\n"), 0o644))
	empty := filepath.Join(dir, "empty.vtt")
	require.NoError(t, os.WriteFile(empty, []byte("WEBVTT\n"), 0o644))

	out, err := runCLI(t, "srt", vtt, empty, "--log-level", "error")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "show.ca.srt")+"\n", out)
	assert.FileExists(t, empty)
}

func TestDepsCommand(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	out, err := runCLI(t, "deps")
	require.NoError(t, err)
	assert.Contains(t, out, "FFmpeg")
	assert.Contains(t, out, "missing (optional)")
}

func TestLogLevelWarningFlag(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	_, err := runCLI(t, "deps", "--log-level", "warning")
	assert.NoError(t, err)
}

func TestInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[network]\nattempts = 0\n"), 0o644))

	_, err := runCLI(t, "deps", "--config", path)
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "01:02:08", formatDuration(3728.5))
	assert.Equal(t, "00:00:00", formatDuration(0))
}

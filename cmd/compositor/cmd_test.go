package main

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/compositor/internal/timebase"
)

const testProject = `
version: "1"
width: 16
height: 8
fps: 10
layers:
  - id: bg
    start: 0
    length: 1s
    nodes:
      - {key: fill, type: solid, params: {color: "#00ff00"}}
`

func writeProject(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "demo project.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--log-format", "json"))
	return rootCmd.Execute()
}

func TestFrameCommand(t *testing.T) {
	path := writeProject(t, testProject)
	out := filepath.Join(t.TempDir(), "f.png")

	require.NoError(t, execute(t, "frame", path, "--time", "500ms", "--out", out))

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 16, img.Bounds().Dx())
	_, g, _, _ := img.At(4, 4).RGBA()
	assert.Equal(t, uint32(0xffff), g)
}

func TestFrameCommandBadTime(t *testing.T) {
	path := writeProject(t, testProject)
	err := execute(t, "frame", path, "--time", "soon")
	assert.ErrorContains(t, err, "--time")
}

func TestValidateCommand(t *testing.T) {
	require.NoError(t, execute(t, "validate", writeProject(t, testProject)))

	broken := strings.Replace(testProject, "type: solid", "type: nope", 1)
	assert.Error(t, execute(t, "validate", writeProject(t, broken)))
}

func TestRenderCommandPNGSequence(t *testing.T) {
	path := writeProject(t, testProject)
	dir := filepath.Join(t.TempDir(), "seq") + string(filepath.Separator)

	require.NoError(t, execute(t, "render", path, "--out", dir, "--from", "0", "--to", "300ms"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var frames int
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".png" {
			frames++
		}
	}
	assert.Equal(t, 3, frames)
}

func TestParseRange(t *testing.T) {
	start, end, err := parseRange("1.5", "")
	require.NoError(t, err)
	assert.Equal(t, timebase.New(3, 2), start)
	assert.True(t, end.IsZero())

	_, end, err = parseRange("0", "2s")
	require.NoError(t, err)
	assert.Equal(t, timebase.Seconds(2), end)

	_, _, err = parseRange("x", "")
	assert.ErrorContains(t, err, "--from")
}

func TestDefaultOutput(t *testing.T) {
	out := defaultOutput("/projects/my intro.yaml")
	assert.Equal(t, "output", filepath.Dir(out))
	assert.True(t, strings.HasPrefix(filepath.Base(out), "my_intro_"))
	assert.Equal(t, ".mp4", filepath.Ext(out))
}

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemstudio/gem/editor-go/internal/editor"
	"github.com/gemstudio/gem/editor-go/internal/patch"
)

const mockup = `<html><body>
  <h1 data-gem-id="hero-title" style="left: 20px; top: 20px; width: 100px; height: 40px; font-size: 20px">Launch faster</h1>
  <p data-gem-id="hero-copy" data-x="20" data-y="80" data-w="200" data-h="40">Ship it</p>
</body></html>`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(new(bytes.Buffer))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestBuildReplaysScript(t *testing.T) {
	dir := t.TempDir()
	html := writeFile(t, dir, "page.html", mockup)
	script := writeFile(t, dir, "script.json", `[
		{"type": "selection.set", "ids": ["hero-title"]},
		{"type": "transform.move", "dx": 15, "dy": -5},
		{"type": "selection.set", "ids": ["hero-copy"]},
		{"type": "layer.delete"}
	]`)

	out, err := execute(t, "build", "--html", html, "--script", script)
	require.NoError(t, err)

	p, err := patch.Decode([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, patch.Schema, p.Schema)
	assert.Equal(t, 15.0, p.Transforms["hero-title"].X)
	assert.Equal(t, -5.0, p.Transforms["hero-title"].Y)
	assert.Contains(t, p.Layers.Deleted, "hero-copy")
}

func TestBuildWritesOutFile(t *testing.T) {
	dir := t.TempDir()
	html := writeFile(t, dir, "page.html", mockup)
	dest := filepath.Join(dir, "patch.json")

	out, err := execute(t, "build", "--html", html, "--out", dest)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	p, err := patch.Decode(data)
	require.NoError(t, err)
	assert.Empty(t, p.Transforms)
}

func TestBuildErrors(t *testing.T) {
	dir := t.TempDir()
	html := writeFile(t, dir, "page.html", mockup)

	_, err := execute(t, "build")
	assert.Error(t, err)

	_, err = execute(t, "build", "--html", filepath.Join(dir, "missing.html"))
	assert.ErrorContains(t, err, "open mock-up")

	bad := writeFile(t, dir, "bad.json", `{"type": "x"}`)
	_, err = execute(t, "build", "--html", html, "--script", bad)
	assert.ErrorContains(t, err, "decode script")

	unknown := writeFile(t, dir, "unknown.json", `[{"type": "bogus"}]`)
	_, err = execute(t, "build", "--html", html, "--script", unknown)
	assert.ErrorIs(t, err, editor.ErrUnknownCommand)
}

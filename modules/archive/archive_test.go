package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/furkankose/katmer/core/module"
)

func TestExecutePacksAndUnpacksTarGz(t *testing.T) {
	dir := t.TempDir()
	srcDir := filepath.Join(dir, "payload")
	require.NoError(t, os.MkdirAll(srcDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "file.txt"), []byte("hello"), 0o644))

	archivePath := filepath.Join(dir, "payload.tar.gz")
	mod := &Module{}
	packMc := &module.Context{Params: map[string]any{"src": srcDir, "dest": archivePath, "action": "pack"}}
	res, err := mod.Execute(context.Background(), packMc)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	require.FileExists(t, archivePath)

	extractDir := filepath.Join(dir, "extracted")
	unpackMc := &module.Context{Params: map[string]any{"src": archivePath, "dest": extractDir, "action": "unpack"}}
	res, err = mod.Execute(context.Background(), unpackMc)
	require.NoError(t, err)
	assert.True(t, res.Changed)

	content, err := os.ReadFile(filepath.Join(extractDir, "payload", "file.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))
}

func TestExecutePackSkipsWhenDestAlreadyExists(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "existing.tar")
	require.NoError(t, os.WriteFile(dest, []byte("placeholder"), 0o644))

	mod := &Module{}
	mc := &module.Context{Params: map[string]any{"src": dir, "dest": dest, "action": "pack"}}
	res, err := mod.Execute(context.Background(), mc)
	require.NoError(t, err)
	assert.False(t, res.Changed)
}

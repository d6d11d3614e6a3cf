package template

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/furkankose/katmer/core/module"
	"github.com/furkankose/katmer/core/provider"
)

func TestExecuteRendersAndWrites(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "motd.tmpl")
	require.NoError(t, os.WriteFile(src, []byte("hello {{ name }}"), 0o644))

	var written string
	exec := func(ctx context.Context, command string, opts provider.ExecOptions) (provider.ExecResult, error) {
		switch {
		case strings.Contains(command, "base64 -d >"):
			written = command
			return provider.ExecResult{}, nil
		case strings.HasPrefix(command, "mkdir -p"):
			return provider.ExecResult{}, nil
		default:
			return provider.ExecResult{}, &notFoundErr{}
		}
	}

	mod := &Module{}
	mc := &module.Context{
		Params:    map[string]any{"src": src, "dest": "/tmp/motd"},
		Variables: map[string]any{"name": "katmer"},
		Exec:      exec,
	}
	res, err := mod.Execute(context.Background(), mc)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.NotEmpty(t, written)
}

type notFoundErr struct{}

func (*notFoundErr) Error() string { return "not found" }

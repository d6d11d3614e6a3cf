package git

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/furkankose/katmer/core/module"
	"github.com/furkankose/katmer/core/provider"
)

type repoErr struct{}

func (*repoErr) Error() string { return "not a repo" }

func TestExecuteClonesWhenDestIsNotARepo(t *testing.T) {
	var ran []string
	exec := func(ctx context.Context, command string, opts provider.ExecOptions) (provider.ExecResult, error) {
		ran = append(ran, command)
		switch {
		case strings.Contains(command, "rev-parse --is-inside-work-tree"):
			return provider.ExecResult{}, &repoErr{}
		case strings.Contains(command, "git clone"):
			return provider.ExecResult{}, nil
		case strings.Contains(command, "rev-parse HEAD"):
			return provider.ExecResult{Stdout: "abc123\n"}, nil
		}
		t.Fatalf("unexpected command %q", command)
		return provider.ExecResult{}, nil
	}
	mod := &Module{}
	mc := &module.Context{Params: map[string]any{"repo": "https://example.test/r.git", "dest": "/srv/app"}, Exec: exec}
	res, err := mod.Execute(context.Background(), mc)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Contains(t, ran, "git clone --depth 1 https://example.test/r.git /srv/app")
}

func TestExecuteSkipsWhenAlreadyAtRequestedSha(t *testing.T) {
	exec := func(ctx context.Context, command string, opts provider.ExecOptions) (provider.ExecResult, error) {
		switch {
		case strings.Contains(command, "rev-parse --is-inside-work-tree"):
			return provider.ExecResult{Stdout: "true\n"}, nil
		case strings.Contains(command, "rev-parse HEAD"):
			return provider.ExecResult{Stdout: "deadbeef\n"}, nil
		case strings.Contains(command, "fetch"):
			return provider.ExecResult{}, nil
		case strings.Contains(command, "rev-parse origin/"):
			return provider.ExecResult{Stdout: "deadbeef\n"}, nil
		}
		t.Fatalf("unexpected command %q", command)
		return provider.ExecResult{}, nil
	}
	mod := &Module{}
	mc := &module.Context{Params: map[string]any{"repo": "https://example.test/r.git", "dest": "/srv/app", "version": "main"}, Exec: exec}
	res, err := mod.Execute(context.Background(), mc)
	require.NoError(t, err)
	assert.False(t, res.Changed)
}

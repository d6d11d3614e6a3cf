package hostname

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/furkankose/katmer/core/module"
	"github.com/furkankose/katmer/core/provider"
	"github.com/furkankose/katmer/core/types"
)

type fakeProvider struct {
	provider.Provider
	family types.OSFamily
}

func (f fakeProvider) GetOsInfo() types.OsInfo { return types.OsInfo{Family: f.family} }

func TestExecuteChangesHostnameWhenDifferent(t *testing.T) {
	var ran string
	exec := func(ctx context.Context, command string, opts provider.ExecOptions) (provider.ExecResult, error) {
		if command == "hostname" {
			return provider.ExecResult{Stdout: "old-name\n"}, nil
		}
		ran = command
		return provider.ExecResult{}, nil
	}
	mod := &Module{}
	mc := &module.Context{
		Params:   map[string]any{"name": "new-name"},
		Exec:     exec,
		Provider: fakeProvider{family: types.FamilyLinux},
	}
	res, err := mod.Execute(context.Background(), mc)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, "hostnamectl set-hostname new-name", ran)
}

func TestExecuteSkipsWhenAlreadySet(t *testing.T) {
	exec := func(ctx context.Context, command string, opts provider.ExecOptions) (provider.ExecResult, error) {
		return provider.ExecResult{Stdout: "web1\n"}, nil
	}
	mod := &Module{}
	mc := &module.Context{
		Params:   map[string]any{"name": "web1"},
		Exec:     exec,
		Provider: fakeProvider{family: types.FamilyLinux},
	}
	res, err := mod.Execute(context.Background(), mc)
	require.NoError(t, err)
	assert.False(t, res.Changed)
}

package pkg

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/furkankose/katmer/core/module"
	"github.com/furkankose/katmer/core/provider"
	"github.com/furkankose/katmer/core/types"
)

func mcWithExec(params map[string]any, exec provider.Executor) *module.Context {
	return &module.Context{
		Params: params,
		Exec:   exec,
		Provider: fakeOsInfoProvider{},
	}
}

type fakeOsInfoProvider struct{ provider.Provider }

func (fakeOsInfoProvider) GetOsInfo() types.OsInfo { return types.OsInfo{Family: types.FamilyLinux} }

func TestExecuteInstallsMissingPackage(t *testing.T) {
	var ran []string
	exec := func(ctx context.Context, command string, opts provider.ExecOptions) (provider.ExecResult, error) {
		ran = append(ran, command)
		if command == "command -v apt" {
			return provider.ExecResult{Stdout: "/usr/bin/apt"}, nil
		}
		if command == "dpkg-query -W -f='${Version}' git" {
			return provider.ExecResult{}, &fakeExecErr{}
		}
		return provider.ExecResult{}, nil
	}
	mod := &Module{name: "pkg"}
	mc := mcWithExec(map[string]any{"name": "git"}, exec)
	res, err := mod.Execute(context.Background(), mc)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Contains(t, ran, "DEBIAN_FRONTEND=noninteractive apt-get install -y git")
}

func TestExecuteSkipsAlreadyInstalledPackage(t *testing.T) {
	exec := func(ctx context.Context, command string, opts provider.ExecOptions) (provider.ExecResult, error) {
		if command == "command -v apt" {
			return provider.ExecResult{Stdout: "/usr/bin/apt"}, nil
		}
		if command == "dpkg-query -W -f='${Version}' git" {
			return provider.ExecResult{Stdout: "1:2.39.2-1"}, nil
		}
		t.Fatalf("unexpected command %q", command)
		return provider.ExecResult{}, nil
	}
	mod := &Module{name: "pkg"}
	mc := mcWithExec(map[string]any{"name": "git"}, exec)
	res, err := mod.Execute(context.Background(), mc)
	require.NoError(t, err)
	assert.False(t, res.Changed)
}

type fakeExecErr struct{}

func (*fakeExecErr) Error() string { return "exit 1" }

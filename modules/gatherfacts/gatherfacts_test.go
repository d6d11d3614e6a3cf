package gatherfacts

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
	osInfo types.OsInfo
}

func (f fakeProvider) GetOsInfo() types.OsInfo { return f.osInfo }

func TestExecuteGathersFactsIntoVariables(t *testing.T) {
	exec := func(ctx context.Context, command string, opts provider.ExecOptions) (provider.ExecResult, error) {
		switch command {
		case "hostname":
			return provider.ExecResult{Stdout: "web1\n"}, nil
		case "nproc":
			return provider.ExecResult{Stdout: "4\n"}, nil
		case "grep MemTotal /proc/meminfo | awk '{print $2}'":
			return provider.ExecResult{Stdout: "2048000\n"}, nil
		case "hostname -I":
			return provider.ExecResult{Stdout: "10.0.0.5 172.17.0.2\n"}, nil
		}
		t.Fatalf("unexpected command %q", command)
		return provider.ExecResult{}, nil
	}

	mod := &Module{}
	vars := map[string]any{}
	mc := &module.Context{
		Exec:      exec,
		Variables: vars,
		Provider:  fakeProvider{osInfo: types.OsInfo{Family: types.FamilyLinux, DistroID: "ubuntu", VersionID: "22.04", Kernel: "5.15.0", Arch: types.ArchAMD64}},
	}
	res, err := mod.Execute(context.Background(), mc)
	require.NoError(t, err)
	assert.False(t, res.Changed)

	facts, ok := vars["facts"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "web1", facts["hostname"])
	assert.Equal(t, 4, facts["cpu_count"])
	assert.Equal(t, 2000, facts["memory_mb"])
	assert.Equal(t, []string{"10.0.0.5", "172.17.0.2"}, facts["ip_addresses"])
}

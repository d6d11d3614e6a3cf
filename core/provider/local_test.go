package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/furkankose/katmer/core/types"
)

func TestLocalProviderExecutorRunsSimpleCommand(t *testing.T) {
	p := NewLocalProvider(types.Target{Name: "local", Connection: types.ConnectionLocal}, testLogger())
	exec := p.Executor(ExecutorOptions{Shell: "sh"})

	res, err := exec(context.Background(), "echo hello", ExecOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Code)
	assert.Equal(t, "hello", res.Stdout)
}

func TestLocalProviderExecutorNonZeroExitReturnsError(t *testing.T) {
	p := NewLocalProvider(types.Target{Name: "local", Connection: types.ConnectionLocal}, testLogger())
	exec := p.Executor(ExecutorOptions{Shell: "sh"})

	res, err := exec(context.Background(), "exit 7", ExecOptions{})
	require.Error(t, err)
	assert.Equal(t, 7, res.Code)
}

func TestLocalProviderExecutorSafeNeverErrors(t *testing.T) {
	p := NewLocalProvider(types.Target{Name: "local", Connection: types.ConnectionLocal}, testLogger())
	exec := ExecSafe(p.Executor(ExecutorOptions{Shell: "sh"}))

	res, err := exec(context.Background(), "exit 3", ExecOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Code)
}

func TestLocalProviderExecutorTimeout(t *testing.T) {
	p := NewLocalProvider(types.Target{Name: "local", Connection: types.ConnectionLocal}, testLogger())
	exec := p.Executor(ExecutorOptions{Shell: "sh"})

	res, err := exec(context.Background(), "sleep 2", ExecOptions{Timeout: 50})
	require.Error(t, err)
	assert.Equal(t, 1, res.Code)
	assert.Contains(t, res.Stderr, "timed out")
}

func TestLocalProviderExecutorOnStdoutCallback(t *testing.T) {
	p := NewLocalProvider(types.Target{Name: "local", Connection: types.ConnectionLocal}, testLogger())
	exec := p.Executor(ExecutorOptions{Shell: "sh"})

	var lines []string
	_, err := exec(context.Background(), "printf 'a\\nb\\n'", ExecOptions{
		OnStdout: func(l string) { lines = append(lines, l) },
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, lines)
}

func TestLocalProviderEnsureReadyProbesOsInfo(t *testing.T) {
	p := NewLocalProvider(types.Target{Name: "local", Connection: types.ConnectionLocal}, testLogger())
	err := p.EnsureReady(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, types.FamilyUnknown, p.GetOsInfo().Family)
	assert.NotEmpty(t, p.DefaultShell())
}

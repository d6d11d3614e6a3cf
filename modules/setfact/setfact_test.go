package setfact

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/furkankose/katmer/core/module"
)

func TestExecuteDeepMergesNestedMaps(t *testing.T) {
	mod := &Module{}
	vars := map[string]any{"facts": map[string]any{"hostname": "web1", "region": "eu"}}
	mc := &module.Context{
		Variables: vars,
		Params:    map[string]any{"facts": map[string]any{"region": "us", "zone": "a"}},
	}
	res, err := mod.Execute(context.Background(), mc)
	require.NoError(t, err)
	assert.True(t, res.Changed)

	facts := vars["facts"].(map[string]any)
	assert.Equal(t, "web1", facts["hostname"])
	assert.Equal(t, "us", facts["region"])
	assert.Equal(t, "a", facts["zone"])
}

func TestExecuteRendersTemplatedValues(t *testing.T) {
	mod := &Module{}
	vars := map[string]any{"name": "katmer"}
	mc := &module.Context{
		Variables: vars,
		Params:    map[string]any{"greeting": "hello {{ name }}"},
	}
	_, err := mod.Execute(context.Background(), mc)
	require.NoError(t, err)
	assert.Equal(t, "hello katmer", vars["greeting"])
}

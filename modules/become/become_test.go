package become

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/furkankose/katmer/core/module"
)

func TestBecomeIsRegisteredAndInternal(t *testing.T) {
	mod, ok := module.Lookup("become")
	assert.True(t, ok)

	internal, ok := mod.(module.Internal)
	assert.True(t, ok)
	assert.True(t, internal.InternalOnly())
}

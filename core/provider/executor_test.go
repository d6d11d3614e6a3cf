package provider

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestRunExecHidesSuppressedPromptLineWithNoStrayNewline exercises the
// real runExec surfacing path (not the pump in isolation): a marked
// sudo prompt with HidePromptLine must contribute nothing to Stdout, not
// even a blank line.
func TestRunExecHidesSuppressedPromptLineWithNoStrayNewline(t *testing.T) {
	var stdin bytes.Buffer
	handle := processHandle{
		Stdin:  &stdin,
		Stdout: strings.NewReader("KATMER_SUDO_PROMPT:\nhello\n"),
		Wait:   func() (int, error) { return 0, nil },
	}
	become := &BecomeOptions{
		InteractivePassword: "pw",
		PromptMarker:        "KATMER_SUDO_PROMPT:",
		HidePromptLine:      true,
	}

	res := runExec(context.Background(), "sudo -S -p 'KATMER_SUDO_PROMPT:' true", 0, become, nil, nil, handle)

	assert.Equal(t, "hello", res.Stdout)
	assert.Equal(t, "pw\n", stdin.String())
}

package http

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/furkankose/katmer/core/module"
)

type fakeDoer struct {
	status int
	body   string
	lastReq *http.Request
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	f.lastReq = req
	return &http.Response{
		StatusCode: f.status,
		Body:       io.NopCloser(strings.NewReader(f.body)),
	}, nil
}

func TestExecuteSucceedsOnExpectedStatus(t *testing.T) {
	doer := &fakeDoer{status: 200, body: `{"ok":true}`}
	mod := &Module{Client: doer}
	mc := &module.Context{Params: map[string]any{
		"url": "https://example.test/webhook", "expect_status": 200, "expect_contains": "ok",
	}}
	res, err := mod.Execute(context.Background(), mc)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, "GET", doer.lastReq.Method)
}

func TestExecuteFailsOnUnexpectedStatus(t *testing.T) {
	doer := &fakeDoer{status: 500, body: "boom"}
	mod := &Module{Client: doer}
	mc := &module.Context{Params: map[string]any{
		"url": "https://example.test/webhook", "expect_status": 200,
	}}
	res, err := mod.Execute(context.Background(), mc)
	require.NoError(t, err)
	assert.True(t, res.Failed)
}

func TestExecuteFailsWhenBodyMissingExpectedSubstring(t *testing.T) {
	doer := &fakeDoer{status: 200, body: "nope"}
	mod := &Module{Client: doer}
	mc := &module.Context{Params: map[string]any{
		"url": "https://example.test/webhook", "expect_contains": "ok",
	}}
	res, err := mod.Execute(context.Background(), mc)
	require.NoError(t, err)
	assert.True(t, res.Failed)
}

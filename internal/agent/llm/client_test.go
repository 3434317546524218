package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptedReplaysInOrder(t *testing.T) {
	s := NewScripted(Reply{Text: "one"}, Reply{Err: errors.New("boom")})
	s.Fallback = Reply{Text: "fallback"}
	ctx := context.Background()

	got, err := s.Complete(ctx, Request{Prompt: "a", JSON: true})
	require.NoError(t, err)
	assert.Equal(t, "one", got)

	_, err = s.Complete(ctx, Request{Prompt: "b"})
	assert.EqualError(t, err, "boom")

	got, err = s.Complete(ctx, Request{Prompt: "c"})
	require.NoError(t, err)
	assert.Equal(t, "fallback", got)

	calls := s.Calls()
	require.Len(t, calls, 3)
	assert.True(t, calls[0].JSON)
	assert.Equal(t, "c", calls[2].Prompt)
}

func TestScriptedHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Texts("x").Complete(ctx, Request{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFuncAdapter(t *testing.T) {
	var c Client = Func(func(_ context.Context, req Request) (string, error) { return "echo:" + req.Prompt, nil })
	got, err := c.Complete(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "echo:hi", got)
}

package completion

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticClient struct {
	raw json.RawMessage
	err error
}

func (s *staticClient) Complete(context.Context, Request) (json.RawMessage, error) {
	return s.raw, s.err
}

func (s *staticClient) Model() string { return "static-model" }

func TestCountingClientCountsCalls(t *testing.T) {
	c := NewCountingClient(&staticClient{raw: json.RawMessage(`{"ok":true}`)})
	assert.EqualValues(t, 0, c.Calls())

	raw, err := c.Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`{"ok":true}`), raw)
	assert.EqualValues(t, 1, c.Calls())

	_, _ = c.Complete(context.Background(), Request{})
	assert.EqualValues(t, 2, c.Calls())
	assert.Equal(t, "static-model", c.Model())
}

func TestCountingClientCountsFailedCalls(t *testing.T) {
	boom := errors.New("boom")
	c := NewCountingClient(&staticClient{err: boom})

	_, err := c.Complete(context.Background(), Request{})
	require.ErrorIs(t, err, boom)
	assert.EqualValues(t, 1, c.Calls())
}

package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"energyweb/internal/model"
	"energyweb/internal/store"
)

func TestCursor(t *testing.T) {
	c := NewCursor(store.NewSliceRows([]model.Row{row(1, 1, b0), row(2, 2, b0)}))

	r, ok := c.Peek()
	require.True(t, ok)
	assert.Equal(t, 1, r.SensorID)

	// Peek does not consume.
	r, _ = c.Peek()
	assert.Equal(t, 1, r.SensorID)
	assert.Zero(t, c.Consumed())

	c.Advance()
	r, ok = c.Peek()
	require.True(t, ok)
	assert.Equal(t, 2, r.SensorID)
	assert.False(t, c.Exhausted())

	c.Advance()
	assert.True(t, c.Exhausted())
	_, ok = c.Peek()
	assert.False(t, ok)

	c.Advance()
	assert.Equal(t, 2, c.Consumed())
	assert.NoError(t, c.Err())
}

func TestCursor_Empty(t *testing.T) {
	c := NewCursor(store.NewSliceRows(nil))
	assert.True(t, c.Exhausted())
	assert.Zero(t, c.Consumed())
}

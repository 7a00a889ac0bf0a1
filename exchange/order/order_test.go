package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSideOpposite(t *testing.T) {
	assert.Equal(t, Sell, Buy.Opposite())
	assert.Equal(t, Buy, Sell.Opposite())
}

func TestStatusClassification(t *testing.T) {
	assert.True(t, Open.IsResting())
	assert.True(t, Partial.IsResting())
	assert.False(t, Filled.IsResting())
	assert.False(t, Cancelled.IsResting())

	assert.True(t, Filled.IsTerminal())
	assert.True(t, Cancelled.IsTerminal())
	assert.False(t, Open.IsTerminal())
	assert.False(t, Partial.IsTerminal())
}

func TestPositionSide(t *testing.T) {
	assert.Equal(t, Long, Buy.PositionSide())
	assert.Equal(t, Short, Sell.PositionSide())
	assert.Equal(t, Short, Long.Opposite())
	assert.Equal(t, Long, Short.Opposite())
}

package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArg(t *testing.T) {
	args := []any{"title", 3}

	s, err := Arg[string](args, 0)
	require.NoError(t, err)
	assert.Equal(t, "title", s)

	n, err := Arg[int](args, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = Arg[int](args, 0)
	assert.ErrorContains(t, err, "expected int, got string")

	_, err = Arg[string](args, 5)
	assert.ErrorContains(t, err, "missing argument 5")

	def, err := OptionalArg(args, 2, "fallback")
	require.NoError(t, err)
	assert.Equal(t, "fallback", def)
}

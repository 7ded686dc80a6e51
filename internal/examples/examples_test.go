package examples

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamesIncludesBundledScripts(t *testing.T) {
	names, err := Names()
	require.NoError(t, err)
	assert.Contains(t, names, "hello")
	assert.Contains(t, names, "counter")
	assert.Contains(t, names, "store_demo")
}

func TestSourceReturnsScriptBody(t *testing.T) {
	src, err := Source("hello")
	require.NoError(t, err)
	assert.Contains(t, src, "Hello, World!")
}

func TestSourceUnknownNameErrors(t *testing.T) {
	_, err := Source("nope")
	require.Error(t, err)
}

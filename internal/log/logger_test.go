package log

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLevel(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	require.NoError(t, SetLevel("debug"))
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
	assert.Error(t, SetLevel("loud"))
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}

func TestWithComponent(t *testing.T) {
	l := WithComponent("scheduler")
	assert.NotEqual(t, zerolog.Disabled, l.GetLevel())
}

package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	v := Get()
	require.NotEmpty(t, v)
	assert.Equal(t, strings.TrimSpace(v), v, "version has surrounding whitespace")
	assert.Equal(t, "switchboard/"+v, UserAgent())
}

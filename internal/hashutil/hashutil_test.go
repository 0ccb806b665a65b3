package hashutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShortIsStablePrefix(t *testing.T) {
	a := Short("m1:rules")
	assert.Len(t, a, ShortLen)
	assert.Equal(t, a, Short("m1:rules"))
	assert.NotEqual(t, a, Short("m1:rules amended"))
}

func TestShortStringsMatchesHashPrefix(t *testing.T) {
	full := HashStrings("a", "b")
	assert.Equal(t, full[:ShortLen], ShortStrings("a", "b"))
	assert.NotEqual(t, ShortStrings("ab"), ShortStrings("a", "b"))
}

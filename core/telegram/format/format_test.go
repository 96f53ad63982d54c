package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeMDV2(t *testing.T) {
	assert.Equal(t, "`Example 2 Option 1.`", CodeMDV2("Example 2 Option 1."))
	assert.Equal(t, "`a\\`b\\\\`", CodeMDV2("a`b\\"))
}

func TestCode(t *testing.T) {
	assert.Equal(t, "<code>a&lt;1 &amp; b</code>", Code("a<1 & b"))
}

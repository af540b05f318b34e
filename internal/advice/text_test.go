package advice

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlainText(t *testing.T) {
	got := PlainText(`<p>Rest <strong>well</strong> &amp; drink water.</p><ul><li>One</li><li>Two</li></ul>`)
	assert.Equal(t, "Rest well & drink water.\nOne\nTwo", got)
	assert.Equal(t, "no tags", PlainText("no tags"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abc...", Truncate("abcdef", 3))
	long := strings.Repeat("é", 600)
	assert.Equal(t, 503, len([]rune(Truncate(long, 500))))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, `<p>ok</p>`, Sanitize(` <p onclick="x()">ok</p><script>bad()</script> `))
}

package sanitize

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "repeated punctuation", in: "hello!!!!!! world", want: "hello!! world"},
		{name: "three repeats kept", in: "wait... what???", want: "wait... what???"},
		{name: "letters never collapse", in: "GGGGGG ______", want: "GGGGGG ______"},
		{name: "html entities", in: "Tom&nbsp;&amp;&nbsp;Jerry &lt;3", want: "Tom & Jerry <3"},
		{name: "control chars", in: "a\x00b\x07c\x1Fd\x7Fe", want: "abcde"},
		{name: "control tokens", in: "<|start|>hello<|channel|> there", want: "hello there"},
		{name: "code fences multiline", in: "before ```go\nfunc x() {}\n``` after ```y``` end", want: "before after end"},
		{name: "whitespace", in: "  a \n\n b\t\tc  ", want: "a b c"},
		{name: "truncate runes", in: "héllo wörld", max: 4, want: "héll"},
		{name: "escaped token survives unescape", in: "&lt;|im_end|&gt;done", want: "done"},
		{name: "banner of hashes", in: "##########\nTitle", want: "## Title"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Sanitize(tc.in, tc.max))
		})
	}
}

func TestSanitizeLengthBound(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("word ", 2000)
	for _, n := range []int{1, 10, 399, 4000} {
		got := Sanitize(long, n)
		assert.LessOrEqual(t, utf8.RuneCountInString(got), n)
	}
	assert.Equal(t, DefaultMaxChars, utf8.RuneCountInString(Sanitize(long, 0)))
}

func TestSanitizeOrder(t *testing.T) {
	t.Parallel()

	// Unescaping runs first, so an entity-encoded fence is still stripped.
	assert.Equal(t, "keep", Sanitize("keep &#96;&#96;&#96;drop&#96;&#96;&#96;", 100))
	// Whitespace collapse runs after the repeat collapse, so spaced symbols stay.
	assert.Equal(t, "- - - -", Sanitize("-   -   -   -", 100))
}

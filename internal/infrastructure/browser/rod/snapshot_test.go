package rod

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-rod/rod/lib/input"
)

func TestTextFromHTML_SkipsNonContent(t *testing.T) {
	text, err := textFromHTML(`<html><head><title>ignored</title><style>.x{}</style></head>
<body><h1>Your cart</h1><script>var x = 1;</script><p>3 items,  total  $42</p></body></html>`)
	require.NoError(t, err)

	assert.Equal(t, "Your cart 3 items, total $42", text)
	assert.NotContains(t, text, "var x")
	assert.NotContains(t, text, "ignored")
}

func TestTextFromHTML_BoundsOutput(t *testing.T) {
	huge := "<body><p>" + strings.Repeat("word ", 10000) + "</p></body>"
	text, err := textFromHTML(huge)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(text), maxPageTextLen)
}

func TestTextFromHTML_BoundsOnRuneBoundary(t *testing.T) {
	huge := "<body><p>" + strings.Repeat("商品 ", 8000) + "</p></body>"
	text, err := textFromHTML(huge)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(text), maxPageTextLen)
	assert.True(t, utf8.ValidString(text), "the cap must not split a rune")
}

func TestKeyByName(t *testing.T) {
	key, err := keyByName("Enter")
	require.NoError(t, err)
	assert.Equal(t, input.Enter, key)

	key, err = keyByName("a")
	require.NoError(t, err)
	assert.Equal(t, input.Key('a'), key)

	_, err = keyByName("HyperMegaKey")
	assert.Error(t, err)
}

func TestSnapshotScript_IsSelfContainedFunction(t *testing.T) {
	assert.True(t, strings.HasPrefix(snapshotScript, "function()"))
	assert.Contains(t, snapshotScript, "JSON.stringify")
	assert.NotContains(t, snapshotScript, "data-agent", "the script must not mutate the page it snapshots")
}

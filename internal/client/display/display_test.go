package display

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderBoard(t *testing.T) {
	var out bytes.Buffer
	RenderBoard(&out, "  ab\na BW\nb UU\n")

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[1], Red+"B"+Reset)
	assert.Contains(t, lines[1], Blue+"W"+Reset)
	assert.True(t, strings.HasSuffix(lines[2], ".."))
}

func TestIndent(t *testing.T) {
	assert.Equal(t, "{\n  \"a\": 1\n}", Indent([]byte(`{"a":1}`)))
	assert.Equal(t, "not json", Indent([]byte("not json")))
}

func TestColorForState(t *testing.T) {
	assert.Equal(t, Green+"success"+Reset, ColorForState("success"))
	assert.Equal(t, Yellow+"compiling"+Reset, ColorForState("compiling"))
}

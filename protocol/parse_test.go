package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSingleCommand(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Command
	}{
		{
			name: "bare query",
			in:   "*idn?\n",
			want: Command{Leaf: "*idn?", Raw: "*idn?"},
		},
		{
			name: "namespace path",
			in:   "freq:freq 1000\n",
			want: Command{Path: []string{"freq"}, Leaf: "freq", Args: []string{"1000"}, Raw: "freq:freq 1000"},
		},
		{
			name: "nested path",
			in:   "horiz:scale 1e-3\n",
			want: Command{Path: []string{"horiz"}, Leaf: "scale", Args: []string{"1e-3"}, Raw: "horiz:scale 1e-3"},
		},
		{
			name: "multiple args",
			in:   "trig:mode auto rising\n",
			want: Command{Path: []string{"trig"}, Leaf: "mode", Args: []string{"auto", "rising"}, Raw: "trig:mode auto rising"},
		},
		{
			name: "case folded including args",
			in:   "FREQ:Freq 1E3\n",
			want: Command{Path: []string{"freq"}, Leaf: "freq", Args: []string{"1e3"}, Raw: "freq:freq 1e3"},
		},
		{
			name: "carriage return terminator",
			in:   "meas:volt?\r",
			want: Command{Path: []string{"meas"}, Leaf: "volt?", Raw: "meas:volt?"},
		},
		{
			name: "no terminator at all",
			in:   "test?",
			want: Command{Leaf: "test?", Raw: "test?"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmds := Split([]byte(tt.in))
			require.Len(t, cmds, 1)
			assert.Equal(t, tt.want, cmds[0])
		})
	}
}

func TestSplitBatch(t *testing.T) {
	cmds := Split([]byte("volt 2.5\nvolt?\nmeas:volt?\n"))
	require.Len(t, cmds, 3)
	assert.Equal(t, "volt", cmds[0].Leaf)
	assert.Equal(t, []string{"2.5"}, cmds[0].Args)
	assert.Equal(t, "volt?", cmds[1].Leaf)
	assert.Equal(t, []string{"meas"}, cmds[2].Path)
}

// Windows clients terminate with \r\n; the blank line that folding
// produces must not surface as an empty command.
func TestSplitCRLF(t *testing.T) {
	cmds := Split([]byte("out 1\r\nout?\r\n"))
	require.Len(t, cmds, 2)
	assert.Equal(t, "out", cmds[0].Leaf)
	assert.Equal(t, "out?", cmds[1].Leaf)
}

func TestSplitWhitespaceOnly(t *testing.T) {
	for _, in := range []string{"", "\n", "\r\n", "\n\n\n", "\r\r"} {
		assert.Empty(t, Split([]byte(in)), "input %q", in)
	}
}

func TestSplitPreservesArbitraryBytes(t *testing.T) {
	// 0xE9 is not valid UTF-8 on its own; it must come through untouched.
	cmds := Split([]byte("label \xe9\n"))
	require.Len(t, cmds, 1)
	require.Len(t, cmds[0].Args, 1)
	assert.Equal(t, "\xe9", cmds[0].Args[0])
}

func TestIsBaseline(t *testing.T) {
	assert.True(t, Command{Leaf: "*idn?"}.IsBaseline())
	assert.True(t, Command{Leaf: "*rst"}.IsBaseline())
	assert.False(t, Command{Leaf: "test?"}.IsBaseline())
	// A starred leaf under a namespace is not the baseline set.
	assert.False(t, Command{Path: []string{"freq"}, Leaf: "*idn?"}.IsBaseline())
}

func TestPathString(t *testing.T) {
	assert.Equal(t, "", Command{Leaf: "test?"}.PathString())
	assert.Equal(t, "c1", Command{Path: []string{"c1"}, Leaf: "data?"}.PathString())
	assert.Equal(t, "a:b", Command{Path: []string{"a", "b"}, Leaf: "x"}.PathString())
}

package pyc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestLineTableRoundTrip checks the offset-to-line round trip: for every
// offset covered by a recorded range, GetLine(offset) falls within it.
func TestLineTableRoundTrip(t *testing.T) {
	lt := NewLineTable([][3]int{
		{0, 4, 10},
		{4, 8, 11},
		{8, 16, 13},
	})

	line, ok := lt.GetLine(0)
	require.True(t, ok)
	require.Equal(t, 10, line)

	line, ok = lt.GetLine(6)
	require.True(t, ok)
	require.Equal(t, 11, line)

	line, ok = lt.GetLine(15)
	require.True(t, ok)
	require.Equal(t, 13, line)

	_, ok = lt.GetLine(16)
	require.False(t, ok, "offset at the end of the last range is not covered")

	_, ok = lt.GetLine(-1)
	require.False(t, ok)
}

// TestParseLineTable decodes a 3.10+ co_linetable-shaped stream: two
// (length, line_delta) pairs starting at firstLine.
func TestParseLineTable(t *testing.T) {
	raw := []byte{4, 0, 4, 1} // 4 bytes at line 10, then 4 more at line 11
	lt := ParseLineTable(raw, 10)

	line, ok := lt.GetLine(0)
	require.True(t, ok)
	require.Equal(t, 10, line)

	line, ok = lt.GetLine(5)
	require.True(t, ok)
	require.Equal(t, 11, line)

	_, ok = lt.GetLine(8)
	require.False(t, ok)
}

// TestParseLnotab decodes a pre-3.10 co_lnotab-shaped stream: pairs of
// unsigned (byte_increment, line_increment) deltas, where each pair's
// line_increment takes effect starting at the following region.
func TestParseLnotab(t *testing.T) {
	raw := []byte{6, 1, 3, 0} // 6 bytes at line 1, then 3 more at line 2
	lt := ParseLnotab(raw, 1)

	line, ok := lt.GetLine(0)
	require.True(t, ok)
	require.Equal(t, 1, line)

	line, ok = lt.GetLine(6)
	require.True(t, ok)
	require.Equal(t, 2, line)

	_, ok = lt.GetLine(9)
	require.False(t, ok)
}

func TestLineTableNilReceiver(t *testing.T) {
	var lt *LineTable
	_, ok := lt.GetLine(0)
	require.False(t, ok)
}

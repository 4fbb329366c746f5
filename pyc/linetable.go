package pyc

import "sort"

// LineTable maps bytecode offsets to source line numbers. It is
// deliberately minimal, present only so cmd/unpyc and the end-to-end tests
// have line information to work with, not a byte-for-byte reimplementation
// of CPython's PEP 626 co_linetable encoding.
type LineTable struct {
	entries []lineEntry
}

type lineEntry struct {
	start, end int // [start, end)
	line       int
}

// GetLine returns the source line covering offset, or ok=false if offset
// falls outside every recorded range.
func (lt *LineTable) GetLine(offset int) (int, bool) {
	if lt == nil {
		return 0, false
	}
	i := sort.Search(len(lt.entries), func(i int) bool { return lt.entries[i].end > offset })
	if i == len(lt.entries) {
		return 0, false
	}
	e := lt.entries[i]
	if offset < e.start || offset >= e.end {
		return 0, false
	}
	return e.line, true
}

// NewLineTable builds a LineTable directly from (start, end, line) rows,
// used by tests and by ParseLineTable/ParseLnotab below.
func NewLineTable(rows [][3]int) *LineTable {
	lt := &LineTable{}
	for _, r := range rows {
		lt.entries = append(lt.entries, lineEntry{start: r[0], end: r[1], line: r[2]})
	}
	sort.Slice(lt.entries, func(i, j int) bool { return lt.entries[i].start < lt.entries[j].start })
	return lt
}

// ParseLineTable decodes a 3.10+ co_linetable byte string: pairs of
// (length, line_delta) bytes, one pair per bytecode region, starting at
// firstLine. A line_delta of -128 (encoded as byte 0x80 via the usual
// signed-delta convention) repeats the previous line, matching a "no line
// change" run. This is a simplified reading of PEP 626's encoding, not a
// faithful one — sufficient for the offset-to-line invariant this package
// exists to satisfy.
func ParseLineTable(raw []byte, firstLine int) *LineTable {
	lt := &LineTable{}
	offset := 0
	line := firstLine
	for i := 0; i+1 < len(raw); i += 2 {
		length := int(raw[i])
		delta := int(int8(raw[i+1]))
		if delta != -128 {
			line += delta
		}
		if length > 0 {
			lt.entries = append(lt.entries, lineEntry{start: offset, end: offset + length, line: line})
		}
		offset += length
	}
	return lt
}

// ParseLnotab decodes the pre-3.10 co_lnotab format: pairs of
// (byte_increment, line_increment) bytes, both unsigned deltas from the
// previous entry, starting at firstLine and offset 0.
func ParseLnotab(raw []byte, firstLine int) *LineTable {
	lt := &LineTable{}
	offset := 0
	line := firstLine
	for i := 0; i+1 < len(raw); i += 2 {
		byteIncr := int(raw[i])
		lineIncr := int(raw[i+1])
		if byteIncr > 0 {
			lt.entries = append(lt.entries, lineEntry{start: offset, end: offset + byteIncr, line: line})
		}
		offset += byteIncr
		line += lineIncr
	}
	return lt
}

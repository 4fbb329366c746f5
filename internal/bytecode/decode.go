package bytecode

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/dr8co/unpyc/internal/opcode"
	"github.com/dr8co/unpyc/internal/pyversion"
)

// Decode iterates the raw bytecode of a CodeObject into a slice of decoded
// Instructions. EXTENDED_ARG instructions are folded into
// the argument of the instruction that consumes them and never appear in
// the result.
func Decode(code []byte, v pyversion.Version) ([]Instruction, error) {
	if v.WordCoded() {
		return decodeWordCoded(code, v)
	}
	return decodeLegacy(code, v)
}

func decodeWordCoded(code []byte, v pyversion.Version) ([]Instruction, error) {
	var out []Instruction
	var extended uint32
	prefixStart := -1
	i := 0
	for i < len(code) {
		if i+2 > len(code) {
			return nil, errors.Wrapf(ErrTruncatedInstruction, "at offset %d", i)
		}
		rawOp := code[i]
		rawArg := code[i+1]

		op, ok := opcode.OpcodeOf(v, rawOp)
		if !ok {
			return nil, errors.Wrapf(ErrUnknownOpcode, "byte %d at offset %d", rawOp, i)
		}

		if op == opcode.EXTENDED_ARG {
			if prefixStart < 0 {
				prefixStart = i
			}
			extended = (extended | uint32(rawArg)) << 8
			i += 2
			continue
		}

		arg := extended | uint32(rawArg)
		extended = 0
		start := i
		if prefixStart >= 0 {
			start, prefixStart = prefixStart, -1
		}

		cacheEntries := opcode.CacheEntries(op, v)
		size := 2 + cacheEntries*2
		if i+size > len(code) {
			return nil, errors.Wrapf(ErrTruncatedCache, "opcode %s at offset %d", opcode.Name(op), i)
		}

		out = append(out, Instruction{
			Op:           op,
			Arg:          arg,
			Offset:       start,
			Size:         i + size - start,
			CacheEntries: cacheEntries,
		})
		i += size
	}
	if prefixStart >= 0 {
		return nil, errors.Wrapf(ErrDanglingExtendedArg, "at end of code")
	}
	return out, nil
}

func decodeLegacy(code []byte, v pyversion.Version) ([]Instruction, error) {
	var out []Instruction
	var extended uint32
	prefixStart := -1
	i := 0
	for i < len(code) {
		rawOp := code[i]
		op, ok := opcode.OpcodeOf(v, rawOp)
		if !ok {
			return nil, errors.Wrapf(ErrUnknownOpcode, "byte %d at offset %d", rawOp, i)
		}

		if op == opcode.EXTENDED_ARG {
			if i+3 > len(code) {
				return nil, errors.Wrapf(ErrTruncatedInstruction, "EXTENDED_ARG at offset %d", i)
			}
			if prefixStart < 0 {
				prefixStart = i
			}
			extended = (extended | uint32(binary.LittleEndian.Uint16(code[i+1:]))) << 16
			i += 3
			continue
		}

		size := 1
		var arg uint32
		if opcode.HasArg(op) {
			if i+3 > len(code) {
				return nil, errors.Wrapf(ErrTruncatedInstruction, "at offset %d", i)
			}
			arg = extended | uint32(binary.LittleEndian.Uint16(code[i+1:]))
			size = 3
		} else {
			arg = extended
		}
		extended = 0
		start := i
		if prefixStart >= 0 {
			start, prefixStart = prefixStart, -1
		}

		out = append(out, Instruction{
			Op:     op,
			Arg:    arg,
			Offset: start,
			Size:   i + size - start,
		})
		i += size
	}
	if prefixStart >= 0 {
		return nil, errors.Wrapf(ErrDanglingExtendedArg, "at end of code")
	}
	return out, nil
}

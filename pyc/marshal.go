package pyc

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"github.com/dr8co/unpyc/internal/pyversion"
)

// Magic numbers below are CPython's actual pyc header magic words for a
// handful of releases; this table exists only so Load can pick the right
// Version for test fixtures, not as an exhaustive registry of every patch
// release's magic number.
var magicToVersion = map[uint16]pyversion.Version{
	3425: pyversion.V39,
	3439: pyversion.New(3, 10),
	3495: pyversion.V311,
	3531: pyversion.V312,
}

// Load reads a minimal .pyc container: a 16-byte header (magic, bit field,
// two 4-byte timestamps/hashes) followed by a single marshalled code
// object. This is explicitly a test/CLI fixture loader, not a faithful
// implementation of CPython's marshal format: it
// supports only the constant kinds test fixtures need (None, bool, int,
// float, str, tuple, code) and has no backreference table.
func Load(data []byte) (*CodeObject, error) {
	if len(data) < 16 {
		return nil, errors.New("pyc: truncated header")
	}
	magic := binary.LittleEndian.Uint16(data[0:2])
	v, ok := magicToVersion[magic]
	if !ok {
		return nil, errors.Errorf("pyc: unrecognized magic number %d", magic)
	}
	r := &reader{buf: data[16:]}
	val, err := r.readObject()
	if err != nil {
		return nil, errors.Wrap(err, "pyc: decoding top-level code object")
	}
	co, ok := val.(*CodeObject)
	if !ok {
		return nil, errors.New("pyc: top-level marshalled object is not a code object")
	}
	co.Version = v
	return co, nil
}

type reader struct {
	buf []byte
	pos int
}

func (r *reader) byte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, errors.New("pyc: unexpected end of marshal stream")
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) take(n int) ([]byte, error) {
	if r.pos+n > len(r.buf) {
		return nil, errors.New("pyc: unexpected end of marshal stream")
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *reader) int32() (int32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

// readObject decodes marshal's actual CPython type tags for the subset of
// kinds the fixtures need.
func (r *reader) readObject() (any, error) {
	tag, err := r.byte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case 'N':
		return nil, nil
	case 'F':
		return false, nil
	case 'T':
		return true, nil
	case 'i':
		n, err := r.int32()
		return int(n), err
	case 'g':
		b, err := r.take(8)
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
	case 'u', 's':
		n, err := r.int32()
		if err != nil {
			return nil, err
		}
		sb, err := r.take(int(n))
		if err != nil {
			return nil, err
		}
		return string(sb), nil
	case '(', ')':
		n, err := r.int32()
		if err != nil {
			return nil, err
		}
		out := make([]any, n)
		for i := range out {
			out[i], err = r.readObject()
			if err != nil {
				return nil, err
			}
		}
		return out, nil
	case 'c':
		return r.readCode()
	default:
		return nil, errors.Errorf("pyc: unsupported marshal tag %q", tag)
	}
}

func (r *reader) readCode() (*CodeObject, error) {
	co := &CodeObject{}

	readInt := func() (int, error) {
		n, err := r.int32()
		return int(n), err
	}
	var err error
	if co.Argcount, err = readInt(); err != nil {
		return nil, err
	}
	if co.PosOnlyArgcount, err = readInt(); err != nil {
		return nil, err
	}
	if co.KwOnlyArgcount, err = readInt(); err != nil {
		return nil, err
	}
	if co.Flags, err = readInt(); err != nil {
		return nil, err
	}

	codeVal, err := r.readObject()
	if err != nil {
		return nil, err
	}
	codeStr, _ := codeVal.(string)
	co.Code = []byte(codeStr)

	readStrList := func() ([]string, error) {
		v, err := r.readObject()
		if err != nil {
			return nil, err
		}
		items, _ := v.([]any)
		out := make([]string, len(items))
		for i, it := range items {
			out[i], _ = it.(string)
		}
		return out, nil
	}

	constsVal, err := r.readObject()
	if err != nil {
		return nil, err
	}
	if items, ok := constsVal.([]any); ok {
		co.Consts = items
	}

	if co.Names, err = readStrList(); err != nil {
		return nil, err
	}
	if co.Varnames, err = readStrList(); err != nil {
		return nil, err
	}
	if co.Freevars, err = readStrList(); err != nil {
		return nil, err
	}
	if co.Cellvars, err = readStrList(); err != nil {
		return nil, err
	}

	nameVal, err := r.readObject()
	if err != nil {
		return nil, err
	}
	co.Name, _ = nameVal.(string)

	if co.FirstLineNo, err = readInt(); err != nil {
		return nil, err
	}

	return co, nil
}

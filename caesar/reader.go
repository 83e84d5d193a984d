package caesar

import (
	"bytes"
	"encoding/binary"
	"math"
)

// Random access reader over the raw container bytes.
// All multi byte fields in a CxF file are little endian.
type reader struct {
	data []byte
	pos  int
}

func newReader(data []byte) *reader {
	return &reader{data: data}
}

func (r *reader) size() int {
	return len(r.data)
}

func (r *reader) seek(pos int) {
	r.pos = pos
}

func (r *reader) readBytes(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, newParseError(ErrTruncated, "read of %v bytes at offset %v, size %v", n, r.pos, len(r.data))
	}
	res := r.data[r.pos : r.pos+n]
	r.pos += n
	return res, nil
}

func (r *reader) readU8() (uint8, error) {
	b, err := r.readBytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) readI8() (int8, error) {
	v, err := r.readU8()
	return int8(v), err
}

func (r *reader) readU16() (uint16, error) {
	b, err := r.readBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *reader) readI16() (int16, error) {
	v, err := r.readU16()
	return int16(v), err
}

func (r *reader) readU32() (uint32, error) {
	b, err := r.readBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) readI32() (int32, error) {
	v, err := r.readU32()
	return int32(v), err
}

func (r *reader) readF32() (float32, error) {
	v, err := r.readU32()
	return math.Float32frombits(v), err
}

// Reads bytes until the delimiter, which is consumed but not returned
func (r *reader) readUntil(delim byte) ([]byte, error) {
	idx := bytes.IndexByte(r.data[r.pos:], delim)
	if idx < 0 {
		return nil, newParseError(ErrTruncated, "no 0x%02X terminator after offset %v", delim, r.pos)
	}
	res := r.data[r.pos : r.pos+idx]
	r.pos += idx + 1
	return res, nil
}

// Reads a C string (terminated by 0x00) at the current position
func (r *reader) readCString() (string, error) {
	b, err := r.readUntil(0x00)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *reader) readCStringAt(pos int) (string, error) {
	if pos < 0 || pos >= len(r.data) {
		return "", newParseError(ErrTruncated, "string offset %v outside source", pos)
	}
	saved := r.pos
	r.pos = pos
	s, err := r.readCString()
	r.pos = saved
	return s, err
}

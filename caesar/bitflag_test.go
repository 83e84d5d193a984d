package caesar

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBitflagReadPresentAndDefault(t *testing.T) {
	// Bit 0 set, bit 1 clear : first i32 materialized, second defaulted
	source := []byte{0x2A, 0x00, 0x00, 0x00}
	r := newReader(source)
	bf := newBitflagReader(r, 0x0005, 0)

	first, err := bf.readI32(-1)
	assert.Nil(t, err)
	assert.Equal(t, int32(42), first)

	second, err := bf.readI32(0)
	assert.Nil(t, err)
	assert.Equal(t, int32(0), second)

	// Cursor advanced only for the present field
	assert.Equal(t, 4, r.pos)
}

func TestBitflagAllBitsSet(t *testing.T) {
	source := []byte{
		0x01,       // i8
		0x02, 0x00, // i16
		0x03, 0x00, 0x00, 0x00, // i32
	}
	r := newReader(source)
	bf := newBitflagReader(r, 0x0007, 0)

	v8, err := bf.readI8(0)
	assert.Nil(t, err)
	assert.Equal(t, int8(1), v8)
	v16, err := bf.readI16(0)
	assert.Nil(t, err)
	assert.Equal(t, int16(2), v16)
	v32, err := bf.readI32(0)
	assert.Nil(t, err)
	assert.Equal(t, int32(3), v32)
	assert.Equal(t, len(source), r.pos)
}

func TestBitflagNoBitsSetUsesDefaults(t *testing.T) {
	r := newReader([]byte{0xFF, 0xFF})
	bf := newBitflagReader(r, 0x0000, 0)

	v16, err := bf.readI16(-7)
	assert.Nil(t, err)
	assert.Equal(t, int16(-7), v16)
	v32, err := bf.readI32(99)
	assert.Nil(t, err)
	assert.Equal(t, int32(99), v32)
	assert.Equal(t, 0, r.pos)
}

func TestBitflagString(t *testing.T) {
	// Record base at 0, string offset field points at the C string
	source := []byte{
		0x06, 0x00, 0x00, 0x00, // offset 6
		0x00, 0x00,
		'E', 'C', 'U', 0x00,
	}
	r := newReader(source)
	bf := newBitflagReader(r, 0x0001, 0)
	s, err := bf.readString()
	assert.Nil(t, err)
	assert.Equal(t, "ECU", s)

	// Absent string fields read as empty without moving the cursor
	pos := r.pos
	s, err = bf.readString()
	assert.Nil(t, err)
	assert.Equal(t, "", s)
	assert.Equal(t, pos, r.pos)
}

func TestBitflagDump(t *testing.T) {
	source := []byte{
		0x04, 0x00, 0x00, 0x00, // offset 4
		0xDE, 0xAD, 0xBE, 0xEF,
	}
	r := newReader(source)
	bf := newBitflagReader(r, 0x0001, 0)
	dump, err := bf.readDump(4)
	assert.Nil(t, err)
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, dump)
}

func TestBitflagTruncated(t *testing.T) {
	r := newReader([]byte{0x01})
	bf := newBitflagReader(r, 0x0001, 0)
	_, err := bf.readI32(0)
	assert.NotNil(t, err)
	perr, ok := err.(*ParseError)
	assert.True(t, ok)
	assert.Equal(t, ErrTruncated, perr.Kind)
}

func TestBitflagExtensionSwitch(t *testing.T) {
	source := []byte{0x0A, 0x00, 0x0B, 0x00}
	r := newReader(source)
	bf := newBitflagReader(r, 0x0001, 0)
	v, err := bf.readI16(0)
	assert.Nil(t, err)
	assert.Equal(t, int16(0x0A), v)

	bf.setFlags(0x0001)
	v, err = bf.readI16(0)
	assert.Nil(t, err)
	assert.Equal(t, int16(0x0B), v)
}

package caesar

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/autodiag/gocbf/schema"
)

// neutralPresentation fills the "absent" defaults a real record
// decode would produce
func neutralPresentation() *Presentation {
	return &Presentation{
		scaleTableOffset: -1,
		unk5:             -1,
		unk14:            -1,
		unk17:            -1,
		unk19:            -1,
		unk1B:            -1,
		unk22:            -1,
		typeLength1A:     -1,
		type1C:           -1,
	}
}

func TestInferBoolFromTwoScales(t *testing.T) {
	p := neutralPresentation()
	p.enumType1E = 0
	p.type1C = 1
	p.scaleCount = 2
	p.ScaleList = []*Scale{
		{EnumDescription: "Inactive"},
		{EnumDescription: "Active"},
	}
	format, ok := p.InferDataFormat(1)
	assert.True(t, ok)
	assert.Equal(t, schema.FormatBool, format.Kind)
	assert.Equal(t, "Active", format.PosName)
	assert.Equal(t, "Inactive", format.NegName)
}

func TestInferBoolWithoutScales(t *testing.T) {
	p := neutralPresentation()
	format, ok := p.InferDataFormat(1)
	assert.True(t, ok)
	assert.Equal(t, schema.FormatBool, format.Kind)
	assert.Equal(t, "", format.PosName)
}

func TestInferTable(t *testing.T) {
	p := neutralPresentation()
	p.enumType1E = 0
	p.type1C = 1
	p.scaleCount = 3
	p.ScaleList = []*Scale{
		{EnumDescription: "Off", EnumLowerBound: 0, EnumUpperBound: 0},
		{EnumDescription: "On", EnumLowerBound: 1, EnumUpperBound: 1},
		{EnumDescription: "Fault", EnumLowerBound: 2, EnumUpperBound: 15},
	}
	format, ok := p.InferDataFormat(4)
	assert.True(t, ok)
	assert.Equal(t, schema.FormatTable, format.Kind)
	assert.Len(t, format.Rows, 3)
	assert.Equal(t, "Fault", format.Rows[2].Name)
	assert.Equal(t, float64(15), format.Rows[2].End)
}

func TestInferBinaryTable(t *testing.T) {
	// 2^N scale entries all starting with 'b' is a binary encoded
	// string, not an enum
	p := neutralPresentation()
	p.enumType1E = 0
	p.type1C = 1
	p.scaleCount = 4
	p.ScaleList = []*Scale{
		{EnumDescription: "b00"},
		{EnumDescription: "b01"},
		{EnumDescription: "b10"},
		{EnumDescription: "b11"},
	}
	format, ok := p.InferDataFormat(2)
	assert.True(t, ok)
	assert.Equal(t, schema.FormatBinary, format.Kind)
}

func TestInferLinear(t *testing.T) {
	p := neutralPresentation()
	p.scaleTableOffset = 0x40
	p.scaleCount = 1
	p.enumType1E = 1
	p.type1C = 0
	p.ScaleList = []*Scale{
		{MultiplyFactor: 0.1, AddConstOffset: -40},
	}
	format, ok := p.InferDataFormat(16)
	assert.True(t, ok)
	assert.Equal(t, schema.FormatLinear, format.Kind)
	assert.InDelta(t, 0.1, format.Multiplier, 1e-6)
	assert.InDelta(t, -40, format.Offset, 1e-6)
}

func TestInferHexDump(t *testing.T) {
	p := neutralPresentation()
	p.unk17 = 2
	format, ok := p.InferDataFormat(64)
	assert.True(t, ok)
	assert.Equal(t, schema.FormatHexDump, format.Kind)
}

func TestInferString(t *testing.T) {
	p := neutralPresentation()
	p.unk14 = 0
	format, ok := p.InferDataFormat(64)
	assert.True(t, ok)
	assert.Equal(t, schema.FormatString, format.Kind)
	assert.Equal(t, schema.EncodingUtf8, format.Encoding)
}

func TestBitLength(t *testing.T) {
	p := &Presentation{typeLength1A: 12, type1C: 1}
	assert.Equal(t, int32(12), p.bitLength())

	// Byte counted fallback converts to bits
	p = &Presentation{typeLength1A: -1, typeLengthBytesMaybe: 3, type1C: 0}
	assert.Equal(t, int32(24), p.bitLength())
}

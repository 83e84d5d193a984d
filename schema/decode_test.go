package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLinearBigEndian(t *testing.T) {
	p := Parameter{
		Name:       "Coolant",
		Unit:       "°C",
		StartBit:   8,
		LengthBits: 16,
		ByteOrder:  BigEndian,
		Format:     Linear(0.1, 0),
	}
	resp := []byte{0x50, 0x01, 0x2C}
	num, err := p.Number(resp)
	assert.Nil(t, err)
	assert.InDelta(t, 30.0, num, 1e-6)

	display, derr := p.DisplayString(resp)
	assert.Nil(t, derr)
	assert.Equal(t, "30 °C", display)
}

func TestLittleEndianAssembly(t *testing.T) {
	p := Parameter{
		StartBit:   0,
		LengthBits: 16,
		ByteOrder:  LittleEndian,
		Format:     DataFormat{Kind: FormatRawInt},
	}
	num, err := p.Number([]byte{0x2C, 0x01})
	assert.Nil(t, err)
	assert.InDelta(t, 300.0, num, 1e-6)
}

func TestBoolEveryInput(t *testing.T) {
	// A one bit boolean must render one of the two names for every
	// possible input byte
	p := Parameter{
		StartBit:   7,
		LengthBits: 1,
		ByteOrder:  BigEndian,
		Format:     Bool("Active", "Inactive"),
	}
	for i := 0; i < 256; i++ {
		display, err := p.DisplayString([]byte{byte(i)})
		assert.Nil(t, err)
		if i&0x01 != 0 {
			assert.Equal(t, "Active", display)
		} else {
			assert.Equal(t, "Inactive", display)
		}
	}
}

func TestBoolFallbackNames(t *testing.T) {
	p := Parameter{
		StartBit:   0,
		LengthBits: 1,
		Format:     Bool("", ""),
	}
	display, err := p.DisplayString([]byte{0x80})
	assert.Nil(t, err)
	assert.Equal(t, "True", display)
	display, err = p.DisplayString([]byte{0x00})
	assert.Nil(t, err)
	assert.Equal(t, "False", display)
}

func TestTableLookup(t *testing.T) {
	p := Parameter{
		StartBit:   0,
		LengthBits: 8,
		Format: Table([]TableRow{
			{Name: "Idle", Start: 0, End: 0},
			{Name: "Running", Start: 1, End: 10},
		}),
	}
	display, err := p.DisplayString([]byte{0x05})
	assert.Nil(t, err)
	assert.Equal(t, "Running", display)

	display, err = p.DisplayString([]byte{0x2A})
	assert.Nil(t, err)
	assert.Equal(t, "Undefined(42)", display)
}

func TestBinaryRendering(t *testing.T) {
	p := Parameter{
		StartBit:   0,
		LengthBits: 4,
		Format:     Binary(),
	}
	display, err := p.DisplayString([]byte{0xA0})
	assert.Nil(t, err)
	assert.Equal(t, "0b1010", display)
}

func TestHexDump(t *testing.T) {
	p := Parameter{
		StartBit:   8,
		LengthBits: 16,
		Format:     HexDump(),
	}
	display, err := p.DisplayString([]byte{0x62, 0xDE, 0xAD})
	assert.Nil(t, err)
	assert.Equal(t, "DE AD", display)
}

func TestStringDecode(t *testing.T) {
	p := Parameter{
		StartBit:   16,
		LengthBits: 40,
		Format:     String(EncodingUtf8),
	}
	resp := append([]byte{0x5A, 0x87}, []byte("HELLO")...)
	display, err := p.DisplayString(resp)
	assert.Nil(t, err)
	assert.Equal(t, "HELLO", display)
}

func TestStringDecodeInvalidUtf8(t *testing.T) {
	p := Parameter{
		StartBit:   0,
		LengthBits: 16,
		Format:     String(EncodingUtf8),
	}
	_, err := p.DisplayString([]byte{0xFF, 0xFE})
	assert.NotNil(t, err)
	assert.Equal(t, DecodeUtf8, err.Kind)
}

func TestStringDecodeLatin1(t *testing.T) {
	p := Parameter{
		StartBit:   0,
		LengthBits: 16,
		Format:     String(EncodingLatin1),
	}
	display, err := p.DisplayString([]byte{0xC4, 0x42})
	assert.Nil(t, err)
	assert.Equal(t, "ÄB", display)
}

func TestBitRangeError(t *testing.T) {
	p := Parameter{
		Name:       "TooWide",
		StartBit:   8,
		LengthBits: 32,
		Format:     Identical(),
	}
	_, err := p.Number([]byte{0x01, 0x02})
	assert.NotNil(t, err)
	assert.Equal(t, DecodeBitRange, err.Kind)
}

func TestUnsupportedNumericFormat(t *testing.T) {
	p := Parameter{
		StartBit:   0,
		LengthBits: 16,
		Format:     HexDump(),
	}
	_, err := p.Number([]byte{0x01, 0x02})
	assert.NotNil(t, err)
	assert.Equal(t, DecodeUnsupportedFormat, err.Kind)
}

func TestCanPlot(t *testing.T) {
	numeric := []DataFormat{
		{Kind: FormatRawInt}, {Kind: FormatRawFloat}, Identical(),
		Linear(1, 0), Bool("a", "b"),
	}
	for _, f := range numeric {
		p := Parameter{Format: f}
		assert.True(t, p.CanPlot(), f.Kind.String())
	}
	other := []DataFormat{HexDump(), String(EncodingUtf8), Binary(), Table(nil)}
	for _, f := range other {
		p := Parameter{Format: f}
		assert.False(t, p.CanPlot(), f.Kind.String())
	}
}

func TestDecodeResponsePartialErrors(t *testing.T) {
	svc := Service{
		Name: "READ_TEMP",
		OutputParams: []Parameter{
			{Name: "ok", StartBit: 8, LengthBits: 8, Format: Identical()},
			{Name: "broken", StartBit: 64, LengthBits: 8, Format: Identical()},
		},
	}
	values, errs := svc.DecodeResponse([]byte{0x62, 0x7F})
	assert.Len(t, values, 1)
	assert.Len(t, errs, 1)
	assert.Equal(t, "ok", values[0].Name)
	assert.Equal(t, "broken", errs[0].Param)
}

func TestExtractBitsUnaligned(t *testing.T) {
	// Bits 4..12 of 0xAB 0xCD : 0b1011_1100 = 0xBC
	v, err := extractBits([]byte{0xAB, 0xCD}, 4, 8, BigEndian)
	assert.Nil(t, err)
	assert.Equal(t, uint64(0xBC), v)
}

func TestVariantMatching(t *testing.T) {
	ecu := ECU{
		Variants: []Variant{
			{Name: "V1", Patterns: []VariantPattern{{VariantID: 0x1234}}},
			{Name: "V2", Patterns: []VariantPattern{{VariantID: 0x5678}}},
		},
	}
	v := ecu.FindVariant(0x5678)
	assert.NotNil(t, v)
	assert.Equal(t, "V2", v.Name)
	assert.Nil(t, ecu.FindVariant(0x9999))
}

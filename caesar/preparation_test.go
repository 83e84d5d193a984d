package caesar

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveSizeFixedInteger(t *testing.T) {
	prep := &Preparation{ModeCfg: 0x0323}
	err := prep.resolveSize(&ECU{}, &Service{})
	assert.Nil(t, err)
	assert.Equal(t, FieldInteger, prep.FieldType)
	assert.Equal(t, int32(8), prep.SizeInBits)

	// Every entry of the width table
	for modeL, want := range intSizeMap {
		prep := &Preparation{ModeCfg: 0x0320 | uint16(modeL)}
		assert.Nil(t, prep.resolveSize(&ECU{}, &Service{}))
		assert.Equal(t, want, prep.SizeInBits)
		assert.Equal(t, FieldInteger, prep.FieldType)
	}
}

func TestResolveSizeInvalidImplType(t *testing.T) {
	prep := &Preparation{ModeCfg: 0x0327}
	err := prep.resolveSize(&ECU{}, &Service{})
	assert.NotNil(t, err)
	perr, ok := err.(*ParseError)
	assert.True(t, ok)
	assert.Equal(t, ErrInvalidImplType, perr.Kind)
}

func TestResolveSizeBitDump(t *testing.T) {
	prep := &Preparation{ModeCfg: 0x0330, alternativeBitWidth: 24}
	assert.Nil(t, prep.resolveSize(&ECU{}, &Service{}))
	assert.Equal(t, FieldBitDump, prep.FieldType)
	assert.Equal(t, int32(24), prep.SizeInBits)

	prep = &Preparation{ModeCfg: 0x0430, systemParam: 3, alternativeBitWidth: 12}
	assert.Nil(t, prep.resolveSize(&ECU{}, &Service{}))
	assert.Equal(t, FieldBitDump, prep.FieldType)
	assert.Equal(t, int32(12), prep.SizeInBits)
}

func TestResolveSizeExtendedBitDump(t *testing.T) {
	svc := &Service{reqBytes: poolTuple{count: 0x08}}
	prep := &Preparation{ModeCfg: 0x0410, systemParam: 0x10, BitPos: 16}
	assert.Nil(t, prep.resolveSize(&ECU{}, svc))
	assert.Equal(t, FieldExtendedBitDump, prep.FieldType)
	assert.Equal(t, int32(48), prep.SizeInBits)
}

func TestResolveSizeInvalidSystemParam(t *testing.T) {
	prep := &Preparation{ModeCfg: 0x0410, systemParam: 0x15}
	err := prep.resolveSize(&ECU{}, &Service{})
	assert.NotNil(t, err)
	perr, ok := err.(*ParseError)
	assert.True(t, ok)
	assert.Equal(t, ErrInvalidSystemParam, perr.Kind)
}

func TestResolveSizeNativePresentation(t *testing.T) {
	ecu := &ECU{
		GlobalPresentations: []*Presentation{
			{typeLength1A: 16, type1C: 1},
		},
	}
	prep := &Preparation{ModeCfg: 0x2000, systemParam: -1, presPoolIdx: 0}
	assert.Nil(t, prep.resolveSize(ecu, &Service{}))
	assert.Equal(t, FieldNativePresentation, prep.FieldType)
	assert.Equal(t, int32(16), prep.SizeInBits)
	assert.Equal(t, 0, prep.PresentationIdx)

	// Byte counted lengths convert to bits
	ecu.GlobalPresentations = append(ecu.GlobalPresentations,
		&Presentation{typeLength1A: -1, typeLengthBytesMaybe: 2, type1C: 0})
	prep = &Preparation{ModeCfg: 0x2000, systemParam: -1, presPoolIdx: 1}
	assert.Nil(t, prep.resolveSize(ecu, &Service{}))
	assert.Equal(t, int32(16), prep.SizeInBits)
}

func TestResolveSizeNativeInfoPool(t *testing.T) {
	ecu := &ECU{
		GlobalInternalPresentations: []*Presentation{
			{typeLength1A: 4, type1C: 1},
		},
	}
	prep := &Preparation{ModeCfg: 0x8000, systemParam: -1, presPoolIdx: 0}
	assert.Nil(t, prep.resolveSize(ecu, &Service{}))
	assert.Equal(t, FieldNativeInfoPool, prep.FieldType)
	assert.Equal(t, int32(4), prep.SizeInBits)
	assert.Equal(t, 0, prep.InternalPresIdx)
}

func TestResolveSizeUnknownSystemType(t *testing.T) {
	prep := &Preparation{ModeCfg: 0x4000, systemParam: -1}
	err := prep.resolveSize(&ECU{}, &Service{})
	assert.NotNil(t, err)
	perr, ok := err.(*ParseError)
	assert.True(t, ok)
	assert.Equal(t, ErrUnknownSystemType, perr.Kind)
}

func TestResolveSizePresentationIndexOutOfRange(t *testing.T) {
	prep := &Preparation{ModeCfg: 0x2000, systemParam: -1, presPoolIdx: 5}
	err := prep.resolveSize(&ECU{}, &Service{})
	assert.NotNil(t, err)
	perr, ok := err.(*ParseError)
	assert.True(t, ok)
	assert.Equal(t, ErrPoolOutOfRange, perr.Kind)
}

func TestResolveSizeReferencedService(t *testing.T) {
	// System parameter 17 sizes against the referenced service
	ref := &Service{
		Qualifier:        "REF_JOB",
		DataClassShifted: 1 << 4, // Data class, raw 5
		reqBytes:         poolTuple{count: 3},
	}
	ecu := &ECU{GlobalServices: []*Service{ref}}
	parent := &Service{InputRefName: "REF_JOB"}
	prep := &Preparation{ModeCfg: 0x0410, systemParam: 0x21}
	assert.Nil(t, prep.resolveSize(ecu, parent))
	assert.Equal(t, FieldUnhandledSP17, prep.FieldType)
	assert.Equal(t, int32(24), prep.SizeInBits)
}

package caesar

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/autodiag/gocbf/schema"
)

func linearPresentation(unit string) *Presentation {
	p := neutralPresentation()
	p.DisplayUnit = unit
	p.scaleTableOffset = 0x40
	p.scaleCount = 1
	p.enumType1E = 1
	p.type1C = 0
	p.ScaleList = []*Scale{{MultiplyFactor: 0.1, AddConstOffset: 0}}
	return p
}

func TestExportService(t *testing.T) {
	ecu := &ECU{
		GlobalPresentations: []*Presentation{linearPresentation("°C")},
	}
	svc := &Service{
		Qualifier:    "READ_COOLANT_TEMP",
		Name:         "Read coolant temperature",
		RequestBytes: []byte{0x22, 0x01},
		OutputPreparations: [][]*Preparation{{
			{
				Qualifier:       "TEMP",
				BitPos:          8,
				SizeInBits:      16,
				PresentationIdx: 0,
				InternalPresIdx: -1,
			},
		}},
	}
	exported := ecu.ExportService(svc)
	assert.Equal(t, "READ_COOLANT_TEMP", exported.Name)
	assert.Equal(t, []byte{0x22, 0x01}, []byte(exported.Payload))
	assert.Len(t, exported.OutputParams, 1)

	param := exported.OutputParams[0]
	assert.Equal(t, "TEMP", param.Name)
	assert.Equal(t, "°C", param.Unit)
	assert.Equal(t, 8, param.StartBit)
	assert.Equal(t, 16, param.LengthBits)
	assert.Equal(t, schema.BigEndian, param.ByteOrder)
	assert.Equal(t, schema.FormatLinear, param.Format.Kind)

	// The exported parameter decodes a live response end to end
	value, derr := param.Decode([]byte{0x62, 0x01, 0x2C})
	assert.Nil(t, derr)
	assert.Equal(t, "30 °C", value.Display)
}

func TestExportSkipsUnformattedPreparations(t *testing.T) {
	ecu := &ECU{}
	svc := &Service{
		Qualifier:    "JOB",
		RequestBytes: []byte{0x31},
		OutputPreparations: [][]*Preparation{{
			// No presentation attached
			{Qualifier: "RAW", PresentationIdx: -1, InternalPresIdx: -1},
		}},
	}
	exported := ecu.ExportService(svc)
	assert.Empty(t, exported.OutputParams)
}

func TestExportECU(t *testing.T) {
	pres := linearPresentation("")
	svc := &Service{
		Qualifier:    "JOB_1",
		RequestBytes: []byte{0x21, 0x05},
	}
	internal := &Service{
		Qualifier: "{{INITIALIZATION}}",
	}
	ecu := &ECU{
		Qualifier:           "CR6_EXPORT",
		Name:                "Engine control unit",
		GlobalPresentations: []*Presentation{pres},
		GlobalServices:      []*Service{svc, internal},
		GlobalDTCs:          []*DTC{{Qualifier: "B1000", Description: "Supply voltage low"}},
		Variants: []*Variant{
			// A variant aliasing the ECU itself is skipped
			{Qualifier: "CR6_EXPORT"},
			{
				Qualifier:  "CR6_EU",
				ServiceIdx: []int{0, 1},
				DTCs:       []VariantDTC{{Index: 0}},
				Patterns:   []*VariantPattern{{VendorName: "Bosch", VendorID: 5, VariantID: 0x1234}},
			},
		},
	}
	exported := ecu.Export()
	assert.Equal(t, "CR6_EXPORT", exported.Name)
	assert.Len(t, exported.Variants, 1)

	variant := exported.Variants[0]
	assert.Equal(t, "CR6_EU", variant.Name)
	// The payload-less internal function is dropped
	assert.Len(t, variant.Services, 1)
	assert.Equal(t, "JOB_1", variant.Services[0].Name)
	assert.Len(t, variant.Errors, 1)
	assert.Equal(t, "B1000", variant.Errors[0].ErrorName)
	assert.Equal(t, uint32(0x1234), variant.Patterns[0].VariantID)

	// Round trips through the documented JSON shape
	raw, err := json.Marshal(&exported)
	assert.Nil(t, err)
	assert.Contains(t, string(raw), `"payload":"2105"`)

	var back schema.ECU
	assert.Nil(t, json.Unmarshal(raw, &back))
	assert.Equal(t, exported.Variants[0].Services[0].Payload, back.Variants[0].Services[0].Payload)
}

package gocbf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKwpNRCClassification(t *testing.T) {
	d := &KwpDialect{}

	desc := d.ClassifyNRC(0x31)
	assert.Equal(t, NRCRequestOutOfRange, desc.Kind)
	assert.NotEmpty(t, desc.Help)

	desc = d.ClassifyNRC(0x78)
	assert.Equal(t, NRCResponsePending, desc.Kind)

	// DaimlerChrysler custom ranges
	for _, nrc := range []byte{0x90, 0x99, 0xA2, 0xF9} {
		desc = d.ClassifyNRC(nrc)
		assert.Equal(t, NRCVendorCustom, desc.Kind, "nrc %02X", nrc)
	}
	// ISO reserved range
	desc = d.ClassifyNRC(0x85)
	assert.Equal(t, NRCReserved, desc.Kind)

	desc = d.ClassifyNRC(0x42)
	assert.Equal(t, NRCUnknown, desc.Kind)
}

func TestKwpSessionModes(t *testing.T) {
	d := &KwpDialect{}
	modes := d.SessionModes()
	assert.Len(t, modes, 5)
	assert.Equal(t, byte(0x81), modes[0].Code)
	assert.Equal(t, "ExtendedDiagnostics", d.DiagnosticSession().Name)
	assert.Equal(t, byte(0x92), d.DiagnosticSession().Code)

	sid, args := d.EnterSession(d.DiagnosticSession())
	assert.Equal(t, KwpStartDiagSession, sid)
	assert.Equal(t, []byte{0x92}, args)
}

func TestKwpTesterPresent(t *testing.T) {
	d := &KwpDialect{}
	sid, args := d.TesterPresent(true)
	assert.Equal(t, KwpTesterPresent, sid)
	assert.Equal(t, []byte{0x01}, args)
	_, args = d.TesterPresent(false)
	assert.Equal(t, []byte{0x02}, args)
}

func TestKwpSIDTable(t *testing.T) {
	d := &KwpDialect{}
	desc, ok := d.DescribeSID(KwpECUReset)
	assert.True(t, ok)
	assert.Equal(t, CautionWarn, desc.Caution)

	desc, ok = d.DescribeSID(KwpReadDTCByStatus)
	assert.True(t, ok)
	assert.Equal(t, CautionNone, desc.Caution)

	// Supplier custom range resolves to a synthetic entry
	desc, ok = d.DescribeSID(0xB1)
	assert.True(t, ok)
	assert.Contains(t, desc.Name, "B1")
}

func TestReadKwpDTCs(t *testing.T) {
	vt := kwpTransport()
	// Two DTCs : 1300 present+stored+MIL, 2105 neither
	vt.Respond([]byte{0x18}, []byte{
		0x58, 0x02,
		0x13, 0x00, 0xD0,
		0x21, 0x05, 0x00,
	})
	engine, err := NewDiagEngine(vt, &KwpDialect{}, testEngineConfig())
	assert.Nil(t, err)
	defer engine.Exit()

	dtcs, err := ReadKwpDTCs(engine)
	assert.Nil(t, err)
	assert.Len(t, dtcs, 2)
	assert.Equal(t, "1300", dtcs[0].Code)
	assert.True(t, dtcs[0].Present)
	assert.True(t, dtcs[0].Stored)
	assert.True(t, dtcs[0].CheckEngineOn)
	assert.Equal(t, "2105", dtcs[1].Code)
	assert.False(t, dtcs[1].Present)
	assert.False(t, dtcs[1].CheckEngineOn)
}

func TestClearKwpDTCs(t *testing.T) {
	vt := kwpTransport()
	vt.Respond([]byte{0x14}, []byte{0x54, 0xFF, 0x00})
	engine, err := NewDiagEngine(vt, &KwpDialect{}, testEngineConfig())
	assert.Nil(t, err)
	defer engine.Exit()
	assert.Nil(t, ClearKwpDTCs(engine))
}

func TestReadKwpIdentification(t *testing.T) {
	vt := kwpTransport()
	vt.Respond([]byte{0x1A, 0x87}, []byte{
		0x5A, 0x87,
		0x01,       // origin
		0x55,       // supplier
		0x12, 0x34, // diag information
		0x00,
		0x12, 0x05, // hardware version, BCD
		0x01, 0x02, 0x03, // software version, BCD
		'2', '0', '3', '5', '4', '5',
	})
	engine, err := NewDiagEngine(vt, &KwpDialect{}, testEngineConfig())
	assert.Nil(t, err)
	defer engine.Exit()

	id, err := ReadKwpIdentification(engine)
	assert.Nil(t, err)
	assert.Equal(t, uint8(0x01), id.EcuOrigin)
	assert.Equal(t, uint8(0x55), id.SupplierID)
	assert.Equal(t, uint16(0x1234), id.DiagInformation)
	assert.Equal(t, "2150", id.HardwareVersion)
	assert.Equal(t, "102030", id.SoftwareVersion)
	assert.Equal(t, "203545", id.PartNumber)
	assert.Equal(t, uint32(0x1234), id.VariantID())
}

func TestBcdDecode(t *testing.T) {
	assert.Equal(t, "12", bcdDecode(0x21))
	assert.Equal(t, "1234", bcdDecodeSlice([]byte{0x21, 0x43}))
}

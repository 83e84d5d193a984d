package gocbf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUdsNRCClassification(t *testing.T) {
	d := &UdsDialect{}

	desc := d.ClassifyNRC(0x31)
	assert.Equal(t, NRCRequestOutOfRange, desc.Kind)

	// UDS specific codes
	desc = d.ClassifyNRC(0x25)
	assert.Equal(t, NRCNoResponseSubnetComponent, desc.Kind)
	desc = d.ClassifyNRC(0x26)
	assert.Equal(t, NRCFailurePreventsExecution, desc.Kind)

	desc = d.ClassifyNRC(0x7E)
	assert.Equal(t, NRCSubFunctionNotSupportedActiveSession, desc.Kind)
	desc = d.ClassifyNRC(0x92)
	assert.Equal(t, NRCVoltageTooHigh, desc.Kind)

	desc = d.ClassifyNRC(0x42)
	assert.Equal(t, NRCReserved, desc.Kind)
}

func TestUdsSessionModes(t *testing.T) {
	d := &UdsDialect{}
	modes := d.SessionModes()
	assert.Len(t, modes, 4)
	assert.Equal(t, byte(0x01), modes[0].Code)
	assert.Equal(t, "Extended", d.DiagnosticSession().Name)
	assert.Equal(t, byte(0x03), d.DiagnosticSession().Code)
}

func TestUdsDTCStates(t *testing.T) {
	assert.Equal(t, DTCStateStored, udsDTCStateFromStatus(0x08))
	assert.Equal(t, DTCStatePending, udsDTCStateFromStatus(0x04))
	assert.Equal(t, DTCStatePermanent, udsDTCStateFromStatus(0x01))
	assert.Equal(t, DTCStateNone, udsDTCStateFromStatus(0x00))
	// Confirmed wins over pending
	assert.Equal(t, DTCStateStored, udsDTCStateFromStatus(0x0C))
}

func TestReadUdsDTCs(t *testing.T) {
	vt := NewVirtualTransport()
	vt.Respond([]byte{0x10, 0x03}, []byte{0x50, 0x03})
	vt.Respond([]byte{0x19}, []byte{
		0x59, 0x02, 0xFF,
		0x01, 0x23, 0x45, 0x88, // stored, MIL on
		0xC0, 0x01, 0x02, 0x04, // pending
	})
	engine, err := NewDiagEngine(vt, &UdsDialect{}, testEngineConfig())
	assert.Nil(t, err)
	defer engine.Exit()

	dtcs, err := ReadUdsDTCs(engine)
	assert.Nil(t, err)
	assert.Len(t, dtcs, 2)
	assert.Equal(t, "012345", dtcs[0].Code)
	assert.Equal(t, DTCStateStored, dtcs[0].State)
	assert.True(t, dtcs[0].CheckEngineOn)
	assert.Equal(t, "C00102", dtcs[1].Code)
	assert.Equal(t, DTCStatePending, dtcs[1].State)
	assert.False(t, dtcs[1].CheckEngineOn)
}

func TestUdsEngineSession(t *testing.T) {
	vt := NewVirtualTransport()
	vt.Respond([]byte{0x10, 0x03}, []byte{0x50, 0x03, 0x00, 0x32, 0x01, 0xF4})
	engine, err := NewDiagEngine(vt, &UdsDialect{}, testEngineConfig())
	assert.Nil(t, err)
	defer engine.Exit()
	assert.Equal(t, "Extended", engine.Session().Name)
}

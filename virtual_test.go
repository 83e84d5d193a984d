package gocbf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVirtualTransportZeroTimeoutReturnsQueued(t *testing.T) {
	vt := NewVirtualTransport()
	assert.Nil(t, vt.Open())
	defer vt.Close()

	// Nothing queued, zero timeout : empty, immediately
	msgs, err := vt.RecvIsoTp(4, 0)
	assert.Nil(t, err)
	assert.Empty(t, msgs)

	vt.InjectIsoTp(IsoTpMessage{Data: []byte{0x01}})
	vt.InjectIsoTp(IsoTpMessage{Data: []byte{0x02}})
	msgs, err = vt.RecvIsoTp(4, 0)
	assert.Nil(t, err)
	assert.Len(t, msgs, 2)
}

func TestVirtualTransportRecvTimeout(t *testing.T) {
	vt := NewVirtualTransport()
	assert.Nil(t, vt.Open())
	defer vt.Close()

	start := time.Now()
	msgs, err := vt.RecvIsoTp(1, 50*time.Millisecond)
	assert.Nil(t, err)
	assert.Empty(t, msgs)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestVirtualTransportClosedSendFails(t *testing.T) {
	vt := NewVirtualTransport()
	_, err := vt.SendIsoTp([]IsoTpMessage{{Data: []byte{0x3E}}}, 0)
	assert.NotNil(t, err)
	var terr *TransportError
	assert.ErrorAs(t, err, &terr)
	assert.Equal(t, ErrBusUnavailable, terr.Kind)
}

func TestVirtualTransportCapabilities(t *testing.T) {
	vt := NewVirtualTransport()
	caps := vt.Capabilities()
	assert.True(t, caps.SupportsCan)
	assert.True(t, caps.SupportsIsoTp)
}

func TestVirtualTransportClearBuffers(t *testing.T) {
	vt := NewVirtualTransport()
	assert.Nil(t, vt.Open())
	vt.InjectIsoTp(IsoTpMessage{Data: []byte{0x01}})
	vt.InjectCan(NewCanFrame(0x123, []byte{0xAA}))
	assert.Nil(t, vt.ClearBuffers(BufferBoth))
	msgs, _ := vt.RecvIsoTp(1, 0)
	assert.Empty(t, msgs)
	frames, _ := vt.RecvCanFrames(1, 0)
	assert.Empty(t, frames)
}

func TestNewCanFrameTruncatesAtEight(t *testing.T) {
	frame := NewCanFrame(0x7E0, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	assert.Equal(t, uint8(8), frame.DLC)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, frame.Payload())
}

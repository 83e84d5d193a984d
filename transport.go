// Package gocbf implements the runtime side of an automotive
// diagnostic toolkit : an abstract CAN / ISO-TP transport, a
// long-running diagnostic session engine and the KWP2000 / UDS / OBD
// protocol dialects. The companion caesar package lifts vendor
// CBF/CFF container files into the ECU model the engine executes.
package gocbf

import "time"

// CanFrame is one classic CAN frame, up to 8 data bytes
type CanFrame struct {
	ID   uint32
	DLC  uint8
	Data [8]byte
}

func NewCanFrame(id uint32, data []byte) CanFrame {
	frame := CanFrame{ID: id}
	n := len(data)
	if n > 8 {
		n = 8
	}
	frame.DLC = uint8(n)
	copy(frame.Data[:], data[:n])
	return frame
}

// Payload returns the meaningful part of the data array
func (f CanFrame) Payload() []byte {
	return f.Data[:f.DLC]
}

// IsoTpMessage is one ISO-TP payload, already assembled from (or not
// yet segmented into) CAN frames
type IsoTpMessage struct {
	ID            uint32
	Data          []byte
	PadFrame      bool
	ExtAddressing bool
}

// FilterType selects what an installed filter does with matching ids
type FilterType int

const (
	FilterPass FilterType = iota
	FilterBlock
	FilterIsoTp
)

// BufferDirection selects which queues ClearBuffers drops
type BufferDirection int

const (
	BufferTx BufferDirection = iota
	BufferRx
	BufferBoth
)

// Capabilities reports which surfaces a transport implementation
// actually supports
type Capabilities struct {
	Name          string
	Vendor        string
	SupportsCan   bool
	SupportsIsoTp bool
}

// IsoTpConfig is everything the engine needs to talk ISO-TP to one
// ECU logical address
type IsoTpConfig struct {
	Baud      uint32
	SendID    uint32
	RecvID    uint32
	BlockSize uint8
	// Minimum separation time between consecutive frames, in ms
	StMin         uint8
	ExtCan        bool
	ExtAddressing bool
}

// Transport is an abstract duplex channel to the vehicle bus. A
// timeout of zero means "return whatever is queued immediately".
// Implementations must allow concurrent send and receive, the
// configuration calls are serialized by the caller. A Transport is
// owned exclusively by one engine at a time.
type Transport interface {
	Open() error
	Close() error
	Capabilities() Capabilities

	SendCanFrames(frames []CanFrame, timeout time.Duration) (int, error)
	RecvCanFrames(max int, timeout time.Duration) ([]CanFrame, error)

	SendIsoTp(msgs []IsoTpMessage, timeout time.Duration) (int, error)
	RecvIsoTp(max int, timeout time.Duration) ([]IsoTpMessage, error)

	// AddFilter installs an id filter. For FilterIsoTp the flow
	// control id is the id flow control frames are sent from.
	AddFilter(kind FilterType, id uint32, mask uint32, flowControlID uint32) error
	RemoveFilter(id uint32) error
	ClearBuffers(dir BufferDirection) error

	SetIsoTpParams(stMin uint8, blockSize uint8) error
	Configure(baud uint32, extCan bool, extIsoTp bool) error
}

package gocbf

import (
	"sync"
	"time"

	"github.com/brutella/can"
	log "github.com/sirupsen/logrus"
)

// ISO-TP protocol control information nibbles
const (
	isoTpSingleFrame      = 0x0
	isoTpFirstFrame       = 0x1
	isoTpConsecutiveFrame = 0x2
	isoTpFlowControl      = 0x3
)

// SocketCanTransport implements Transport on top of a Linux socketcan
// interface via brutella/can. ISO-TP segmentation and reassembly is
// done here, the kernel only sees raw frames.
type SocketCanTransport struct {
	iface string
	bus   *can.Bus

	mu       sync.Mutex
	open     bool
	rxCan    chan CanFrame
	rxIsoTp  chan IsoTpMessage
	rxFlow   chan CanFrame
	filters  map[uint32]FilterType
	isoTpID  uint32
	flowID   uint32
	assembly *isoTpAssembly

	stMin     uint8
	blockSize uint8
}

type isoTpAssembly struct {
	data     []byte
	expected int
	next     uint8
}

func NewSocketCanTransport(iface string) *SocketCanTransport {
	return &SocketCanTransport{
		iface:   iface,
		rxCan:   make(chan CanFrame, 256),
		rxIsoTp: make(chan IsoTpMessage, 32),
		rxFlow:  make(chan CanFrame, 8),
		filters: map[uint32]FilterType{},
	}
}

func (sc *SocketCanTransport) Open() error {
	bus, err := can.NewBusForInterfaceWithName(sc.iface)
	if err != nil {
		return &TransportError{Kind: ErrBusUnavailable, Desc: err.Error()}
	}
	sc.bus = bus
	sc.bus.Subscribe(sc)
	go func() {
		if err := sc.bus.ConnectAndPublish(); err != nil {
			log.Errorf("[SOCKETCAN] bus loop ended : %v", err)
		}
	}()
	sc.mu.Lock()
	sc.open = true
	sc.mu.Unlock()
	return nil
}

func (sc *SocketCanTransport) Close() error {
	sc.mu.Lock()
	sc.open = false
	sc.mu.Unlock()
	if sc.bus != nil {
		return sc.bus.Disconnect()
	}
	return nil
}

func (sc *SocketCanTransport) Capabilities() Capabilities {
	return Capabilities{
		Name:          sc.iface,
		Vendor:        "socketcan",
		SupportsCan:   true,
		SupportsIsoTp: true,
	}
}

// Handle implements the brutella/can frame callback. Frames on the
// ISO-TP filtered id feed reassembly, everything else passing a
// filter lands in the raw queue.
func (sc *SocketCanTransport) Handle(frame can.Frame) {
	converted := CanFrame{ID: frame.ID, DLC: frame.Length, Data: frame.Data}
	sc.mu.Lock()
	kind, filtered := sc.filters[frame.ID]
	isoTpID := sc.isoTpID
	sc.mu.Unlock()
	if filtered && kind == FilterBlock {
		return
	}
	if filtered && kind == FilterIsoTp && frame.ID == isoTpID {
		sc.handleIsoTpFrame(converted)
		return
	}
	select {
	case sc.rxCan <- converted:
	default:
		log.Warn("[SOCKETCAN] rx queue overflow, dropping frame")
	}
}

func (sc *SocketCanTransport) handleIsoTpFrame(frame CanFrame) {
	if frame.DLC == 0 {
		return
	}
	pci := frame.Data[0] >> 4
	switch pci {
	case isoTpSingleFrame:
		length := int(frame.Data[0] & 0x0F)
		if length > int(frame.DLC)-1 {
			length = int(frame.DLC) - 1
		}
		data := make([]byte, length)
		copy(data, frame.Data[1:1+length])
		sc.deliverIsoTp(IsoTpMessage{ID: frame.ID, Data: data})
	case isoTpFirstFrame:
		total := int(frame.Data[0]&0x0F)<<8 | int(frame.Data[1])
		sc.mu.Lock()
		sc.assembly = &isoTpAssembly{
			data:     append([]byte{}, frame.Data[2:frame.DLC]...),
			expected: total,
			next:     1,
		}
		flowID := sc.flowID
		sc.mu.Unlock()
		// Clear to send, no block limit, no separation time
		sc.sendRaw(NewCanFrame(flowID, []byte{0x30, 0x00, 0x00}))
	case isoTpConsecutiveFrame:
		sc.mu.Lock()
		asm := sc.assembly
		if asm == nil {
			sc.mu.Unlock()
			return
		}
		seq := frame.Data[0] & 0x0F
		if seq != asm.next&0x0F {
			log.Warnf("[SOCKETCAN] ISO-TP sequence mismatch, expected %v got %v", asm.next&0x0F, seq)
			sc.assembly = nil
			sc.mu.Unlock()
			return
		}
		asm.data = append(asm.data, frame.Data[1:frame.DLC]...)
		asm.next++
		done := len(asm.data) >= asm.expected
		var msg IsoTpMessage
		if done {
			msg = IsoTpMessage{ID: frame.ID, Data: asm.data[:asm.expected]}
			sc.assembly = nil
		}
		sc.mu.Unlock()
		if done {
			sc.deliverIsoTp(msg)
		}
	case isoTpFlowControl:
		select {
		case sc.rxFlow <- frame:
		default:
		}
	}
}

func (sc *SocketCanTransport) deliverIsoTp(msg IsoTpMessage) {
	select {
	case sc.rxIsoTp <- msg:
	default:
		log.Warn("[SOCKETCAN] ISO-TP rx queue overflow, dropping payload")
	}
}

func (sc *SocketCanTransport) sendRaw(frame CanFrame) error {
	out := can.Frame{ID: frame.ID, Length: frame.DLC, Data: frame.Data}
	if err := sc.bus.Publish(out); err != nil {
		return &TransportError{Kind: ErrSendFailed, Desc: err.Error()}
	}
	return nil
}

func (sc *SocketCanTransport) SendCanFrames(frames []CanFrame, timeout time.Duration) (int, error) {
	sent := 0
	for _, frame := range frames {
		if err := sc.sendRaw(frame); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

func (sc *SocketCanTransport) RecvCanFrames(max int, timeout time.Duration) ([]CanFrame, error) {
	return recvQueued(sc.rxCan, max, timeout), nil
}

// SendIsoTp segments each payload. Multi frame sends wait for the
// ECU's flow control frame before streaming consecutive frames at
// the negotiated separation time.
func (sc *SocketCanTransport) SendIsoTp(msgs []IsoTpMessage, timeout time.Duration) (int, error) {
	sent := 0
	for _, msg := range msgs {
		if err := sc.sendOneIsoTp(msg, timeout); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

func (sc *SocketCanTransport) sendOneIsoTp(msg IsoTpMessage, timeout time.Duration) error {
	if len(msg.Data) <= 7 {
		raw := make([]byte, 0, 8)
		raw = append(raw, byte(len(msg.Data)))
		raw = append(raw, msg.Data...)
		if msg.PadFrame {
			for len(raw) < 8 {
				raw = append(raw, 0xCC)
			}
		}
		return sc.sendRaw(NewCanFrame(msg.ID, raw))
	}
	total := len(msg.Data)
	if total > 0x0FFF {
		return &TransportError{Kind: ErrSendFailed, Desc: "ISO-TP payload exceeds 4095 bytes"}
	}
	first := make([]byte, 8)
	first[0] = byte(isoTpFirstFrame<<4) | byte(total>>8)
	first[1] = byte(total & 0xFF)
	copy(first[2:], msg.Data[:6])
	if err := sc.sendRaw(NewCanFrame(msg.ID, first)); err != nil {
		return err
	}
	// Wait for flow control
	if timeout == 0 {
		timeout = time.Second
	}
	flow := recvQueued(sc.rxFlow, 1, timeout)
	if len(flow) == 0 {
		return &TransportError{Kind: ErrSendFailed, Desc: "no ISO-TP flow control from ECU"}
	}
	stMin := time.Duration(flow[0].Data[2]) * time.Millisecond
	rest := msg.Data[6:]
	seq := uint8(1)
	for len(rest) > 0 {
		n := len(rest)
		if n > 7 {
			n = 7
		}
		raw := make([]byte, 0, 8)
		raw = append(raw, byte(isoTpConsecutiveFrame<<4)|(seq&0x0F))
		raw = append(raw, rest[:n]...)
		if err := sc.sendRaw(NewCanFrame(msg.ID, raw)); err != nil {
			return err
		}
		rest = rest[n:]
		seq++
		if stMin > 0 && len(rest) > 0 {
			time.Sleep(stMin)
		}
	}
	return nil
}

func (sc *SocketCanTransport) RecvIsoTp(max int, timeout time.Duration) ([]IsoTpMessage, error) {
	return recvQueued(sc.rxIsoTp, max, timeout), nil
}

func (sc *SocketCanTransport) AddFilter(kind FilterType, id uint32, mask uint32, flowControlID uint32) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.filters[id] = kind
	if kind == FilterIsoTp {
		sc.isoTpID = id
		sc.flowID = flowControlID
	}
	return nil
}

func (sc *SocketCanTransport) RemoveFilter(id uint32) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	delete(sc.filters, id)
	return nil
}

func (sc *SocketCanTransport) ClearBuffers(dir BufferDirection) error {
	if dir == BufferRx || dir == BufferBoth {
		for {
			select {
			case <-sc.rxCan:
			case <-sc.rxIsoTp:
			case <-sc.rxFlow:
			default:
				return nil
			}
		}
	}
	return nil
}

func (sc *SocketCanTransport) SetIsoTpParams(stMin uint8, blockSize uint8) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.stMin = stMin
	sc.blockSize = blockSize
	return nil
}

// Configure is a no-op for socketcan, bitrate is a property of the
// interface itself (ip link set can0 type can bitrate ...)
func (sc *SocketCanTransport) Configure(baud uint32, extCan bool, extIsoTp bool) error {
	return nil
}

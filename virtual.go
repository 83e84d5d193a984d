package gocbf

import (
	"bytes"
	"sync"
	"time"
)

// VirtualTransport is an in-memory transport used for testing and as
// a reference backend. Responses are scripted : a request payload
// matching a rule's prefix queues the rule's replies, each optionally
// delayed, onto the receive side.
type VirtualTransport struct {
	mu        sync.Mutex
	open      bool
	rxIsoTp   chan IsoTpMessage
	rxCan     chan CanFrame
	rules     []scriptRule
	responder func(msg IsoTpMessage) [][]byte
	filters   map[uint32]FilterType

	sentIsoTp []IsoTpMessage
	sentCan   []CanFrame

	stMin     uint8
	blockSize uint8
	baud      uint32
}

type scriptRule struct {
	prefix  []byte
	replies []scriptReply
}

type scriptReply struct {
	data  []byte
	delay time.Duration
}

func NewVirtualTransport() *VirtualTransport {
	return &VirtualTransport{
		rxIsoTp: make(chan IsoTpMessage, 64),
		rxCan:   make(chan CanFrame, 64),
		filters: map[uint32]FilterType{},
	}
}

// Respond registers a scripted reply : requests starting with prefix
// queue data as a response
func (vt *VirtualTransport) Respond(prefix []byte, data []byte) {
	vt.RespondDelayed(prefix, data, 0)
}

// RespondDelayed queues data after the given delay once a matching
// request is seen
func (vt *VirtualTransport) RespondDelayed(prefix []byte, data []byte, delay time.Duration) {
	vt.mu.Lock()
	defer vt.mu.Unlock()
	for i := range vt.rules {
		if bytes.Equal(vt.rules[i].prefix, prefix) {
			vt.rules[i].replies = append(vt.rules[i].replies, scriptReply{data: data, delay: delay})
			return
		}
	}
	vt.rules = append(vt.rules, scriptRule{
		prefix:  prefix,
		replies: []scriptReply{{data: data, delay: delay}},
	})
}

// SetResponder installs a hook computing replies per request, used
// when static rules are not enough
func (vt *VirtualTransport) SetResponder(fn func(msg IsoTpMessage) [][]byte) {
	vt.mu.Lock()
	defer vt.mu.Unlock()
	vt.responder = fn
}

// SentIsoTp copies everything sent so far, for assertions
func (vt *VirtualTransport) SentIsoTp() []IsoTpMessage {
	vt.mu.Lock()
	defer vt.mu.Unlock()
	return append([]IsoTpMessage{}, vt.sentIsoTp...)
}

// SentCan copies every raw frame sent so far
func (vt *VirtualTransport) SentCan() []CanFrame {
	vt.mu.Lock()
	defer vt.mu.Unlock()
	return append([]CanFrame{}, vt.sentCan...)
}

// InjectIsoTp pushes a payload onto the receive side directly
func (vt *VirtualTransport) InjectIsoTp(msg IsoTpMessage) {
	vt.rxIsoTp <- msg
}

// InjectCan pushes a raw frame onto the receive side directly
func (vt *VirtualTransport) InjectCan(frame CanFrame) {
	vt.rxCan <- frame
}

func (vt *VirtualTransport) Open() error {
	vt.mu.Lock()
	defer vt.mu.Unlock()
	vt.open = true
	return nil
}

func (vt *VirtualTransport) Close() error {
	vt.mu.Lock()
	defer vt.mu.Unlock()
	vt.open = false
	return nil
}

func (vt *VirtualTransport) Capabilities() Capabilities {
	return Capabilities{
		Name:          "virtual",
		Vendor:        "gocbf",
		SupportsCan:   true,
		SupportsIsoTp: true,
	}
}

func (vt *VirtualTransport) SendCanFrames(frames []CanFrame, timeout time.Duration) (int, error) {
	vt.mu.Lock()
	defer vt.mu.Unlock()
	if !vt.open {
		return 0, &TransportError{Kind: ErrBusUnavailable, Desc: "virtual bus is closed"}
	}
	vt.sentCan = append(vt.sentCan, frames...)
	return len(frames), nil
}

func (vt *VirtualTransport) RecvCanFrames(max int, timeout time.Duration) ([]CanFrame, error) {
	return recvQueued(vt.rxCan, max, timeout), nil
}

func (vt *VirtualTransport) SendIsoTp(msgs []IsoTpMessage, timeout time.Duration) (int, error) {
	vt.mu.Lock()
	if !vt.open {
		vt.mu.Unlock()
		return 0, &TransportError{Kind: ErrBusUnavailable, Desc: "virtual bus is closed"}
	}
	vt.sentIsoTp = append(vt.sentIsoTp, msgs...)
	responder := vt.responder
	var queued []scriptReply
	for _, msg := range msgs {
		for _, rule := range vt.rules {
			if bytes.HasPrefix(msg.Data, rule.prefix) {
				queued = append(queued, rule.replies...)
				break
			}
		}
	}
	vt.mu.Unlock()

	if responder != nil {
		for _, msg := range msgs {
			for _, data := range responder(msg) {
				vt.rxIsoTp <- IsoTpMessage{ID: msg.ID, Data: data}
			}
		}
	}
	for _, reply := range queued {
		r := reply
		if r.delay == 0 {
			vt.rxIsoTp <- IsoTpMessage{Data: r.data}
			continue
		}
		time.AfterFunc(r.delay, func() {
			vt.rxIsoTp <- IsoTpMessage{Data: r.data}
		})
	}
	return len(msgs), nil
}

func (vt *VirtualTransport) RecvIsoTp(max int, timeout time.Duration) ([]IsoTpMessage, error) {
	return recvQueued(vt.rxIsoTp, max, timeout), nil
}

func (vt *VirtualTransport) AddFilter(kind FilterType, id uint32, mask uint32, flowControlID uint32) error {
	vt.mu.Lock()
	defer vt.mu.Unlock()
	vt.filters[id] = kind
	return nil
}

func (vt *VirtualTransport) RemoveFilter(id uint32) error {
	vt.mu.Lock()
	defer vt.mu.Unlock()
	delete(vt.filters, id)
	return nil
}

func (vt *VirtualTransport) ClearBuffers(dir BufferDirection) error {
	if dir == BufferRx || dir == BufferBoth {
		for {
			select {
			case <-vt.rxIsoTp:
			case <-vt.rxCan:
			default:
				return nil
			}
		}
	}
	return nil
}

func (vt *VirtualTransport) SetIsoTpParams(stMin uint8, blockSize uint8) error {
	vt.mu.Lock()
	defer vt.mu.Unlock()
	vt.stMin = stMin
	vt.blockSize = blockSize
	return nil
}

func (vt *VirtualTransport) Configure(baud uint32, extCan bool, extIsoTp bool) error {
	vt.mu.Lock()
	defer vt.mu.Unlock()
	vt.baud = baud
	return nil
}

// recvQueued drains up to max entries, waiting at most timeout for
// the first one. A zero timeout returns whatever is queued.
func recvQueued[T any](ch chan T, max int, timeout time.Duration) []T {
	if max <= 0 {
		max = 1
	}
	var res []T
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case v := <-ch:
			res = append(res, v)
		case <-timer.C:
			return nil
		}
	}
	for len(res) < max {
		select {
		case v := <-ch:
			res = append(res, v)
		default:
			return res
		}
	}
	return res
}

package gocbf

import (
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// OBD-II modes (SAE J1979)
const (
	ObdShowCurrentData byte = 0x01
	ObdShowFreezeFrame byte = 0x02
	ObdShowDTC         byte = 0x03
	ObdClearDTC        byte = 0x04
	ObdShowPendingDTC  byte = 0x07
	ObdRequestInfo     byte = 0x09
	ObdPermanentDTC    byte = 0x0A
)

// Service 01 PIDs used by the built in queries
const (
	ObdPidEngineLoad    byte = 0x04
	ObdPidCoolantTemp   byte = 0x05
	ObdPidEngineSpeed   byte = 0x0C
	ObdPidVehicleSpeed  byte = 0x0D
	ObdPidIntakeAirTemp byte = 0x0F
	ObdPidMafRate       byte = 0x10
	ObdPidThrottlePos   byte = 0x11
)

// ObdValue is a scaled service 01 reading
type ObdValue struct {
	Value float32
	Unit  string
}

func (v ObdValue) String() string {
	return fmt.Sprintf("%v%v", v.Value, v.Unit)
}

// ObdServer speaks the OBD-II subset over ISO-TP. It is read only
// and needs no session keep alive, so it drives the transport
// synchronously instead of through a session engine.
type ObdServer struct {
	transport Transport
	cfg       IsoTpConfig

	readTimeout time.Duration
	mu          sync.Mutex

	// Capability mask per PID, populated by the support bitmap probe
	supported [256]bool
	probed    bool
}

// NewObdServer opens the transport and probes the PID support
// bitmaps. A failed probe leaves the server usable, unknown PIDs
// simply report ErrPidNotSupported.
func NewObdServer(transport Transport, cfg IsoTpConfig) (*ObdServer, error) {
	s := &ObdServer{
		transport:   transport,
		cfg:         cfg,
		readTimeout: defaultReadTimeout,
	}
	if err := transport.Open(); err != nil {
		return nil, &TransportError{Kind: ErrBusUnavailable, Desc: err.Error()}
	}
	if err := transport.Configure(cfg.Baud, cfg.ExtCan, cfg.ExtAddressing); err != nil {
		transport.Close()
		return nil, err
	}
	if err := transport.AddFilter(FilterIsoTp, cfg.RecvID, 0xFFFF, cfg.SendID); err != nil {
		transport.Close()
		return nil, err
	}
	if err := s.probeSupportedPids(); err != nil {
		log.Warnf("[OBD] PID support probe failed : %v", err)
	}
	return s, nil
}

// Close releases the transport
func (s *ObdServer) Close() error {
	return s.transport.Close()
}

// RunCommand executes one OBD request and returns the positive
// response bytes
func (s *ObdServer) RunCommand(mode byte, args []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload := append([]byte{mode}, args...)
	msg := IsoTpMessage{ID: s.cfg.SendID, Data: payload}
	if _, err := s.transport.SendIsoTp([]IsoTpMessage{msg}, defaultWriteTimeout); err != nil {
		return nil, err
	}
	msgs, err := s.transport.RecvIsoTp(1, s.readTimeout)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, ErrTimeout
	}
	data := msgs[0].Data
	if len(data) >= 3 && data[0] == 0x7F {
		return nil, &EcuError{SID: data[1], NRC: data[2], Kind: NRCServiceNotSupported,
			Name: "OBD command not supported by ECU"}
	}
	if len(data) >= 1 && data[0] == mode+0x40 {
		return data, nil
	}
	got := byte(0)
	if len(data) > 0 {
		got = data[0]
	}
	return nil, &UnexpectedResponseError{Sent: mode, Got: got}
}

// obdBits expands bytes into bits, MSB to LSB
func obdBits(src []byte) []bool {
	res := make([]bool, 0, len(src)*8)
	for _, b := range src {
		for mask := byte(0x80); mask != 0; mask >>= 1 {
			res = append(res, b&mask != 0)
		}
	}
	return res
}

// probeSupportedPids walks the anchor PIDs 0x00, 0x20, 0x40 ... each
// returning a 4 byte bitmap where the MSB of byte 0 is the next PID
func (s *ObdServer) probeSupportedPids() error {
	for anchor := 0; anchor <= 0xE0; anchor += 0x20 {
		resp, err := s.RunCommand(ObdShowCurrentData, []byte{byte(anchor)})
		if err != nil {
			if anchor == 0 {
				return err
			}
			break
		}
		if len(resp) < 6 {
			break
		}
		bits := obdBits(resp[2:6])
		for i, set := range bits {
			pid := anchor + i + 1
			if pid < len(s.supported) {
				s.supported[pid] = set
			}
		}
		// The last bit of the bitmap says whether the next anchor
		// exists
		if !bits[len(bits)-1] {
			break
		}
	}
	s.probed = true
	return nil
}

// SupportsPid reports the probed capability for a service 01 PID
func (s *ObdServer) SupportsPid(pid byte) bool {
	return s.supported[pid]
}

func (s *ObdServer) readPid(pid byte, minLen int) ([]byte, error) {
	if s.probed && !s.supported[pid] {
		return nil, ErrPidNotSupported
	}
	resp, err := s.RunCommand(ObdShowCurrentData, []byte{pid})
	if err != nil {
		return nil, err
	}
	if len(resp) < minLen {
		return nil, fmt.Errorf("PID %02X response too short : %v bytes", pid, len(resp))
	}
	return resp, nil
}

// EngineLoad reads calculated engine load in percent
func (s *ObdServer) EngineLoad() (ObdValue, error) {
	resp, err := s.readPid(ObdPidEngineLoad, 3)
	if err != nil {
		return ObdValue{}, err
	}
	return ObdValue{Value: float32(resp[2]) * 100.0 / 255.0, Unit: "%"}, nil
}

// CoolantTemp reads engine coolant temperature in °C
func (s *ObdServer) CoolantTemp() (ObdValue, error) {
	resp, err := s.readPid(ObdPidCoolantTemp, 3)
	if err != nil {
		return ObdValue{}, err
	}
	return ObdValue{Value: float32(resp[2]) - 40, Unit: "°C"}, nil
}

// EngineSpeed reads engine RPM
func (s *ObdServer) EngineSpeed() (ObdValue, error) {
	resp, err := s.readPid(ObdPidEngineSpeed, 4)
	if err != nil {
		return ObdValue{}, err
	}
	return ObdValue{Value: (float32(resp[2])*256 + float32(resp[3])) / 4.0, Unit: "rpm"}, nil
}

// VehicleSpeed reads vehicle speed in km/h
func (s *ObdServer) VehicleSpeed() (ObdValue, error) {
	resp, err := s.readPid(ObdPidVehicleSpeed, 3)
	if err != nil {
		return ObdValue{}, err
	}
	return ObdValue{Value: float32(resp[2]), Unit: "km/h"}, nil
}

// IntakeAirTemp reads intake air temperature in °C
func (s *ObdServer) IntakeAirTemp() (ObdValue, error) {
	resp, err := s.readPid(ObdPidIntakeAirTemp, 3)
	if err != nil {
		return ObdValue{}, err
	}
	return ObdValue{Value: float32(resp[2]) - 40, Unit: "°C"}, nil
}

// MafRate reads mass airflow in g/s
func (s *ObdServer) MafRate() (ObdValue, error) {
	resp, err := s.readPid(ObdPidMafRate, 4)
	if err != nil {
		return ObdValue{}, err
	}
	return ObdValue{Value: (float32(resp[2])*256 + float32(resp[3])) / 100.0, Unit: "g/s"}, nil
}

// ThrottlePosition reads throttle position in percent
func (s *ObdServer) ThrottlePosition() (ObdValue, error) {
	resp, err := s.readPid(ObdPidThrottlePos, 3)
	if err != nil {
		return ObdValue{}, err
	}
	return ObdValue{Value: float32(resp[2]) * 100.0 / 255.0, Unit: "%"}, nil
}

var obdDTCLetters = [4]byte{'P', 'C', 'B', 'U'}

// decodeObdDTC renders the standard 2 byte trouble code form, e.g.
// P0300
func decodeObdDTC(a byte, b byte) string {
	letter := obdDTCLetters[a>>6]
	return fmt.Sprintf("%c%d%X%02X", letter, (a>>4)&0x03, a&0x0F, b)
}

// StoredDTCs reads service 03 trouble codes
func (s *ObdServer) StoredDTCs() ([]string, error) {
	resp, err := s.RunCommand(ObdShowDTC, nil)
	if err != nil {
		return nil, err
	}
	if len(resp) < 2 {
		return nil, fmt.Errorf("DTC response too short : %v bytes", len(resp))
	}
	// CAN flavor carries a count byte after the mode echo
	body := resp[2:]
	var res []string
	for len(body) >= 2 {
		if body[0] == 0 && body[1] == 0 {
			body = body[2:]
			continue
		}
		res = append(res, decodeObdDTC(body[0], body[1]))
		body = body[2:]
	}
	return res, nil
}

// ClearDTCs clears stored codes and freeze frames
func (s *ObdServer) ClearDTCs() error {
	_, err := s.RunCommand(ObdClearDTC, nil)
	return err
}

// VIN reads the vehicle identification number (service 09 PID 02)
func (s *ObdServer) VIN() (string, error) {
	resp, err := s.RunCommand(ObdRequestInfo, []byte{0x02})
	if err != nil {
		return "", err
	}
	// 49 02 <count> then the 17 character VIN
	if len(resp) < 4 {
		return "", fmt.Errorf("VIN response too short : %v bytes", len(resp))
	}
	return string(resp[3:]), nil
}

package gocbf

import (
	"errors"
	"fmt"
)

// Transport level failures
type TransportErrorKind int

const (
	ErrBusUnavailable TransportErrorKind = iota + 1
	ErrSendFailed
	ErrRecvFailed
	ErrConfigRejected
)

type TransportError struct {
	Kind TransportErrorKind
	Code uint32
	Desc string
}

func (e *TransportError) Error() string {
	switch e.Kind {
	case ErrBusUnavailable:
		return fmt.Sprintf("bus unavailable : %v", e.Desc)
	case ErrSendFailed:
		return fmt.Sprintf("send failed, code %v (%v)", e.Code, e.Desc)
	case ErrRecvFailed:
		return fmt.Sprintf("receive failed, code %v (%v)", e.Code, e.Desc)
	case ErrConfigRejected:
		return fmt.Sprintf("configuration rejected : %v", e.Desc)
	default:
		return e.Desc
	}
}

// Diagnostic session failures. Timeout and session loss are sentinel
// values, negative responses carry the dialect's classification.
var (
	// ErrTimeout : the ECU did not answer within the read deadline.
	// Usually recoverable, wait and retry.
	ErrTimeout = errors.New("communication timeout, ECU did not respond in time")

	// ErrSessionLost : the TesterPresent heartbeat timed out and the
	// session could not be re-established
	ErrSessionLost = errors.New("diagnostic session lost, reconnect failed")

	// ErrEngineStopped : the engine worker has exited, no further
	// commands are accepted
	ErrEngineStopped = errors.New("diagnostic engine is stopped")

	// ErrPidNotSupported : the OBD ECU's capability bitmap does not
	// advertise the requested PID
	ErrPidNotSupported = errors.New("PID is not supported by this ECU")
)

// EcuError is a negative response (7F <sid> <nrc>) mapped through the
// dialect's NRC table. Help distinguishes recoverable conditions from
// fatal ones.
type EcuError struct {
	SID  byte
	NRC  byte
	Kind NRCKind
	Name string
	Help string
}

func (e *EcuError) Error() string {
	if e.Help != "" {
		return fmt.Sprintf("ECU rejected 0x%02X : %v (NRC 0x%02X) - %v", e.SID, e.Name, e.NRC, e.Help)
	}
	return fmt.Sprintf("ECU rejected 0x%02X : %v (NRC 0x%02X)", e.SID, e.Name, e.NRC)
}

// UnexpectedResponseError : the positive response SID did not match
// the request
type UnexpectedResponseError struct {
	Sent byte
	Got  byte
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("response SID does not match request, sent 0x%02X got 0x%02X", e.Sent, e.Got)
}

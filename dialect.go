package gocbf

// CautionLevel classifies how dangerous a service is to run against a
// live ECU. Computed here, rendered by UI layers.
type CautionLevel int

const (
	// No adverse effects on the ECU
	CautionNone CautionLevel = iota
	// Might cause unpredictable behavior
	CautionWarn
	// Do not run this unless you know what you are doing
	CautionAlert
)

// SIDDescription describes one service identifier of a dialect
type SIDDescription struct {
	SID         byte
	Name        string
	Description string
	Caution     CautionLevel
}

// NRCKind is the dialect independent classification of a negative
// response code
type NRCKind int

const (
	NRCUnknown NRCKind = iota
	NRCGeneralReject
	NRCServiceNotSupported
	NRCSubFunctionNotSupported
	NRCIncorrectMessageLength
	NRCResponseTooLong
	NRCBusy
	NRCConditionsNotCorrect
	NRCRequestSequenceError
	NRCRoutineNotComplete
	NRCRequestOutOfRange
	NRCSecurityAccessDenied
	NRCInvalidKey
	NRCExceededAttempts
	NRCTimeDelayNotExpired
	NRCDownloadNotAccepted
	NRCUploadNotAccepted
	NRCTransferSuspended
	NRCGeneralProgrammingFailure
	NRCWrongBlockSequenceCounter
	NRCDataDecompressionFailed
	NRCDataDecryptionFailed
	NRCEcuNotResponding
	NRCEcuAddressUnknown
	NRCResponsePending
	NRCSubFunctionNotSupportedActiveSession
	NRCServiceNotSupportedActiveSession
	NRCRpmTooHigh
	NRCRpmTooLow
	NRCEngineIsRunning
	NRCEngineIsNotRunning
	NRCEngineRunTimeTooLow
	NRCTempTooHigh
	NRCTempTooLow
	NRCSpeedTooHigh
	NRCSpeedTooLow
	NRCThrottleTooHigh
	NRCThrottleTooLow
	NRCTransmissionNotInNeutral
	NRCTransmissionNotInGear
	NRCBrakeNotApplied
	NRCShifterNotInPark
	NRCTorqueConverterClutchLocked
	NRCVoltageTooHigh
	NRCVoltageTooLow
	NRCNoResponseSubnetComponent
	NRCFailurePreventsExecution
	NRCVendorCustom
	NRCReserved
)

// NRCDescription is the dialect's rendering of one negative response
// code
type NRCDescription struct {
	Kind NRCKind
	Name string
	Help string
}

// SessionMode is one diagnostic session the dialect can enter, with
// the byte code emitted to the ECU on entry
type SessionMode struct {
	Name string
	Code byte
}

// The response pending NRC is the same byte in both dialects
const nrcResponsePending = 0x78

// Sub function bytes for TesterPresent
const (
	testerPresentRequireResponse  = 0x01
	testerPresentSuppressResponse = 0x02
)

// Dialect plugs the concrete KWP2000 / UDS tables into the engine
type Dialect interface {
	Name() string

	// SIDs lists the dialect's selectable service identifiers
	SIDs() []SIDDescription
	DescribeSID(sid byte) (SIDDescription, bool)

	// ClassifyNRC maps a negative response code byte
	ClassifyNRC(nrc byte) NRCDescription

	// SessionModes lists the sessions this dialect can enter. The
	// first entry is the default session.
	SessionModes() []SessionMode
	// DiagnosticSession is the non-default session the engine enters
	// on startup
	DiagnosticSession() SessionMode

	// EnterSession builds the session control request
	EnterSession(mode SessionMode) (sid byte, args []byte)
	// TesterPresent builds the keep alive request
	TesterPresent(requireResponse bool) (sid byte, args []byte)
}

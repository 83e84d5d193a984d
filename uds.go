package gocbf

import (
	"fmt"
)

// UDS service identifiers (ISO 14229-1)
const (
	UdsDiagnosticSessionControl byte = 0x10
	UdsECUReset                 byte = 0x11
	UdsClearDTCInformation      byte = 0x14
	UdsReadDTCInformation       byte = 0x19
	UdsReadDataByID             byte = 0x22
	UdsReadMemoryByAddress      byte = 0x23
	UdsReadScalingDataByID      byte = 0x24
	UdsSecurityAccess           byte = 0x27
	UdsCommunicationControl     byte = 0x28
	UdsAuthentication           byte = 0x29
	UdsReadDataByPeriodicID     byte = 0x2A
	UdsDynamicDefineDataID      byte = 0x2C
	UdsWriteDataByID            byte = 0x2E
	UdsIOCTLByID                byte = 0x2F
	UdsRoutineControl           byte = 0x31
	UdsRequestDownload          byte = 0x34
	UdsRequestUpload            byte = 0x35
	UdsTransferData             byte = 0x36
	UdsTransferExit             byte = 0x37
	UdsWriteMemoryByAddress     byte = 0x3D
	UdsTesterPresent            byte = 0x3E
	UdsRequestFileTransfer      byte = 0x3F
	UdsControlDTCSetting        byte = 0x85
	UdsLinkControl              byte = 0x87
)

var udsSessions = []SessionMode{
	{Name: "Default", Code: 0x01},
	{Name: "Programming", Code: 0x02},
	{Name: "Extended", Code: 0x03},
	{Name: "SafetySystem", Code: 0x04},
}

var udsSIDs = []SIDDescription{
	{UdsDiagnosticSessionControl, "DiagnosticSessionControl", "Control diagnostic session", CautionWarn},
	{UdsECUReset, "ECUReset", "Reset ECU", CautionAlert},
	{UdsClearDTCInformation, "ClearDTCInformation", "Clear diagnostic trouble information", CautionNone},
	{UdsReadDTCInformation, "ReadDTCInformation", "Read diagnostic trouble information", CautionNone},
	{UdsReadDataByID, "ReadDataByID", "Read data by identifier", CautionNone},
	{UdsReadMemoryByAddress, "ReadMemoryByAddress", "Read memory by address", CautionWarn},
	{UdsReadScalingDataByID, "ReadScalingDataById", "Read scaling data by identifier", CautionWarn},
	{UdsSecurityAccess, "SecurityAccess", "Security access", CautionAlert},
	{UdsCommunicationControl, "CommunicationControl", "Communication control", CautionWarn},
	{UdsAuthentication, "Authentication", "Authentication", CautionAlert},
	{UdsReadDataByPeriodicID, "ReadDataByPeriodicID", "Read data by periodic identifier", CautionWarn},
	{UdsDynamicDefineDataID, "DynamicDefineDataId", "Dynamically define data identifier", CautionAlert},
	{UdsWriteDataByID, "WriteDataByID", "Write data by identifier", CautionAlert},
	{UdsIOCTLByID, "IOCTLById", "Input output control by identifier", CautionAlert},
	{UdsRoutineControl, "RoutineControl", "Routine control", CautionWarn},
	{UdsRequestDownload, "RequestDownload", "Request download", CautionAlert},
	{UdsRequestUpload, "RequestUpload", "Request upload", CautionAlert},
	{UdsTransferData, "TransferData", "Transfer data", CautionAlert},
	{UdsTransferExit, "TransferExit", "Request transfer exit", CautionAlert},
	{UdsWriteMemoryByAddress, "WriteMemoryByAddress", "Write memory by address", CautionAlert},
	{UdsTesterPresent, "TesterPresent", "Tester present", CautionNone},
	{UdsRequestFileTransfer, "RequestFileTransfer", "Request file transfer", CautionAlert},
	{UdsControlDTCSetting, "ControlDTCSetting", "Control DTC setting", CautionWarn},
	{UdsLinkControl, "LinkControl", "Link control", CautionWarn},
}

// UdsDialect implements the UDS tables
type UdsDialect struct{}

func (d *UdsDialect) Name() string { return "UDS" }

func (d *UdsDialect) SIDs() []SIDDescription { return udsSIDs }

func (d *UdsDialect) DescribeSID(sid byte) (SIDDescription, bool) {
	for _, desc := range udsSIDs {
		if desc.SID == sid {
			return desc, true
		}
	}
	return SIDDescription{}, false
}

func (d *UdsDialect) SessionModes() []SessionMode { return udsSessions }

func (d *UdsDialect) DiagnosticSession() SessionMode {
	return udsSessions[2]
}

func (d *UdsDialect) EnterSession(mode SessionMode) (byte, []byte) {
	return UdsDiagnosticSessionControl, []byte{mode.Code}
}

func (d *UdsDialect) TesterPresent(requireResponse bool) (byte, []byte) {
	if requireResponse {
		return UdsTesterPresent, []byte{testerPresentRequireResponse}
	}
	return UdsTesterPresent, []byte{testerPresentSuppressResponse}
}

func (d *UdsDialect) ClassifyNRC(nrc byte) NRCDescription {
	switch nrc {
	case 0x10:
		return NRCDescription{NRCGeneralReject, "General reject", ""}
	case 0x11:
		return NRCDescription{NRCServiceNotSupported, "Service is not supported", "This service is not supported by the ECU"}
	case 0x12:
		return NRCDescription{NRCSubFunctionNotSupported, "Sub function is not supported", "The arguments provided in the command may not be correct"}
	case 0x13:
		return NRCDescription{NRCIncorrectMessageLength, "Incorrect message length", ""}
	case 0x14:
		return NRCDescription{NRCResponseTooLong, "Response is too long for transport protocol", ""}
	case 0x21:
		return NRCDescription{NRCBusy, "ECU is busy", "The ECU is currently performing another operation, please wait"}
	case 0x22:
		return NRCDescription{NRCConditionsNotCorrect, "Conditions are not correct", "The ECU requires something to be ran prior to running this command"}
	case 0x24:
		return NRCDescription{NRCRequestSequenceError, "Message sequence is not correct", ""}
	case 0x25:
		return NRCDescription{NRCNoResponseSubnetComponent, "Subnet component did not respond", ""}
	case 0x26:
		return NRCDescription{NRCFailurePreventsExecution, "A failure prevents execution of the requested action", ""}
	case 0x31:
		return NRCDescription{NRCRequestOutOfRange, "Requested data is out of range", "The data entered exceeded the maximum value that the ECU can read or store"}
	case 0x33:
		return NRCDescription{NRCSecurityAccessDenied, "Security access is denied", "In order to execute this function, you need to obtain a higher security clearance"}
	case 0x35:
		return NRCDescription{NRCInvalidKey, "Invalid key", "The wrong seed-key was entered to gain a higher security clearance"}
	case 0x36:
		return NRCDescription{NRCExceededAttempts, "Exceeded number of access attempts", "You have exceeded the number of attempts to gain a higher security clearance"}
	case 0x37:
		return NRCDescription{NRCTimeDelayNotExpired, "Security timeout has not expired", "You have entered a seed-key response too quickly. Please wait."}
	case 0x70:
		return NRCDescription{NRCUploadNotAccepted, "Upload/Download is not accepted", ""}
	case 0x71:
		return NRCDescription{NRCTransferSuspended, "Transfer operation halted", ""}
	case 0x72:
		return NRCDescription{NRCGeneralProgrammingFailure, "Programming error", ""}
	case 0x73:
		return NRCDescription{NRCWrongBlockSequenceCounter, "Error in block sequence", ""}
	case 0x78:
		return NRCDescription{NRCResponsePending, "ECU is responding, wait", "The ECU is currently trying to send a response"}
	case 0x7E:
		return NRCDescription{NRCSubFunctionNotSupportedActiveSession, "Sub function is not supported in this diagnostic session", "Try to switch diagnostic sessions"}
	case 0x7F:
		return NRCDescription{NRCServiceNotSupportedActiveSession, "Service is not supported in this diagnostic session", "Try to switch diagnostic sessions"}
	case 0x81:
		return NRCDescription{NRCRpmTooHigh, "Engine RPM is too high", ""}
	case 0x82:
		return NRCDescription{NRCRpmTooLow, "Engine RPM is too low", ""}
	case 0x83:
		return NRCDescription{NRCEngineIsRunning, "Engine is running", ""}
	case 0x84:
		return NRCDescription{NRCEngineIsNotRunning, "Engine is not running", ""}
	case 0x85:
		return NRCDescription{NRCEngineRunTimeTooLow, "Engine has not been on for long enough", ""}
	case 0x86:
		return NRCDescription{NRCTempTooHigh, "Engine temperature is too high", ""}
	case 0x87:
		return NRCDescription{NRCTempTooLow, "Engine temperature is too low", ""}
	case 0x88:
		return NRCDescription{NRCSpeedTooHigh, "Vehicle speed is too high", ""}
	case 0x89:
		return NRCDescription{NRCSpeedTooLow, "Vehicle speed is too low", ""}
	case 0x8A:
		return NRCDescription{NRCThrottleTooHigh, "Throttle is too high", ""}
	case 0x8B:
		return NRCDescription{NRCThrottleTooLow, "Throttle is too low", ""}
	case 0x8C:
		return NRCDescription{NRCTransmissionNotInNeutral, "Transmission is not in neutral", ""}
	case 0x8D:
		return NRCDescription{NRCTransmissionNotInGear, "Transmission is not in gear", ""}
	case 0x8F:
		return NRCDescription{NRCBrakeNotApplied, "Brake is not applied", ""}
	case 0x90:
		return NRCDescription{NRCShifterNotInPark, "Transmission is not in park", ""}
	case 0x91:
		return NRCDescription{NRCTorqueConverterClutchLocked, "Torque converter clutch is locked", ""}
	case 0x92:
		return NRCDescription{NRCVoltageTooHigh, "Voltage is too high", ""}
	case 0x93:
		return NRCDescription{NRCVoltageTooLow, "Voltage is too low", ""}
	default:
		return NRCDescription{NRCReserved, fmt.Sprintf("Reserved error 0x%02X", nrc), ""}
	}
}

// UdsDTCState is the four state classification a UDS status byte
// splits into
type UdsDTCState int

const (
	DTCStateNone UdsDTCState = iota
	DTCStateStored
	DTCStatePending
	DTCStatePermanent
)

func (s UdsDTCState) String() string {
	switch s {
	case DTCStateStored:
		return "Stored"
	case DTCStatePending:
		return "Pending"
	case DTCStatePermanent:
		return "Permanent"
	default:
		return "None"
	}
}

// UdsDTC is one trouble code from a UDS ReadDTCInformation response
type UdsDTC struct {
	Code          string
	State         UdsDTCState
	CheckEngineOn bool
}

func (d UdsDTC) String() string {
	return fmt.Sprintf("%v - state: %v, check engine light on?: %v", d.Code, d.State, d.CheckEngineOn)
}

// Status byte masks (ISO 14229-1 D.2)
const (
	udsStatusTestFailed          = 0x01
	udsStatusPendingThisCycle    = 0x04
	udsStatusConfirmed           = 0x08
	udsStatusWarningIndicatorReq = 0x80
)

func udsDTCStateFromStatus(status byte) UdsDTCState {
	switch {
	case status&udsStatusConfirmed != 0:
		return DTCStateStored
	case status&udsStatusPendingThisCycle != 0:
		return DTCStatePending
	case status&udsStatusTestFailed != 0:
		return DTCStatePermanent
	default:
		return DTCStateNone
	}
}

// ReadUdsDTCs reads DTCs by status mask (sub function 0x02, mask 0xFF)
// and parses the 4 byte records
func ReadUdsDTCs(engine *DiagEngine) ([]UdsDTC, error) {
	resp, err := engine.RunCommand(UdsReadDTCInformation, []byte{0x02, 0xFF})
	if err != nil {
		return nil, err
	}
	if len(resp) < 3 {
		return nil, fmt.Errorf("DTC response too short : %v bytes", len(resp))
	}
	// Skip SID echo, sub function and availability mask
	body := resp[3:]
	var res []UdsDTC
	for len(body) >= 4 {
		status := body[3]
		res = append(res, UdsDTC{
			Code:          fmt.Sprintf("%02X%02X%02X", body[0], body[1], body[2]),
			State:         udsDTCStateFromStatus(status),
			CheckEngineOn: status&udsStatusWarningIndicatorReq != 0,
		})
		body = body[4:]
	}
	return res, nil
}

// ClearUdsDTCs clears all stored DTC groups
func ClearUdsDTCs(engine *DiagEngine) error {
	_, err := engine.RunCommand(UdsClearDTCInformation, []byte{0xFF, 0xFF, 0xFF})
	return err
}

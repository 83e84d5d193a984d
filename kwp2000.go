package gocbf

import (
	"fmt"
)

// KWP2000 service identifiers (ISO 14230-3, DaimlerChrysler flavor)
const (
	KwpStartDiagSession      byte = 0x10
	KwpECUReset              byte = 0x11
	KwpClearDiagInformation  byte = 0x14
	KwpReadDTCStatus         byte = 0x17
	KwpReadDTCByStatus       byte = 0x18
	KwpReadECUID             byte = 0x1A
	KwpReadDataByLocalID     byte = 0x21
	KwpReadDataByID          byte = 0x22
	KwpReadMemoryByAddress   byte = 0x23
	KwpSecurityAccess        byte = 0x27
	KwpDisableNormalMsgTx    byte = 0x28
	KwpEnableNormalMsgTx     byte = 0x29
	KwpDynamicallyDefineID   byte = 0x2C
	KwpWriteDataByID         byte = 0x2E
	KwpIOCTLByLocalID        byte = 0x30
	KwpStartRoutineByLocalID byte = 0x31
	KwpStopRoutineByLocalID  byte = 0x32
	KwpRoutineResultsByID    byte = 0x33
	KwpRequestDownload       byte = 0x34
	KwpRequestUpload         byte = 0x35
	KwpTransferData          byte = 0x36
	KwpRequestTransferExit   byte = 0x37
	KwpWriteDataByLocalID    byte = 0x3B
	KwpWriteMemoryByAddress  byte = 0x3D
	KwpTesterPresent         byte = 0x3E
	KwpControlDTCSettings    byte = 0x85
	KwpResponseOnEvent       byte = 0x86
)

var kwpSessions = []SessionMode{
	{Name: "Default", Code: 0x81},
	{Name: "Reprogramming", Code: 0x85},
	{Name: "Standby", Code: 0x89},
	{Name: "Passive", Code: 0x90},
	{Name: "ExtendedDiagnostics", Code: 0x92},
}

var kwpSIDs = []SIDDescription{
	{KwpStartDiagSession, "StartDiagSession", "Start diagnostic session", CautionNone},
	{KwpECUReset, "ECUReset", "Reset ECU", CautionWarn},
	{KwpClearDiagInformation, "ClearDiagnosticInformation", "Clear diagnostic information", CautionNone},
	{KwpReadDTCStatus, "ReadDTCStatus", "Read diagnostic trouble status", CautionNone},
	{KwpReadDTCByStatus, "ReadDTCByStatus", "Read diagnostic trouble codes by status", CautionNone},
	{KwpReadECUID, "ReadECUID", "Read ECU identification data", CautionNone},
	{KwpReadDataByLocalID, "ReadDataByLocalID", "Read data by local ID", CautionAlert},
	{KwpReadDataByID, "ReadDataByID", "Read data by ID", CautionAlert},
	{KwpReadMemoryByAddress, "ReadMemoryByAddress", "Read memory by address", CautionAlert},
	{KwpSecurityAccess, "SecurityAccess", "Security access", CautionWarn},
	{KwpDisableNormalMsgTx, "DisableNormalMsgTransmission", "Disable normal message transmission", CautionAlert},
	{KwpEnableNormalMsgTx, "EnableNormalMsgTransmission", "Enable normal message transmission", CautionAlert},
	{KwpDynamicallyDefineID, "DynamicallyDefineLocalID", "Dynamically define local ID", CautionAlert},
	{KwpWriteDataByID, "WriteDataByID", "Write data by ID", CautionAlert},
	{KwpIOCTLByLocalID, "IOCTLByLocalID", "IOCTL by local ID", CautionAlert},
	{KwpStartRoutineByLocalID, "StartRoutineByLocalID", "Start routine by local ID", CautionAlert},
	{KwpStopRoutineByLocalID, "StopRoutineByLocalID", "Stop routine by local ID", CautionAlert},
	{KwpRoutineResultsByID, "RequestRoutineResultsByLocalID", "Request routine results by local ID", CautionAlert},
	{KwpRequestDownload, "RequestDownload", "Request download", CautionAlert},
	{KwpRequestUpload, "RequestUpload", "Request upload", CautionAlert},
	{KwpTransferData, "TransferData", "Transfer data", CautionAlert},
	{KwpRequestTransferExit, "RequestTransferExit", "Request transfer exit", CautionAlert},
	{KwpWriteDataByLocalID, "WriteDataByLocalID", "Write data by local ID", CautionAlert},
	{KwpWriteMemoryByAddress, "WriteMemoryByAddress", "Write memory by address", CautionAlert},
	{KwpTesterPresent, "TesterPresent", "Tester present", CautionNone},
	{KwpControlDTCSettings, "ControlDTCSettings", "Control DTC settings", CautionWarn},
	{KwpResponseOnEvent, "ResponseOnEvent", "Response on event", CautionWarn},
}

// KwpDialect implements the KWP2000 tables
type KwpDialect struct{}

func (d *KwpDialect) Name() string { return "KWP2000" }

func (d *KwpDialect) SIDs() []SIDDescription { return kwpSIDs }

func (d *KwpDialect) DescribeSID(sid byte) (SIDDescription, bool) {
	for _, desc := range kwpSIDs {
		if desc.SID == sid {
			return desc, true
		}
	}
	if sid >= 0xA0 {
		return SIDDescription{sid, fmt.Sprintf("Custom(%02X)", sid), "Supplier custom service", CautionWarn}, true
	}
	return SIDDescription{}, false
}

func (d *KwpDialect) SessionModes() []SessionMode { return kwpSessions }

func (d *KwpDialect) DiagnosticSession() SessionMode {
	// Extended diagnostics, full feature set
	return kwpSessions[4]
}

func (d *KwpDialect) EnterSession(mode SessionMode) (byte, []byte) {
	return KwpStartDiagSession, []byte{mode.Code}
}

func (d *KwpDialect) TesterPresent(requireResponse bool) (byte, []byte) {
	if requireResponse {
		return KwpTesterPresent, []byte{testerPresentRequireResponse}
	}
	return KwpTesterPresent, []byte{testerPresentSuppressResponse}
}

func (d *KwpDialect) ClassifyNRC(nrc byte) NRCDescription {
	switch nrc {
	case 0x10:
		return NRCDescription{NRCGeneralReject, "General reject", ""}
	case 0x11:
		return NRCDescription{NRCServiceNotSupported, "Service is not supported", "This service is not supported by the ECU"}
	case 0x12:
		return NRCDescription{NRCSubFunctionNotSupported, "Sub function not supported / invalid format", "The arguments provided in the command may not be correct"}
	case 0x21:
		return NRCDescription{NRCBusy, "ECU is currently busy performing another operation", "The ECU is currently performing another operation, please wait"}
	case 0x22:
		return NRCDescription{NRCConditionsNotCorrect, "Conditions are not correct or request sequence error", "The ECU requires something to be ran prior to running this command"}
	case 0x23:
		return NRCDescription{NRCRoutineNotComplete, "Routine is not yet completed", "The diagnostic routine was not completed"}
	case 0x31:
		return NRCDescription{NRCRequestOutOfRange, "The request is out of range", "The data entered exceeded the maximum value that the ECU can read or store"}
	case 0x33:
		return NRCDescription{NRCSecurityAccessDenied, "Security access for this function was denied", "In order to execute this function, you need to obtain a higher security clearance"}
	case 0x35:
		return NRCDescription{NRCInvalidKey, "Invalid security key", "The wrong seed-key was entered to gain a higher security clearance"}
	case 0x36:
		return NRCDescription{NRCExceededAttempts, "Exceeded number of security access attempts", "You have exceeded the number of attempts to gain a higher security clearance"}
	case 0x37:
		return NRCDescription{NRCTimeDelayNotExpired, "The required time delay has not yet expired", "You have entered a seed-key response too quickly. Please wait."}
	case 0x40:
		return NRCDescription{NRCDownloadNotAccepted, "Download not accepted", ""}
	case 0x50:
		return NRCDescription{NRCUploadNotAccepted, "Upload not accepted", ""}
	case 0x71:
		return NRCDescription{NRCTransferSuspended, "Data transfer suspended", "The data transfer was suspended due to an unknown fault"}
	case 0x78:
		return NRCDescription{NRCResponsePending, "Response pending", "The ECU is currently trying to send a response"}
	case 0x80:
		return NRCDescription{NRCServiceNotSupportedActiveSession, "Service not supported in active session", "This function is not supported in the current diagnostic session. Try to switch diagnostic sessions"}
	case 0x9A:
		return NRCDescription{NRCDataDecompressionFailed, "Data decompression failed", ""}
	case 0x9B:
		return NRCDescription{NRCDataDecryptionFailed, "Data decryption failed", ""}
	case 0xA0:
		return NRCDescription{NRCEcuNotResponding, "ECU is not responding", "In your car, the gateway talks to the ECU directly and has detected that the ECU has stopped responding"}
	case 0xA1:
		return NRCDescription{NRCEcuAddressUnknown, "ECU address unknown", "In your car, the gateway is trying to talk to the ECU you requested, but you entered an unknown address"}
	case 0xFF:
		return NRCDescription{NRCReserved, "ISO 14230 reserved code 0xFF", ""}
	}
	switch {
	case nrc >= 0x81 && nrc <= 0x8F:
		return NRCDescription{NRCReserved, fmt.Sprintf("ISO 14230 reserved code 0x%02X", nrc), ""}
	case nrc >= 0x90 && nrc <= 0x99, nrc >= 0xA2 && nrc <= 0xF9:
		return NRCDescription{NRCVendorCustom, fmt.Sprintf("DaimlerChrysler DCX code 0x%02X", nrc),
			"This error code is reserved by DaimlerChrysler. Therefore its meaning is unknown"}
	default:
		return NRCDescription{NRCUnknown, fmt.Sprintf("Unknown error 0x%02X", nrc), ""}
	}
}

// KwpDTC is one trouble code parsed from a KWP ReadDTCByStatus
// response. The status byte splits into the present flag, the storage
// state and the MIL bit.
type KwpDTC struct {
	Code          string
	Present       bool
	Stored        bool
	CheckEngineOn bool
}

func (d KwpDTC) String() string {
	return fmt.Sprintf("%v - present: %v, stored: %v, MIL on: %v", d.Code, d.Present, d.Stored, d.CheckEngineOn)
}

// ReadKwpDTCs requests all stored trouble codes (status mask 0xFF00,
// mandatory per KWP2000) and parses the 3 byte records
func ReadKwpDTCs(engine *DiagEngine) ([]KwpDTC, error) {
	// 0x02 requests hex DTCs as 2 bytes
	resp, err := engine.RunCommand(KwpReadDTCByStatus, []byte{0x02, 0xFF, 0x00})
	if err != nil {
		return nil, err
	}
	if len(resp) < 2 {
		return nil, fmt.Errorf("DTC response too short : %v bytes", len(resp))
	}
	count := int(resp[1])
	body := resp[2:]
	res := make([]KwpDTC, 0, count)
	for i := 0; i < count; i++ {
		if len(body) < 3 {
			break
		}
		status := body[2]
		res = append(res, KwpDTC{
			Code:          fmt.Sprintf("%02X%02X", body[0], body[1]),
			Present:       (status>>4)&0x01 > 0,
			Stored:        (status>>6)&0x03 > 0,
			CheckEngineOn: (status>>7)&0x01 > 0,
		})
		body = body[3:]
	}
	return res, nil
}

// ClearKwpDTCs clears all diagnostic information (group 0xFF00)
func ClearKwpDTCs(engine *DiagEngine) error {
	_, err := engine.RunCommand(KwpClearDiagInformation, []byte{0xFF, 0x00})
	return err
}

// KwpIdentification is the DCX/MMC identification block (ReadECUID
// sub function 0x87)
type KwpIdentification struct {
	EcuOrigin       uint8
	SupplierID      uint8
	DiagInformation uint16
	HardwareVersion string
	SoftwareVersion string
	PartNumber      string
}

func bcdDecode(b byte) string {
	return fmt.Sprintf("%d%d", b&0x0F, (b&0xF0)>>4)
}

func bcdDecodeSlice(data []byte) string {
	res := ""
	for _, b := range data {
		res += bcdDecode(b)
	}
	return res
}

// ReadKwpIdentification reads the DCX/MMC ECU identification used for
// runtime variant matching
func ReadKwpIdentification(engine *DiagEngine) (*KwpIdentification, error) {
	resp, err := engine.RunCommand(KwpReadECUID, []byte{0x87})
	if err != nil {
		return nil, err
	}
	if len(resp) < 13 {
		return nil, fmt.Errorf("identification response too short : %v bytes", len(resp))
	}
	id := &KwpIdentification{
		EcuOrigin:       resp[2],
		SupplierID:      resp[3],
		DiagInformation: uint16(resp[4])<<8 | uint16(resp[5]),
		HardwareVersion: bcdDecodeSlice(resp[7:9]),
		SoftwareVersion: bcdDecodeSlice(resp[9:12]),
		PartNumber:      string(resp[12:]),
	}
	return id, nil
}

// VariantID is the value matched against the decoded container's
// variant patterns
func (id *KwpIdentification) VariantID() uint32 {
	return uint32(id.DiagInformation)
}

package caesar

import (
	"encoding/binary"

	log "github.com/sirupsen/logrus"
)

// ComParam is the semantic meaning of a named communication parameter
type ComParam int

const (
	CPUnknown ComParam = iota
	CPBaudrate
	CPGlobalRequestCANIdentifier
	CPFunctionalRequestCANIdentifier
	CPRequestCANIdentifier
	CPResponseCANIdentifier
	CPPartNumberID
	CPPartBlock
	CPHwVersionID
	CPSwVersionID
	CPSwVersionBlock
	CPSupplierID
	CPSwSupplierBlock
	CPAddressMode
	CPAddressExtension
	CPRoeResponseCANIdentifier
	CPUseTimingReceivedFromECU
	CPStMinSuggested
	CPBlockSizeSuggested
	CPP2Timeout
	CPS3TpPhysTimer
	CPS3TpFuncTimer
	CPBrSuggested
	CPCanTransmit
	CPBsMax
	CPCsMax
	CPIRoutineCounter
	CPReqRepCount
	CPReqTargetByte
	CPRespSourceByte
	CPResponseMaster
	CPTesterPresentAddress
	CPIReadTiming
	CPTrigAddress
	CPP3Max
	CPCRespMin
	CPCRespMax
	CPP2CanMin
	CPP2CanMax
	CPIGpdAutoDownload
	CPIpVersion
	CPLogicalAddressGateway
	CPIpTransmissionTime
	CPLogicalSourceAddress
	CPLogicalTargetAddress
	CPP2ExtTimeout7F78
	CPP2ExtTimeout7F21
)

// Recognized comparam qualifier names. Unknown names decode to
// CPUnknown, not an error.
var comParamNames = map[string]ComParam{
	"CP_BAUDRATE":                        CPBaudrate,
	"CP_GLOBAL_REQUEST_CANIDENTIFIER":    CPGlobalRequestCANIdentifier,
	"CP_FUNCTIONAL_REQUEST_CANIDENTIFIER": CPFunctionalRequestCANIdentifier,
	"CP_REQUEST_CANIDENTIFIER":           CPRequestCANIdentifier,
	"CP_RESPONSE_CANIDENTIFIER":          CPResponseCANIdentifier,
	"CP_PARTNUMBERID":                    CPPartNumberID,
	"CP_PARTBLOCK":                       CPPartBlock,
	"CP_HWVERSIONID":                     CPHwVersionID,
	"CP_SWVERSIONID":                     CPSwVersionID,
	"CP_SWVERSIONBLOCK":                  CPSwVersionBlock,
	"CP_SUPPLIERID":                      CPSupplierID,
	"CP_SWSUPPLIERBLOCK":                 CPSwSupplierBlock,
	"CP_ADDRESSMODE":                     CPAddressMode,
	"CP_ADDRESSEXTENSION":                CPAddressExtension,
	"CP_ROE_RESPONSE_CANIDENTIFIER":      CPRoeResponseCANIdentifier,
	"CP_USE_TIMING_RECEIVED_FROM_ECU":    CPUseTimingReceivedFromECU,
	"CP_STMIN_SUG":                       CPStMinSuggested,
	"CP_BLOCKSIZE_SUG":                   CPBlockSizeSuggested,
	"CP_P2_TIMEOUT":                      CPP2Timeout,
	"CP_S3_TP_PHYS_TIMER":                CPS3TpPhysTimer,
	"CP_S3_TP_FUNC_TIMER":                CPS3TpFuncTimer,
	"CP_BR_SUG":                          CPBrSuggested,
	"CP_CAN_TRANSMIT":                    CPCanTransmit,
	"CP_BS_MAX":                          CPBsMax,
	"CP_CS_MAX":                          CPCsMax,
	"CPI_ROUTINECOUNTER":                 CPIRoutineCounter,
	"CP_REQREPCOUNT":                     CPReqRepCount,
	"CP_REQTARGETBYTE":                   CPReqTargetByte,
	"CP_RESPSOURCEBYTE":                  CPRespSourceByte,
	"CP_RESPONSEMASTER":                  CPResponseMaster,
	"CP_TESTERPRESENTADDRESS":            CPTesterPresentAddress,
	"CPI_READTIMING":                     CPIReadTiming,
	"CP_TRIGADDRESS":                     CPTrigAddress,
	"CP_P3_MAX":                          CPP3Max,
	"CP_C_RESP_MIN":                      CPCRespMin,
	"CP_C_RESP_MAX":                      CPCRespMax,
	"CP_P2_CAN_MIN":                      CPP2CanMin,
	"CP_P2_CAN_MAX":                      CPP2CanMax,
	"CPI_GPDAUTODOWNLOAD":                CPIGpdAutoDownload,
	"CP_IPVERSION":                       CPIpVersion,
	"CP_LOGICAL_ADDRESS_GATEWAY":         CPLogicalAddressGateway,
	"CP_IPTRANSMISSIONTIME":              CPIpTransmissionTime,
	"CP_LOGICAL_SOURCE_ADDRESS":          CPLogicalSourceAddress,
	"CP_LOGICAL_TARGET_ADDRESS":          CPLogicalTargetAddress,
	"CP_P2_EXT_TIMEOUT_7F_78":            CPP2ExtTimeout7F78,
	"CP_P2_EXT_TIMEOUT_7F_21":            CPP2ExtTimeout7F21,
}

func comParamFromName(name string) ComParam {
	if cp, ok := comParamNames[name]; ok {
		return cp
	}
	log.Warnf("[CAESAR] unknown com param '%v'", name)
	return CPUnknown
}

// ComParameter is a named, typed knob controlling bus and timing
// behavior for one sub interface
type ComParameter struct {
	ParamIndex   int
	SubIfaceIdx  int
	Name         string
	Param        ComParam
	Value        int32
	Dump         []byte
	phraseRef      int32
	unkCtf         int32
	parentIfaceIdx int32
}

// newComParameter decodes one comparam record. The name comes from the
// owning interface's qualifier table, the value from a 4 byte little
// endian dump.
func newComParameter(r *reader, baseAddr int, ifaces []*ECUInterface) (*ComParameter, error) {
	r.seek(baseAddr)
	flags, err := r.readU16()
	if err != nil {
		return nil, err
	}
	bf := newBitflagReader(r, uint64(flags), baseAddr)
	cp := &ComParameter{}
	paramIndex, err := bf.readI16(0)
	if err != nil {
		return nil, err
	}
	cp.ParamIndex = int(paramIndex)
	parentIfaceIdx, err := bf.readI16(0)
	if err != nil {
		return nil, err
	}
	cp.parentIfaceIdx = int32(parentIfaceIdx)
	subIfaceIdx, err := bf.readI16(0)
	if err != nil {
		return nil, err
	}
	cp.SubIfaceIdx = int(subIfaceIdx)
	if _, err = bf.readI16(0); err != nil {
		return nil, err
	}
	if cp.unkCtf, err = bf.readI32(0); err != nil {
		return nil, err
	}
	phrase, err := bf.readI16(0)
	if err != nil {
		return nil, err
	}
	cp.phraseRef = int32(phrase)
	dumpSize, err := bf.readI32(0)
	if err != nil {
		return nil, err
	}
	if cp.Dump, err = bf.readDump(int(dumpSize)); err != nil {
		return nil, err
	}
	if len(cp.Dump) == 4 {
		cp.Value = int32(binary.LittleEndian.Uint32(cp.Dump))
	}
	for _, iface := range ifaces {
		if cp.ParamIndex >= 0 && cp.ParamIndex < len(iface.ComParamNames) {
			cp.Name = iface.ComParamNames[cp.ParamIndex]
			break
		}
	}
	cp.Param = comParamFromName(cp.Name)
	return cp, nil
}

// ECUInterface is a bus descriptor carrying the comparam name table
type ECUInterface struct {
	Qualifier     string
	Name          string
	Description   string
	VersionString string
	Version       int32
	ComParamNames []string

	comParamCount  int32
	comParamOffset int32
	unk6           int32
	baseAddr       int
}

func newECUInterface(r *reader, strings *StringPool, baseAddr int) (*ECUInterface, error) {
	r.seek(baseAddr)
	flags, err := r.readU32()
	if err != nil {
		return nil, err
	}
	bf := newBitflagReader(r, uint64(flags), baseAddr)
	iface := &ECUInterface{baseAddr: baseAddr}
	if iface.Qualifier, err = bf.readString(); err != nil {
		return nil, err
	}
	nameRef, err := bf.readStringRef()
	if err != nil {
		return nil, err
	}
	descRef, err := bf.readStringRef()
	if err != nil {
		return nil, err
	}
	iface.Name = strings.GetOr(nameRef, "")
	iface.Description = strings.GetOr(descRef, "")
	if iface.VersionString, err = bf.readString(); err != nil {
		return nil, err
	}
	if iface.Version, err = bf.readI32(0); err != nil {
		return nil, err
	}
	if iface.comParamCount, err = bf.readI32(0); err != nil {
		return nil, err
	}
	if iface.comParamOffset, err = bf.readI32(0); err != nil {
		return nil, err
	}
	if iface.unk6, err = bf.readI32(0); err != nil {
		return nil, err
	}
	tableBase := baseAddr + int(iface.comParamOffset)
	for i := 0; i < int(iface.comParamCount); i++ {
		r.seek(tableBase + i*4)
		strOffset, err := r.readI32()
		if err != nil {
			return nil, err
		}
		name, err := r.readCStringAt(tableBase + int(strOffset))
		if err != nil {
			return nil, err
		}
		iface.ComParamNames = append(iface.ComParamNames, name)
	}
	return iface, nil
}

// InterfaceSubType is a concrete sub interface variants attach
// comparam values to
type InterfaceSubType struct {
	Index       int
	Qualifier   string
	Name        string
	Description string
	ComParams   []*ComParameter

	unk3, unk4       int16
	unk5, unk6, unk7 int32
	unk8, unk9       uint8
	unk10            uint8
	baseAddr         int
}

func newInterfaceSubType(r *reader, strings *StringPool, baseAddr int, index int) (*InterfaceSubType, error) {
	r.seek(baseAddr)
	flags, err := r.readU32()
	if err != nil {
		return nil, err
	}
	bf := newBitflagReader(r, uint64(flags), baseAddr)
	sub := &InterfaceSubType{Index: index, baseAddr: baseAddr}
	if sub.Qualifier, err = bf.readString(); err != nil {
		return nil, err
	}
	nameRef, err := bf.readStringRef()
	if err != nil {
		return nil, err
	}
	descRef, err := bf.readStringRef()
	if err != nil {
		return nil, err
	}
	sub.Name = strings.GetOr(nameRef, "")
	sub.Description = strings.GetOr(descRef, "")
	if sub.unk3, err = bf.readI16(0); err != nil {
		return nil, err
	}
	if sub.unk4, err = bf.readI16(0); err != nil {
		return nil, err
	}
	if sub.unk5, err = bf.readI32(0); err != nil {
		return nil, err
	}
	if sub.unk6, err = bf.readI32(0); err != nil {
		return nil, err
	}
	if sub.unk7, err = bf.readI32(0); err != nil {
		return nil, err
	}
	if sub.unk8, err = bf.readU8(0); err != nil {
		return nil, err
	}
	if sub.unk9, err = bf.readU8(0); err != nil {
		return nil, err
	}
	if sub.unk10, err = bf.readU8(0); err != nil {
		return nil, err
	}
	return sub, nil
}

// GetComParam finds the sub interface's value for a semantic comparam
func (sub *InterfaceSubType) GetComParam(param ComParam) (*ComParameter, bool) {
	for _, cp := range sub.ComParams {
		if cp.Param == param {
			return cp, true
		}
	}
	return nil, false
}

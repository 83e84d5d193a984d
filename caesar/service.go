package caesar

// ServiceType is the service class enumeration carried in the raw
// data class field
type ServiceType int

const (
	ServiceTypeUnknown            ServiceType = 0
	ServiceTypeData               ServiceType = 5
	ServiceTypeDownload           ServiceType = 7
	ServiceTypeDiagnosticFunction ServiceType = 10
	ServiceTypeDiagnosticJob      ServiceType = 19
	ServiceTypeSession            ServiceType = 21
	ServiceTypeStoredData         ServiceType = 22
	ServiceTypeRoutine            ServiceType = 23
	ServiceTypeIoControl          ServiceType = 24
	ServiceTypeVariantCodingWrite ServiceType = 26
	ServiceTypeVariantCodingRead  ServiceType = 27
)

func serviceTypeFromRaw(raw uint16) ServiceType {
	switch ServiceType(raw) {
	case ServiceTypeData, ServiceTypeDownload, ServiceTypeDiagnosticFunction,
		ServiceTypeDiagnosticJob, ServiceTypeSession, ServiceTypeStoredData,
		ServiceTypeRoutine, ServiceTypeIoControl,
		ServiceTypeVariantCodingWrite, ServiceTypeVariantCodingRead:
		return ServiceType(raw)
	default:
		return ServiceTypeUnknown
	}
}

// poolTuple is a (count, offset) pair pointing at a sub table of a
// record
type poolTuple struct {
	count  int
	offset int
}

func readPoolTuple32(bf *bitflagReader) (poolTuple, error) {
	count, err := bf.readI32(0)
	if err != nil {
		return poolTuple{}, err
	}
	offset, err := bf.readI32(0)
	if err != nil {
		return poolTuple{}, err
	}
	return poolTuple{count: int(count), offset: int(offset)}, nil
}

func readPoolTuple16(bf *bitflagReader) (poolTuple, error) {
	count, err := bf.readI16(0)
	if err != nil {
		return poolTuple{}, err
	}
	offset, err := bf.readI32(0)
	if err != nil {
		return poolTuple{}, err
	}
	return poolTuple{count: int(count), offset: int(offset)}, nil
}

// DiagServiceCode cross references a service into the container's
// DTC description sub pool
type DiagServiceCode struct {
	Qualifier  string
	PoolOffset int32
}

// Service is one executable diagnostic job of an ECU
type Service struct {
	Qualifier   string
	Name        string
	Description string

	DataClass        uint16
	DataClassShifted int32

	IsExecutable        bool
	ClientAccessLevel   int
	SecurityAccessLevel int

	InputRefName         string
	NegativeResponseName string
	RequestBytes         []byte

	InputPreparations  []*Preparation
	OutputPreparations [][]*Preparation
	ComParams          []*ComParameter
	DiagServiceCodes   []DiagServiceCode

	PoolIdx int

	tComParam poolTuple
	qPool     poolTuple
	rPool     poolTuple
	uPrep     poolTuple
	vPool     poolTuple
	reqBytes  poolTuple
	wOutPres  poolTuple
	pPool     poolTuple
	dscPool   poolTuple
	sPool     poolTuple
	xPool     poolTuple
	yPool     poolTuple
	zPool     poolTuple

	field50  uint16
	unkStr3  string
	unkStr4  string
	baseAddr int
}

// Type resolves the service class enumeration
func (svc *Service) Type() ServiceType {
	return serviceTypeFromRaw(svc.DataClass)
}

// RequestByteCount is the length of the fixed request template
func (svc *Service) RequestByteCount() int {
	return svc.reqBytes.count
}

// newService decodes a service record. Preparations are resolved
// against the parent ECU, which must already hold the presentation
// pools.
func newService(r *reader, pool *StringPool, baseAddr int, poolIdx int, ecu *ECU) (*Service, error) {
	r.seek(baseAddr)
	flags, err := r.readU32()
	if err != nil {
		return nil, err
	}
	flagsExt, err := r.readU32()
	if err != nil {
		return nil, err
	}
	bf := newBitflagReader(r, uint64(flags), baseAddr)
	svc := &Service{baseAddr: baseAddr, PoolIdx: poolIdx}
	if svc.Qualifier, err = bf.readString(); err != nil {
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
	svc.Name = pool.GetOr(nameRef, "")
	svc.Description = pool.GetOr(descRef, "")
	if svc.DataClass, err = bf.readU16(0); err != nil {
		return nil, err
	}
	executable, err := bf.readU16(0)
	if err != nil {
		return nil, err
	}
	svc.IsExecutable = executable > 0
	clientAccess, err := bf.readU16(0)
	if err != nil {
		return nil, err
	}
	svc.ClientAccessLevel = int(clientAccess)
	securityAccess, err := bf.readU16(0)
	if err != nil {
		return nil, err
	}
	svc.SecurityAccessLevel = int(securityAccess)
	if svc.tComParam, err = readPoolTuple32(bf); err != nil {
		return nil, err
	}
	if svc.qPool, err = readPoolTuple32(bf); err != nil {
		return nil, err
	}
	if svc.rPool, err = readPoolTuple32(bf); err != nil {
		return nil, err
	}
	if svc.InputRefName, err = bf.readString(); err != nil {
		return nil, err
	}
	if svc.uPrep, err = readPoolTuple32(bf); err != nil {
		return nil, err
	}
	if svc.vPool, err = readPoolTuple32(bf); err != nil {
		return nil, err
	}
	if svc.reqBytes, err = readPoolTuple16(bf); err != nil {
		return nil, err
	}
	if svc.wOutPres, err = readPoolTuple32(bf); err != nil {
		return nil, err
	}
	if svc.field50, err = bf.readU16(0); err != nil {
		return nil, err
	}
	if svc.NegativeResponseName, err = bf.readString(); err != nil {
		return nil, err
	}
	if svc.unkStr3, err = bf.readString(); err != nil {
		return nil, err
	}
	if svc.unkStr4, err = bf.readString(); err != nil {
		return nil, err
	}
	if svc.pPool, err = readPoolTuple32(bf); err != nil {
		return nil, err
	}
	if svc.dscPool, err = readPoolTuple32(bf); err != nil {
		return nil, err
	}
	if svc.sPool, err = readPoolTuple16(bf); err != nil {
		return nil, err
	}
	bf.setFlags(uint64(flagsExt))
	if svc.xPool, err = readPoolTuple32(bf); err != nil {
		return nil, err
	}
	if svc.yPool, err = readPoolTuple32(bf); err != nil {
		return nil, err
	}
	if svc.zPool, err = readPoolTuple32(bf); err != nil {
		return nil, err
	}
	if svc.DataClass > 0 {
		svc.DataClassShifted = 1 << (svc.DataClass - 1)
	}

	if svc.reqBytes.count > 0 {
		r.seek(baseAddr + svc.reqBytes.offset)
		raw, err := r.readBytes(svc.reqBytes.count)
		if err != nil {
			return nil, err
		}
		svc.RequestBytes = append([]byte{}, raw...)
	}

	// Input preparation table, entries of (offset, bit position, mode)
	prepBase := baseAddr + svc.uPrep.offset
	for i := 0; i < svc.uPrep.count; i++ {
		r.seek(prepBase + i*10)
		entryOffset, err := r.readI32()
		if err != nil {
			return nil, err
		}
		entryBitPos, err := r.readI32()
		if err != nil {
			return nil, err
		}
		entryMode, err := r.readU16()
		if err != nil {
			return nil, err
		}
		prep, err := newPreparation(r, pool, prepBase+int(entryOffset), int(entryBitPos), entryMode, ecu, svc)
		if err != nil {
			return nil, err
		}
		svc.InputPreparations = append(svc.InputPreparations, prep)
	}

	// Output preparation lists, one list per possible response shape
	outBase := baseAddr + svc.wOutPres.offset
	for i := 0; i < svc.wOutPres.count; i++ {
		r.seek(outBase + i*8)
		listCount, err := r.readI32()
		if err != nil {
			return nil, err
		}
		listOffset, err := r.readI32()
		if err != nil {
			return nil, err
		}
		var list []*Preparation
		listBase := outBase + int(listOffset)
		for j := 0; j < int(listCount); j++ {
			r.seek(listBase + j*10)
			entryOffset, err := r.readI32()
			if err != nil {
				return nil, err
			}
			entryBitPos, err := r.readI32()
			if err != nil {
				return nil, err
			}
			entryMode, err := r.readU16()
			if err != nil {
				return nil, err
			}
			prep, err := newPreparation(r, pool, listBase+int(entryOffset), int(entryBitPos), entryMode, ecu, svc)
			if err != nil {
				return nil, err
			}
			list = append(list, prep)
		}
		svc.OutputPreparations = append(svc.OutputPreparations, list)
	}

	// Attached comparams
	cpBase := baseAddr + svc.tComParam.offset
	for i := 0; i < svc.tComParam.count; i++ {
		r.seek(cpBase + i*4)
		cpOffset, err := r.readI32()
		if err != nil {
			return nil, err
		}
		cp, err := newComParameter(r, cpBase+int(cpOffset), ecu.Interfaces)
		if err != nil {
			return nil, err
		}
		svc.ComParams = append(svc.ComParams, cp)
	}

	// Diagnostic service code cross references into the DTC
	// description sub pool
	dscBase := baseAddr + svc.dscPool.offset
	for i := 0; i < svc.dscPool.count; i++ {
		r.seek(dscBase + i*4)
		entryOffset, err := r.readI32()
		if err != nil {
			return nil, err
		}
		entryBase := dscBase + int(entryOffset)
		r.seek(entryBase)
		entryFlags, err := r.readU16()
		if err != nil {
			return nil, err
		}
		dbf := newBitflagReader(r, uint64(entryFlags), entryBase)
		if _, err = dbf.readU8(0); err != nil {
			return nil, err
		}
		if _, err = dbf.readU8(0); err != nil {
			return nil, err
		}
		poolOffset, err := dbf.readI32(0)
		if err != nil {
			return nil, err
		}
		qualifier, err := dbf.readString()
		if err != nil {
			return nil, err
		}
		svc.DiagServiceCodes = append(svc.DiagServiceCodes, DiagServiceCode{
			Qualifier:  qualifier,
			PoolOffset: poolOffset,
		})
	}
	return svc, nil
}

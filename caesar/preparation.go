package caesar

import (
	log "github.com/sirupsen/logrus"
)

// FieldType is the inferred data type of a preparation
type FieldType int

const (
	FieldUnassigned FieldType = iota
	FieldInteger
	FieldNativeInfoPool
	FieldNativePresentation
	FieldUnhandledITT
	FieldUnhandledSP17
	FieldUnhandled
	FieldBitDump
	FieldExtendedBitDump
)

func (t FieldType) String() string {
	switch t {
	case FieldInteger:
		return "Integer"
	case FieldNativeInfoPool:
		return "NativeInfoPool"
	case FieldNativePresentation:
		return "NativePresentation"
	case FieldUnhandledITT:
		return "UnhandledITT"
	case FieldUnhandledSP17:
		return "UnhandledSP17"
	case FieldUnhandled:
		return "Unhandled"
	case FieldBitDump:
		return "BitDump"
	case FieldExtendedBitDump:
		return "ExtendedBitDump"
	default:
		return "Unassigned"
	}
}

// Bit widths of the fixed integer implementation types, indexed by
// the low nibble of mode_cfg
var intSizeMap = [7]int32{0x00, 0x01, 0x04, 0x08, 0x10, 0x20, 0x40}

// Preparation describes one field inside a service request or
// response payload
type Preparation struct {
	Qualifier  string
	Name       string
	BitPos     int
	ModeCfg    uint16
	SizeInBits int32
	FieldType  FieldType
	Dump       []byte

	// Index into the owning ECU's presentation pool, -1 when the
	// preparation carries no presentation
	PresentationIdx  int
	InternalPresIdx  int

	unk1                int8
	unk2                int8
	alternativeBitWidth int32
	ittOffset           int32
	infoPoolIdx         int32
	presPoolIdx         int32
	field1E             int32
	systemParam         int32
	dumpMode            int16
	dumpSize            int32
	baseAddr            int
}

// newPreparation decodes a preparation record and resolves its size
// in bits against the owning service and ECU pools.
func newPreparation(r *reader, pool *StringPool, baseAddr int, bitPos int, modeCfg uint16, ecu *ECU, svc *Service) (*Preparation, error) {
	r.seek(baseAddr)
	flags, err := r.readU32()
	if err != nil {
		return nil, err
	}
	bf := newBitflagReader(r, uint64(flags), baseAddr)
	prep := &Preparation{
		BitPos:          bitPos,
		ModeCfg:         modeCfg,
		PresentationIdx: -1,
		InternalPresIdx: -1,
		baseAddr:        baseAddr,
	}
	if prep.Qualifier, err = bf.readString(); err != nil {
		return nil, err
	}
	nameRef, err := bf.readStringRef()
	if err != nil {
		return nil, err
	}
	prep.Name = pool.GetOr(nameRef, "")
	if prep.unk1, err = bf.readI8(0); err != nil {
		return nil, err
	}
	if prep.unk2, err = bf.readI8(0); err != nil {
		return nil, err
	}
	if prep.alternativeBitWidth, err = bf.readI32(0); err != nil {
		return nil, err
	}
	if prep.ittOffset, err = bf.readI32(0); err != nil {
		return nil, err
	}
	if prep.infoPoolIdx, err = bf.readI32(0); err != nil {
		return nil, err
	}
	if prep.presPoolIdx, err = bf.readI32(0); err != nil {
		return nil, err
	}
	if prep.field1E, err = bf.readI32(0); err != nil {
		return nil, err
	}
	systemParam, err := bf.readI16(-1)
	if err != nil {
		return nil, err
	}
	prep.systemParam = int32(systemParam)
	if prep.dumpMode, err = bf.readI16(0); err != nil {
		return nil, err
	}
	if prep.dumpSize, err = bf.readI32(0); err != nil {
		return nil, err
	}
	if prep.Dump, err = bf.readDump(int(prep.dumpSize)); err != nil {
		return nil, err
	}
	if err := prep.resolveSize(ecu, svc); err != nil {
		return nil, err
	}
	return prep, nil
}

// Presentation resolves the attached presentation from the owning
// ECU's pools, nil when the preparation has none
func (prep *Preparation) Presentation(ecu *ECU) *Presentation {
	if prep.PresentationIdx >= 0 && prep.PresentationIdx < len(ecu.GlobalPresentations) {
		return ecu.GlobalPresentations[prep.PresentationIdx]
	}
	if prep.InternalPresIdx >= 0 && prep.InternalPresIdx < len(ecu.GlobalInternalPresentations) {
		return ecu.GlobalInternalPresentations[prep.InternalPresIdx]
	}
	return nil
}

// resolveSize computes (size_in_bits, field type) from the mode
// configuration word. The nibbles of mode_cfg pick the resolution
// strategy, see the mode_e / mode_h / mode_l split below.
func (prep *Preparation) resolveSize(ecu *ECU, svc *Service) error {
	modeE := prep.ModeCfg & 0xF000
	modeH := prep.ModeCfg & 0x0FF0
	modeL := prep.ModeCfg & 0x000F

	switch {
	case prep.ModeCfg&0x0F00 == 0x0300:
		if modeL > 6 {
			return newParseError(ErrInvalidImplType, "%v : impl type %v", prep.Qualifier, modeL)
		}
		switch modeH {
		case 0x0320:
			prep.FieldType = FieldInteger
			prep.SizeInBits = intSizeMap[modeL]
		case 0x0330:
			prep.FieldType = FieldBitDump
			prep.SizeInBits = prep.alternativeBitWidth
		case 0x0340:
			// Size cannot be determined for this type, data will be missing
			prep.FieldType = FieldUnhandledITT
		default:
			log.Warnf("[CAESAR] %v : unrecognized mode_h 0x%04X", prep.Qualifier, modeH)
			prep.FieldType = FieldUnhandled
		}
	case prep.systemParam == -1:
		switch modeE {
		case 0x8000:
			prep.FieldType = FieldNativeInfoPool
			pres, err := poolPresentation(ecu.GlobalInternalPresentations, prep.presPoolIdx, prep.Qualifier)
			if err != nil {
				return err
			}
			prep.InternalPresIdx = int(prep.presPoolIdx)
			prep.SizeInBits = pres.bitLength()
		case 0x2000:
			prep.FieldType = FieldNativePresentation
			pres, err := poolPresentation(ecu.GlobalPresentations, prep.presPoolIdx, prep.Qualifier)
			if err != nil {
				return err
			}
			prep.PresentationIdx = int(prep.presPoolIdx)
			prep.SizeInBits = pres.bitLength()
		default:
			return newParseError(ErrUnknownSystemType,
				"%v : mode_cfg %04X mode_e %04X mode_h %04X mode_l %04X",
				prep.Qualifier, prep.ModeCfg, modeE, modeH, modeL)
		}
	case modeH == 0x0410:
		reduced := prep.systemParam - 0x10
		switch reduced {
		case 0:
			prep.FieldType = FieldExtendedBitDump
			prep.SizeInBits = int32((int(svc.reqBytes.count)&0xFF)-(prep.BitPos/8)) * 8
		case 17:
			ref := ecu.findServiceByQualifier(svc.InputRefName)
			if ref == nil {
				log.Warnf("[CAESAR] 0x410 %v has no matching parent diag service", prep.Qualifier)
				prep.FieldType = FieldUnhandledSP17
				return nil
			}
			shifted := ref.DataClassShifted
			if shifted&0xC > 0 && ref.reqBytes.count > 0 {
				if shifted&4 != 0 {
					shifted = 0x10000000
				} else {
					shifted = 0x20000000
				}
			}
			prep.FieldType = FieldUnhandledSP17
			if shifted&0x10000 != 0 {
				prep.SizeInBits = int32(ref.pPool.count)
			} else {
				prep.SizeInBits = int32(ref.reqBytes.count) * 8
			}
		default:
			return newParseError(ErrInvalidSystemParam, "%v : system param %v", prep.Qualifier, prep.systemParam)
		}
	case modeH == 0x0420:
		if modeL > 6 {
			return newParseError(ErrInvalidImplType, "%v : impl type %v", prep.Qualifier, modeL)
		}
		prep.FieldType = FieldInteger
		prep.SizeInBits = intSizeMap[modeL]
	case modeH == 0x0430:
		prep.FieldType = FieldBitDump
		prep.SizeInBits = prep.alternativeBitWidth
	default:
		log.Warnf("[CAESAR] %v : unhandled param type 0x%04X", prep.Qualifier, modeH)
		prep.FieldType = FieldUnhandled
	}
	return nil
}

func poolPresentation(pool []*Presentation, idx int32, qualifier string) (*Presentation, error) {
	if idx < 0 || int(idx) >= len(pool) {
		return nil, newParseError(ErrPoolOutOfRange, "%v : presentation index %v of %v", qualifier, idx, len(pool))
	}
	return pool[idx], nil
}

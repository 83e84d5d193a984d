package caesar

import (
	log "github.com/sirupsen/logrus"
)

// block describes one contiguous sub table of the ECU body
type block struct {
	offset     int
	entryCount int
	entrySize  int
	blockSize  int
}

func readBlock(bf *bitflagReader, relativeOffset int) (block, error) {
	var blk block
	offset, err := bf.readI32(0)
	if err != nil {
		return blk, err
	}
	blk.offset = int(offset) + relativeOffset
	count, err := bf.readI32(0)
	if err != nil {
		return blk, err
	}
	blk.entryCount = int(count)
	size, err := bf.readI32(0)
	if err != nil {
		return blk, err
	}
	blk.entrySize = int(size)
	blockSize, err := bf.readI32(0)
	if err != nil {
		return blk, err
	}
	blk.blockSize = int(blockSize)
	return blk, nil
}

// ECU is one decoded controller description. The "global" pools own
// every record, variants reference them by index, so the whole graph
// is immutable and shareable once decode finishes.
type ECU struct {
	Qualifier   string
	Name        string
	Description string
	XMLVersion  string
	ClassName   string

	IgnitionRequired bool

	Interfaces []*ECUInterface
	SubTypes   []*InterfaceSubType

	GlobalPresentations         []*Presentation
	GlobalInternalPresentations []*Presentation
	GlobalEnvCtxs               []*Service
	GlobalServices              []*Service
	GlobalDTCs                  []*DTC
	Variants                    []*Variant

	variantBlk      block
	diagJobBlk      block
	dtcBlk          block
	envBlk          block
	vcDomainBlk     block
	presBlk         block
	internalPresBlk block
	unkBlk          block

	unkStr7, unkStr8 string
	unk2             int16
	unkBlockCount    int16
	unkBlockOffset   int32
	sgmlSource       int16
	unk6RelOffset    int32
	unk39            int32

	ifaceBlockCount int32
	ifaceTableOffset int32
	subIfaceCount   int32
	subIfaceOffset  int32

	strings  *StringPool
	dsc      *DataPool
	baseAddr int
}

// newECU decodes one ECU record and its whole object graph. Decoding
// order is strict because later records look up earlier ones.
func newECU(r *reader, strings *StringPool, header *cffHeader, baseAddr int) (*ECU, error) {
	r.seek(baseAddr)
	flags, err := r.readU32()
	if err != nil {
		return nil, err
	}
	flagsExt, err := r.readU16()
	if err != nil {
		return nil, err
	}
	// Unknown i32 between the bitmaps and the first field
	if _, err = r.readI32(); err != nil {
		return nil, err
	}
	log.Debugf("[CAESAR] processing ECU, base address 0x%08X", baseAddr)

	bf := newBitflagReader(r, uint64(flags), baseAddr)
	ecu := &ECU{strings: strings, baseAddr: baseAddr}
	if ecu.Qualifier, err = bf.readString(); err != nil {
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
	ecu.Name = strings.GetOr(nameRef, "")
	ecu.Description = strings.GetOr(descRef, "")
	if ecu.XMLVersion, err = bf.readString(); err != nil {
		return nil, err
	}
	if ecu.ifaceBlockCount, err = bf.readI32(0); err != nil {
		return nil, err
	}
	if ecu.ifaceTableOffset, err = bf.readI32(0); err != nil {
		return nil, err
	}
	if ecu.subIfaceCount, err = bf.readI32(0); err != nil {
		return nil, err
	}
	if ecu.subIfaceOffset, err = bf.readI32(0); err != nil {
		return nil, err
	}
	if ecu.ClassName, err = bf.readString(); err != nil {
		return nil, err
	}
	if ecu.unkStr7, err = bf.readString(); err != nil {
		return nil, err
	}
	if ecu.unkStr8, err = bf.readString(); err != nil {
		return nil, err
	}

	// Sub block offsets are relative to the end of the pools
	dataBufferOffset := int(header.stringPoolSize) + stubHeaderSize + int(header.headerSize) + 4

	ignition, err := bf.readI16(0)
	if err != nil {
		return nil, err
	}
	ecu.IgnitionRequired = ignition > 0
	if ecu.unk2, err = bf.readI16(0); err != nil {
		return nil, err
	}
	if ecu.unkBlockCount, err = bf.readI16(0); err != nil {
		return nil, err
	}
	if ecu.unkBlockOffset, err = bf.readI32(0); err != nil {
		return nil, err
	}
	if ecu.sgmlSource, err = bf.readI16(0); err != nil {
		return nil, err
	}
	if ecu.unk6RelOffset, err = bf.readI32(0); err != nil {
		return nil, err
	}
	if ecu.variantBlk, err = readBlock(bf, dataBufferOffset); err != nil {
		return nil, err
	}
	if ecu.diagJobBlk, err = readBlock(bf, dataBufferOffset); err != nil {
		return nil, err
	}
	if ecu.dtcBlk, err = readBlock(bf, dataBufferOffset); err != nil {
		return nil, err
	}
	// The env block straddles the bitmap boundary, its size field is
	// selected by the extension bitmap
	envOffset, err := bf.readI32(0)
	if err != nil {
		return nil, err
	}
	envCount, err := bf.readI32(0)
	if err != nil {
		return nil, err
	}
	envSize, err := bf.readI32(0)
	if err != nil {
		return nil, err
	}
	ecu.envBlk = block{offset: int(envOffset) + dataBufferOffset, entryCount: int(envCount), entrySize: int(envSize)}
	bf.setFlags(uint64(flagsExt))
	envBlockSize, err := bf.readI32(0)
	if err != nil {
		return nil, err
	}
	ecu.envBlk.blockSize = int(envBlockSize)
	if ecu.vcDomainBlk, err = readBlock(bf, dataBufferOffset); err != nil {
		return nil, err
	}
	if ecu.presBlk, err = readBlock(bf, dataBufferOffset); err != nil {
		return nil, err
	}
	if ecu.internalPresBlk, err = readBlock(bf, dataBufferOffset); err != nil {
		return nil, err
	}
	if ecu.unkBlk, err = readBlock(bf, dataBufferOffset); err != nil {
		return nil, err
	}
	if ecu.unk39, err = bf.readI32(0); err != nil {
		return nil, err
	}

	// 1. Interfaces and sub interfaces (comparam names)
	ifaceTableAddr := baseAddr + int(ecu.ifaceTableOffset)
	for i := 0; i < int(ecu.ifaceBlockCount); i++ {
		r.seek(ifaceTableAddr + i*4)
		blockOffset, err := r.readI32()
		if err != nil {
			return nil, err
		}
		iface, err := newECUInterface(r, strings, ifaceTableAddr+int(blockOffset))
		if err != nil {
			return nil, err
		}
		ecu.Interfaces = append(ecu.Interfaces, iface)
	}
	subTableAddr := baseAddr + int(ecu.subIfaceOffset)
	for i := 0; i < int(ecu.subIfaceCount); i++ {
		r.seek(subTableAddr + i*4)
		blockOffset, err := r.readI32()
		if err != nil {
			return nil, err
		}
		sub, err := newInterfaceSubType(r, strings, subTableAddr+int(blockOffset), i)
		if err != nil {
			return nil, err
		}
		ecu.SubTypes = append(ecu.SubTypes, sub)
	}

	// 2. Presentations before services, preparations size against them
	if ecu.GlobalPresentations, err = ecu.createPresentations(r, ecu.presBlk); err != nil {
		return nil, err
	}
	if ecu.GlobalInternalPresentations, err = ecu.createPresentations(r, ecu.internalPresBlk); err != nil {
		return nil, err
	}
	// 3. Environment contexts (services by type)
	if err = ecu.createEnvCtxs(r); err != nil {
		return nil, err
	}
	// 4. Services
	if err = ecu.createServices(r); err != nil {
		return nil, err
	}
	// 5. DTCs, they cross reference the service pool
	if err = ecu.createDTCs(r); err != nil {
		return nil, err
	}
	// 6. Variants last, they reference everything above
	if err = ecu.createVariants(r); err != nil {
		return nil, err
	}
	// Comparams decoded with the variants attach to sub interfaces in
	// one pass
	ecu.assignComParams()
	return ecu, nil
}

func (ecu *ECU) createPresentations(r *reader, blk block) ([]*Presentation, error) {
	res := make([]*Presentation, 0, blk.entryCount)
	for i := 0; i < blk.entryCount; i++ {
		r.seek(blk.offset + i*blk.entrySize)
		offset, err := r.readI32()
		if err != nil {
			return nil, err
		}
		pres, err := newPresentation(r, ecu.strings, blk.offset+int(offset), i)
		if err != nil {
			return nil, err
		}
		res = append(res, pres)
	}
	return res, nil
}

func (ecu *ECU) createEnvCtxs(r *reader) error {
	blk := ecu.envBlk
	for i := 0; i < blk.entryCount; i++ {
		r.seek(blk.offset + i*blk.entrySize)
		offset, err := r.readI32()
		if err != nil {
			return err
		}
		svc, err := newService(r, ecu.strings, blk.offset+int(offset), i, ecu)
		if err != nil {
			return err
		}
		ecu.GlobalEnvCtxs = append(ecu.GlobalEnvCtxs, svc)
	}
	return nil
}

func (ecu *ECU) createServices(r *reader) error {
	blk := ecu.diagJobBlk
	for i := 0; i < blk.entryCount; i++ {
		r.seek(blk.offset + i*blk.entrySize)
		offset, err := r.readI32()
		if err != nil {
			return err
		}
		svc, err := newService(r, ecu.strings, blk.offset+int(offset), i, ecu)
		if err != nil {
			return err
		}
		ecu.GlobalServices = append(ecu.GlobalServices, svc)
	}
	return nil
}

func (ecu *ECU) createDTCs(r *reader) error {
	blk := ecu.dtcBlk
	for i := 0; i < blk.entryCount; i++ {
		r.seek(blk.offset + i*blk.entrySize)
		offset, err := r.readI32()
		if err != nil {
			return err
		}
		dtc, err := newDTC(r, ecu.strings, blk.offset+int(offset), i)
		if err != nil {
			return err
		}
		ecu.GlobalDTCs = append(ecu.GlobalDTCs, dtc)
	}
	return nil
}

func (ecu *ECU) createVariants(r *reader) error {
	blk := ecu.variantBlk
	for i := 0; i < blk.entryCount; i++ {
		r.seek(blk.offset + i*blk.entrySize)
		entryOffset, err := r.readI32()
		if err != nil {
			return err
		}
		entrySize, err := r.readI32()
		if err != nil {
			return err
		}
		if _, err := r.readU16(); err != nil {
			return err
		}
		v, err := newVariant(r, ecu, blk.offset+int(entryOffset), int(entrySize))
		if err != nil {
			return err
		}
		ecu.Variants = append(ecu.Variants, v)
	}
	return nil
}

// assignComParams moves the variants' neutral comparam lists onto the
// sub interfaces they target
func (ecu *ECU) assignComParams() {
	for _, v := range ecu.Variants {
		for _, cp := range v.ComParams {
			idx := cp.SubIfaceIdx
			if cp.parentIfaceIdx > 0 {
				idx = int(cp.parentIfaceIdx)
			}
			if idx >= 0 && idx < len(ecu.SubTypes) {
				ecu.SubTypes[idx].ComParams = append(ecu.SubTypes[idx].ComParams, cp)
			}
		}
	}
}

func (ecu *ECU) findServiceByQualifier(qualifier string) *Service {
	if qualifier == "" {
		return nil
	}
	for _, svc := range ecu.GlobalServices {
		if svc.Qualifier == qualifier {
			return svc
		}
	}
	return nil
}

// Service resolves a variant service index into the global pool
func (ecu *ECU) Service(idx int) *Service {
	if idx < 0 || idx >= len(ecu.GlobalServices) {
		return nil
	}
	return ecu.GlobalServices[idx]
}

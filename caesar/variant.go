package caesar

// VariantPattern maps a live ECU identification response onto
// exactly one variant
type VariantPattern struct {
	Buffer     []byte
	VendorID   int32
	VendorName string
	VariantID  int32
	PatternType int32

	bufferSize int32
	unk4, unk5 int32
	unk7, unk8, unk9, unk10 int16
	unk11, unk12, unk13, unk14, unk15 uint8
	unk16 []byte
	unk17, unk18, unk19, unk20 uint8
	unk21 string
	unk22, unk23 int32
	baseAddr int
}

func newVariantPattern(r *reader, baseAddr int) (*VariantPattern, error) {
	r.seek(baseAddr)
	flags, err := r.readU32()
	if err != nil {
		return nil, err
	}
	bf := newBitflagReader(r, uint64(flags), baseAddr)
	ptn := &VariantPattern{baseAddr: baseAddr}
	if ptn.bufferSize, err = bf.readI32(0); err != nil {
		return nil, err
	}
	if ptn.Buffer, err = bf.readDump(int(ptn.bufferSize)); err != nil {
		return nil, err
	}
	if ptn.VendorID, err = bf.readI32(0); err != nil {
		return nil, err
	}
	if ptn.unk4, err = bf.readI32(0); err != nil {
		return nil, err
	}
	if ptn.unk5, err = bf.readI32(0); err != nil {
		return nil, err
	}
	if ptn.VendorName, err = bf.readString(); err != nil {
		return nil, err
	}
	if ptn.unk7, err = bf.readI16(0); err != nil {
		return nil, err
	}
	if ptn.unk8, err = bf.readI16(0); err != nil {
		return nil, err
	}
	if ptn.unk9, err = bf.readI16(0); err != nil {
		return nil, err
	}
	if ptn.unk10, err = bf.readI16(0); err != nil {
		return nil, err
	}
	if ptn.unk11, err = bf.readU8(0); err != nil {
		return nil, err
	}
	if ptn.unk12, err = bf.readU8(0); err != nil {
		return nil, err
	}
	if ptn.unk13, err = bf.readU8(0); err != nil {
		return nil, err
	}
	if ptn.unk14, err = bf.readU8(0); err != nil {
		return nil, err
	}
	if ptn.unk15, err = bf.readU8(0); err != nil {
		return nil, err
	}
	// Fixed five byte dump
	if ptn.unk16, err = bf.readDump(5); err != nil {
		return nil, err
	}
	if ptn.unk17, err = bf.readU8(0); err != nil {
		return nil, err
	}
	if ptn.unk18, err = bf.readU8(0); err != nil {
		return nil, err
	}
	if ptn.unk19, err = bf.readU8(0); err != nil {
		return nil, err
	}
	if ptn.unk20, err = bf.readU8(0); err != nil {
		return nil, err
	}
	if ptn.unk21, err = bf.readString(); err != nil {
		return nil, err
	}
	if ptn.unk22, err = bf.readI32(0); err != nil {
		return nil, err
	}
	if ptn.unk23, err = bf.readI32(0); err != nil {
		return nil, err
	}
	if ptn.VariantID, err = bf.readI32(0); err != nil {
		return nil, err
	}
	if ptn.PatternType, err = bf.readI32(0); err != nil {
		return nil, err
	}
	return ptn, nil
}

// VariantDTC references one of the ECU's global trouble codes plus
// the environment context window belonging to this variant
type VariantDTC struct {
	// Index into the owning ECU's global DTC pool
	Index     int
	XrefStart int
	XrefCount int
	// Indices into the owning ECU's global environment context pool
	EnvIdx []int
}

type dtcPoolBounds struct {
	actualIndex int32
	xrefStart   int32
	xrefCount   int32
}

// Variant is a per-vehicle-fitment selection of services, trouble
// codes and comparams within an ECU description
type Variant struct {
	Qualifier   string
	Name        string
	Description string

	NegativeResponseName string

	Patterns []*VariantPattern
	// Indices into the owning ECU's global service pool
	ServiceIdx []int
	DTCs       []VariantDTC
	// Decoded comparams in neutral form, assigned to sub interfaces
	// in a single resolution pass after all variants are built
	ComParams []*ComParameter

	unkStr1, unkStr2 string
	unk1             int32
	unkByte          uint8

	matchingParent poolTuple
	subsectionB    poolTuple
	comParamsTup   poolTuple
	dscTup         poolTuple
	diagServices   poolTuple
	dtcTup         poolTuple
	envCtx         poolTuple
	xref           poolTuple
	vcDomain       poolTuple

	xrefList []int32
	baseAddr int
}

// newVariant decodes a variant record. The record's own tables use
// offsets local to the record block, patterns / comparams / xrefs sit
// at absolute positions relative to the record base.
func newVariant(r *reader, ecu *ECU, baseAddr int, blockSize int) (*Variant, error) {
	r.seek(baseAddr)
	blockBytes, err := r.readBytes(blockSize)
	if err != nil {
		return nil, err
	}
	local := newReader(blockBytes)
	flags, err := local.readU32()
	if err != nil {
		return nil, err
	}
	if _, err = local.readU32(); err != nil {
		return nil, err
	}
	bf := newBitflagReader(local, uint64(flags), 0)
	v := &Variant{baseAddr: baseAddr}
	if v.Qualifier, err = bf.readString(); err != nil {
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
	v.Name = ecu.strings.GetOr(nameRef, "")
	v.Description = ecu.strings.GetOr(descRef, "")
	if v.unkStr1, err = bf.readString(); err != nil {
		return nil, err
	}
	if v.unkStr2, err = bf.readString(); err != nil {
		return nil, err
	}
	if v.unk1, err = bf.readI32(0); err != nil {
		return nil, err
	}
	if v.matchingParent, err = readPoolTuple32(bf); err != nil {
		return nil, err
	}
	if v.subsectionB, err = readPoolTuple32(bf); err != nil {
		return nil, err
	}
	if v.comParamsTup, err = readPoolTuple32(bf); err != nil {
		return nil, err
	}
	if v.dscTup, err = readPoolTuple32(bf); err != nil {
		return nil, err
	}
	if v.diagServices, err = readPoolTuple32(bf); err != nil {
		return nil, err
	}
	if v.dtcTup, err = readPoolTuple32(bf); err != nil {
		return nil, err
	}
	if v.envCtx, err = readPoolTuple32(bf); err != nil {
		return nil, err
	}
	if v.xref, err = readPoolTuple32(bf); err != nil {
		return nil, err
	}
	if v.vcDomain, err = readPoolTuple32(bf); err != nil {
		return nil, err
	}
	if v.NegativeResponseName, err = bf.readString(); err != nil {
		return nil, err
	}
	if v.unkByte, err = bf.readU8(0); err != nil {
		return nil, err
	}

	// Service pool indices local to the record block
	local.seek(v.diagServices.offset)
	servicePoolIdx := make([]int32, 0, v.diagServices.count)
	for i := 0; i < v.diagServices.count; i++ {
		idx, err := local.readI32()
		if err != nil {
			return nil, err
		}
		servicePoolIdx = append(servicePoolIdx, idx)
	}

	local.seek(v.dtcTup.offset)
	bounds := make([]dtcPoolBounds, 0, v.dtcTup.count)
	for i := 0; i < v.dtcTup.count; i++ {
		var b dtcPoolBounds
		if b.actualIndex, err = local.readI32(); err != nil {
			return nil, err
		}
		if b.xrefStart, err = local.readI32(); err != nil {
			return nil, err
		}
		if b.xrefCount, err = local.readI32(); err != nil {
			return nil, err
		}
		bounds = append(bounds, b)
	}

	local.seek(v.envCtx.offset)
	envPoolIdx := make([]int32, 0, v.envCtx.count)
	for i := 0; i < v.envCtx.count; i++ {
		idx, err := local.readI32()
		if err != nil {
			return nil, err
		}
		envPoolIdx = append(envPoolIdx, idx)
	}

	if err := v.createComParams(r, ecu); err != nil {
		return nil, err
	}
	v.resolveServices(servicePoolIdx, ecu)
	if err := v.createPatterns(r); err != nil {
		return nil, err
	}
	if err := v.createXrefs(r); err != nil {
		return nil, err
	}
	v.resolveDTCs(bounds, envPoolIdx, ecu)
	return v, nil
}

func (v *Variant) createComParams(r *reader, ecu *ECU) error {
	base := v.baseAddr + v.comParamsTup.offset
	r.seek(base)
	offsets := make([]int, 0, v.comParamsTup.count)
	for i := 0; i < v.comParamsTup.count; i++ {
		off, err := r.readI32()
		if err != nil {
			return err
		}
		offsets = append(offsets, base+int(off))
	}
	for _, off := range offsets {
		cp, err := newComParameter(r, off, ecu.Interfaces)
		if err != nil {
			return err
		}
		v.ComParams = append(v.ComParams, cp)
	}
	return nil
}

func (v *Variant) resolveServices(poolIdx []int32, ecu *ECU) {
	for _, idx := range poolIdx {
		for pos, svc := range ecu.GlobalServices {
			if svc.PoolIdx == int(idx) {
				v.ServiceIdx = append(v.ServiceIdx, pos)
				break
			}
		}
	}
}

func (v *Variant) createPatterns(r *reader) error {
	tableOffset := v.baseAddr + v.matchingParent.offset
	for i := 0; i < v.matchingParent.count; i++ {
		r.seek(tableOffset + i*4)
		ptnOffset, err := r.readI32()
		if err != nil {
			return err
		}
		ptn, err := newVariantPattern(r, tableOffset+int(ptnOffset))
		if err != nil {
			return err
		}
		v.Patterns = append(v.Patterns, ptn)
	}
	return nil
}

func (v *Variant) createXrefs(r *reader) error {
	r.seek(v.baseAddr + v.xref.offset)
	v.xrefList = make([]int32, v.xref.count)
	for i := 0; i < v.xref.count; i++ {
		x, err := r.readI32()
		if err != nil {
			return err
		}
		v.xrefList[i] = x
	}
	return nil
}

// resolveDTCs binds each pool bound to a global DTC and collects the
// environment contexts its xref window references
func (v *Variant) resolveDTCs(bounds []dtcPoolBounds, envPoolIdx []int32, ecu *ECU) {
	// Candidate contexts are the ones this variant's env table lists
	candidates := make(map[int32]int, len(envPoolIdx))
	for _, idx := range envPoolIdx {
		for pos, env := range ecu.GlobalEnvCtxs {
			if env.PoolIdx == int(idx) {
				candidates[idx] = pos
				break
			}
		}
	}
	findEnv := func(poolIdx int32) int {
		if pos, ok := candidates[poolIdx]; ok {
			return pos
		}
		return -1
	}
	for _, b := range bounds {
		globalIdx := -1
		for pos, dtc := range ecu.GlobalDTCs {
			if dtc.PoolIdx == int(b.actualIndex) {
				globalIdx = pos
				break
			}
		}
		if globalIdx < 0 {
			continue
		}
		vd := VariantDTC{
			Index:     globalIdx,
			XrefStart: int(b.xrefStart),
			XrefCount: int(b.xrefCount),
		}
		for i := vd.XrefStart; i < vd.XrefStart+vd.XrefCount; i++ {
			if i < 0 || i >= len(v.xrefList) {
				continue
			}
			if envIdx := findEnv(v.xrefList[i]); envIdx >= 0 {
				vd.EnvIdx = append(vd.EnvIdx, envIdx)
			}
		}
		v.DTCs = append(v.DTCs, vd)
	}
}

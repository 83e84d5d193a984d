package caesar

// DTC is one diagnostic trouble code record of an ECU
type DTC struct {
	Qualifier   string
	Description string
	Reference   string
	// Two byte code the ECU reports on a DTC read
	Identifier uint16

	PoolIdx  int
	baseAddr int
}

func newDTC(r *reader, pool *StringPool, baseAddr int, poolIdx int) (*DTC, error) {
	r.seek(baseAddr)
	flags, err := r.readU16()
	if err != nil {
		return nil, err
	}
	bf := newBitflagReader(r, uint64(flags), baseAddr)
	dtc := &DTC{PoolIdx: poolIdx, baseAddr: baseAddr}
	if dtc.Qualifier, err = bf.readString(); err != nil {
		return nil, err
	}
	descRef, err := bf.readStringRef()
	if err != nil {
		return nil, err
	}
	refRef, err := bf.readStringRef()
	if err != nil {
		return nil, err
	}
	dtc.Description = pool.GetOr(descRef, "")
	dtc.Reference = pool.GetOr(refRef, "")
	ident, err := bf.readI16(0)
	if err != nil {
		return nil, err
	}
	dtc.Identifier = uint16(ident)
	return dtc, nil
}

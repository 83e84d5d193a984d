package caesar

// Walks a record's present-bitmap in field order. Each read call pops
// the lowest bit : if it is set the field bytes are consumed from the
// reader, otherwise the caller supplied default is returned and the
// cursor does not move. Records carry 16, 32 or 48 bit bitmaps, the
// caller loads them into flags before the first field read.
type bitflagReader struct {
	flags uint64
	r     *reader
	base  int
}

func newBitflagReader(r *reader, flags uint64, base int) *bitflagReader {
	return &bitflagReader{flags: flags, r: r, base: base}
}

// Switch to the extension bitmap once the primary one is exhausted.
// Wide records (ECU, presentation, service) store it separately.
func (bf *bitflagReader) setFlags(flags uint64) {
	bf.flags = flags
}

func (bf *bitflagReader) take() bool {
	set := bf.flags&1 != 0
	bf.flags >>= 1
	return set
}

func (bf *bitflagReader) readU8(def uint8) (uint8, error) {
	if !bf.take() {
		return def, nil
	}
	return bf.r.readU8()
}

func (bf *bitflagReader) readI8(def int8) (int8, error) {
	if !bf.take() {
		return def, nil
	}
	return bf.r.readI8()
}

func (bf *bitflagReader) readU16(def uint16) (uint16, error) {
	if !bf.take() {
		return def, nil
	}
	return bf.r.readU16()
}

func (bf *bitflagReader) readI16(def int16) (int16, error) {
	if !bf.take() {
		return def, nil
	}
	return bf.r.readI16()
}

func (bf *bitflagReader) readU32(def uint32) (uint32, error) {
	if !bf.take() {
		return def, nil
	}
	return bf.r.readU32()
}

func (bf *bitflagReader) readI32(def int32) (int32, error) {
	if !bf.take() {
		return def, nil
	}
	return bf.r.readI32()
}

func (bf *bitflagReader) readF32(def float32) (float32, error) {
	if !bf.take() {
		return def, nil
	}
	return bf.r.readF32()
}

// String fields are stored as a 4 byte offset relative to the record
// base. An absent field reads as the empty string.
func (bf *bitflagReader) readString() (string, error) {
	if !bf.take() {
		return "", nil
	}
	offset, err := bf.r.readI32()
	if err != nil {
		return "", err
	}
	return bf.r.readCStringAt(bf.base + int(offset))
}

// Pool string references are plain 4 byte indices, -1 meaning "no string"
func (bf *bitflagReader) readStringRef() (int32, error) {
	return bf.readI32(-1)
}

// Dump fields store a 4 byte offset relative to the record base, the
// byte count comes from an earlier field of the same record
func (bf *bitflagReader) readDump(size int) ([]byte, error) {
	if !bf.take() {
		return nil, nil
	}
	offset, err := bf.r.readI32()
	if err != nil {
		return nil, err
	}
	start := bf.base + int(offset)
	if size < 0 || start < 0 || start+size > bf.r.size() {
		return nil, newParseError(ErrTruncated, "dump of %v bytes at offset %v", size, start)
	}
	res := make([]byte, size)
	copy(res, bf.r.data[start:start+size])
	return res, nil
}

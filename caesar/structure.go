package caesar

// Field width tables for the fixed layout structures embedded in the
// data pool. The first element of each layout is the byte width of the
// structure's present-bitmap (2, 4 or 6), the remaining elements are
// the widths of each field in schema order.
var (
	clt1  = []byte{2, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4}
	clt2  = []byte{4, 4, 4, 2, 2, 4, 4, 4, 4, 4, 2, 2, 2, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 1, 1, 2, 1}
	clt3  = []byte{6, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 2}
	clt4  = []byte{6, 4, 4, 2, 4, 4, 4, 4, 4, 4, 4, 4, 4, 2, 4, 4, 4, 4}
	clt5  = []byte{4, 4, 2, 2, 4, 4, 2, 1, 4, 4, 4, 4, 4, 4}
	clt6  = []byte{4, 4, 4, 4, 4, 4, 4, 2, 2, 2, 2, 1, 1, 1, 1, 1, 5, 1, 1, 1, 1, 4, 4, 4, 4, 4}
	clt7  = []byte{6, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 2, 2, 2, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 1, 1, 1, 1, 1, 4, 4, 4, 2, 4, 4, 4}
	clt8  = []byte{2, 4, 4, 2, 4, 4, 4, 4, 4, 4, 4, 4, 4}
	clt9  = []byte{2, 4, 4, 4, 4, 2, 4, 2, 4}
	clt10 = []byte{2, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 2}
	clt11 = []byte{2, 4, 4, 4, 4, 4, 4, 4, 4}
	clt12 = []byte{2, 4, 4, 4}
	clt13 = []byte{2, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4}
	clt14 = []byte{2, 4, 4, 4, 1, 1}
	clt15 = []byte{2, 4, 2, 2, 2, 4, 2, 2, 4, 4, 4}
	clt16 = []byte{2, 4, 4, 4, 4, 4, 4, 4, 4, 1, 1}
	clt17 = []byte{6, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 1}
	clt18 = []byte{4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4}
	clt19 = []byte{2, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4}
	clt20 = []byte{2, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4}
	clt21 = []byte{2, 4, 4, 4, 4}
	clt22 = []byte{2, 4, 4, 4, 4, 4, 4, 4, 4, 4, 2}
	clt23 = []byte{2, 4, 4, 4, 4, 4}
	clt24 = []byte{6, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 2, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4}
	clt25 = []byte{2, 4, 4, 4, 4}
	clt26 = []byte{2, 4, 4, 4, 4, 4, 4}
	clt27 = []byte{2, 4, 4}
	clt28 = []byte{2, 2, 4, 4, 2, 4, 4, 2, 4, 4, 2, 4, 4}
	clt29 = []byte{2, 4, 4, 4, 4, 4, 4, 4}
	clt30 = []byte{2, 4, 4}
	// Kind 30 has its own schema. Vendor tooling aliases it to the kind
	// 29 layout, which would silently misdecode CTF header records.
	clt31 = []byte{2, 4, 4, 2, 4, 4, 4, 4, 4}
	clt32 = []byte{2, 4, 2, 4, 4, 4}
	clt33 = []byte{6, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 2, 2}
	clt34 = []byte{6, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4}
	clt35 = []byte{2, 4, 4, 4, 4, 4, 2, 4}
	clt36 = []byte{2, 4, 4, 4, 4, 4, 2, 4}
	clt37 = []byte{2, 4, 4, 4, 4, 4, 4, 2, 4}
	clt38 = []byte{2, 2, 2, 2, 2, 2, 2, 2, 4, 4, 0, 0, 0}
)

var cbfLookupTable = [][]byte{
	clt1, clt2, clt3, clt4, clt5, clt6, clt7, clt8, clt9, clt10,
	clt11, clt12, clt13, clt14, clt15, clt16, clt17, clt18, clt19, clt20,
	clt21, clt22, clt23, clt24, clt25, clt26, clt27, clt28, clt29, clt30,
	clt31, clt32, clt33, clt34, clt35, clt36, clt37, clt38,
}

// Structure kinds the decoder needs by name
type structureKind int

const (
	kindCBFHeader     structureKind = 0
	kindPresentation  structureKind = 6
	kindScaleInterval structureKind = 12
	kindFlashHeader   structureKind = 17
	kindSessionTable  structureKind = 21
	kindDataBlock     structureKind = 23
	kindSegmentTable  structureKind = 28
	kindCTFHeader     structureKind = 30
	kindLanguageTable structureKind = 31
	kindCCFHeader     structureKind = 32
	kindCCFFragment   structureKind = 34
)

// Field indices of the presentation structure used for second order
// size resolution
const (
	presFieldTypeLength = 0x1A
	presFieldType       = 0x1C
	presFieldByteLength = 0x21
)

func structureLayout(kind structureKind) ([]byte, error) {
	if int(kind) < 0 || int(kind) >= len(cbfLookupTable) {
		return nil, newParseError(ErrUnknownStructureKind, "kind %v", int(kind))
	}
	return cbfLookupTable[kind], nil
}

// structureFieldOffset walks the structure's own bitmap to find the
// byte offset of a field inside the raw structure bytes. Returns the
// offset and whether the field is present at all.
func structureFieldOffset(field int, kind structureKind, raw []byte) (int, bool, error) {
	layout, err := structureLayout(kind)
	if err != nil {
		return 0, false, err
	}
	if field < 1 || field >= len(layout) {
		return 0, false, newParseError(ErrUnknownStructureKind, "field %v of kind %v", field, int(kind))
	}
	bitmapLen := int(layout[0])
	if len(raw) < bitmapLen {
		return 0, false, newParseError(ErrTruncated, "structure bitmap needs %v bytes, have %v", bitmapLen, len(raw))
	}
	offset := bitmapLen
	for i := 1; i <= field; i++ {
		byteIdx := (i - 1) / 8
		mask := byte(1) << uint((i-1)%8)
		present := byteIdx < bitmapLen && raw[byteIdx]&mask != 0
		if i == field {
			return offset, present, nil
		}
		if present {
			offset += int(layout[i])
		}
	}
	return 0, false, nil
}

// readStructureField materializes a 1/2/4 byte integer field of a
// fixed layout structure, def when the field's bit is clear.
func readStructureField(field int, kind structureKind, raw []byte, def int32) (int32, error) {
	offset, present, err := structureFieldOffset(field, kind, raw)
	if err != nil {
		return 0, err
	}
	if !present {
		return def, nil
	}
	layout, _ := structureLayout(kind)
	width := int(layout[field])
	if offset+width > len(raw) {
		return 0, newParseError(ErrTruncated, "structure field %v at %v+%v, size %v", field, offset, width, len(raw))
	}
	r := newReader(raw)
	r.seek(offset)
	switch width {
	case 1:
		v, err := r.readI8()
		return int32(v), err
	case 2:
		v, err := r.readI16()
		return int32(v), err
	case 4:
		return r.readI32()
	default:
		return 0, newParseError(ErrUnknownStructureKind, "field width %v is not readable as an integer", width)
	}
}

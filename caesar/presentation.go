package caesar

import (
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/autodiag/gocbf/schema"
)

// Scale is one enum value or linear segment of a presentation
type Scale struct {
	EnumLowerBound  int32
	EnumUpperBound  int32
	MultiplyFactor  float32
	AddConstOffset  float32
	EnumDescription string

	prepLowerBound float32
	prepUpperBound float32
	siCount        int32
	siOffset       int32
	unkA           int32
	unkB           int32
	unkC           int16
	baseAddr       int
}

func newScale(r *reader, pool *StringPool, baseAddr int) (*Scale, error) {
	r.seek(baseAddr)
	flags, err := r.readU32()
	if err != nil {
		return nil, err
	}
	bf := newBitflagReader(r, uint64(flags), baseAddr)
	s := &Scale{baseAddr: baseAddr}
	if s.EnumLowerBound, err = bf.readI32(0); err != nil {
		return nil, err
	}
	if s.EnumUpperBound, err = bf.readI32(0); err != nil {
		return nil, err
	}
	if s.prepLowerBound, err = bf.readF32(0); err != nil {
		return nil, err
	}
	if s.prepUpperBound, err = bf.readF32(0); err != nil {
		return nil, err
	}
	if s.MultiplyFactor, err = bf.readF32(0); err != nil {
		return nil, err
	}
	if s.AddConstOffset, err = bf.readF32(0); err != nil {
		return nil, err
	}
	if s.siCount, err = bf.readI32(0); err != nil {
		return nil, err
	}
	if s.siOffset, err = bf.readI32(0); err != nil {
		return nil, err
	}
	if s.unkA, err = bf.readI32(0); err != nil {
		return nil, err
	}
	if s.unkB, err = bf.readI32(0); err != nil {
		return nil, err
	}
	descRef, err := bf.readStringRef()
	if err != nil {
		return nil, err
	}
	s.EnumDescription = pool.GetOr(descRef, "")
	if s.unkC, err = bf.readI16(0); err != nil {
		return nil, err
	}
	return s, nil
}

// Presentation carries scaling and rendering information attached to
// a preparation
type Presentation struct {
	Qualifier    string
	Description  string
	Description2 string
	DisplayUnit  string
	ScaleList    []*Scale

	scaleTableOffset int32
	scaleCount       int32
	unk5             int32
	unk6, unk7, unk8 int32
	unk9, unkA, unkB int32
	unkC             int32
	unkD, unkE, unkF int16
	unk11, unk12     int32
	unk13            int32
	unk14            int32
	unk15            int32
	unk17            int32
	unk18            int32
	unk19            int32
	// Bit length of the rendered value, with a byte length fallback
	typeLength1A int32
	unk1B        int8
	// 0 means typeLength counts bytes, 1 means bits
	type1C               int8
	unk1D                int8
	enumType1E           int8
	unk1F                int8
	unk20                int32
	typeLengthBytesMaybe int32
	unk22                int32
	unk23                int16
	unk24, unk25, unk26  int32

	baseAddr int
	poolIdx  int
}

func newPresentation(r *reader, pool *StringPool, baseAddr int, poolIdx int) (*Presentation, error) {
	r.seek(baseAddr)
	flags, err := r.readU32()
	if err != nil {
		return nil, err
	}
	flagsExt, err := r.readU16()
	if err != nil {
		return nil, err
	}
	bf := newBitflagReader(r, uint64(flags), baseAddr)
	p := &Presentation{baseAddr: baseAddr, poolIdx: poolIdx}
	if p.Qualifier, err = bf.readString(); err != nil {
		return nil, err
	}
	descRef, err := bf.readStringRef()
	if err != nil {
		return nil, err
	}
	p.Description = pool.GetOr(descRef, "")
	if p.scaleTableOffset, err = bf.readI32(-1); err != nil {
		return nil, err
	}
	if p.scaleCount, err = bf.readI32(0); err != nil {
		return nil, err
	}
	if p.unk5, err = bf.readI32(-1); err != nil {
		return nil, err
	}
	if p.unk6, err = bf.readI32(0); err != nil {
		return nil, err
	}
	if p.unk7, err = bf.readI32(0); err != nil {
		return nil, err
	}
	if p.unk8, err = bf.readI32(0); err != nil {
		return nil, err
	}
	if p.unk9, err = bf.readI32(0); err != nil {
		return nil, err
	}
	if p.unkA, err = bf.readI32(0); err != nil {
		return nil, err
	}
	if p.unkB, err = bf.readI32(0); err != nil {
		return nil, err
	}
	if p.unkC, err = bf.readI32(0); err != nil {
		return nil, err
	}
	if p.unkD, err = bf.readI16(0); err != nil {
		return nil, err
	}
	if p.unkE, err = bf.readI16(0); err != nil {
		return nil, err
	}
	if p.unkF, err = bf.readI16(0); err != nil {
		return nil, err
	}
	unitRef, err := bf.readStringRef()
	if err != nil {
		return nil, err
	}
	p.DisplayUnit = pool.GetOr(unitRef, "")
	if p.unk11, err = bf.readI32(0); err != nil {
		return nil, err
	}
	if p.unk12, err = bf.readI32(0); err != nil {
		return nil, err
	}
	if p.unk13, err = bf.readI32(0); err != nil {
		return nil, err
	}
	if p.unk14, err = bf.readI32(-1); err != nil {
		return nil, err
	}
	if p.unk15, err = bf.readI32(0); err != nil {
		return nil, err
	}
	desc2Ref, err := bf.readStringRef()
	if err != nil {
		return nil, err
	}
	p.Description2 = pool.GetOr(desc2Ref, "")
	if p.unk17, err = bf.readI32(-1); err != nil {
		return nil, err
	}
	if p.unk18, err = bf.readI32(0); err != nil {
		return nil, err
	}
	if p.unk19, err = bf.readI32(-1); err != nil {
		return nil, err
	}
	if p.typeLength1A, err = bf.readI32(-1); err != nil {
		return nil, err
	}
	if p.unk1B, err = bf.readI8(-1); err != nil {
		return nil, err
	}
	if p.type1C, err = bf.readI8(-1); err != nil {
		return nil, err
	}
	if p.unk1D, err = bf.readI8(0); err != nil {
		return nil, err
	}
	if p.enumType1E, err = bf.readI8(0); err != nil {
		return nil, err
	}
	if p.unk1F, err = bf.readI8(0); err != nil {
		return nil, err
	}
	if p.unk20, err = bf.readI32(0); err != nil {
		return nil, err
	}
	bf.setFlags(uint64(flagsExt))
	if p.typeLengthBytesMaybe, err = bf.readI32(0); err != nil {
		return nil, err
	}
	if p.unk22, err = bf.readI32(-1); err != nil {
		return nil, err
	}
	if p.unk23, err = bf.readI16(0); err != nil {
		return nil, err
	}
	if p.unk24, err = bf.readI32(0); err != nil {
		return nil, err
	}
	if p.unk25, err = bf.readI32(0); err != nil {
		return nil, err
	}
	if p.unk26, err = bf.readI32(0); err != nil {
		return nil, err
	}
	if p.scaleCount > 0 && p.scaleTableOffset >= 0 {
		scaleTableBase := baseAddr + int(p.scaleTableOffset)
		for i := 0; i < int(p.scaleCount); i++ {
			r.seek(scaleTableBase + i*4)
			entryOffset, err := r.readI32()
			if err != nil {
				return nil, err
			}
			scale, err := newScale(r, pool, scaleTableBase+int(entryOffset))
			if err != nil {
				return nil, err
			}
			p.ScaleList = append(p.ScaleList, scale)
		}
	}
	return p, nil
}

// bitLength resolves the rendered value size. typeLength1A wins when
// positive, otherwise the byte length fallback, converted to bits
// when type1C says the length counts bytes.
func (p *Presentation) bitLength() int32 {
	length := p.typeLength1A
	if length <= 0 {
		length = p.typeLengthBytesMaybe
	}
	if p.type1C == 0 {
		length *= 8
	}
	return length
}

// Internal data type codes, mirroring what the vendor tooling derives
// from the presentation fields
func (p *Presentation) dataType() int {
	if p.unk14 != -1 {
		return 17 // ASCII
	}
	if p.scaleTableOffset != -1 {
		return 20
	}
	if p.unk5 != -1 || p.unk17 != -1 || p.unk19 != -1 || p.unk22 != -1 {
		return 18
	}
	if p.unk1B != -1 {
		switch p.unk1B {
		case 6:
			return 17
		case 7:
			return 22
		case 8, 5:
			return 6
		}
		return -1
	}
	if p.typeLength1A == -1 || p.type1C == -1 {
		log.Warnf("[CAESAR] presentation %v : type length and type must be valid", p.Qualifier)
	}
	if p.enumType1E == 1 || p.enumType1E == 2 {
		return 5
	}
	return 2
}

// InferDataFormat chooses the decoder's effective interpretation of a
// preparation rendered through this presentation
func (p *Presentation) InferDataFormat(sizeInBits int32) (schema.DataFormat, bool) {
	isEnum := (p.enumType1E == 0 && p.type1C == 1) || len(p.ScaleList) > 1
	if sizeInBits == 1 || (isEnum && len(p.ScaleList) == 2) {
		if len(p.ScaleList) == 0 {
			// No enum entries for an enum value, assume true/false
			return schema.Bool("", ""), true
		}
		if isEnum {
			return schema.Bool(p.ScaleList[1].EnumDescription, p.ScaleList[0].EnumDescription), true
		}
		return schema.Identical(), true
	}
	if isEnum && p.scaleCount >= 1 {
		// A binary encoded string hides as a full 2^N entry scale
		// table whose entries all start with 'b'
		isBinary := len(p.ScaleList) > 0
		for _, s := range p.ScaleList {
			if !strings.HasPrefix(s.EnumDescription, "b") {
				isBinary = false
				break
			}
		}
		if isBinary && sizeInBits <= 16 && int64(p.scaleCount) == int64(1)<<uint(sizeInBits) {
			log.Debugf("[CAESAR] binary table with %v entries : %v", p.scaleCount, p.Qualifier)
			return schema.Binary(), true
		}
		rows := make([]schema.TableRow, 0, len(p.ScaleList))
		for _, s := range p.ScaleList {
			name := s.EnumDescription
			if name == "" {
				name = "MISSING ENUM"
			}
			rows = append(rows, schema.TableRow{
				Name:  name,
				Start: float64(s.EnumLowerBound),
				End:   float64(s.EnumUpperBound),
			})
		}
		return schema.Table(rows), true
	}
	switch p.dataType() {
	case 6:
		return schema.Identical(), true
	case 20:
		if len(p.ScaleList) == 0 {
			log.Warnf("[CAESAR] scale presentation %v has no scale list, assuming identical", p.Qualifier)
			return schema.Identical(), true
		}
		// Widen the float32 factor through its shortest decimal form so
		// 0.1 becomes 0.1 and not 0.10000000149
		mul, _ := strconv.ParseFloat(strconv.FormatFloat(float64(p.ScaleList[0].MultiplyFactor), 'g', -1, 32), 64)
		return schema.Linear(mul, float64(p.ScaleList[0].AddConstOffset)), true
	case 18:
		return schema.HexDump(), true
	case 17:
		return schema.String(schema.EncodingUtf8), true
	default:
		return schema.DataFormat{}, false
	}
}

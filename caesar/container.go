package caesar

import (
	"os"
	"strings"

	mmap "github.com/edsrzf/mmap-go"
	log "github.com/sirupsen/logrus"
)

// CxfType discriminates the two container flavors carried at byte 1
type CxfType byte

const (
	TypeCBF CxfType = 0x42
	TypeCFF CxfType = 0x46
)

func (t CxfType) String() string {
	switch t {
	case TypeCBF:
		return "CBF"
	case TypeCFF:
		return "CFF"
	default:
		return "unknown"
	}
}

// The stub header sits between the ASCII metadata block and the CFF
// header record
const stubHeaderSize = 0x410

// Metadata is the human readable ASCII block at the start of every
// container. TargetRelease and GpdTranslatorVersion only exist in CBF
// files.
type Metadata struct {
	Kind                 CxfType
	Name                 string
	Language             string
	Date                 string
	Fingerprint          string
	TranslatorVersion    string
	TargetRelease        string
	GpdTranslatorVersion string
}

// cffHeader declares where the pools and the ECU body live
type cffHeader struct {
	caesarVersion  int32
	gpdVersion     int32
	ecuCount       int32
	ecuOffset      int32
	ctfOffset      int32
	stringPoolSize int32
	dscOffset      int32
	dscCount       int32
	dscEntrySize   int32
	cbfVersion     string
	gpdVersionStr  string
	headerSize     int32
}

// Container is a fully loaded CBF/CFF file. Pools and the decoded ECU
// graph are immutable after Decode and safe to share between
// goroutines.
type Container struct {
	Kind     CxfType
	Metadata Metadata
	Strings  *StringPool
	Dsc      *DataPool
	ECUs     []*ECU

	header cffHeader
	body   *reader
	mapped mmap.MMap
	file   *os.File
}

// Open memory-maps a container file and loads its metadata, header and
// pools. ECU records are not decoded until Decode is called.
func Open(path string) (*Container, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, err
	}
	c, err := Load(m)
	if err != nil {
		m.Unmap()
		f.Close()
		return nil, err
	}
	c.mapped = m
	c.file = f
	return c, nil
}

// Load reads a container from an in-memory byte image
func Load(data []byte) (*Container, error) {
	r := newReader(data)
	kind, err := readMagic(r)
	if err != nil {
		return nil, err
	}
	meta, err := readMetadata(r, kind)
	if err != nil {
		return nil, err
	}
	header, err := readCFFHeader(r)
	if err != nil {
		return nil, err
	}
	poolStart := stubHeaderSize + 4 + int(header.headerSize)
	r.seek(poolStart)
	strBytes, err := r.readBytes(int(header.stringPoolSize))
	if err != nil {
		return nil, err
	}
	// The DTC description sub pool follows the string pool
	dscBytes := []byte{}
	if header.dscCount > 0 && header.dscEntrySize > 0 {
		r.seek(poolStart + int(header.stringPoolSize) + int(header.dscOffset))
		dscBytes, err = r.readBytes(int(header.dscCount) * int(header.dscEntrySize))
		if err != nil {
			return nil, err
		}
	}
	c := &Container{
		Kind:     kind,
		Metadata: meta,
		Strings:  NewStringPool(strBytes),
		Dsc:      NewDataPool(dscBytes),
		header:   header,
		body:     r,
	}
	log.Debugf("[CAESAR] loaded %v container, %v strings, %v ECU(s) declared",
		kind, c.Strings.Count(), header.ecuCount)
	return c, nil
}

// Decode lifts every declared ECU record into the in-memory model
func (c *Container) Decode() error {
	ecuTableBase := stubHeaderSize + 4 + int(c.header.headerSize) + int(c.header.stringPoolSize)
	for i := 0; i < int(c.header.ecuCount); i++ {
		c.body.seek(ecuTableBase + int(c.header.ecuOffset) + i*4)
		entryOffset, err := c.body.readI32()
		if err != nil {
			return err
		}
		baseAddr := ecuTableBase + int(c.header.ecuOffset) + int(entryOffset)
		ecu, err := newECU(c.body, c.Strings, &c.header, baseAddr)
		if err != nil {
			return err
		}
		c.ECUs = append(c.ECUs, ecu)
	}
	return nil
}

// Close releases the mapping when the container came from Open
func (c *Container) Close() error {
	if c.mapped != nil {
		if err := c.mapped.Unmap(); err != nil {
			return err
		}
		c.mapped = nil
	}
	if c.file != nil {
		err := c.file.Close()
		c.file = nil
		return err
	}
	return nil
}

func readMagic(r *reader) (CxfType, error) {
	r.seek(1)
	tag, err := r.readU8()
	if err != nil {
		return 0, err
	}
	switch CxfType(tag) {
	case TypeCBF, TypeCFF:
		return CxfType(tag), nil
	default:
		return 0, newParseError(ErrBadMagic, "type tag 0x%02X", tag)
	}
}

func readMetadata(r *reader, kind CxfType) (Metadata, error) {
	r.seek(0)
	raw, err := r.readUntil(0x00)
	if err != nil {
		return Metadata{}, err
	}
	meta := Metadata{Kind: kind}
	lines := strings.FieldsFunc(string(raw), func(c rune) bool { return c == '\n' || c == '\r' })
	find := func(key string) (string, bool) {
		for _, l := range lines {
			if idx := strings.Index(l, key); idx >= 0 {
				return strings.TrimSpace(l[idx+len(key):]), true
			}
		}
		return "", false
	}
	required := func(key string) (string, error) {
		v, ok := find(key)
		if !ok {
			return "", newParseError(ErrMissingMetadata, "%v", key)
		}
		return v, nil
	}
	nameKey := "CFF:"
	if kind == TypeCBF {
		nameKey = "CBF:"
	}
	if meta.Name, err = required(nameKey); err != nil {
		return meta, err
	}
	if meta.Date, err = required("DATE:"); err != nil {
		return meta, err
	}
	if meta.Fingerprint, err = required("FINGERPRINT:"); err != nil {
		return meta, err
	}
	if meta.TranslatorVersion, err = required("CFF-TRANSLATOR-VERSION:"); err != nil {
		return meta, err
	}
	meta.Language, _ = find("LANGUAGE:")
	if kind == TypeCBF {
		if meta.TargetRelease, err = required("TARGET-RELEASE:"); err != nil {
			return meta, err
		}
		if meta.GpdTranslatorVersion, err = required("GPD-TRANSLATOR-VERSION:"); err != nil {
			return meta, err
		}
	}
	return meta, nil
}

func readCFFHeader(r *reader) (cffHeader, error) {
	h := cffHeader{}
	r.seek(stubHeaderSize)
	size, err := r.readI32()
	if err != nil {
		return h, err
	}
	h.headerSize = size
	flags, err := r.readU16()
	if err != nil {
		return h, err
	}
	bf := newBitflagReader(r, uint64(flags), stubHeaderSize+4)
	if h.caesarVersion, err = bf.readI32(0); err != nil {
		return h, err
	}
	if h.gpdVersion, err = bf.readI32(0); err != nil {
		return h, err
	}
	if h.ecuCount, err = bf.readI32(0); err != nil {
		return h, err
	}
	if h.ecuOffset, err = bf.readI32(0); err != nil {
		return h, err
	}
	if h.ctfOffset, err = bf.readI32(0); err != nil {
		return h, err
	}
	if h.stringPoolSize, err = bf.readI32(0); err != nil {
		return h, err
	}
	if h.dscOffset, err = bf.readI32(0); err != nil {
		return h, err
	}
	if h.dscCount, err = bf.readI32(0); err != nil {
		return h, err
	}
	if h.dscEntrySize, err = bf.readI32(0); err != nil {
		return h, err
	}
	if h.cbfVersion, err = bf.readString(); err != nil {
		return h, err
	}
	if h.gpdVersionStr, err = bf.readString(); err != nil {
		return h, err
	}
	return h, nil
}

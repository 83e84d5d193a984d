package caesar

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// buildImage assembles a minimal container : ASCII metadata, stub
// header padding, a CFF header with no ECUs and a two entry string
// pool
func buildImage(t *testing.T, meta string, stringPool []byte) []byte {
	t.Helper()
	image := make([]byte, 0, stubHeaderSize+64+len(stringPool))
	image = append(image, []byte(meta)...)
	image = append(image, 0x00)
	for len(image) < stubHeaderSize {
		image = append(image, 0x00)
	}
	// Header record : 16 bit bitmap, nine i32 fields present, the two
	// version strings absent
	record := make([]byte, 0, 38)
	record = binary.LittleEndian.AppendUint16(record, 0x01FF)
	ints := []int32{
		1,                      // caesar version
		2,                      // gpd version
		0,                      // ecu count
		0,                      // ecu offset
		0,                      // ctf offset
		int32(len(stringPool)), // string pool size
		0, 0, 0,                // dsc offset / count / entry size
	}
	for _, v := range ints {
		record = binary.LittleEndian.AppendUint32(record, uint32(v))
	}
	image = binary.LittleEndian.AppendUint32(image, uint32(len(record)))
	image = append(image, record...)
	image = append(image, stringPool...)
	return image
}

const cbfMeta = "CBF:TESTECU\nLANGUAGE:English\nDATE:01/02/2020\nFINGERPRINT:AABBCC\n" +
	"CFF-TRANSLATOR-VERSION:1.2.3\nTARGET-RELEASE:DIOGENES\nGPD-TRANSLATOR-VERSION:4.5.6"

const cffMeta = "CFF:TESTECU\nLANGUAGE:English\nDATE:01/02/2020\nFINGERPRINT:AABBCC\n" +
	"CFF-TRANSLATOR-VERSION:1.2.3"

func TestLoadCBF(t *testing.T) {
	image := buildImage(t, cbfMeta, []byte("hello\x00world\x00"))
	c, err := Load(image)
	assert.Nil(t, err)
	assert.Equal(t, TypeCBF, c.Kind)
	assert.Equal(t, "TESTECU", c.Metadata.Name)
	assert.Equal(t, "01/02/2020", c.Metadata.Date)
	assert.Equal(t, "DIOGENES", c.Metadata.TargetRelease)
	assert.Equal(t, "4.5.6", c.Metadata.GpdTranslatorVersion)
	assert.Equal(t, 2, c.Strings.Count())
	assert.Equal(t, "world", c.Strings.GetOr(1, ""))
	assert.Nil(t, c.Decode())
	assert.Empty(t, c.ECUs)
}

func TestLoadCFF(t *testing.T) {
	image := buildImage(t, cffMeta, []byte("x\x00"))
	c, err := Load(image)
	assert.Nil(t, err)
	assert.Equal(t, TypeCFF, c.Kind)
	assert.Equal(t, "TESTECU", c.Metadata.Name)
	// CFF carries no GPD metadata
	assert.Equal(t, "", c.Metadata.TargetRelease)
}

func TestLoadBadMagic(t *testing.T) {
	_, err := Load([]byte{0x00, 0x00, 0x01, 0x02})
	assert.NotNil(t, err)
	perr, ok := err.(*ParseError)
	assert.True(t, ok)
	assert.Equal(t, ErrBadMagic, perr.Kind)
}

func TestLoadMissingMetadata(t *testing.T) {
	// CBF without TARGET-RELEASE
	meta := "CBF:TESTECU\nDATE:01/02/2020\nFINGERPRINT:AABBCC\nCFF-TRANSLATOR-VERSION:1.2.3\nGPD-TRANSLATOR-VERSION:4.5.6"
	image := buildImage(t, meta, []byte{})
	_, err := Load(image)
	assert.NotNil(t, err)
	perr, ok := err.(*ParseError)
	assert.True(t, ok)
	assert.Equal(t, ErrMissingMetadata, perr.Kind)
	assert.Contains(t, perr.Error(), "TARGET-RELEASE:")
}

func TestMagicDetection(t *testing.T) {
	r := newReader([]byte{'C', 0x42})
	kind, err := readMagic(r)
	assert.Nil(t, err)
	assert.Equal(t, TypeCBF, kind)

	r = newReader([]byte{'C', 0x46})
	kind, err = readMagic(r)
	assert.Nil(t, err)
	assert.Equal(t, TypeCFF, kind)

	r = newReader([]byte{'C', 0x00})
	_, err = readMagic(r)
	assert.NotNil(t, err)
}

func TestDumpAndLoadStrings(t *testing.T) {
	image := buildImage(t, cbfMeta, []byte("alpha\x00beta\x00"))
	c, err := Load(image)
	assert.Nil(t, err)

	var buf bytes.Buffer
	assert.Nil(t, c.DumpStrings(&buf))
	assert.Contains(t, buf.String(), "alpha")

	// Replace entry 1 through the CSV load path
	assert.Nil(t, c.LoadStrings(strings.NewReader("1,gamma\n")))
	assert.Equal(t, "gamma", c.Strings.GetOr(1, ""))
	// Unknown index rows are ignored
	assert.Nil(t, c.LoadStrings(strings.NewReader("9,delta\n")))
}

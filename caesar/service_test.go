package caesar

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServiceTypeFromRaw(t *testing.T) {
	valid := map[uint16]ServiceType{
		5:  ServiceTypeData,
		7:  ServiceTypeDownload,
		10: ServiceTypeDiagnosticFunction,
		19: ServiceTypeDiagnosticJob,
		21: ServiceTypeSession,
		22: ServiceTypeStoredData,
		23: ServiceTypeRoutine,
		24: ServiceTypeIoControl,
		26: ServiceTypeVariantCodingWrite,
		27: ServiceTypeVariantCodingRead,
	}
	for raw, want := range valid {
		assert.Equal(t, want, serviceTypeFromRaw(raw))
	}
	assert.Equal(t, ServiceTypeUnknown, serviceTypeFromRaw(0))
	assert.Equal(t, ServiceTypeUnknown, serviceTypeFromRaw(6))
	assert.Equal(t, ServiceTypeUnknown, serviceTypeFromRaw(99))
}

// Minimal record : only the data class field present, everything else
// defaulted
func buildServiceRecord(dataClass uint16) []byte {
	record := []byte{}
	record = binary.LittleEndian.AppendUint32(record, 0x08)
	record = binary.LittleEndian.AppendUint32(record, 0x00)
	record = binary.LittleEndian.AppendUint16(record, dataClass)
	return record
}

func TestServiceDataClassShifted(t *testing.T) {
	pool := NewStringPool(nil)
	for _, raw := range []uint16{5, 7, 10, 19, 21, 22, 23, 24, 26, 27} {
		r := newReader(buildServiceRecord(raw))
		svc, err := newService(r, pool, 0, 0, &ECU{})
		assert.Nil(t, err)
		assert.Equal(t, raw, svc.DataClass)
		assert.Equal(t, int32(1)<<(raw-1), svc.DataClassShifted)
	}
}

func TestServiceDecodeDefaults(t *testing.T) {
	pool := NewStringPool(nil)
	r := newReader(buildServiceRecord(21))
	svc, err := newService(r, pool, 0, 3, &ECU{})
	assert.Nil(t, err)
	assert.Equal(t, ServiceTypeSession, svc.Type())
	assert.Equal(t, 3, svc.PoolIdx)
	assert.Equal(t, "", svc.Qualifier)
	assert.False(t, svc.IsExecutable)
	assert.Equal(t, 0, svc.RequestByteCount())
	assert.Empty(t, svc.RequestBytes)
	assert.Empty(t, svc.InputPreparations)
	assert.Empty(t, svc.OutputPreparations)
	assert.Empty(t, svc.ComParams)
}

package caesar

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestStringPoolLookup(t *testing.T) {
	pool := NewStringPool([]byte("first\x00second\x00third\x00"))
	assert.Equal(t, 3, pool.Count())

	s, ok := pool.Get(0)
	assert.True(t, ok)
	assert.Equal(t, "first", s)
	s, ok = pool.Get(2)
	assert.True(t, ok)
	assert.Equal(t, "third", s)
}

func TestStringPoolAbsent(t *testing.T) {
	pool := NewStringPool([]byte("only\x00"))

	// -1 and out of range both mean absent, neither is an error
	_, ok := pool.Get(-1)
	assert.False(t, ok)
	_, ok = pool.Get(1)
	assert.False(t, ok)
	_, ok = pool.Get(1000)
	assert.False(t, ok)

	assert.Equal(t, "fallback", pool.GetOr(-1, "fallback"))
	assert.Equal(t, "only", pool.GetOr(0, "fallback"))
}

func TestStringPoolValidUtf8(t *testing.T) {
	pool := NewStringPool([]byte("ok\x00\xFF\xFE\x00"))
	for i := int32(0); i < int32(pool.Count()); i++ {
		if s, ok := pool.Get(i); ok {
			assert.True(t, utf8.ValidString(s))
		}
	}
	// The invalid entry reads as absent
	_, ok := pool.Get(1)
	assert.False(t, ok)
}

func TestStringPoolEmpty(t *testing.T) {
	pool := NewStringPool(nil)
	assert.Equal(t, 0, pool.Count())
	_, ok := pool.Get(0)
	assert.False(t, ok)
}

func TestDataPoolSlice(t *testing.T) {
	pool := NewDataPool([]byte{1, 2, 3, 4, 5})
	slice, err := pool.Slice(1, 3)
	assert.Nil(t, err)
	assert.Equal(t, []byte{2, 3, 4}, slice)

	_, err = pool.Slice(3, 10)
	assert.NotNil(t, err)
	perr, ok := err.(*ParseError)
	assert.True(t, ok)
	assert.Equal(t, ErrPoolOutOfRange, perr.Kind)

	_, err = pool.Slice(-1, 2)
	assert.NotNil(t, err)
}

package bx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLittleEndianReadWrite(t *testing.T) {
	b := make([]byte, 4)
	PutU32(b, 0x01020304)
	// LE: 04 03 02 01
	assert.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, b)
	assert.Equal(t, uint32(0x01020304), U32(b))

	PutI32(b, -2)
	assert.Equal(t, int32(-2), I32(b))

	s := make([]byte, 2)
	PutU16(s, 0x1234)
	assert.Equal(t, []byte{0x34, 0x12}, s)
	assert.Equal(t, uint16(0x1234), U16(s))
}

func TestLittleEndianAt(t *testing.T) {
	buf := make([]byte, 12)
	PutU32At(buf, 0, 7)
	PutI32At(buf, 4, -123456)

	assert.Equal(t, uint32(7), U32At(buf, 0))
	assert.Equal(t, int32(-123456), I32At(buf, 4))
	assert.Equal(t, uint32(0), U32At(buf, 8))
}

func TestBitmap(t *testing.T) {
	assert.Equal(t, 0, BitmapLen(0))
	assert.Equal(t, 1, BitmapLen(1))
	assert.Equal(t, 1, BitmapLen(8))
	assert.Equal(t, 2, BitmapLen(9))

	b := make([]byte, 2)
	SetBit(b, 0, true)
	SetBit(b, 9, true)
	assert.Equal(t, []byte{0x01, 0x02}, b)
	assert.True(t, Bit(b, 0))
	assert.True(t, Bit(b, 9))
	assert.False(t, Bit(b, 1))

	SetBit(b, 0, false)
	assert.False(t, Bit(b, 0))
	assert.Equal(t, []byte{0x00, 0x02}, b)
}

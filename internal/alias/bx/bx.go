// stand for bytes helper
package bx

import "encoding/binary"

var LE = binary.LittleEndian

// --- LE: read ---
func U16(b []byte) uint16 { return LE.Uint16(b) }
func U32(b []byte) uint32 { return LE.Uint32(b) }
func I32(b []byte) int32  { return int32(U32(b)) }

// --- LE: write ---
func PutU16(b []byte, v uint16) { LE.PutUint16(b, v) }
func PutU32(b []byte, v uint32) { LE.PutUint32(b, v) }
func PutI32(b []byte, v int32)  { PutU32(b, uint32(v)) }

// --- LE: At (offset) ---
func U32At(b []byte, off int) uint32       { return U32(b[off:]) }
func I32At(b []byte, off int) int32        { return I32(b[off:]) }
func PutU32At(b []byte, off int, v uint32) { PutU32(b[off:], v) }
func PutI32At(b []byte, off int, v int32)  { PutI32(b[off:], v) }

// --- bitmap (LSB-first inside each byte) ---
func Bit(b []byte, i int) bool { return b[i>>3]&(1<<(uint(i)&7)) != 0 }

func SetBit(b []byte, i int, on bool) {
	if on {
		b[i>>3] |= 1 << (uint(i) & 7)
		return
	}
	b[i>>3] &^= 1 << (uint(i) & 7)
}

// BitmapLen is the number of bytes needed to hold n bits.
func BitmapLen(n int) int { return (n + 7) / 8 }

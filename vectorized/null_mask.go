package vectorized

import (
	"math/bits"

	"github.com/RoaringBitmap/roaring/v2"
)

// NullMask efficiently tracks null values using bitmaps
type NullMask struct {
	Bits      []uint64
	Length    int
	NullCount int
}

// NewNullMask creates a new null mask with no nulls set
func NewNullMask(length int) *NullMask {
	numWords := (length + 63) / 64
	return &NullMask{
		Bits:   make([]uint64, numWords),
		Length: length,
	}
}

// NewAllNullMask creates a mask of the given length with every bit set
func NewAllNullMask(length int) *NullMask {
	nm := NewNullMask(length)
	for i := range nm.Bits {
		nm.Bits[i] = ^uint64(0)
	}
	if rem := length % 64; rem != 0 {
		nm.Bits[len(nm.Bits)-1] = (uint64(1) << rem) - 1
	}
	nm.NullCount = length
	return nm
}

// IsNull checks if a bit is set (indicating null)
func (nm *NullMask) IsNull(index int) bool {
	if index >= nm.Length {
		return false
	}
	return nm.Bits[index/64]&(1<<(index%64)) != 0
}

// SetNull sets a bit to indicate null
func (nm *NullMask) SetNull(index int) {
	if index >= nm.Length {
		return
	}
	w, b := index/64, uint(index%64)
	if nm.Bits[w]&(1<<b) == 0 {
		nm.Bits[w] |= 1 << b
		nm.NullCount++
	}
}

// SetNotNull clears a bit to indicate not null
func (nm *NullMask) SetNotNull(index int) {
	if index >= nm.Length {
		return
	}
	w, b := index/64, uint(index%64)
	if nm.Bits[w]&(1<<b) != 0 {
		nm.Bits[w] &^= 1 << b
		nm.NullCount--
	}
}

// HasNulls returns true if there are any null values
func (nm *NullMask) HasNulls() bool {
	return nm.NullCount > 0
}

// Clone returns an independent copy of the mask
func (nm *NullMask) Clone() *NullMask {
	c := &NullMask{
		Bits:      make([]uint64, len(nm.Bits)),
		Length:    nm.Length,
		NullCount: nm.NullCount,
	}
	copy(c.Bits, nm.Bits)
	return c
}

// Union returns a new mask that is null wherever any input is null.
// All masks must share the same length.
func Union(masks ...*NullMask) *NullMask {
	if len(masks) == 0 {
		return NewNullMask(0)
	}
	out := NewNullMask(masks[0].Length)
	for _, m := range masks {
		if !m.HasNulls() {
			continue
		}
		for i := range out.Bits {
			out.Bits[i] |= m.Bits[i]
		}
	}
	out.recount()
	return out
}

func (nm *NullMask) recount() {
	n := 0
	for _, w := range nm.Bits {
		n += bits.OnesCount64(w)
	}
	nm.NullCount = n
}

// ToRoaring converts the set bits into a roaring bitmap of row ids
func (nm *NullMask) ToRoaring() *roaring.Bitmap {
	rb := roaring.New()
	if !nm.HasNulls() {
		return rb
	}
	for w, word := range nm.Bits {
		for word != 0 {
			tz := bits.TrailingZeros64(word)
			rb.Add(uint32(w*64 + tz))
			word &= word - 1
		}
	}
	return rb
}

// NullMaskFromRoaring builds a mask of the given length from a bitmap of null row ids
func NullMaskFromRoaring(rb *roaring.Bitmap, length int) *NullMask {
	nm := NewNullMask(length)
	it := rb.Iterator()
	for it.HasNext() {
		nm.SetNull(int(it.Next()))
	}
	return nm
}

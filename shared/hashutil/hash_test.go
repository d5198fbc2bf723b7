package hashutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHash_Deterministic(t *testing.T) {
	assert.Equal(t, Hash([]byte("atlas")), Hash([]byte("atlas")))
	assert.NotEqual(t, Hash([]byte("atlas")), Hash([]byte("atlas2")))
}

func TestFieldHasher_CanonicalRange(t *testing.T) {
	h := FieldHasher{}
	for _, input := range [][]byte{nil, {0}, []byte("wyoming"), make([]byte, 1024)} {
		elem := h.ToElement(input)
		assert.Equal(t, byte(0), elem[0]&0xe0, "top three bits must be clear")
	}
}

func TestFieldHasher_HashElements(t *testing.T) {
	h := FieldHasher{}
	a := h.ToElement([]byte("a"))
	b := h.ToElement([]byte("b"))
	assert.Equal(t, h.HashElements(a, b), h.HashElements(a, b))
	assert.NotEqual(t, h.HashElements(a, b), h.HashElements(b, a))
	assert.Equal(t, byte(0), h.HashElements(a, b)[0]&0xe0)
}

func TestHashSHA256(t *testing.T) {
	assert.Equal(t, HashSHA256([]byte("x")), HashSHA256([]byte("x")))
	assert.NotEqual(t, HashSHA256([]byte("x")), HashSHA256([]byte("y")))
}

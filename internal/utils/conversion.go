package utils

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Embedding vectors are persisted little-endian, 4 bytes per component, in
// gallery tensor objects and anywhere else a vector travels as raw bytes.

// BytesToFloat32 unpacks little-endian float32 data into a new slice.
func BytesToFloat32(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("packed float32 data has %d bytes, not a multiple of 4", len(b))
	}

	result := make([]float32, len(b)/4)
	for i := range result {
		result[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return result, nil
}

// Float32ToBytes packs a vector little-endian, the inverse of BytesToFloat32.
func Float32ToBytes(v []float32) []byte {
	result := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(result[i*4:], math.Float32bits(f))
	}
	return result
}

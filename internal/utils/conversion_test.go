package utils

import (
	"testing"
)

func TestFloat32BytesRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		vec  []float32
	}{
		{"Empty", []float32{}},
		{"Single", []float32{0.5}},
		{"Typical embedding values", []float32{-0.123, 0.987, 0.0, 1.0, -1.0, 3.14159}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			packed := Float32ToBytes(tt.vec)
			if len(packed) != 4*len(tt.vec) {
				t.Fatalf("Float32ToBytes() length = %d, want %d", len(packed), 4*len(tt.vec))
			}

			got, err := BytesToFloat32(packed)
			if err != nil {
				t.Fatalf("BytesToFloat32() error = %v", err)
			}
			if len(got) != len(tt.vec) {
				t.Fatalf("BytesToFloat32() length = %d, want %d", len(got), len(tt.vec))
			}
			for i := range got {
				if got[i] != tt.vec[i] {
					t.Errorf("round trip at %d = %v, want %v", i, got[i], tt.vec[i])
				}
			}
		})
	}
}

func TestBytesToFloat32RejectsMisalignedInput(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5, 7} {
		if _, err := BytesToFloat32(make([]byte, n)); err == nil {
			t.Errorf("BytesToFloat32(%d bytes) error = nil, want error", n)
		}
	}
}

func TestBytesToFloat32KnownEncoding(t *testing.T) {
	// 1.0 as little-endian IEEE 754
	got, err := BytesToFloat32([]byte{0x00, 0x00, 0x80, 0x3f})
	if err != nil {
		t.Fatalf("BytesToFloat32() error = %v", err)
	}
	if len(got) != 1 || got[0] != 1.0 {
		t.Errorf("BytesToFloat32() = %v, want [1.0]", got)
	}
}

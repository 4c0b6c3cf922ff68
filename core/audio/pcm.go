package audio

import (
	"encoding/binary"
	"math"
)

// Samples16 interprets little-endian linear16 bytes as samples. A trailing
// odd byte is ignored.
func Samples16(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[2*i:]))
	}
	return samples
}

func Bytes16(samples []int16) []byte {
	data := make([]byte, 2*len(samples))
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(data[2*i:], uint16(sample))
	}
	return data
}

// RMS returns the root mean square level of linear16 audio normalised to
// the range [0, 1].
func RMS(data []byte) float64 {
	samples := Samples16(data)
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, sample := range samples {
		v := float64(sample) / math.MaxInt16
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}
